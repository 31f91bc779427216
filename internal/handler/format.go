package handler

import (
	"fmt"
	"strings"

	"skin-casino/internal/model"
	"skin-casino/internal/service"
)

const divider = "━━━━━━━━━━━━━━━"

var medals = []string{"🥇", "🥈", "🥉"}

// DescribeOutcome renders the draw of a game in one line.
func DescribeOutcome(o model.Outcome) string {
	switch v := o.(type) {
	case model.CoinflipOutcome:
		return fmt.Sprintf("🪙 You picked %s, the coin shows %s", v.Choice, v.Result)
	case model.CrashOutcome:
		if v.Live && !v.Won {
			return fmt.Sprintf("🚀 Crashed at %sx before you cashed out", v.CrashPoint.StringFixed(2))
		}
		return fmt.Sprintf("🚀 Crashed at %sx, cash-out at %sx", v.CrashPoint.StringFixed(2), v.CashOutAt.StringFixed(2))
	case model.RouletteOutcome:
		return fmt.Sprintf("🎡 Ball landed on %d (%s), you bet %s", v.Number, v.Color, v.BetType)
	case model.JackpotOutcome:
		return fmt.Sprintf("🎰 Pot of %s across %d players, your chance %.2f%%",
			Money(v.TotalPot), v.Participants, v.WinChance*100)
	default:
		return "🎲 Game settled"
	}
}

// FormatReceipt renders a settlement for chat.
func FormatReceipt(username string, r *model.SettlementReceipt) string {
	rec := r.Record
	var b strings.Builder
	fmt.Fprintf(&b, "@%s %s\n", username, DescribeOutcome(rec.Outcome))
	if rec.WinAmount.IsPositive() {
		fmt.Fprintf(&b, "🎉 You won %s!\n", Money(rec.WinAmount))
	} else {
		fmt.Fprintf(&b, "😢 You lost %s\n", Money(rec.LossAmount))
	}
	fmt.Fprintf(&b, "💰 Balance: %s\n", Money(r.NewBalance))
	fmt.Fprintf(&b, "🔐 Game #%d, verify with /verify %d", rec.ID, rec.ID)
	if r.Replayed {
		b.WriteString("\n↩️ Already settled, nothing was charged again")
	}
	return b.String()
}

// FormatHistory renders a list of records, newest first.
func FormatHistory(records []*model.GameRecord) string {
	if len(records) == 0 {
		return "📜 No games yet"
	}
	var b strings.Builder
	b.WriteString("📜 Recent games\n" + divider + "\n")
	for _, rec := range records {
		result := "-" + Money(rec.LossAmount)
		if rec.WinAmount.IsPositive() {
			result = "+" + Money(rec.WinAmount)
		}
		fmt.Fprintf(&b, "#%d %s bet %s → %s\n", rec.ID, rec.GameType, Money(rec.BetAmount), result)
	}
	b.WriteString(divider)
	return b.String()
}

// FormatLeaderboard renders the winners board.
func FormatLeaderboard(entries []*model.LeaderboardEntry) string {
	if len(entries) == 0 {
		return "📊 No ranking data yet"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Top %d winners\n%s\n", len(entries), divider)
	for i, e := range entries {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		name := e.Username
		if name == "" {
			name = e.UserID
		}
		fmt.Fprintf(&b, "%s %s: %s won in %d games\n", rank, name, Money(e.TotalWon), e.GamesPlayed)
	}
	b.WriteString(divider)
	return b.String()
}

// FormatVerification renders the result of replaying a game.
func FormatVerification(v *service.Verification) string {
	check := func(ok bool) string {
		if ok {
			return "✅"
		}
		return "❌"
	}
	f := v.Record.Fairness
	var b strings.Builder
	fmt.Fprintf(&b, "🔐 Game #%d (%s)\n%s\n", v.Record.ID, v.Record.GameType, divider)
	fmt.Fprintf(&b, "Server seed: %s\nSeed hash: %s\nClient seed: %s\nNonce: %d\n", f.ServerSeed, f.ServerSeedHash, f.ClientSeed, f.Nonce)
	fmt.Fprintf(&b, "%s server seed matches hash\n", check(v.ServerSeedValid))
	fmt.Fprintf(&b, "%s fairness hash\n", check(v.FairnessValid))
	fmt.Fprintf(&b, "%s game hash\n", check(v.GameHashValid))
	fmt.Fprintf(&b, "%s outcome replays\n", check(v.OutcomeValid))
	b.WriteString(divider)
	return b.String()
}
