package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"skin-casino/internal/fairness"
	"skin-casino/internal/game"
	"skin-casino/internal/model"
	"skin-casino/internal/repository"
)

// Verification is the result of re-deriving a settled game from its revealed seeds.
type Verification struct {
	Record          *model.GameRecord `json:"record"`
	Replayed        model.Outcome     `json:"replayed"`
	ServerSeedValid bool              `json:"serverSeedValid"`
	FairnessValid   bool              `json:"fairnessValid"`
	GameHashValid   bool              `json:"gameHashValid"`
	OutcomeValid    bool              `json:"outcomeValid"`
}

// Valid reports whether every check passed.
func (v *Verification) Valid() bool {
	return v.ServerSeedValid && v.FairnessValid && v.GameHashValid && v.OutcomeValid
}

// Verifier replays settled games.
type Verifier struct {
	records GameRecordStore
	games   *game.Registry
}

// NewVerifier creates a new Verifier instance.
func NewVerifier(records GameRecordStore, games *game.Registry) *Verifier {
	return &Verifier{records: records, games: games}
}

// Verify loads record id and checks its hashes and outcome against the revealed seeds.
func (v *Verifier) Verify(ctx context.Context, id int64) (*Verification, error) {
	rec, err := v.records.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, storageUnavailable(err)
	}
	return v.VerifyRecord(rec)
}

// VerifyRecord checks a record without loading it.
func (v *Verifier) VerifyRecord(rec *model.GameRecord) (*Verification, error) {
	g, ok := v.games.Get(rec.GameType)
	if !ok {
		return nil, invalidInput("game %s is not available", rec.GameType)
	}

	f := rec.Fairness
	seeds := fairness.Seeds{ServerSeed: f.ServerSeed, ClientSeed: f.ClientSeed, Nonce: f.Nonce}
	out := &Verification{
		Record:          rec,
		ServerSeedValid: fairness.HashServerSeed(f.ServerSeed) == f.ServerSeedHash,
		FairnessValid:   fairness.FairnessHash(seeds) == f.FairnessHash,
		GameHashValid:   fairness.GameHash(f.FairnessHash, rec.GameType, rec.BetAmount) == f.GameHash,
	}

	replayed, err := g.Play(fairness.NewSource(seeds), rec.BetAmount, g.ReplayParams(rec.Outcome))
	if err != nil {
		return nil, fmt.Errorf("failed to replay outcome: %w", err)
	}
	out.Replayed = replayed

	if out.OutcomeValid, err = sameDraw(rec.Outcome, replayed); err != nil {
		return nil, err
	}
	return out, nil
}

// sameDraw compares a stored outcome with its replay. Live crash rounds end
// on a player's timing, so only the drawn crash point can be compared.
func sameDraw(stored, replayed model.Outcome) (bool, error) {
	if c, ok := stored.(model.CrashOutcome); ok && c.Live {
		r, ok := replayed.(model.CrashOutcome)
		return ok && r.CrashPoint.Equal(c.CrashPoint), nil
	}

	a, err := model.EncodeOutcome(stored)
	if err != nil {
		return false, err
	}
	b, err := model.EncodeOutcome(replayed)
	if err != nil {
		return false, err
	}
	return bytes.Equal(a, b), nil
}
