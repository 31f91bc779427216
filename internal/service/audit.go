package service

import (
	"context"

	"github.com/rs/zerolog/log"
)

// AuditReport compares a user's staked ledger entries with their history.
// Every staked entry is either a game record or a still-open crash round.
type AuditReport struct {
	UserID            string `json:"userId"`
	LedgerSettlements int64  `json:"ledgerSettlements"`
	GameRecords       int64  `json:"gameRecords"`
	OpenCrashRounds   int64  `json:"openCrashRounds"`
	Consistent        bool   `json:"consistent"`
}

// Auditor reconciles the ledger with the game record store.
type Auditor struct {
	users   UserRepository
	ledger  Ledger
	records GameRecordStore
	rounds  CrashRoundStore
}

// NewAuditor creates a new Auditor. rounds may be nil when live crash is disabled.
func NewAuditor(users UserRepository, ledger Ledger, records GameRecordStore, rounds CrashRoundStore) *Auditor {
	return &Auditor{users: users, ledger: ledger, records: records, rounds: rounds}
}

// Audit checks one user. A mismatch is logged as a consistency warning and
// reported, not returned as an error.
func (a *Auditor) Audit(ctx context.Context, userID string) (*AuditReport, error) {
	if _, err := a.users.GetByID(ctx, userID); err != nil {
		return nil, translate(err)
	}

	report := &AuditReport{UserID: userID}
	var err error
	if report.LedgerSettlements, err = a.ledger.CountSettlements(ctx, userID); err != nil {
		return nil, storageUnavailable(err)
	}
	if report.GameRecords, err = a.records.CountByUser(ctx, userID); err != nil {
		return nil, storageUnavailable(err)
	}
	if a.rounds != nil {
		if report.OpenCrashRounds, err = a.rounds.CountOpen(ctx, userID); err != nil {
			return nil, storageUnavailable(err)
		}
	}

	report.Consistent = report.LedgerSettlements == report.GameRecords+report.OpenCrashRounds
	if !report.Consistent {
		log.Warn().
			Bool("consistency_warning", true).
			Str("user_id", userID).
			Int64("ledger_settlements", report.LedgerSettlements).
			Int64("game_records", report.GameRecords).
			Int64("open_crash_rounds", report.OpenCrashRounds).
			Msg("Ledger and game history disagree")
	}
	return report, nil
}
