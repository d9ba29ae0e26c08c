package model

import "github.com/shrublabs/shrub-fund/internal/valuation"

const (
	FundLedgerCollection = "fund_ledger"
	fundLedgerID         = "fund_ledger"
)

// FundLedgerDocument is the singleton aggregate of pool state. Valuations
// are total pool worth, not per-share prices.
type FundLedgerDocument struct {
	ID                  string `bson:"_id"`
	TotalShares         uint64 `bson:"total_shares"`
	SmoothedValuation   uint64 `bson:"smoothed_valuation"`
	RealValuation       uint64 `bson:"real_valuation"`
	TotalUsers          uint64 `bson:"total_users"`
	PendingCashoutTotal uint64 `bson:"pending_cashout_total"`
	AuthorityKey        string `bson:"authority_key"`
	InitializedAt       int64  `bson:"initialized_at"`
}

func NewFundLedgerDocument(authorityKey string, initialValue uint64, initializedAt int64) *FundLedgerDocument {
	return &FundLedgerDocument{
		ID:                fundLedgerID,
		SmoothedValuation: initialValue,
		RealValuation:     initialValue,
		AuthorityKey:      authorityKey,
		InitializedAt:     initializedAt,
	}
}

func (l *FundLedgerDocument) Pool() valuation.Pool {
	return valuation.Pool{
		TotalShares:       l.TotalShares,
		SmoothedValuation: l.SmoothedValuation,
		RealValuation:     l.RealValuation,
	}
}
