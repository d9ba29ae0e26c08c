package queue

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventStaked              EventType = "STAKED"
	EventUnstakeInitiated    EventType = "UNSTAKE_INITIATED"
	EventUnstakeCompleted    EventType = "UNSTAKE_COMPLETED"
	EventValuationUpdated    EventType = "VALUATION_UPDATED"
	EventCommissionCollected EventType = "COMMISSION_COLLECTED"
)

func (e EventType) String() string {
	return string(e)
}

// FundEvent is the message body published for every committed fund
// operation. Fields that do not apply to an event type are left zero.
type FundEvent struct {
	EventID           string    `json:"event_id"`
	Type              EventType `json:"event_type"`
	Owner             string    `json:"owner,omitempty"`
	Shares            uint64    `json:"shares,omitempty"`
	Amount            uint64    `json:"amount,omitempty"`
	TotalShares       uint64    `json:"total_shares"`
	RealValuation     uint64    `json:"real_valuation"`
	SmoothedValuation uint64    `json:"smoothed_valuation"`
	Timestamp         int64     `json:"timestamp"`
}

func NewFundEvent(eventType EventType, at time.Time) *FundEvent {
	return &FundEvent{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Timestamp: at.Unix(),
	}
}
