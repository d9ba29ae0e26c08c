package settlement

import (
	"context"
	"time"

	"github.com/shrublabs/shrub-fund/internal/observability/metrics"
)

const clientName = "settlement"

type settlementWithMetrics struct {
	settlement SettlementInterface
}

func NewSettlementWithMetrics(settlement SettlementInterface) *settlementWithMetrics {
	return &settlementWithMetrics{settlement: settlement}
}

func (s *settlementWithMetrics) Transfer(ctx context.Context, from, to string, amount uint64) error {
	_, err := runSettlementMethodWithMetrics("Transfer", func() (struct{}, error) {
		return struct{}{}, s.settlement.Transfer(ctx, from, to, amount)
	})
	return err
}

func (s *settlementWithMetrics) Balance(ctx context.Context, account string) (uint64, error) {
	return runSettlementMethodWithMetrics("Balance", func() (uint64, error) {
		return s.settlement.Balance(ctx, account)
	})
}

func runSettlementMethodWithMetrics[T any](method string, f func() (T, error)) (T, error) {
	startTime := time.Now()
	v, err := f()
	duration := time.Since(startTime)

	metrics.RecordClientLatency(duration, clientName, method, err != nil)
	return v, err
}
