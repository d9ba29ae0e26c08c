package storage

import (
	"context"
	"time"

	"github.com/shrublabs/shrub-fund/internal/observability/metrics"
)

type growFunc interface {
	Grow(ctx context.Context, handle string, newSize uint64, payer string) error
}

type growerWithMetrics struct {
	grower growFunc
}

func NewGrowerWithMetrics(grower growFunc) *growerWithMetrics {
	return &growerWithMetrics{grower: grower}
}

func (g *growerWithMetrics) Grow(ctx context.Context, handle string, newSize uint64, payer string) error {
	startTime := time.Now()
	err := g.grower.Grow(ctx, handle, newSize, payer)
	metrics.RecordClientLatency(time.Since(startTime), "storage", "Grow", err != nil)
	return err
}
