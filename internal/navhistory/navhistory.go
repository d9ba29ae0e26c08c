// Package navhistory keeps the bounded series of real valuations whose mean
// feeds the smoothed valuation.
package navhistory

import (
	"time"

	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/valuation"
)

// Window bounds the history both by entry count and by age.
type Window struct {
	capacity  int
	retention time.Duration
}

func NewWindow(cfg config.NavHistoryConfig) *Window {
	return &Window{
		capacity:  cfg.MaxEntries,
		retention: cfg.Retention,
	}
}

// Record appends value at ts, drops entries older than the retention period
// relative to ts, then trims the oldest entries down to capacity.
func (w *Window) Record(doc *model.NavHistoryDocument, value uint64, ts time.Time) {
	now := ts.Unix()
	doc.Entries = append(doc.Entries, model.NavHistoryEntry{
		Timestamp:     now,
		RealValuation: value,
	})

	cutoff := now - int64(w.retention/time.Second)
	retained := doc.Entries[:0]
	for _, entry := range doc.Entries {
		if entry.Timestamp >= cutoff {
			retained = append(retained, entry)
		}
	}

	if overflow := len(retained) - w.capacity; overflow > 0 {
		retained = retained[overflow:]
	}
	doc.Entries = append([]model.NavHistoryEntry(nil), retained...)
}

// Average is the truncated mean of the retained real valuations.
func (w *Window) Average(doc *model.NavHistoryDocument) (uint64, error) {
	values := make([]uint64, len(doc.Entries))
	for i, entry := range doc.Entries {
		values[i] = entry.RealValuation
	}
	return valuation.Mean(values)
}
