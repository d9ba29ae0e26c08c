// Package cashout holds the locked amounts of in-flight withdrawals until
// they are paid out.
package cashout

import (
	"context"
	"fmt"
	"time"

	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/utils"
)

type Store interface {
	GetCashoutQueue(ctx context.Context) (*model.CashoutQueueDocument, error)
	SaveCashoutQueue(ctx context.Context, doc *model.CashoutQueueDocument) error
	InsertPendingCashout(ctx context.Context, doc *model.PendingCashoutDocument) error
	GetPendingCashout(ctx context.Context, owner string) (*model.PendingCashoutDocument, error)
	DeletePendingCashout(ctx context.Context, owner string) error
	CountPendingCashouts(ctx context.Context) (uint64, error)
	SumPendingCashouts(ctx context.Context) (uint64, error)
}

type Grower interface {
	Grow(ctx context.Context, handle string, newSize uint64, payer string) error
}

type Queue struct {
	store  Store
	grower Grower
	cfg    config.CashoutConfig
}

func NewQueue(store Store, grower Grower, cfg config.CashoutConfig) *Queue {
	return &Queue{
		store:  store,
		grower: grower,
		cfg:    cfg,
	}
}

// Initialize allocates the queue at its initial capacity. It is a no-op
// when the queue already exists.
func (q *Queue) Initialize(ctx context.Context, payer string) (*model.CashoutQueueDocument, error) {
	meta, err := q.store.GetCashoutQueue(ctx)
	if err == nil {
		return meta, nil
	}
	if !db.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get cashout queue: %w", err)
	}

	meta = model.NewCashoutQueueDocument(q.cfg.InitialCapacity, q.cfg.EntrySizeBytes)
	if err := q.grower.Grow(ctx, model.CashoutQueueStorageHandle, meta.StorageBytes, payer); err != nil {
		return nil, fmt.Errorf("failed to allocate cashout queue: %w", err)
	}
	if err := q.store.SaveCashoutQueue(ctx, meta); err != nil {
		return nil, fmt.Errorf("failed to save cashout queue: %w", err)
	}
	return meta, nil
}

// Enqueue appends the locked amount of owner. When the queue is at capacity
// it first grows by one entry, funded by payer. A second entry for the same
// owner fails UnstakeAlreadyPending.
func (q *Queue) Enqueue(ctx context.Context, owner string, amount uint64, at time.Time, payer string) error {
	meta, err := q.Initialize(ctx, payer)
	if err != nil {
		return err
	}

	if _, err := q.store.GetPendingCashout(ctx, owner); err == nil {
		return types.ErrUnstakeAlreadyPending.Wrapf("cashout for %s is already queued", owner)
	} else if !db.IsNotFoundError(err) {
		return fmt.Errorf("failed to get pending cashout: %w", err)
	}

	count, err := q.store.CountPendingCashouts(ctx)
	if err != nil {
		return fmt.Errorf("failed to count pending cashouts: %w", err)
	}

	if count >= meta.Capacity {
		capacity, err := utils.AddUint64(count, 1)
		if err != nil {
			return err
		}
		storageBytes, err := utils.AddUint64(meta.StorageBytes, q.cfg.EntrySizeBytes)
		if err != nil {
			return err
		}
		if err := q.grower.Grow(ctx, model.CashoutQueueStorageHandle, storageBytes, payer); err != nil {
			return fmt.Errorf("failed to grow cashout queue: %w", err)
		}
		meta.Capacity = capacity
		meta.StorageBytes = storageBytes
		if err := q.store.SaveCashoutQueue(ctx, meta); err != nil {
			return fmt.Errorf("failed to save cashout queue: %w", err)
		}
	}

	err = q.store.InsertPendingCashout(ctx, &model.PendingCashoutDocument{
		Owner:        owner,
		LockedAmount: amount,
		EnqueuedAt:   at.Unix(),
	})
	if err != nil {
		if db.IsDuplicateKeyError(err) {
			return types.ErrUnstakeAlreadyPending.Wrapf("cashout for %s is already queued", owner)
		}
		return fmt.Errorf("failed to insert pending cashout: %w", err)
	}
	return nil
}

// Dequeue removes and returns the entry of owner.
func (q *Queue) Dequeue(ctx context.Context, owner string) (*model.PendingCashoutDocument, error) {
	entry, err := q.store.GetPendingCashout(ctx, owner)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.ErrNoUnstakePending.Wrapf("no queued cashout for %s", owner)
		}
		return nil, fmt.Errorf("failed to get pending cashout: %w", err)
	}
	if err := q.store.DeletePendingCashout(ctx, owner); err != nil {
		return nil, fmt.Errorf("failed to delete pending cashout: %w", err)
	}
	return entry, nil
}

// Total sums the locked amounts over every entry.
func (q *Queue) Total(ctx context.Context) (uint64, error) {
	total, err := q.store.SumPendingCashouts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to sum pending cashouts: %w", err)
	}
	return total, nil
}

func (q *Queue) Len(ctx context.Context) (uint64, error) {
	count, err := q.store.CountPendingCashouts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending cashouts: %w", err)
	}
	return count, nil
}
