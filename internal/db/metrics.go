package db

import (
	"context"
	"time"

	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/observability/metrics"
)

type DbWithMetrics struct {
	db DbInterface
}

func NewDbWithMetrics(db DbInterface) *DbWithMetrics {
	return &DbWithMetrics{db: db}
}

func (d *DbWithMetrics) Ping(ctx context.Context) error {
	return d.db.Ping(ctx)
}

func (d *DbWithMetrics) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.run("WithTransaction", func() error {
		return d.db.WithTransaction(ctx, fn)
	})
}

func (d *DbWithMetrics) GetFundLedger(ctx context.Context) (result *model.FundLedgerDocument, err error) {
	//nolint:errcheck
	d.run("GetFundLedger", func() error {
		result, err = d.db.GetFundLedger(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) InsertFundLedger(ctx context.Context, doc *model.FundLedgerDocument) error {
	return d.run("InsertFundLedger", func() error {
		return d.db.InsertFundLedger(ctx, doc)
	})
}

func (d *DbWithMetrics) SaveFundLedger(ctx context.Context, doc *model.FundLedgerDocument) error {
	return d.run("SaveFundLedger", func() error {
		return d.db.SaveFundLedger(ctx, doc)
	})
}

func (d *DbWithMetrics) GetRegistryDirectory(ctx context.Context) (result *model.RegistryDirectoryDocument, err error) {
	//nolint:errcheck
	d.run("GetRegistryDirectory", func() error {
		result, err = d.db.GetRegistryDirectory(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) SaveRegistryDirectory(ctx context.Context, doc *model.RegistryDirectoryDocument) error {
	return d.run("SaveRegistryDirectory", func() error {
		return d.db.SaveRegistryDirectory(ctx, doc)
	})
}

func (d *DbWithMetrics) GetRegistryShard(ctx context.Context, shardID uint64) (result *model.RegistryShardDocument, err error) {
	//nolint:errcheck
	d.run("GetRegistryShard", func() error {
		result, err = d.db.GetRegistryShard(ctx, shardID)
		return err
	})
	return
}

func (d *DbWithMetrics) InsertRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error {
	return d.run("InsertRegistryShard", func() error {
		return d.db.InsertRegistryShard(ctx, doc)
	})
}

func (d *DbWithMetrics) SaveRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error {
	return d.run("SaveRegistryShard", func() error {
		return d.db.SaveRegistryShard(ctx, doc)
	})
}

func (d *DbWithMetrics) ListRegistryShards(ctx context.Context) (result []*model.RegistryShardDocument, err error) {
	//nolint:errcheck
	d.run("ListRegistryShards", func() error {
		result, err = d.db.ListRegistryShards(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) GetRegistrySlot(ctx context.Context, shardID, slotIndex uint64) (result *model.RegistrySlotDocument, err error) {
	//nolint:errcheck
	d.run("GetRegistrySlot", func() error {
		result, err = d.db.GetRegistrySlot(ctx, shardID, slotIndex)
		return err
	})
	return
}

func (d *DbWithMetrics) FindFreeRegistrySlot(ctx context.Context, shardID uint64) (result *model.RegistrySlotDocument, err error) {
	//nolint:errcheck
	d.run("FindFreeRegistrySlot", func() error {
		result, err = d.db.FindFreeRegistrySlot(ctx, shardID)
		return err
	})
	return
}

func (d *DbWithMetrics) SaveRegistrySlot(ctx context.Context, doc *model.RegistrySlotDocument) error {
	return d.run("SaveRegistrySlot", func() error {
		return d.db.SaveRegistrySlot(ctx, doc)
	})
}

func (d *DbWithMetrics) GetNavHistory(ctx context.Context) (result *model.NavHistoryDocument, err error) {
	//nolint:errcheck
	d.run("GetNavHistory", func() error {
		result, err = d.db.GetNavHistory(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) SaveNavHistory(ctx context.Context, doc *model.NavHistoryDocument) error {
	return d.run("SaveNavHistory", func() error {
		return d.db.SaveNavHistory(ctx, doc)
	})
}

func (d *DbWithMetrics) GetCashoutQueue(ctx context.Context) (result *model.CashoutQueueDocument, err error) {
	//nolint:errcheck
	d.run("GetCashoutQueue", func() error {
		result, err = d.db.GetCashoutQueue(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) SaveCashoutQueue(ctx context.Context, doc *model.CashoutQueueDocument) error {
	return d.run("SaveCashoutQueue", func() error {
		return d.db.SaveCashoutQueue(ctx, doc)
	})
}

func (d *DbWithMetrics) InsertPendingCashout(ctx context.Context, doc *model.PendingCashoutDocument) error {
	return d.run("InsertPendingCashout", func() error {
		return d.db.InsertPendingCashout(ctx, doc)
	})
}

func (d *DbWithMetrics) GetPendingCashout(ctx context.Context, owner string) (result *model.PendingCashoutDocument, err error) {
	//nolint:errcheck
	d.run("GetPendingCashout", func() error {
		result, err = d.db.GetPendingCashout(ctx, owner)
		return err
	})
	return
}

func (d *DbWithMetrics) DeletePendingCashout(ctx context.Context, owner string) error {
	return d.run("DeletePendingCashout", func() error {
		return d.db.DeletePendingCashout(ctx, owner)
	})
}

func (d *DbWithMetrics) CountPendingCashouts(ctx context.Context) (result uint64, err error) {
	//nolint:errcheck
	d.run("CountPendingCashouts", func() error {
		result, err = d.db.CountPendingCashouts(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) SumPendingCashouts(ctx context.Context) (result uint64, err error) {
	//nolint:errcheck
	d.run("SumPendingCashouts", func() error {
		result, err = d.db.SumPendingCashouts(ctx)
		return err
	})
	return
}

func (d *DbWithMetrics) GetUserShare(ctx context.Context, owner string) (result *model.UserShareDocument, err error) {
	//nolint:errcheck
	d.run("GetUserShare", func() error {
		result, err = d.db.GetUserShare(ctx, owner)
		return err
	})
	return
}

func (d *DbWithMetrics) SaveUserShare(ctx context.Context, doc *model.UserShareDocument) error {
	return d.run("SaveUserShare", func() error {
		return d.db.SaveUserShare(ctx, doc)
	})
}

// run is private method that executes passed lambda function and send metrics data with spent time, method name
// and an error if any. It returns the error from the lambda function for convenience
func (d *DbWithMetrics) run(method string, f func() error) error {
	startTime := time.Now()
	err := f()
	duration := time.Since(startTime)

	metrics.RecordDbLatency(duration, method, err != nil)
	return err
}

func (d *DbWithMetrics) InsertRequestNonce(ctx context.Context, doc *model.RequestNonceDocument) error {
	return d.run("InsertRequestNonce", func() error {
		return d.db.InsertRequestNonce(ctx, doc)
	})
}
