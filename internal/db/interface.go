package db

import (
	"context"

	"github.com/shrublabs/shrub-fund/internal/db/model"
)

type DbInterface interface {
	Ping(ctx context.Context) error
	// WithTransaction runs fn so that every write issued with the ctx it
	// receives commits together or not at all. It never retries fn.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	GetFundLedger(ctx context.Context) (*model.FundLedgerDocument, error)
	InsertFundLedger(ctx context.Context, doc *model.FundLedgerDocument) error
	SaveFundLedger(ctx context.Context, doc *model.FundLedgerDocument) error

	GetRegistryDirectory(ctx context.Context) (*model.RegistryDirectoryDocument, error)
	SaveRegistryDirectory(ctx context.Context, doc *model.RegistryDirectoryDocument) error
	GetRegistryShard(ctx context.Context, shardID uint64) (*model.RegistryShardDocument, error)
	InsertRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error
	SaveRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error
	ListRegistryShards(ctx context.Context) ([]*model.RegistryShardDocument, error)
	GetRegistrySlot(ctx context.Context, shardID, slotIndex uint64) (*model.RegistrySlotDocument, error)
	FindFreeRegistrySlot(ctx context.Context, shardID uint64) (*model.RegistrySlotDocument, error)
	SaveRegistrySlot(ctx context.Context, doc *model.RegistrySlotDocument) error

	GetNavHistory(ctx context.Context) (*model.NavHistoryDocument, error)
	SaveNavHistory(ctx context.Context, doc *model.NavHistoryDocument) error

	GetCashoutQueue(ctx context.Context) (*model.CashoutQueueDocument, error)
	SaveCashoutQueue(ctx context.Context, doc *model.CashoutQueueDocument) error
	InsertPendingCashout(ctx context.Context, doc *model.PendingCashoutDocument) error
	GetPendingCashout(ctx context.Context, owner string) (*model.PendingCashoutDocument, error)
	DeletePendingCashout(ctx context.Context, owner string) error
	CountPendingCashouts(ctx context.Context) (uint64, error)
	SumPendingCashouts(ctx context.Context) (uint64, error)

	GetUserShare(ctx context.Context, owner string) (*model.UserShareDocument, error)
	SaveUserShare(ctx context.Context, doc *model.UserShareDocument) error

	// InsertRequestNonce fails with DuplicateKeyError when the nonce of the
	// signer is still recorded.
	InsertRequestNonce(ctx context.Context, doc *model.RequestNonceDocument) error
}
