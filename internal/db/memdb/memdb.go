// Package memdb is an in-memory db.DbInterface used by unit tests and dry
// runs. Transactions are serialized and roll back by restoring a snapshot.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shrublabs/shrub-fund/internal/db"
	"github.com/shrublabs/shrub-fund/internal/db/model"
)

type txKey struct{}

type state struct {
	ledger     *model.FundLedgerDocument
	directory  *model.RegistryDirectoryDocument
	shards     map[uint64]model.RegistryShardDocument
	slots      map[string]model.RegistrySlotDocument
	navHistory *model.NavHistoryDocument
	queue      *model.CashoutQueueDocument
	pending    map[string]model.PendingCashoutDocument
	userShares map[string]model.UserShareDocument
	nonces     map[string]model.RequestNonceDocument
}

func newState() state {
	return state{
		shards:     map[uint64]model.RegistryShardDocument{},
		slots:      map[string]model.RegistrySlotDocument{},
		pending:    map[string]model.PendingCashoutDocument{},
		userShares: map[string]model.UserShareDocument{},
		nonces:     map[string]model.RequestNonceDocument{},
	}
}

type Database struct {
	txMu sync.Mutex
	mu   sync.Mutex
	s    state
}

var _ db.DbInterface = (*Database)(nil)

func New() *Database {
	return &Database{s: newState()}
}

func (d *Database) Ping(ctx context.Context) error {
	return nil
}

func (d *Database) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	d.txMu.Lock()
	defer d.txMu.Unlock()

	d.mu.Lock()
	snapshot := d.s.clone()
	d.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		d.mu.Lock()
		d.s = snapshot
		d.mu.Unlock()
		return err
	}
	return nil
}

func (d *Database) GetFundLedger(ctx context.Context) (*model.FundLedgerDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.s.ledger == nil {
		return nil, notFound(model.FundLedgerCollection, "fund ledger not found")
	}
	doc := *d.s.ledger
	return &doc, nil
}

func (d *Database) InsertFundLedger(ctx context.Context, doc *model.FundLedgerDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.s.ledger != nil {
		return &db.DuplicateKeyError{Key: doc.ID, Message: "fund ledger already exists"}
	}
	cp := *doc
	d.s.ledger = &cp
	return nil
}

func (d *Database) SaveFundLedger(ctx context.Context, doc *model.FundLedgerDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cp := *doc
	d.s.ledger = &cp
	return nil
}

func (d *Database) GetRegistryDirectory(ctx context.Context) (*model.RegistryDirectoryDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.s.directory == nil {
		return nil, notFound(model.RegistryDirectoryCollection, "registry directory not found")
	}
	doc := *d.s.directory
	return &doc, nil
}

func (d *Database) SaveRegistryDirectory(ctx context.Context, doc *model.RegistryDirectoryDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cp := *doc
	d.s.directory = &cp
	return nil
}

func (d *Database) GetRegistryShard(ctx context.Context, shardID uint64) (*model.RegistryShardDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.s.shards[shardID]
	if !ok {
		return nil, notFound(fmt.Sprint(shardID), "registry shard not found")
	}
	return &doc, nil
}

func (d *Database) InsertRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.s.shards[doc.ShardID]; ok {
		return &db.DuplicateKeyError{Key: fmt.Sprint(doc.ShardID), Message: "registry shard already exists"}
	}
	d.s.shards[doc.ShardID] = *doc
	return nil
}

func (d *Database) SaveRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.s.shards[doc.ShardID] = *doc
	return nil
}

func (d *Database) ListRegistryShards(ctx context.Context) ([]*model.RegistryShardDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	shards := make([]*model.RegistryShardDocument, 0, len(d.s.shards))
	for _, shard := range d.s.shards {
		doc := shard
		shards = append(shards, &doc)
	}
	sort.Slice(shards, func(i, j int) bool {
		return shards[i].ShardID < shards[j].ShardID
	})
	return shards, nil
}

func (d *Database) GetRegistrySlot(ctx context.Context, shardID, slotIndex uint64) (*model.RegistrySlotDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := model.RegistrySlotID(shardID, slotIndex)
	doc, ok := d.s.slots[id]
	if !ok {
		return nil, notFound(id, "registry slot not found")
	}
	return cloneSlot(doc), nil
}

func (d *Database) FindFreeRegistrySlot(ctx context.Context, shardID uint64) (*model.RegistrySlotDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var free *model.RegistrySlotDocument
	for _, slot := range d.s.slots {
		if slot.ShardID != shardID || !slot.IsEmpty() {
			continue
		}
		if free == nil || slot.SlotIndex < free.SlotIndex {
			free = cloneSlot(slot)
		}
	}
	if free == nil {
		return nil, notFound(fmt.Sprint(shardID), "no free registry slot")
	}
	return free, nil
}

func (d *Database) SaveRegistrySlot(ctx context.Context, doc *model.RegistrySlotDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.s.slots[doc.ID] = *cloneSlot(*doc)
	return nil
}

func (d *Database) GetNavHistory(ctx context.Context) (*model.NavHistoryDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.s.navHistory == nil {
		return nil, notFound(model.NavHistoryCollection, "nav history not found")
	}
	return cloneHistory(d.s.navHistory), nil
}

func (d *Database) SaveNavHistory(ctx context.Context, doc *model.NavHistoryDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.s.navHistory = cloneHistory(doc)
	return nil
}

func (d *Database) GetCashoutQueue(ctx context.Context) (*model.CashoutQueueDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.s.queue == nil {
		return nil, notFound(model.CashoutQueueCollection, "cashout queue not found")
	}
	doc := *d.s.queue
	return &doc, nil
}

func (d *Database) SaveCashoutQueue(ctx context.Context, doc *model.CashoutQueueDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	cp := *doc
	d.s.queue = &cp
	return nil
}

func (d *Database) InsertPendingCashout(ctx context.Context, doc *model.PendingCashoutDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.s.pending[doc.Owner]; ok {
		return &db.DuplicateKeyError{Key: doc.Owner, Message: "pending cashout already exists"}
	}
	d.s.pending[doc.Owner] = *doc
	return nil
}

func (d *Database) GetPendingCashout(ctx context.Context, owner string) (*model.PendingCashoutDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.s.pending[owner]
	if !ok {
		return nil, notFound(owner, "pending cashout not found")
	}
	return &doc, nil
}

func (d *Database) DeletePendingCashout(ctx context.Context, owner string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.s.pending[owner]; !ok {
		return notFound(owner, "pending cashout not found")
	}
	delete(d.s.pending, owner)
	return nil
}

func (d *Database) CountPendingCashouts(ctx context.Context) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return uint64(len(d.s.pending)), nil
}

func (d *Database) SumPendingCashouts(ctx context.Context) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var total uint64
	for _, doc := range d.s.pending {
		next := total + doc.LockedAmount
		if next < total {
			return 0, fmt.Errorf("pending cashout total overflows u64")
		}
		total = next
	}
	return total, nil
}

func (d *Database) GetUserShare(ctx context.Context, owner string) (*model.UserShareDocument, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	doc, ok := d.s.userShares[owner]
	if !ok {
		return nil, notFound(owner, "user share record not found")
	}
	return cloneUserShare(doc), nil
}

func (d *Database) SaveUserShare(ctx context.Context, doc *model.UserShareDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.s.userShares[doc.Owner] = *cloneUserShare(*doc)
	return nil
}

func notFound(key, message string) error {
	return &db.NotFoundError{Key: key, Message: message}
}

// InsertRequestNonce treats an expired nonce as absent, like the TTL index
// of the mongo store eventually does.
func (d *Database) InsertRequestNonce(ctx context.Context, doc *model.RequestNonceDocument) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.s.nonces[doc.ID]; ok && existing.ExpiresAt.After(time.Now()) {
		return &db.DuplicateKeyError{Key: doc.ID, Message: "request nonce already used"}
	}
	d.s.nonces[doc.ID] = *doc
	return nil
}
