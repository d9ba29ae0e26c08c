// Package registry manages the sharded directory of stakers. Each shard is a
// growth-only arena of slots; a vacated slot becomes a tombstone that the next
// registration reuses before any new slot is allocated.
package registry

import (
	"context"
	"fmt"

	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/utils"
)

type Store interface {
	GetRegistryDirectory(ctx context.Context) (*model.RegistryDirectoryDocument, error)
	SaveRegistryDirectory(ctx context.Context, doc *model.RegistryDirectoryDocument) error
	GetRegistryShard(ctx context.Context, shardID uint64) (*model.RegistryShardDocument, error)
	InsertRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error
	SaveRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error
	ListRegistryShards(ctx context.Context) ([]*model.RegistryShardDocument, error)
	GetRegistrySlot(ctx context.Context, shardID, slotIndex uint64) (*model.RegistrySlotDocument, error)
	FindFreeRegistrySlot(ctx context.Context, shardID uint64) (*model.RegistrySlotDocument, error)
	SaveRegistrySlot(ctx context.Context, doc *model.RegistrySlotDocument) error
}

// Grower extends a backing allocation to at least newSize bytes, charging
// any reserve shortfall to payer.
//
//go:generate mockery --name=Grower --output=../../tests/mocks --outpkg=mocks --filename=mock_grower.go
type Grower interface {
	Grow(ctx context.Context, handle string, newSize uint64, payer string) error
}

type Manager struct {
	store  Store
	grower Grower
	cfg    config.RegistryConfig
}

func NewManager(store Store, grower Grower, cfg config.RegistryConfig) *Manager {
	return &Manager{
		store:  store,
		grower: grower,
		cfg:    cfg,
	}
}

// Directory returns the global counters, zero valued before the first shard.
func (m *Manager) Directory(ctx context.Context) (*model.RegistryDirectoryDocument, error) {
	dir, err := m.store.GetRegistryDirectory(ctx)
	if err != nil {
		if db.IsNotFoundError(err) {
			return model.NewRegistryDirectoryDocument(), nil
		}
		return nil, fmt.Errorf("failed to get registry directory: %w", err)
	}
	return dir, nil
}

// InitializeShard creates an empty shard and registers it in the directory.
func (m *Manager) InitializeShard(ctx context.Context, shardID uint64, payer string) (*model.RegistryShardDocument, error) {
	if shardID >= m.cfg.MaxShards {
		return nil, types.ErrInvalidRegistryIndex.Wrapf("shard %d exceeds max shards %d", shardID, m.cfg.MaxShards)
	}

	dir, err := m.Directory(ctx)
	if err != nil {
		return nil, err
	}
	if dir.TotalShards >= m.cfg.MaxShards {
		return nil, types.ErrRegistryFull.Wrapf("directory already holds %d shards", dir.TotalShards)
	}

	if _, err := m.store.GetRegistryShard(ctx, shardID); err == nil {
		return nil, types.ErrInvalidRegistryIndex.Wrapf("shard %d already exists", shardID)
	} else if !db.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get registry shard: %w", err)
	}

	totalShards, err := utils.AddUint64(dir.TotalShards, 1)
	if err != nil {
		return nil, err
	}

	shard := &model.RegistryShardDocument{
		ShardID:      shardID,
		StorageBytes: m.cfg.ShardHeaderBytes,
	}
	if err := m.grower.Grow(ctx, shard.StorageHandle(), shard.StorageBytes, payer); err != nil {
		return nil, fmt.Errorf("failed to allocate shard %d: %w", shardID, err)
	}

	if err := m.store.InsertRegistryShard(ctx, shard); err != nil {
		if db.IsDuplicateKeyError(err) {
			return nil, types.ErrInvalidRegistryIndex.Wrapf("shard %d already exists", shardID)
		}
		return nil, fmt.Errorf("failed to insert registry shard: %w", err)
	}

	dir.TotalShards = totalShards
	if err := m.store.SaveRegistryDirectory(ctx, dir); err != nil {
		return nil, fmt.Errorf("failed to save registry directory: %w", err)
	}

	return shard, nil
}

// SelectShard picks the lowest-id shard with spare population.
func (m *Manager) SelectShard(ctx context.Context) (uint64, error) {
	shards, err := m.store.ListRegistryShards(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list registry shards: %w", err)
	}
	for _, shard := range shards {
		if shard.UserCount < m.cfg.MaxShardUsers {
			return shard.ShardID, nil
		}
	}
	return 0, types.ErrRegistryFull.Wrapf("no shard has spare capacity")
}

// Shards lists every shard ordered by id.
func (m *Manager) Shards(ctx context.Context) ([]*model.RegistryShardDocument, error) {
	shards, err := m.store.ListRegistryShards(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list registry shards: %w", err)
	}
	return shards, nil
}

// AddUser registers user in shardID and returns the occupied slot index.
// A tombstone is reused when one exists; otherwise the shard grows by one
// slot, funded by payer.
func (m *Manager) AddUser(ctx context.Context, shardID uint64, user *model.UserInfo, payer string) (uint64, error) {
	shard, err := m.getShard(ctx, shardID)
	if err != nil {
		return 0, err
	}
	if shard.UserCount >= m.cfg.MaxShardUsers {
		return 0, types.ErrRegistryFull.Wrapf("shard %d holds %d users", shardID, shard.UserCount)
	}

	dir, err := m.Directory(ctx)
	if err != nil {
		return 0, err
	}

	userCount, err := utils.AddUint64(shard.UserCount, 1)
	if err != nil {
		return 0, err
	}
	activeUsers, err := utils.AddUint64(dir.ActiveUsers, 1)
	if err != nil {
		return 0, err
	}

	var slotIndex uint64
	free, err := m.store.FindFreeRegistrySlot(ctx, shardID)
	switch {
	case err == nil:
		slotIndex = free.SlotIndex
	case db.IsNotFoundError(err):
		slotIndex = shard.SlotCount
		slotCount, err := utils.AddUint64(shard.SlotCount, 1)
		if err != nil {
			return 0, err
		}
		storageBytes, err := utils.AddUint64(shard.StorageBytes, m.cfg.SlotSizeBytes)
		if err != nil {
			return 0, err
		}
		if err := m.grower.Grow(ctx, shard.StorageHandle(), storageBytes, payer); err != nil {
			return 0, fmt.Errorf("failed to grow shard %d: %w", shardID, err)
		}
		shard.SlotCount = slotCount
		shard.StorageBytes = storageBytes
	default:
		return 0, fmt.Errorf("failed to find free registry slot: %w", err)
	}

	shard.UserCount = userCount
	dir.ActiveUsers = activeUsers

	if err := m.store.SaveRegistrySlot(ctx, model.NewRegistrySlotDocument(shardID, slotIndex, user)); err != nil {
		return 0, fmt.Errorf("failed to save registry slot: %w", err)
	}
	if err := m.store.SaveRegistryShard(ctx, shard); err != nil {
		return 0, fmt.Errorf("failed to save registry shard: %w", err)
	}
	if err := m.store.SaveRegistryDirectory(ctx, dir); err != nil {
		return 0, fmt.Errorf("failed to save registry directory: %w", err)
	}

	return slotIndex, nil
}

// RemoveUser tombstones the slot. Storage is never shrunk.
func (m *Manager) RemoveUser(ctx context.Context, shardID, slotIndex uint64) error {
	slot, err := m.getOccupiedSlot(ctx, shardID, slotIndex)
	if err != nil {
		return err
	}
	shard, err := m.getShard(ctx, shardID)
	if err != nil {
		return err
	}
	dir, err := m.Directory(ctx)
	if err != nil {
		return err
	}

	userCount, err := utils.SubUint64(shard.UserCount, 1)
	if err != nil {
		return err
	}
	activeUsers, err := utils.SubUint64(dir.ActiveUsers, 1)
	if err != nil {
		return err
	}

	slot.User = nil
	shard.UserCount = userCount
	dir.ActiveUsers = activeUsers

	if err := m.store.SaveRegistrySlot(ctx, slot); err != nil {
		return fmt.Errorf("failed to save registry slot: %w", err)
	}
	if err := m.store.SaveRegistryShard(ctx, shard); err != nil {
		return fmt.Errorf("failed to save registry shard: %w", err)
	}
	if err := m.store.SaveRegistryDirectory(ctx, dir); err != nil {
		return fmt.Errorf("failed to save registry directory: %w", err)
	}
	return nil
}

// GetUser returns the occupant of the slot, failing UserNotInRegistry for a
// missing slot or a tombstone.
func (m *Manager) GetUser(ctx context.Context, shardID, slotIndex uint64) (*model.UserInfo, error) {
	slot, err := m.getOccupiedSlot(ctx, shardID, slotIndex)
	if err != nil {
		return nil, err
	}
	return slot.User, nil
}

// UpdateUser overwrites the occupant of the slot. The slot must already be
// held by the same owner.
func (m *Manager) UpdateUser(ctx context.Context, shardID, slotIndex uint64, user *model.UserInfo) error {
	slot, err := m.getOccupiedSlot(ctx, shardID, slotIndex)
	if err != nil {
		return err
	}
	if slot.User.Owner != user.Owner {
		return types.ErrUserNotInRegistry.Wrapf("slot %d:%d is held by another user", shardID, slotIndex)
	}

	slot.User = user
	if err := m.store.SaveRegistrySlot(ctx, slot); err != nil {
		return fmt.Errorf("failed to save registry slot: %w", err)
	}
	return nil
}

func (m *Manager) getShard(ctx context.Context, shardID uint64) (*model.RegistryShardDocument, error) {
	shard, err := m.store.GetRegistryShard(ctx, shardID)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.ErrInvalidRegistryIndex.Wrapf("shard %d is not initialized", shardID)
		}
		return nil, fmt.Errorf("failed to get registry shard: %w", err)
	}
	return shard, nil
}

func (m *Manager) getOccupiedSlot(ctx context.Context, shardID, slotIndex uint64) (*model.RegistrySlotDocument, error) {
	slot, err := m.store.GetRegistrySlot(ctx, shardID, slotIndex)
	if err != nil {
		if db.IsNotFoundError(err) {
			return nil, types.ErrUserNotInRegistry.Wrapf("slot %d:%d does not exist", shardID, slotIndex)
		}
		return nil, fmt.Errorf("failed to get registry slot: %w", err)
	}
	if slot.IsEmpty() {
		return nil, types.ErrUserNotInRegistry.Wrapf("slot %d:%d is empty", shardID, slotIndex)
	}
	return slot, nil
}
