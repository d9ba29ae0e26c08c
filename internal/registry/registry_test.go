package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db/memdb"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/registry"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/tests/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const payer = "payer"

func newManager(t *testing.T, cfg config.RegistryConfig) (*registry.Manager, *memdb.Database, *mocks.Grower) {
	store := memdb.New()
	grower := mocks.NewGrower(t)
	grower.On("Grow", mock.Anything, mock.Anything, mock.Anything, payer).Return(nil).Maybe()
	return registry.NewManager(store, grower, cfg), store, grower
}

func smallConfig(maxUsers uint64) config.RegistryConfig {
	cfg := config.DefaultRegistryConfig()
	cfg.MaxShardUsers = maxUsers
	cfg.MaxShards = 3
	return cfg
}

func user(owner string) *model.UserInfo {
	return &model.UserInfo{Owner: owner, Shares: 1, StakeTimestamp: 1}
}

func TestInitializeShard(t *testing.T) {
	ctx := t.Context()

	t.Run("ok", func(t *testing.T) {
		m, _, grower := newManager(t, smallConfig(10))

		shard, err := m.InitializeShard(ctx, 0, payer)
		require.NoError(t, err)
		assert.Zero(t, shard.UserCount)
		assert.Zero(t, shard.SlotCount)

		dir, err := m.Directory(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), dir.TotalShards)
		grower.AssertCalled(t, "Grow", mock.Anything, "registry-shard-0", config.DefaultRegistryConfig().ShardHeaderBytes, payer)
	})
	t.Run("id out of range", func(t *testing.T) {
		m, _, _ := newManager(t, smallConfig(10))

		_, err := m.InitializeShard(ctx, 3, payer)
		assert.ErrorIs(t, err, types.ErrInvalidRegistryIndex)
	})
	t.Run("already exists", func(t *testing.T) {
		m, _, _ := newManager(t, smallConfig(10))

		_, err := m.InitializeShard(ctx, 1, payer)
		require.NoError(t, err)
		_, err = m.InitializeShard(ctx, 1, payer)
		assert.ErrorIs(t, err, types.ErrInvalidRegistryIndex)
	})
	t.Run("directory full", func(t *testing.T) {
		m, store, _ := newManager(t, smallConfig(10))

		dir := model.NewRegistryDirectoryDocument()
		dir.TotalShards = 3
		require.NoError(t, store.SaveRegistryDirectory(ctx, dir))

		_, err := m.InitializeShard(ctx, 0, payer)
		assert.ErrorIs(t, err, types.ErrRegistryFull)
	})
	t.Run("allocation failure leaves no shard", func(t *testing.T) {
		store := memdb.New()
		grower := mocks.NewGrower(t)
		grower.On("Grow", mock.Anything, mock.Anything, mock.Anything, payer).Return(errors.New("no funds"))
		m := registry.NewManager(store, grower, smallConfig(10))

		_, err := m.InitializeShard(ctx, 0, payer)
		require.Error(t, err)

		shards, err := m.Shards(ctx)
		require.NoError(t, err)
		assert.Empty(t, shards)
	})
}

func TestAddUser(t *testing.T) {
	ctx := t.Context()

	t.Run("appends and grows by one slot", func(t *testing.T) {
		cfg := smallConfig(10)
		m, store, grower := newManager(t, cfg)
		_, err := m.InitializeShard(ctx, 0, payer)
		require.NoError(t, err)

		for i, owner := range []string{"a", "b", "c"} {
			slot, err := m.AddUser(ctx, 0, user(owner), payer)
			require.NoError(t, err)
			assert.Equal(t, uint64(i), slot)
		}

		shard, err := store.GetRegistryShard(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), shard.UserCount)
		assert.Equal(t, uint64(3), shard.SlotCount)
		assert.Equal(t, cfg.ShardHeaderBytes+3*cfg.SlotSizeBytes, shard.StorageBytes)
		grower.AssertCalled(t, "Grow", mock.Anything, "registry-shard-0", cfg.ShardHeaderBytes+cfg.SlotSizeBytes, payer)

		dir, err := m.Directory(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), dir.ActiveUsers)
	})
	t.Run("reuses the first tombstone", func(t *testing.T) {
		m, store, grower := newManager(t, smallConfig(10))
		_, err := m.InitializeShard(ctx, 0, payer)
		require.NoError(t, err)
		for _, owner := range []string{"a", "b", "c", "d"} {
			_, err := m.AddUser(ctx, 0, user(owner), payer)
			require.NoError(t, err)
		}

		require.NoError(t, m.RemoveUser(ctx, 0, 2))
		require.NoError(t, m.RemoveUser(ctx, 0, 1))
		grows := len(grower.Calls)

		slot, err := m.AddUser(ctx, 0, user("e"), payer)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), slot)
		assert.Len(t, grower.Calls, grows)

		shard, err := store.GetRegistryShard(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), shard.SlotCount)
		assert.Equal(t, uint64(3), shard.UserCount)

		info, err := m.GetUser(ctx, 0, 1)
		require.NoError(t, err)
		assert.Equal(t, "e", info.Owner)
	})
	t.Run("full shard fails without mutating counters", func(t *testing.T) {
		m, store, _ := newManager(t, smallConfig(2))
		_, err := m.InitializeShard(ctx, 0, payer)
		require.NoError(t, err)
		for _, owner := range []string{"a", "b"} {
			_, err := m.AddUser(ctx, 0, user(owner), payer)
			require.NoError(t, err)
		}

		_, err = m.AddUser(ctx, 0, user("c"), payer)
		assert.ErrorIs(t, err, types.ErrRegistryFull)

		shard, err := store.GetRegistryShard(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), shard.UserCount)
		assert.Equal(t, uint64(2), shard.SlotCount)

		dir, err := m.Directory(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), dir.ActiveUsers)

		_, err = m.SelectShard(ctx)
		assert.ErrorIs(t, err, types.ErrRegistryFull)
	})
	t.Run("uninitialized shard", func(t *testing.T) {
		m, _, _ := newManager(t, smallConfig(2))

		_, err := m.AddUser(ctx, 1, user("a"), payer)
		assert.ErrorIs(t, err, types.ErrInvalidRegistryIndex)
	})
	t.Run("growth failure propagates", func(t *testing.T) {
		store := memdb.New()
		grower := mocks.NewGrower(t)
		grower.On("Grow", mock.Anything, "registry-shard-0", config.DefaultRegistryConfig().ShardHeaderBytes, payer).Return(nil).Once()
		grower.On("Grow", mock.Anything, "registry-shard-0", mock.Anything, payer).Return(errors.New("insufficient lamports")).Once()
		m := registry.NewManager(store, grower, smallConfig(2))

		_, err := m.InitializeShard(ctx, 0, payer)
		require.NoError(t, err)

		err = store.WithTransaction(ctx, func(ctx context.Context) error {
			_, err := m.AddUser(ctx, 0, user("a"), payer)
			return err
		})
		require.Error(t, err)

		shard, err := store.GetRegistryShard(ctx, 0)
		require.NoError(t, err)
		assert.Zero(t, shard.UserCount)
		assert.Zero(t, shard.SlotCount)
	})
}

func TestSelectShard(t *testing.T) {
	ctx := t.Context()
	m, _, _ := newManager(t, smallConfig(1))

	_, err := m.SelectShard(ctx)
	assert.ErrorIs(t, err, types.ErrRegistryFull)

	for _, id := range []uint64{2, 0} {
		_, err := m.InitializeShard(ctx, id, payer)
		require.NoError(t, err)
	}

	id, err := m.SelectShard(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	_, err = m.AddUser(ctx, 0, user("a"), payer)
	require.NoError(t, err)

	id, err = m.SelectShard(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), id)
}

func TestUserLookup(t *testing.T) {
	ctx := t.Context()
	m, _, _ := newManager(t, smallConfig(5))
	_, err := m.InitializeShard(ctx, 0, payer)
	require.NoError(t, err)

	_, err = m.GetUser(ctx, 0, 0)
	assert.ErrorIs(t, err, types.ErrUserNotInRegistry)

	slot, err := m.AddUser(ctx, 0, user("a"), payer)
	require.NoError(t, err)

	updated := user("a")
	updated.Shares = 42
	require.NoError(t, m.UpdateUser(ctx, 0, slot, updated))

	info, err := m.GetUser(ctx, 0, slot)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), info.Shares)

	err = m.UpdateUser(ctx, 0, slot, user("b"))
	assert.ErrorIs(t, err, types.ErrUserNotInRegistry)

	require.NoError(t, m.RemoveUser(ctx, 0, slot))
	err = m.RemoveUser(ctx, 0, slot)
	assert.ErrorIs(t, err, types.ErrUserNotInRegistry)
}
