package model

import (
	"fmt"

	"github.com/shrublabs/shrub-fund/internal/types"
)

const (
	RegistryDirectoryCollection = "registry_directory"
	RegistryShardCollection     = "registry_shards"
	RegistrySlotCollection      = "registry_slots"
	registryDirectoryID         = "registry_directory"
)

// RegistryDirectoryDocument holds the global registry counters.
type RegistryDirectoryDocument struct {
	ID          string `bson:"_id"`
	TotalShards uint64 `bson:"total_shards"`
	ActiveUsers uint64 `bson:"active_users"`
}

func NewRegistryDirectoryDocument() *RegistryDirectoryDocument {
	return &RegistryDirectoryDocument{ID: registryDirectoryID}
}

// RegistryShardDocument is one registry partition. SlotCount only grows;
// emptied slots stay allocated as tombstones and are reused first.
type RegistryShardDocument struct {
	ShardID      uint64 `bson:"_id"`
	UserCount    uint64 `bson:"user_count"`
	SlotCount    uint64 `bson:"slot_count"`
	StorageBytes uint64 `bson:"storage_bytes"`
}

// StorageHandle names the shard allocation for the storage collaborator.
func (s *RegistryShardDocument) StorageHandle() string {
	return fmt.Sprintf("registry-shard-%d", s.ShardID)
}

// RegistrySlotDocument is one slot of a shard. A nil User is a tombstone.
type RegistrySlotDocument struct {
	ID        string    `bson:"_id"`
	ShardID   uint64    `bson:"shard_id"`
	SlotIndex uint64    `bson:"slot_index"`
	User      *UserInfo `bson:"user"`
}

func NewRegistrySlotDocument(shardID, slotIndex uint64, user *UserInfo) *RegistrySlotDocument {
	return &RegistrySlotDocument{
		ID:        RegistrySlotID(shardID, slotIndex),
		ShardID:   shardID,
		SlotIndex: slotIndex,
		User:      user,
	}
}

func RegistrySlotID(shardID, slotIndex uint64) string {
	return fmt.Sprintf("%d:%d", shardID, slotIndex)
}

func (s *RegistrySlotDocument) IsEmpty() bool {
	return s.User == nil
}

// UserInfo is the shard copy of a staker. It is authoritative for the
// withdrawal lifecycle.
type UserInfo struct {
	Owner          string          `bson:"owner"`
	Shares         uint64          `bson:"shares"`
	StakeTimestamp int64           `bson:"stake_timestamp"`
	Withdrawal     *WithdrawalLock `bson:"withdrawal,omitempty"`
}

func (u *UserInfo) State() types.UnstakeState {
	if u.Withdrawal != nil {
		return types.StateWithdrawalLocked
	}
	return types.StateActive
}

// WithdrawalLock freezes the payout of an initiated withdrawal.
type WithdrawalLock struct {
	LockedAt     int64  `bson:"locked_at"`
	LockedShares uint64 `bson:"locked_shares"`
	LockedAmount uint64 `bson:"locked_amount"`
}
