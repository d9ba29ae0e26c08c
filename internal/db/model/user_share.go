package model

import "github.com/shrublabs/shrub-fund/internal/types"

const UserShareCollection = "user_shares"

// UserShareDocument is the per-user record. It caches the shard coordinates
// of the user's registry slot and mirrors the slot's UserInfo.
type UserShareDocument struct {
	Owner          string          `bson:"_id"`
	Shares         uint64          `bson:"shares"`
	StakeTimestamp int64           `bson:"stake_timestamp"`
	ShardID        uint64          `bson:"shard_id"`
	SlotIndex      uint64          `bson:"slot_index"`
	Registered     bool            `bson:"registered"`
	Withdrawal     *WithdrawalLock `bson:"withdrawal,omitempty"`
}

func NewUserShareDocument(owner string) *UserShareDocument {
	return &UserShareDocument{Owner: owner}
}

// IsEmpty reports whether the record carries no lifecycle. A completed
// withdrawal leaves the record in this state so the owner can stake again.
func (u *UserShareDocument) IsEmpty() bool {
	return !u.Registered && u.Shares == 0 && u.Withdrawal == nil
}

func (u *UserShareDocument) UnstakeInitiated() bool {
	return u.Withdrawal != nil
}

func (u *UserShareDocument) State() types.UnstakeState {
	if u.Withdrawal != nil {
		return types.StateWithdrawalLocked
	}
	return types.StateActive
}

// Reset empties the record while keeping it addressable by owner.
func (u *UserShareDocument) Reset() {
	*u = UserShareDocument{Owner: u.Owner}
}
