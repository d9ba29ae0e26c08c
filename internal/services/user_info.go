package services

import (
	"context"
	"time"

	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/valuation"
)

type WithdrawalView struct {
	LockedAt     time.Time `json:"locked_at"`
	MaturesAt    time.Time `json:"matures_at"`
	LockedShares uint64    `json:"locked_shares"`
	LockedAmount uint64    `json:"locked_amount"`
	Matured      bool      `json:"matured"`
}

// UserInfo is the read-only projection of a staker.
type UserInfo struct {
	Owner          string             `json:"owner"`
	State          types.UnstakeState `json:"state"`
	Shares         uint64             `json:"shares"`
	CurrentValue   uint64             `json:"current_value"`
	OptimizedPrice uint64             `json:"optimized_price"`
	RealPrice      uint64             `json:"real_price"`
	// human readable renderings of the fixed-point values above
	DisplayValue          string          `json:"display_value"`
	DisplayOptimizedPrice string          `json:"display_optimized_price"`
	DisplayRealPrice      string          `json:"display_real_price"`
	StakeTimestamp        int64           `json:"stake_timestamp,omitempty"`
	Registered            bool            `json:"registered"`
	ShardID               uint64          `json:"shard_id"`
	SlotIndex             uint64          `json:"slot_index"`
	Withdrawal            *WithdrawalView `json:"withdrawal,omitempty"`
}

// GetUserInfo projects the position of owner at current prices. An owner
// that never staked gets a zero position.
func (s *Service) GetUserInfo(ctx context.Context, owner string) (*UserInfo, error) {
	ledger, err := s.getLedger(ctx)
	if err != nil {
		return nil, err
	}
	record, err := s.getUserShare(ctx, owner)
	if err != nil {
		return nil, err
	}

	pool := ledger.Pool()
	optimizedPrice, err := pool.OptimizedPrice()
	if err != nil {
		return nil, err
	}
	realPrice, err := pool.RealPrice()
	if err != nil {
		return nil, err
	}
	value, err := pool.ValueForShares(record.Shares)
	if err != nil {
		return nil, err
	}

	info := &UserInfo{
		Owner:                 owner,
		State:                 record.State(),
		Shares:                record.Shares,
		CurrentValue:          value,
		OptimizedPrice:        optimizedPrice,
		RealPrice:             realPrice,
		DisplayValue:          valuation.Format(value),
		DisplayOptimizedPrice: valuation.Format(optimizedPrice),
		DisplayRealPrice:      valuation.Format(realPrice),
		StakeTimestamp:        record.StakeTimestamp,
		Registered:            record.Registered,
		ShardID:               record.ShardID,
		SlotIndex:             record.SlotIndex,
	}
	if !record.Registered {
		return info, nil
	}

	entry, err := s.registry.GetUser(ctx, record.ShardID, record.SlotIndex)
	if err != nil {
		return nil, err
	}
	if lock := entry.Withdrawal; lock != nil {
		lockedAt := time.Unix(lock.LockedAt, 0).UTC()
		maturesAt := lockedAt.Add(s.cfg.Fund.MaturityPeriod)
		info.State = entry.State()
		info.Withdrawal = &WithdrawalView{
			LockedAt:     lockedAt,
			MaturesAt:    maturesAt,
			LockedShares: lock.LockedShares,
			LockedAmount: lock.LockedAmount,
			Matured:      !s.clock.Now().Before(maturesAt),
		}
	}
	return info, nil
}

// FundInfo is the read-only projection of the fund ledger.
type FundInfo struct {
	TotalShares           uint64 `json:"total_shares"`
	SmoothedValuation     uint64 `json:"smoothed_valuation"`
	RealValuation         uint64 `json:"real_valuation"`
	OptimizedPrice        uint64 `json:"optimized_price"`
	RealPrice             uint64 `json:"real_price"`
	DisplayOptimizedPrice string `json:"display_optimized_price"`
	DisplayRealPrice      string `json:"display_real_price"`
	TotalUsers            uint64 `json:"total_users"`
	PendingCashoutTotal   uint64 `json:"pending_cashout_total"`
	PendingCashouts       uint64 `json:"pending_cashouts"`
	RegistryShards        uint64 `json:"registry_shards"`
	ActiveUsers           uint64 `json:"active_users"`
	NavHistoryLen         int    `json:"nav_history_len"`
	InitializedAt         int64  `json:"initialized_at"`
}

func (s *Service) GetFundInfo(ctx context.Context) (*FundInfo, error) {
	ledger, err := s.getLedger(ctx)
	if err != nil {
		return nil, err
	}
	history, err := s.getNavHistory(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := s.registry.Directory(ctx)
	if err != nil {
		return nil, types.NewInternalServiceError(err)
	}
	pending, err := s.cashout.Len(ctx)
	if err != nil {
		return nil, types.NewInternalServiceError(err)
	}

	pool := ledger.Pool()
	optimizedPrice, err := pool.OptimizedPrice()
	if err != nil {
		return nil, err
	}
	realPrice, err := pool.RealPrice()
	if err != nil {
		return nil, err
	}

	return &FundInfo{
		TotalShares:           ledger.TotalShares,
		SmoothedValuation:     ledger.SmoothedValuation,
		RealValuation:         ledger.RealValuation,
		OptimizedPrice:        optimizedPrice,
		RealPrice:             realPrice,
		DisplayOptimizedPrice: valuation.Format(optimizedPrice),
		DisplayRealPrice:      valuation.Format(realPrice),
		TotalUsers:            ledger.TotalUsers,
		PendingCashoutTotal:   ledger.PendingCashoutTotal,
		PendingCashouts:       pending,
		RegistryShards:        dir.TotalShards,
		ActiveUsers:           dir.ActiveUsers,
		NavHistoryLen:         len(history.Entries),
		InitializedAt:         ledger.InitializedAt,
	}, nil
}
