// Package storage backs growable allocations (registry shards, the cashout
// queue) with a storage-cost reserve account per allocation. Growing an
// allocation tops the reserve up to the rent for its new size, charged to
// the payer.
package storage

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/clients/settlement"
	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/types"
)

type Grower struct {
	settlement settlement.SettlementInterface
	cfg        config.StorageConfig
}

func NewGrower(settlement settlement.SettlementInterface, cfg config.StorageConfig) *Grower {
	return &Grower{
		settlement: settlement,
		cfg:        cfg,
	}
}

// ReserveAccount is the account holding the reserve of handle.
func (g *Grower) ReserveAccount(handle string) string {
	return g.cfg.ReservePrefix + handle
}

// RequiredReserve is ReserveBase + size*RentPerByte.
func (g *Grower) RequiredReserve(size uint64) (uint64, error) {
	required := math.NewIntFromUint64(size).
		Mul(math.NewIntFromUint64(g.cfg.RentPerByte)).
		Add(math.NewIntFromUint64(g.cfg.ReserveBase))
	if !required.IsUint64() {
		return 0, types.ErrMathOverflow.Wrapf("reserve for %d bytes", size)
	}
	return required.Uint64(), nil
}

// Grow ensures the reserve of handle covers newSize bytes. Calling it again
// with the same size transfers nothing.
func (g *Grower) Grow(ctx context.Context, handle string, newSize uint64, payer string) error {
	required, err := g.RequiredReserve(newSize)
	if err != nil {
		return err
	}

	account := g.ReserveAccount(handle)
	current, err := g.settlement.Balance(ctx, account)
	if err != nil {
		return fmt.Errorf("failed to read reserve of %s: %w", handle, err)
	}
	if current >= required {
		return nil
	}

	shortfall := required - current
	if err := g.settlement.Transfer(ctx, payer, account, shortfall); err != nil {
		return fmt.Errorf("failed to top up reserve of %s: %w", handle, err)
	}

	log.Ctx(ctx).Debug().
		Str("handle", handle).
		Uint64("new_size", newSize).
		Uint64("top_up", shortfall).
		Str("payer", payer).
		Msg("storage reserve topped up")
	return nil
}
