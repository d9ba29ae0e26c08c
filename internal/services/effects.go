package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/clients/settlement"
	"github.com/shrublabs/shrub-fund/internal/registry"
)

type effectsKey struct{}

type growthRequest struct {
	handle         string
	newSize        uint64
	payer          string
	idempotencyKey string
}

type transferRecord struct {
	from           string
	to             string
	amount         uint64
	idempotencyKey string
}

// effects collects the settlement side effects of one operation. Storage
// growth requested while the operation runs is settled after its transfers,
// and a failed growth refunds what the operation collected.
type effects struct {
	growth    []growthRequest
	transfers []transferRecord
	refunds   []transferRecord
}

func effectsFromContext(ctx context.Context) *effects {
	e, _ := ctx.Value(effectsKey{}).(*effects)
	return e
}

func (e *effects) requestGrowth(handle string, newSize uint64, payer string) {
	for i := range e.growth {
		if e.growth[i].handle == handle {
			e.growth[i].newSize = max(e.growth[i].newSize, newSize)
			return
		}
	}
	e.growth = append(e.growth, growthRequest{handle: handle, newSize: newSize, payer: payer})
}

func (e *effects) describe(event *zerolog.Event) *zerolog.Event {
	arr := zerolog.Arr()
	for _, t := range e.transfers {
		arr.Dict(zerolog.Dict().
			Str("from", t.from).
			Str("to", t.to).
			Uint64("amount", t.amount).
			Str("idempotency_key", t.idempotencyKey))
	}
	growth := zerolog.Arr()
	for _, g := range e.growth {
		if g.idempotencyKey == "" {
			continue
		}
		growth.Dict(zerolog.Dict().
			Str("handle", g.handle).
			Str("payer", g.payer).
			Uint64("new_size", g.newSize).
			Str("idempotency_key", g.idempotencyKey))
	}
	return event.Array("transfers", arr).Array("growth", growth)
}

// deferredGrower queues growth on the operation's effects. Outside an
// operation it grows immediately.
type deferredGrower struct {
	next registry.Grower
}

func (g *deferredGrower) Grow(ctx context.Context, handle string, newSize uint64, payer string) error {
	if e := effectsFromContext(ctx); e != nil {
		e.requestGrowth(handle, newSize, payer)
		return nil
	}
	return g.next.Grow(ctx, handle, newSize, payer)
}

// transfer moves amount under a fresh idempotency key and records it on the
// operation's effects.
func (s *Service) transfer(ctx context.Context, from, to string, amount uint64) error {
	key := uuid.New().String()
	if err := s.settlement.Transfer(settlement.WithIdempotencyKey(ctx, key), from, to, amount); err != nil {
		return err
	}
	if e := effectsFromContext(ctx); e != nil {
		e.transfers = append(e.transfers, transferRecord{from: from, to: to, amount: amount, idempotencyKey: key})
	}
	return nil
}

// refundOnFailure returns amount from "from" back to "to" if the operation
// fails after this point while settling its storage growth.
func refundOnFailure(ctx context.Context, from, to string, amount uint64) {
	if e := effectsFromContext(ctx); e != nil {
		e.refunds = append(e.refunds, transferRecord{from: from, to: to, amount: amount})
	}
}

// settleGrowth tops up every requested reserve. When a top-up fails the
// recorded refunds are paid back before the error is returned.
func (s *Service) settleGrowth(ctx context.Context, e *effects) error {
	for i := range e.growth {
		g := &e.growth[i]
		key := uuid.New().String()
		err := s.grower.Grow(settlement.WithIdempotencyKey(ctx, key), g.handle, g.newSize, g.payer)
		if err == nil {
			g.idempotencyKey = key
			continue
		}
		for _, r := range e.refunds {
			if refundErr := s.transfer(ctx, r.from, r.to, r.amount); refundErr != nil {
				log.Ctx(ctx).Error().Err(refundErr).
					Str("from", r.from).
					Str("to", r.to).
					Uint64("amount", r.amount).
					Msg("failed to refund after storage growth failure, manual reconciliation needed")
			}
		}
		return fmt.Errorf("failed to grow %s: %w", g.handle, err)
	}
	return nil
}
