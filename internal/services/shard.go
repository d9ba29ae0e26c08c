package services

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/db/model"
)

// InitializeShard creates an empty registry shard. The payer funds its
// storage reserve.
func (s *Service) InitializeShard(ctx context.Context, payer string, shardID uint64) (*model.RegistryShardDocument, error) {
	var shard *model.RegistryShardDocument
	err := s.execute(ctx, "init_shard", func(ctx context.Context) error {
		if _, err := s.getLedger(ctx); err != nil {
			return err
		}

		var err error
		shard, err = s.registry.InitializeShard(ctx, shardID, payer)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Info().
		Uint64("shard_id", shardID).
		Str("payer", payer).
		Msgf("user registry %d initialized", shardID)
	return shard, nil
}
