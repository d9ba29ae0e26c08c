package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shrublabs/shrub-fund/internal/db"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/types"
)

// ConsumeRequestNonce records nonce as used by signer until expiresAt. A
// nonce still on record fails UnauthorizedAccess.
func (s *Service) ConsumeRequestNonce(ctx context.Context, signer, nonce string, expiresAt time.Time) error {
	err := s.db.InsertRequestNonce(ctx, model.NewRequestNonceDocument(signer, nonce, expiresAt))
	if err == nil {
		return nil
	}
	if db.IsDuplicateKeyError(err) {
		return types.ErrUnauthorizedAccess.Wrapf("nonce %s was already used", nonce)
	}
	return types.NewInternalServiceError(fmt.Errorf("failed to record request nonce: %w", err))
}
