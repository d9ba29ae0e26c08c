package db

import (
	"context"

	"github.com/shrublabs/shrub-fund/internal/db/model"
)

func (db *Database) InsertRequestNonce(ctx context.Context, doc *model.RequestNonceDocument) error {
	_, err := db.collection(model.RequestNonceCollection).InsertOne(ctx, doc)
	return translateInsertError(err, doc.ID, "request nonce already used")
}
