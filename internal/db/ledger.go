package db

import (
	"context"

	"github.com/shrublabs/shrub-fund/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) GetFundLedger(ctx context.Context) (*model.FundLedgerDocument, error) {
	filter := bson.M{"_id": model.NewFundLedgerDocument("", 0, 0).ID}

	var doc model.FundLedgerDocument
	err := db.collection(model.FundLedgerCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return nil, translateFindError(err, model.FundLedgerCollection, "fund ledger not found")
	}
	return &doc, nil
}

func (db *Database) InsertFundLedger(ctx context.Context, doc *model.FundLedgerDocument) error {
	_, err := db.collection(model.FundLedgerCollection).InsertOne(ctx, doc)
	return translateInsertError(err, doc.ID, "fund ledger already exists")
}

func (db *Database) SaveFundLedger(ctx context.Context, doc *model.FundLedgerDocument) error {
	filter := bson.M{"_id": doc.ID}
	_, err := db.collection(model.FundLedgerCollection).
		ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}
