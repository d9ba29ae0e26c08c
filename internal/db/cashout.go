package db

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) GetCashoutQueue(ctx context.Context) (*model.CashoutQueueDocument, error) {
	filter := bson.M{"_id": model.NewCashoutQueueDocument(0, 0).ID}

	var doc model.CashoutQueueDocument
	err := db.collection(model.CashoutQueueCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return nil, translateFindError(err, model.CashoutQueueCollection, "cashout queue not found")
	}
	return &doc, nil
}

func (db *Database) SaveCashoutQueue(ctx context.Context, doc *model.CashoutQueueDocument) error {
	filter := bson.M{"_id": doc.ID}
	_, err := db.collection(model.CashoutQueueCollection).
		ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

func (db *Database) InsertPendingCashout(ctx context.Context, doc *model.PendingCashoutDocument) error {
	_, err := db.collection(model.PendingCashoutCollection).InsertOne(ctx, doc)
	return translateInsertError(err, doc.Owner, "pending cashout already exists")
}

func (db *Database) GetPendingCashout(ctx context.Context, owner string) (*model.PendingCashoutDocument, error) {
	var doc model.PendingCashoutDocument
	err := db.collection(model.PendingCashoutCollection).FindOne(ctx, bson.M{"_id": owner}).Decode(&doc)
	if err != nil {
		return nil, translateFindError(err, owner, "pending cashout not found")
	}
	return &doc, nil
}

func (db *Database) DeletePendingCashout(ctx context.Context, owner string) error {
	res, err := db.collection(model.PendingCashoutCollection).DeleteOne(ctx, bson.M{"_id": owner})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return &NotFoundError{
			Key:     owner,
			Message: "pending cashout not found",
		}
	}
	return nil
}

func (db *Database) CountPendingCashouts(ctx context.Context) (uint64, error) {
	count, err := db.collection(model.PendingCashoutCollection).CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, err
	}
	return uint64(count), nil
}

// SumPendingCashouts recomputes the queue total from the entries.
func (db *Database) SumPendingCashouts(ctx context.Context) (uint64, error) {
	pipeline := bson.A{
		bson.M{"$group": bson.M{
			"_id":   nil,
			"total": bson.M{"$sum": bson.M{"$toDecimal": "$locked_amount"}},
		}},
		bson.M{"$project": bson.M{
			"_id":   0,
			"total": bson.M{"$toString": "$total"},
		}},
	}

	cursor, err := db.collection(model.PendingCashoutCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total string `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return parseUint64Total(results[0].Total)
}

func parseUint64Total(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid pending cashout total %q: %w", s, err)
	}
	bi := d.BigInt()
	if !d.Equal(decimal.NewFromBigInt(bi, 0)) || !bi.IsUint64() {
		return 0, fmt.Errorf("pending cashout total %q is not a u64", s)
	}
	return bi.Uint64(), nil
}
