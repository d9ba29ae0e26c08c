package db

import (
	"context"

	"github.com/shrublabs/shrub-fund/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) GetNavHistory(ctx context.Context) (*model.NavHistoryDocument, error) {
	filter := bson.M{"_id": model.NewNavHistoryDocument().ID}

	var doc model.NavHistoryDocument
	err := db.collection(model.NavHistoryCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return nil, translateFindError(err, model.NavHistoryCollection, "nav history not found")
	}
	return &doc, nil
}

func (db *Database) SaveNavHistory(ctx context.Context, doc *model.NavHistoryDocument) error {
	filter := bson.M{"_id": doc.ID}
	_, err := db.collection(model.NavHistoryCollection).
		ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}
