package db

import (
	"context"

	"github.com/shrublabs/shrub-fund/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) GetUserShare(ctx context.Context, owner string) (*model.UserShareDocument, error) {
	var doc model.UserShareDocument
	err := db.collection(model.UserShareCollection).FindOne(ctx, bson.M{"_id": owner}).Decode(&doc)
	if err != nil {
		return nil, translateFindError(err, owner, "user share record not found")
	}
	return &doc, nil
}

func (db *Database) SaveUserShare(ctx context.Context, doc *model.UserShareDocument) error {
	filter := bson.M{"_id": doc.Owner}
	_, err := db.collection(model.UserShareCollection).
		ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}
