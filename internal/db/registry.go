package db

import (
	"context"
	"fmt"

	"github.com/shrublabs/shrub-fund/internal/db/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (db *Database) GetRegistryDirectory(ctx context.Context) (*model.RegistryDirectoryDocument, error) {
	filter := bson.M{"_id": model.NewRegistryDirectoryDocument().ID}

	var doc model.RegistryDirectoryDocument
	err := db.collection(model.RegistryDirectoryCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return nil, translateFindError(err, model.RegistryDirectoryCollection, "registry directory not found")
	}
	return &doc, nil
}

func (db *Database) SaveRegistryDirectory(ctx context.Context, doc *model.RegistryDirectoryDocument) error {
	filter := bson.M{"_id": doc.ID}
	_, err := db.collection(model.RegistryDirectoryCollection).
		ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

func (db *Database) GetRegistryShard(ctx context.Context, shardID uint64) (*model.RegistryShardDocument, error) {
	filter := bson.M{"_id": shardID}

	var doc model.RegistryShardDocument
	err := db.collection(model.RegistryShardCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return nil, translateFindError(err, fmt.Sprint(shardID), "registry shard not found")
	}
	return &doc, nil
}

func (db *Database) InsertRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error {
	_, err := db.collection(model.RegistryShardCollection).InsertOne(ctx, doc)
	return translateInsertError(err, fmt.Sprint(doc.ShardID), "registry shard already exists")
}

func (db *Database) SaveRegistryShard(ctx context.Context, doc *model.RegistryShardDocument) error {
	filter := bson.M{"_id": doc.ShardID}
	_, err := db.collection(model.RegistryShardCollection).
		ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}

func (db *Database) ListRegistryShards(ctx context.Context) ([]*model.RegistryShardDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := db.collection(model.RegistryShardCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var shards []*model.RegistryShardDocument
	if err := cursor.All(ctx, &shards); err != nil {
		return nil, err
	}
	return shards, nil
}

func (db *Database) GetRegistrySlot(ctx context.Context, shardID, slotIndex uint64) (*model.RegistrySlotDocument, error) {
	id := model.RegistrySlotID(shardID, slotIndex)
	filter := bson.M{"_id": id}

	var doc model.RegistrySlotDocument
	err := db.collection(model.RegistrySlotCollection).FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		return nil, translateFindError(err, id, "registry slot not found")
	}
	return &doc, nil
}

// FindFreeRegistrySlot returns the lowest-index tombstone of the shard.
func (db *Database) FindFreeRegistrySlot(ctx context.Context, shardID uint64) (*model.RegistrySlotDocument, error) {
	filter := bson.M{
		"shard_id": shardID,
		"user":     nil,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "slot_index", Value: 1}})

	var doc model.RegistrySlotDocument
	err := db.collection(model.RegistrySlotCollection).FindOne(ctx, filter, opts).Decode(&doc)
	if err != nil {
		return nil, translateFindError(err, fmt.Sprint(shardID), "no free registry slot")
	}
	return &doc, nil
}

func (db *Database) SaveRegistrySlot(ctx context.Context, doc *model.RegistrySlotDocument) error {
	filter := bson.M{"_id": doc.ID}
	_, err := db.collection(model.RegistrySlotCollection).
		ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return err
}
