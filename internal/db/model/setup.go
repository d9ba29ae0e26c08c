package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type index struct {
	Indexes map[string]int
	Unique  bool
	// ExpireAfter turns the index into a TTL index; documents are removed
	// that long after the time stored in the indexed field.
	ExpireAfter *int32
}

var collections = map[string][]index{
	FundLedgerCollection:        {{Indexes: map[string]int{}}},
	RegistryDirectoryCollection: {{Indexes: map[string]int{}}},
	RegistryShardCollection:     {{Indexes: map[string]int{}}},
	RegistrySlotCollection: {
		{Indexes: map[string]int{"shard_id": 1, "slot_index": 1}, Unique: true},
		{Indexes: map[string]int{"user.owner": 1}},
	},
	NavHistoryCollection:     {{Indexes: map[string]int{}}},
	CashoutQueueCollection:   {{Indexes: map[string]int{}}},
	PendingCashoutCollection: {{Indexes: map[string]int{"enqueued_at": 1}}},
	UserShareCollection:      {{Indexes: map[string]int{"shard_id": 1}}},
	RequestNonceCollection:   {{Indexes: map[string]int{"expires_at": 1}, ExpireAfter: new(int32)}},
}

// Setup creates every collection and its indexes. Collections must exist
// before the first multi-document transaction touches them.
func Setup(ctx context.Context, cfg *config.DbConfig) error {
	credential := options.Credential{
		Username: cfg.Username,
		Password: cfg.Password,
	}
	clientOpts := options.Client().ApplyURI(cfg.Address)
	if cfg.Username != "" {
		clientOpts.SetAuth(credential)
	}
	if cfg.DirectConnection {
		clientOpts.SetDirect(true)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return err
	}

	database := client.Database(cfg.DbName)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	defer func() {
		if err := client.Disconnect(ctx); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect from MongoDB")
		}
	}()

	for collection, idxs := range collections {
		if err := createCollection(ctx, database, collection); err != nil {
			return err
		}
		for _, idx := range idxs {
			if err := createIndex(ctx, database, collection, idx); err != nil {
				return err
			}
		}
	}

	log.Info().Msg("Collections and Indexes created successfully.")
	return nil
}

func createCollection(ctx context.Context, database *mongo.Database, collectionName string) error {
	err := database.CreateCollection(ctx, collectionName)
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.Name == "NamespaceExists" {
			return nil
		}
		return fmt.Errorf("failed to create collection %s: %w", collectionName, err)
	}

	log.Debug().Msg("Collection created successfully: " + collectionName)
	return nil
}

func createIndex(ctx context.Context, database *mongo.Database, collectionName string, idx index) error {
	if len(idx.Indexes) == 0 {
		return nil
	}

	// slot lookups rely on shard_id preceding slot_index
	keys := bson.D{}
	for _, field := range []string{"shard_id", "slot_index", "user.owner", "enqueued_at", "expires_at"} {
		if order, ok := idx.Indexes[field]; ok {
			keys = append(keys, bson.E{Key: field, Value: order})
		}
	}

	opts := options.Index().SetUnique(idx.Unique)
	if idx.ExpireAfter != nil {
		opts.SetExpireAfterSeconds(*idx.ExpireAfter)
	}
	indexModel := mongo.IndexModel{
		Keys:    keys,
		Options: opts,
	}

	if _, err := database.Collection(collectionName).Indexes().CreateOne(ctx, indexModel); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", collectionName, err)
	}

	log.Debug().Msg("Index created successfully on collection: " + collectionName)
	return nil
}
