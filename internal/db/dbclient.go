package db

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Database struct {
	dbName string
	client *mongo.Client
}

func New(ctx context.Context, cfg config.DbConfig) (*Database, error) {
	client, err := NewMongoClient(ctx, &cfg)
	if err != nil {
		return nil, err
	}

	return &Database{
		dbName: cfg.DbName,
		client: client,
	}, nil
}

// NewMongoClient connects to the configured deployment. Credentials are
// optional so that local replica sets without auth can be used.
func NewMongoClient(ctx context.Context, cfg *config.DbConfig) (*mongo.Client, error) {
	clientOps := options.Client().ApplyURI(cfg.Address)
	if cfg.Username != "" {
		clientOps.SetAuth(options.Credential{
			Username: cfg.Username,
			Password: cfg.Password,
		})
	}
	if cfg.DirectConnection {
		clientOps.SetDirect(true)
	}

	client, err := mongo.Connect(ctx, clientOps)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	return client, nil
}

func (db *Database) Ping(ctx context.Context) error {
	err := db.client.Ping(ctx, readpref.Primary())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("Failed to ping database")
		return err
	}
	return nil
}

func (db *Database) Disconnect(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *Database) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// already inside a transaction: join it
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	session, err := db.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	return mongo.WithSession(ctx, session, func(sc mongo.SessionContext) error {
		if err := session.StartTransaction(); err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if err := fn(sc); err != nil {
			if abortErr := session.AbortTransaction(context.WithoutCancel(sc)); abortErr != nil {
				log.Ctx(ctx).Error().Err(abortErr).Msg("Failed to abort transaction")
			}
			return err
		}

		if err := session.CommitTransaction(sc); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}

func (db *Database) collection(name string) *mongo.Collection {
	return db.client.Database(db.dbName).Collection(name)
}
