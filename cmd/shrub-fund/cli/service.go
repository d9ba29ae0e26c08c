package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/clients/settlement"
	"github.com/shrublabs/shrub-fund/internal/clients/storage"
	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db"
	"github.com/shrublabs/shrub-fund/internal/queue"
	"github.com/shrublabs/shrub-fund/internal/services"
)

// newService connects to the database and the settlement service and wires
// the fund service over them. The returned func releases the connections.
func newService(ctx context.Context, cfg *config.Config, publisher queue.EventPublisher) (*services.Service, func(), error) {
	mongoDb, err := db.New(ctx, cfg.Db)
	if err != nil {
		return nil, nil, fmt.Errorf("error while creating db client: %w", err)
	}
	var dbClient db.DbInterface = db.NewDbWithMetrics(mongoDb)
	if err := dbClient.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("error while connecting to db: %w", err)
	}

	var settlementClient settlement.SettlementInterface
	settlementClient = settlement.NewClient(&cfg.Settlement, cfg.Fund.SettlementDenom)
	settlementClient = settlement.NewSettlementWithMetrics(settlementClient)

	grower := storage.NewGrowerWithMetrics(storage.NewGrower(settlementClient, cfg.Storage))

	service := services.NewService(cfg, dbClient, settlementClient, grower, publisher, nil)
	cleanup := func() {
		if err := mongoDb.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to disconnect from db")
		}
	}
	return service, cleanup, nil
}

func loadConfig() (*config.Config, error) {
	cfgPath := GetConfigPath()
	cfg, err := config.New(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("error while loading config file %s: %w", cfgPath, err)
	}
	return cfg, nil
}
