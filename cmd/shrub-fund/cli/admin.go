package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/observability/tracing"
	"github.com/shrublabs/shrub-fund/internal/services"
	"github.com/spf13/cobra"
)

// The operator commands below act as the configured fund authority against
// the same database as the server. The server serializes its own writes only,
// so run them while it is stopped or idle.

// InitFundCmd creates the fund ledger:
// ./shrub-fund init-fund 0 --config config.yml
func InitFundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-fund [initialValue]",
		Short: "Initialize the fund ledger, nav history and cashout queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initialValue, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid initial value: %w", err)
			}
			return withService(cmd, func(ctx context.Context, svc *services.Service, authority string) (any, error) {
				return svc.InitializeFund(ctx, authority, initialValue)
			})
		},
	}
}

// InitShardCmd creates a registry shard paid for by the authority:
// ./shrub-fund init-shard 1 --config config.yml
func InitShardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-shard [shardID]",
		Short: "Initialize an empty registry shard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shardID, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid shard id: %w", err)
			}
			return withService(cmd, func(ctx context.Context, svc *services.Service, authority string) (any, error) {
				return svc.InitializeShard(ctx, authority, shardID)
			})
		},
	}
}

func UpdateValuationCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-valuation [realValuation]",
		Short: "Mark the pool to a new real valuation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			newValue, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid valuation: %w", err)
			}
			return withService(cmd, func(ctx context.Context, svc *services.Service, authority string) (any, error) {
				return svc.UpdateValuation(ctx, authority, newValue)
			})
		},
	}
}

func CollectCommissionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect-commission",
		Short: "Collect the performance fee on the pool profit",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *services.Service, authority string) (any, error) {
				return svc.CollectCommission(ctx, authority)
			})
		},
	}
}

func UserInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user-info [owner]",
		Short: "Print the position of a staker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, func(ctx context.Context, svc *services.Service, _ string) (any, error) {
				return svc.GetUserInfo(ctx, args[0])
			})
		},
	}
}

// withService runs fn against a freshly wired service and prints its result
// as JSON. Events are not published from operator commands.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *services.Service, authority string) (any, error)) error {
	ctx := tracing.InjectTraceID(cmd.Context())

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, cleanup, err := newService(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := fn(ctx, svc, cfg.Fund.AuthorityKey)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("command", cmd.Name()).Msg("command failed")
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
