// Package api exposes the fund workflows over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/auth"
	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db/model"
	"github.com/shrublabs/shrub-fund/internal/services"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 16
)

// FundService is the subset of the fund service the API drives.
type FundService interface {
	InitializeShard(ctx context.Context, payer string, shardID uint64) (*model.RegistryShardDocument, error)
	Stake(ctx context.Context, req services.StakeRequest) (*services.StakeResult, error)
	InitiateUnstake(ctx context.Context, owner string) (*services.UnstakeResult, error)
	CompleteUnstake(ctx context.Context, owner string) (*services.UnstakeResult, error)
	UpdateValuation(ctx context.Context, signer string, newValue uint64) (*services.ValuationResult, error)
	CollectCommission(ctx context.Context, signer string) (*services.CommissionResult, error)
	GetUserInfo(ctx context.Context, owner string) (*services.UserInfo, error)
	GetFundInfo(ctx context.Context) (*services.FundInfo, error)
	ConsumeRequestNonce(ctx context.Context, signer, nonce string, expiresAt time.Time) error
}

type Server struct {
	httpServer      *http.Server
	service         FundService
	verifier        *auth.Verifier
	limiter         *ipRateLimiter
	signatureMaxAge time.Duration
	now             func() time.Time
}

func NewServer(cfg *config.ServerConfig, service FundService, verifier *auth.Verifier) *Server {
	s := &Server{
		service:         service,
		verifier:        verifier,
		limiter:         newIPRateLimiter(cfg.RateLimit, cfg.RateBurst),
		signatureMaxAge: cfg.SignatureMaxAge,
		now:             time.Now,
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.routes(),
		ReadTimeout:  requestTimeout,
		WriteTimeout: requestTimeout,
		IdleTimeout:  2 * requestTimeout,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(traceRequest)
	r.Use(s.limiter.middleware)

	r.Get("/healthcheck", s.handleHealthcheck)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/fund", s.handleGetFund)
		r.Get("/users/{owner}", s.handleGetUser)

		r.Group(func(r chi.Router) {
			r.Use(s.verifySignature)
			r.Post("/shards", s.handleInitializeShard)
			r.Post("/stake", s.handleStake)
			r.Post("/unstake/initiate", s.handleInitiateUnstake)
			r.Post("/unstake/complete", s.handleCompleteUnstake)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAuthority)
				r.Post("/valuation", s.handleUpdateValuation)
				r.Post("/commission", s.handleCollectCommission)
			})
		})
	})
	return r
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until ctx is cancelled, then shuts the server down.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Ctx(ctx).Info().Str("address", s.httpServer.Addr).Msg("Starting API server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Ctx(ctx).Info().Msg("Shutting down API server")
	return s.httpServer.Shutdown(shutdownCtx)
}
