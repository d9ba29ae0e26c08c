package settlement

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/clients/client"
	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/types"
)

const (
	transfersPath = "/v1/transfers"
	balancePath   = "/v1/accounts/{account}/balance"

	apiKeyHeader         = "X-Api-Key"
	idempotencyKeyHeader = "Idempotency-Key"
)

type Client struct {
	httpClient *http.Client
	cfg        *config.SettlementConfig
	denom      string
}

func NewClient(cfg *config.SettlementConfig, denom string) *Client {
	return &Client{
		httpClient: &http.Client{},
		cfg:        cfg,
		denom:      denom,
	}
}

func (c *Client) GetBaseURL() string {
	return c.cfg.Endpoint
}

func (c *Client) GetDefaultRequestTimeout() time.Duration {
	return c.cfg.Timeout
}

func (c *Client) GetHttpClient() *http.Client {
	return c.httpClient
}

type transferRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

type transferResponse struct {
	TransferID string `json:"transferId"`
}

type balanceResponse struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

// Transfer moves amount from one account to another. Every attempt carries
// the same idempotency key so a retried request settles at most once.
func (c *Client) Transfer(ctx context.Context, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}

	idempotencyKey := IdempotencyKeyFromContext(ctx)
	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}
	req := &transferRequest{
		From:   from,
		To:     to,
		Amount: strconv.FormatUint(amount, 10),
		Denom:  c.denom,
	}

	call := func() (*transferResponse, error) {
		opts := &client.HttpClientOptions{
			Path:         transfersPath,
			TemplatePath: transfersPath,
			Headers:      c.headers(idempotencyKey),
		}
		resp, err := client.SendRequest[transferRequest, transferResponse](ctx, c, http.MethodPost, opts, req)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	resp, err := clientCallWithRetry(ctx, call, c.cfg)
	if err != nil {
		return fmt.Errorf("failed to transfer %d %s from %s to %s: %w", amount, c.denom, from, to, err)
	}

	log.Ctx(ctx).Debug().
		Str("transfer_id", resp.TransferID).
		Str("idempotency_key", idempotencyKey).
		Str("from", from).
		Str("to", to).
		Uint64("amount", amount).
		Msg("settlement transfer completed")
	return nil
}

func (c *Client) Balance(ctx context.Context, account string) (uint64, error) {
	call := func() (*balanceResponse, error) {
		path := "/v1/accounts/" + url.PathEscape(account) + "/balance?denom=" + url.QueryEscape(c.denom)
		opts := &client.HttpClientOptions{
			Path:         path,
			TemplatePath: balancePath,
			Headers:      c.headers(""),
		}
		resp, err := client.SendRequest[any, balanceResponse](ctx, c, http.MethodGet, opts, nil)
		if err != nil {
			return nil, err
		}
		return resp, nil
	}

	resp, err := clientCallWithRetry(ctx, call, c.cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance of %s: %w", account, err)
	}

	amount, err := strconv.ParseUint(resp.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid balance %q for %s: %w", resp.Amount, account, err)
	}
	return amount, nil
}

func (c *Client) headers(idempotencyKey string) map[string]string {
	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers[apiKeyHeader] = c.cfg.APIKey
	}
	if idempotencyKey != "" {
		headers[idempotencyKeyHeader] = idempotencyKey
	}
	return headers
}

func clientCallWithRetry[T any](
	ctx context.Context, call retry.RetryableFuncWithData[T], cfg *config.SettlementConfig,
) (T, error) {
	return retry.DoWithData(call,
		retry.Context(ctx),
		retry.Attempts(cfg.MaxRetryTimes),
		retry.Delay(cfg.RetryInterval),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Debug().
				Uint("attempt", n+1).
				Uint("max_attempts", cfg.MaxRetryTimes).
				Err(err).
				Msg("settlement request failed, retrying")
		}),
	)
}

// isRetryable retries transport failures, timeouts, throttling and 5xx.
// Any other 4xx is a definitive answer from the gateway.
func isRetryable(err error) bool {
	e := types.AsError(err)
	return e.StatusCode >= http.StatusInternalServerError ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout
}
