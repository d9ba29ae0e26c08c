package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/observability/metrics"
	"github.com/shrublabs/shrub-fund/internal/types"
)

type BaseClient interface {
	GetBaseURL() string
	GetDefaultRequestTimeout() time.Duration
	GetHttpClient() *http.Client
}

type HttpClientOptions struct {
	Timeout      time.Duration
	Path         string
	TemplatePath string // Metrics purpose
	Headers      map[string]string
}

// ErrorResponse is the error body returned by collaborator services.
type ErrorResponse struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

func sendRequest[I any, R any](
	ctx context.Context, client BaseClient, method string, opts *HttpClientOptions, input *I,
) (*R, *types.Error) {
	timeout := client.GetDefaultRequestTimeout()
	// If timeout is set, use it instead of the default
	if opts.Timeout != 0 {
		timeout = opts.Timeout
	}
	// Set a timeout for the request
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	completeUrl := client.GetBaseURL() + opts.Path
	var req *http.Request
	var requestError error
	if input != nil && method != http.MethodGet {
		body, err := json.Marshal(input)
		if err != nil {
			return nil, types.NewErrorWithMsg(
				http.StatusInternalServerError,
				types.InternalServiceError,
				"failed to marshal request body",
			)
		}
		req, requestError = http.NewRequestWithContext(ctxWithTimeout, method, completeUrl, bytes.NewBuffer(body))
	} else {
		req, requestError = http.NewRequestWithContext(ctxWithTimeout, method, completeUrl, nil)
	}
	if requestError != nil {
		return nil, types.NewErrorWithMsg(
			http.StatusInternalServerError, types.InternalServiceError, requestError.Error(),
		)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	resp, err := client.GetHttpClient().Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded || err == context.DeadlineExceeded {
			return nil, types.NewErrorWithMsg(
				http.StatusRequestTimeout,
				types.RequestTimeout,
				fmt.Sprintf("request timeout after %s", timeout),
			)
		}
		return nil, types.NewErrorWithMsg(
			http.StatusInternalServerError,
			types.InternalServiceError,
			fmt.Sprintf("failed to send request to %s: %s", opts.TemplatePath, err.Error()),
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, types.NewErrorWithMsg(
			resp.StatusCode,
			types.InternalServiceError,
			fmt.Sprintf("collaborator %s returned status %d", opts.TemplatePath, resp.StatusCode),
		)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp ErrorResponse
		bodyBytes, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil || errResp.Message == "" {
			errResp.Message = string(bodyBytes)
		}
		return nil, types.NewErrorWithMsg(
			resp.StatusCode,
			types.ErrorCode(errResp.ErrorCode),
			errResp.Message,
		)
	}

	var output R
	if resp.StatusCode == http.StatusNoContent {
		return &output, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&output); err != nil {
		return nil, types.NewErrorWithMsg(
			http.StatusInternalServerError,
			types.InternalServiceError,
			fmt.Sprintf("failed to decode response from %s: %s", opts.TemplatePath, err.Error()),
		)
	}

	return &output, nil
}

// SendRequest sends a request and records its duration under the template path.
func SendRequest[I any, R any](
	ctx context.Context, client BaseClient, method string, opts *HttpClientOptions, input *I,
) (*R, *types.Error) {
	timer := metrics.StartClientRequestDurationTimer(
		client.GetBaseURL(), method, opts.TemplatePath,
	)

	result, err := sendRequest[I, R](ctx, client, method, opts, input)
	if err != nil {
		timer(err.StatusCode)
		log.Ctx(ctx).Debug().
			Str("path", opts.TemplatePath).
			Int("status", err.StatusCode).
			Err(err).
			Msg("collaborator request failed")
		return nil, err
	}
	timer(http.StatusOK)
	return result, nil
}
