package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// InjectTraceID attaches a logger carrying a fresh trace id to ctx.
func InjectTraceID(ctx context.Context) context.Context {
	return InjectTraceIDValue(ctx, uuid.New().String())
}

// InjectTraceIDValue attaches a logger carrying the given trace id, used when
// the caller already supplied one (e.g. an inbound request header).
func InjectTraceIDValue(ctx context.Context, id string) context.Context {
	logger := log.With().Str("traceId", id).Logger()
	return logger.WithContext(ctx)
}
