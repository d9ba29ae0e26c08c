package api

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/auth"
	"github.com/shrublabs/shrub-fund/internal/observability/tracing"
	"github.com/shrublabs/shrub-fund/internal/types"
	"golang.org/x/time/rate"
)

const (
	HeaderTraceID   = "X-Trace-Id"
	HeaderSignerKey = "X-Signer-Key"
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"

	limiterIdleTTL = 10 * time.Minute
	maxNonceLength = 64
	minNonceLength = 8
)

type signerKey struct{}

func signerFromContext(ctx context.Context) string {
	signer, _ := ctx.Value(signerKey{}).(string)
	return signer
}

// traceRequest attaches a trace id, taken from the request when present, and
// logs the outcome of every request.
func traceRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(HeaderTraceID); id != "" {
			ctx = tracing.InjectTraceIDValue(ctx, id)
		} else {
			ctx = tracing.InjectTraceID(ctx)
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(ctx))

		log.Ctx(ctx).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request served")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// verifySignature authenticates the caller from the signer headers and
// stores the canonical signer key in the request context. The signature
// covers the method, path, timestamp, nonce and body, the timestamp must be
// fresh and each nonce is accepted once. The body is restored for the
// handler.
func (s *Server) verifySignature(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signer := r.Header.Get(HeaderSignerKey)
		signature := r.Header.Get(HeaderSignature)
		timestamp := r.Header.Get(HeaderTimestamp)
		nonce := r.Header.Get(HeaderNonce)
		if signer == "" || signature == "" || timestamp == "" || nonce == "" {
			writeError(w, r, types.ErrUnauthorizedAccess.Wrapf(
				"%s, %s, %s and %s headers are required", HeaderSignerKey, HeaderSignature, HeaderTimestamp, HeaderNonce))
			return
		}

		signedAt, err := s.checkTimestamp(timestamp)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !validNonce(nonce) {
			writeError(w, r, types.ErrUnauthorizedAccess.Wrapf("malformed %s header", HeaderNonce))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, r, types.NewBadRequestError(err))
			return
		}
		payload := auth.SigningPayload(r.Method, r.URL.EscapedPath(), timestamp, nonce, body)
		signer, err = auth.VerifySignature(signer, signature, payload)
		if err != nil {
			writeError(w, r, err)
			return
		}

		// the nonce must outlive the window in which its timestamp is accepted
		expiresAt := signedAt.Add(s.signatureMaxAge)
		if err := s.service.ConsumeRequestNonce(r.Context(), signer, nonce, expiresAt); err != nil {
			writeError(w, r, err)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		ctx := context.WithValue(r.Context(), signerKey{}, signer)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) checkTimestamp(header string) (time.Time, error) {
	seconds, err := strconv.ParseInt(header, 10, 64)
	if err != nil {
		return time.Time{}, types.ErrUnauthorizedAccess.Wrapf("malformed %s header", HeaderTimestamp)
	}
	signedAt := time.Unix(seconds, 0)
	drift := s.now().Sub(signedAt)
	if drift > s.signatureMaxAge || drift < -s.signatureMaxAge {
		return time.Time{}, types.ErrUnauthorizedAccess.Wrapf("request signed at %d is outside the accepted window", seconds)
	}
	return signedAt, nil
}

func validNonce(nonce string) bool {
	if len(nonce) < minNonceLength || len(nonce) > maxNonceLength {
		return false
	}
	for _, c := range nonce {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func (s *Server) requireAuthority(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.verifier.RequireAuthority(signerFromContext(r.Context())); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client ip.
type ipRateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimiter
	limit   rate.Limit
	burst   int
}

func newIPRateLimiter(perSecond float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		clients: make(map[string]*clientLimiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
	}
}

func (l *ipRateLimiter) get(ip string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, c := range l.clients {
		if now.Sub(c.lastSeen) > limiterIdleTTL {
			delete(l.clients, key)
		}
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter
}

func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if !l.get(ip, time.Now()).Allow() {
			writeError(w, r, types.ErrTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
