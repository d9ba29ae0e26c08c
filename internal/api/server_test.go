package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/google/uuid"
	"github.com/shrublabs/shrub-fund/internal/auth"
	"github.com/shrublabs/shrub-fund/internal/config"
	"github.com/shrublabs/shrub-fund/internal/db/memdb"
	"github.com/shrublabs/shrub-fund/internal/services"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/utils/clock"
	"github.com/shrublabs/shrub-fund/tests/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type signer struct {
	priv *btcec.PrivateKey
	key  string
}

func newSigner(t *testing.T) signer {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return signer{priv: priv, key: hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))}
}

func (s signer) request(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	return s.requestAt(t, method, path, body, time.Now(), uuid.New().String())
}

// requestAt signs a request with an explicit timestamp and nonce.
func (s signer) requestAt(t *testing.T, method, path string, body any, at time.Time, nonce string) *http.Request {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		require.NoError(t, err)
	}
	timestamp := strconv.FormatInt(at.Unix(), 10)
	sig, err := schnorr.Sign(s.priv, chainhash.HashB(auth.SigningPayload(method, path, timestamp, nonce, raw)))
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set(HeaderSignerKey, s.key)
	req.Header.Set(HeaderSignature, hex.EncodeToString(sig.Serialize()))
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderNonce, nonce)
	return req
}

type testServer struct {
	handler    http.Handler
	service    *services.Service
	settlement *mocks.SettlementInterface
	authority  signer
}

func newTestServer(t *testing.T, opts ...func(cfg *config.Config)) *testServer {
	t.Helper()
	authority := newSigner(t)
	cfg := &config.Config{
		Fund: config.FundConfig{
			AuthorityKey:    authority.key,
			SettlementDenom: "usdc",
			HoldingAccount:  "holding",
			CashoutAccount:  "cashout",
			FeeRecipient:    "gardener",
			MaturityPeriod:  7 * 24 * time.Hour,
			CommissionBps:   200,
		},
		Registry:   config.DefaultRegistryConfig(),
		Cashout:    config.DefaultCashoutConfig(),
		NavHistory: config.DefaultNavHistoryConfig(),
		Server: config.ServerConfig{
			Host:      "127.0.0.1",
			Port:      8090,
			RateLimit:       1_000,
			RateBurst:       1_000,
			SignatureMaxAge: 5 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	settlement := mocks.NewSettlementInterface(t)
	grower := mocks.NewGrower(t)
	grower.On("Grow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := services.NewService(cfg, memdb.New(), settlement, grower, nil, clock.NewManual(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	server := NewServer(&cfg.Server, svc, svc.Verifier())
	return &testServer{
		handler:    server.Handler(),
		service:    svc,
		settlement: settlement,
		authority:  authority,
	}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) initFund(t *testing.T) {
	t.Helper()
	_, err := s.service.InitializeFund(t.Context(), s.authority.key, 0)
	require.NoError(t, err)
	_, err = s.service.InitializeShard(t.Context(), s.authority.key, 0)
	require.NoError(t, err)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetFund(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(httptest.NewRequest(http.MethodGet, "/v1/fund", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, types.FundNotInitialized.String(), decodeError(t, rec).ErrorCode)

	s.initFund(t)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/v1/fund", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var info services.FundInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, uint64(1), info.RegistryShards)
	assert.Equal(t, "1.000000", info.DisplayRealPrice)
}

func TestSignature(t *testing.T) {
	s := newTestServer(t)
	s.initFund(t)
	alice := newSigner(t)

	t.Run("missing headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/stake", bytes.NewReader([]byte(`{"amount":1}`)))
		rec := s.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, types.UnauthorizedAccess.String(), decodeError(t, rec).ErrorCode)
	})
	t.Run("tampered body", func(t *testing.T) {
		req := alice.request(t, http.MethodPost, "/v1/stake", StakeRequest{Amount: 1})
		req.Body = io.NopCloser(bytes.NewReader([]byte(`{"amount":9}`)))
		rec := s.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("privileged route", func(t *testing.T) {
		rec := s.do(alice.request(t, http.MethodPost, "/v1/valuation", UpdateValuationRequest{RealValuation: 1}))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, types.UnauthorizedAccess.String(), decodeError(t, rec).ErrorCode)
	})
	t.Run("stale timestamp", func(t *testing.T) {
		req := alice.requestAt(t, http.MethodPost, "/v1/stake", StakeRequest{Amount: 1}, time.Now().Add(-10*time.Minute), uuid.New().String())
		rec := s.do(req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, types.UnauthorizedAccess.String(), decodeError(t, rec).ErrorCode)
	})
	t.Run("malformed nonce", func(t *testing.T) {
		rec := s.do(alice.requestAt(t, http.MethodPost, "/v1/stake", StakeRequest{Amount: 1}, time.Now(), "a b"))
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
	t.Run("unknown field", func(t *testing.T) {
		rec := s.do(alice.request(t, http.MethodPost, "/v1/stake", map[string]any{"amount": 1, "bonus": 2}))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, types.BadRequest.String(), decodeError(t, rec).ErrorCode)
	})
}

func TestStakeAndUnstake(t *testing.T) {
	s := newTestServer(t)
	s.initFund(t)
	alice := newSigner(t)
	s.settlement.On("Transfer", mock.Anything, alice.key, "holding", uint64(2_000_000)).Return(nil).Once()

	rec := s.do(alice.request(t, http.MethodPost, "/v1/stake", StakeRequest{Amount: 2_000_000}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var staked StakeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&staked))
	assert.Equal(t, uint64(2_000_000), staked.Shares)
	assert.True(t, staked.FirstStake)
	assert.Equal(t, "1.000000", staked.RealPrice)

	rec = s.do(httptest.NewRequest(http.MethodGet, "/v1/users/"+alice.key, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var info services.UserInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&info))
	assert.Equal(t, uint64(2_000_000), info.Shares)

	rec = s.do(s.authority.request(t, http.MethodPost, "/v1/valuation", UpdateValuationRequest{RealValuation: 2_000_000}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(alice.request(t, http.MethodPost, "/v1/unstake/initiate", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var locked UnstakeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&locked))
	// the gain is averaged with the seed valuation of zero
	assert.Equal(t, uint64(1_000_000), locked.LockedAmount)

	rec = s.do(alice.request(t, http.MethodPost, "/v1/unstake/complete", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, types.UnstakeNotReady.String(), decodeError(t, rec).ErrorCode)
}

func TestCommissionRoute(t *testing.T) {
	s := newTestServer(t)
	s.initFund(t)

	rec := s.do(s.authority.request(t, http.MethodPost, "/v1/commission", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp CommissionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.False(t, resp.Collected)
}

func TestInternalErrorsAreMasked(t *testing.T) {
	s := newTestServer(t)
	s.initFund(t)
	alice := newSigner(t)
	s.settlement.On("Transfer", mock.Anything, alice.key, "holding", uint64(10)).
		Return(assert.AnError).Once()

	rec := s.do(alice.request(t, http.MethodPost, "/v1/stake", StakeRequest{Amount: 10}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, types.InternalServiceError.String(), resp.ErrorCode)
	assert.Equal(t, "internal service error", resp.Message)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.Server.RateLimit = 0.001
		cfg.Server.RateBurst = 1
	})

	rec := s.do(httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, types.TooManyRequests.String(), decodeError(t, rec).ErrorCode)
}

func TestReplay(t *testing.T) {
	t.Run("signature does not carry over to another route", func(t *testing.T) {
		s := newTestServer(t)
		s.initFund(t)
		alice := newSigner(t)
		s.settlement.On("Transfer", mock.Anything, alice.key, "holding", uint64(1_000_000)).Return(nil).Once()
		rec := s.do(alice.request(t, http.MethodPost, "/v1/stake", StakeRequest{Amount: 1_000_000}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		signed := alice.request(t, http.MethodPost, "/v1/unstake/complete", nil)
		replayed := httptest.NewRequest(http.MethodPost, "/v1/unstake/initiate", nil)
		replayed.Header = signed.Header.Clone()

		rec = s.do(replayed)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, types.UnauthorizedAccess.String(), decodeError(t, rec).ErrorCode)

		info, err := s.service.GetUserInfo(t.Context(), alice.key)
		require.NoError(t, err)
		assert.Equal(t, uint64(1_000_000), info.Shares)
		assert.Nil(t, info.Withdrawal)
	})
	t.Run("same request is accepted once", func(t *testing.T) {
		s := newTestServer(t)
		s.initFund(t)

		nonce := uuid.New().String()
		now := time.Now()
		first := s.authority.requestAt(t, http.MethodPost, "/v1/valuation", UpdateValuationRequest{RealValuation: 5_000}, now, nonce)
		replayed := s.authority.requestAt(t, http.MethodPost, "/v1/valuation", UpdateValuationRequest{RealValuation: 5_000}, now, nonce)

		rec := s.do(first)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = s.do(replayed)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, types.UnauthorizedAccess.String(), decodeError(t, rec).ErrorCode)
	})
}

func TestSignerKeyIsCanonical(t *testing.T) {
	s := newTestServer(t)
	s.initFund(t)
	alice := newSigner(t)
	s.settlement.On("Transfer", mock.Anything, alice.key, "holding", uint64(1_000)).Return(nil).Twice()

	rec := s.do(alice.request(t, http.MethodPost, "/v1/stake", StakeRequest{Amount: 1_000}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	upper := alice
	upper.key = strings.ToUpper(alice.key)
	rec = s.do(upper.request(t, http.MethodPost, "/v1/stake", StakeRequest{Amount: 1_000}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var staked StakeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&staked))
	assert.False(t, staked.FirstStake)
	assert.Equal(t, uint64(2_000), staked.TotalShares)

	fund, err := s.service.GetFundInfo(t.Context())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fund.TotalUsers)
}
