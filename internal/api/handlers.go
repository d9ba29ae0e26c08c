package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/shrublabs/shrub-fund/internal/services"
	"github.com/shrublabs/shrub-fund/internal/types"
	"github.com/shrublabs/shrub-fund/internal/valuation"
)

type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := types.AsError(err)
	logger := log.Ctx(r.Context())
	if apiErr.StatusCode >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		logger.Warn().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}

	message := apiErr.Error()
	if apiErr.ErrorCode == types.InternalServiceError {
		// infrastructure details stay in the logs
		message = "internal service error"
	}
	writeJSON(w, apiErr.StatusCode, ErrorResponse{
		ErrorCode: apiErr.ErrorCode.String(),
		Message:   message,
	})
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return types.NewBadRequestError(fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

func (s *Server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetFund(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetFundInfo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetUserInfo(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type InitializeShardRequest struct {
	ShardID uint64 `json:"shard_id"`
}

type ShardResponse struct {
	ShardID      uint64 `json:"shard_id"`
	UserCount    uint64 `json:"user_count"`
	SlotCount    uint64 `json:"slot_count"`
	StorageBytes uint64 `json:"storage_bytes"`
}

func (s *Server) handleInitializeShard(w http.ResponseWriter, r *http.Request) {
	var req InitializeShardRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	shard, err := s.service.InitializeShard(r.Context(), signerFromContext(r.Context()), req.ShardID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ShardResponse{
		ShardID:      shard.ShardID,
		UserCount:    shard.UserCount,
		SlotCount:    shard.SlotCount,
		StorageBytes: shard.StorageBytes,
	})
}

type StakeRequest struct {
	Amount  uint64  `json:"amount"`
	ShardID *uint64 `json:"shard_id,omitempty"`
}

type StakeResponse struct {
	Shares         uint64 `json:"shares"`
	TotalShares    uint64 `json:"total_shares"`
	ShardID        uint64 `json:"shard_id"`
	SlotIndex      uint64 `json:"slot_index"`
	FirstStake     bool   `json:"first_stake"`
	RealPrice      string `json:"real_price"`
	OptimizedPrice string `json:"optimized_price"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req StakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.service.Stake(r.Context(), services.StakeRequest{
		Depositor: signerFromContext(r.Context()),
		Amount:    req.Amount,
		ShardID:   req.ShardID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StakeResponse{
		Shares:         res.Shares,
		TotalShares:    res.TotalShares,
		ShardID:        res.ShardID,
		SlotIndex:      res.SlotIndex,
		FirstStake:     res.FirstStake,
		RealPrice:      valuation.Format(res.RealPrice),
		OptimizedPrice: valuation.Format(res.OptimizedPrice),
	})
}

type UnstakeResponse struct {
	Owner        string    `json:"owner"`
	LockedShares uint64    `json:"locked_shares"`
	LockedAmount uint64    `json:"locked_amount"`
	LockedAt     time.Time `json:"locked_at"`
	MaturesAt    time.Time `json:"matures_at"`
}

func newUnstakeResponse(res *services.UnstakeResult) UnstakeResponse {
	return UnstakeResponse{
		Owner:        res.Owner,
		LockedShares: res.LockedShares,
		LockedAmount: res.LockedAmount,
		LockedAt:     res.LockedAt,
		MaturesAt:    res.MaturesAt,
	}
}

func (s *Server) handleInitiateUnstake(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.InitiateUnstake(r.Context(), signerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUnstakeResponse(res))
}

func (s *Server) handleCompleteUnstake(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.CompleteUnstake(r.Context(), signerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUnstakeResponse(res))
}

type UpdateValuationRequest struct {
	RealValuation uint64 `json:"real_valuation"`
}

type ValuationResponse struct {
	RealValuation       uint64 `json:"real_valuation"`
	SmoothedValuation   uint64 `json:"smoothed_valuation"`
	HistoryAverage      uint64 `json:"history_average"`
	HistoryLen          int    `json:"history_len"`
	PendingCashoutTotal uint64 `json:"pending_cashout_total"`
	Drift               bool   `json:"drift"`
}

func (s *Server) handleUpdateValuation(w http.ResponseWriter, r *http.Request) {
	var req UpdateValuationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.service.UpdateValuation(r.Context(), signerFromContext(r.Context()), req.RealValuation)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ValuationResponse{
		RealValuation:       res.RealValuation,
		SmoothedValuation:   res.SmoothedValuation,
		HistoryAverage:      res.HistoryAverage,
		HistoryLen:          res.HistoryLen,
		PendingCashoutTotal: res.PendingCashoutTotal,
		Drift:               res.Drift,
	})
}

type CommissionResponse struct {
	Collected            bool   `json:"collected"`
	Profit               uint64 `json:"profit"`
	Fee                  uint64 `json:"fee"`
	RealPriceBefore      uint64 `json:"real_price_before,omitempty"`
	RealPriceAfter       uint64 `json:"real_price_after,omitempty"`
	OptimizedPriceBefore uint64 `json:"optimized_price_before,omitempty"`
	OptimizedPriceAfter  uint64 `json:"optimized_price_after,omitempty"`
}

func (s *Server) handleCollectCommission(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.CollectCommission(r.Context(), signerFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CommissionResponse{
		Collected:            res.Collected(),
		Profit:               res.Profit,
		Fee:                  res.Fee,
		RealPriceBefore:      res.RealPriceBefore,
		RealPriceAfter:       res.RealPriceAfter,
		OptimizedPriceBefore: res.OptimizedPriceBefore,
		OptimizedPriceAfter:  res.OptimizedPriceAfter,
	})
}
