package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"FundLedger/internal/engine"
	"FundLedger/internal/observability"
	"FundLedger/internal/query"
)

// Server exposes the ledger over HTTP/JSON. Live fund state comes
// from the engine; event and journal history comes from the query
// service. Mutating endpoints read the caller identity from the
// X-Caller header, a UUID issued by the upstream gateway.
type Server struct {
	ledger  *engine.Ledger
	queries *query.Service
	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewServer(ledger *engine.Ledger, queries *query.Service, metrics *observability.Metrics) *Server {
	return &Server{
		ledger:  ledger,
		queries: queries,
		metrics: metrics,
		logger:  observability.NewLogger("http"),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/funds", s.handleCreateFund)
	mux.HandleFunc("POST /v1/assets", s.handleRegisterAsset)
	mux.HandleFunc("POST /v1/funds/{id}/assets", s.handleAddFundAsset)
	mux.HandleFunc("POST /v1/funds/{id}/deposits", s.handleDeposit)
	mux.HandleFunc("POST /v1/funds/{id}/withdrawals", s.handleWithdraw)
	mux.HandleFunc("POST /v1/funds/{id}/rebalance", s.handleRebalance)
	mux.HandleFunc("POST /v1/funds/{id}/assets/{asset}/price", s.handleUpdatePrice)
	mux.HandleFunc("POST /v1/funds/{id}/pause", s.handlePause)
	mux.HandleFunc("POST /v1/funds/{id}/reactivate", s.handleReactivate)
	mux.HandleFunc("POST /v1/protocol/fee", s.handleProtocolFee)
	mux.HandleFunc("POST /v1/protocol/rebalance-threshold", s.handleRebalanceThreshold)

	mux.HandleFunc("GET /v1/funds", s.handleListFunds)
	mux.HandleFunc("GET /v1/funds/{id}", s.handleGetFund)
	mux.HandleFunc("GET /v1/funds/{id}/nav", s.handleGetNav)
	mux.HandleFunc("GET /v1/funds/{id}/rebalance-needed", s.handleRebalanceNeeded)
	mux.HandleFunc("GET /v1/funds/{id}/assets/{asset}", s.handleGetFundAsset)
	mux.HandleFunc("GET /v1/funds/{id}/positions/{holder}", s.handleGetPosition)
	mux.HandleFunc("GET /v1/funds/{id}/positions/{holder}/value", s.handleGetUserValue)
	mux.HandleFunc("GET /v1/funds/{id}/positions/{holder}/journal", s.handleHolderJournal)
	mux.HandleFunc("GET /v1/funds/{id}/events", s.handleFundEvents)
	mux.HandleFunc("GET /v1/assets/{asset}", s.handleGetAsset)
	mux.HandleFunc("GET /v1/sequence", s.handleSequence)

	return mux
}

// --- Request/response shapes ---

type createFundRequest struct {
	Name             string `json:"name"`
	Symbol           string `json:"symbol"`
	ManagementFeeBps int64  `json:"management_fee_bps"`
}

type registerAssetRequest struct {
	AssetID   int64  `json:"asset_id"`
	TokenRef  string `json:"token_ref"`
	Symbol    string `json:"symbol"`
	Decimals  uint8  `json:"decimals"`
	OracleRef string `json:"oracle_ref,omitempty"`
}

type addFundAssetRequest struct {
	AssetID         int64 `json:"asset_id"`
	TargetWeightBps int64 `json:"target_weight_bps"`
}

type depositRequest struct {
	Amount int64 `json:"amount"`
}

type withdrawRequest struct {
	Shares int64 `json:"shares"`
}

type priceRequest struct {
	Price int64 `json:"price"`
}

type protocolFeeRequest struct {
	FeeBps int64 `json:"fee_bps"`
}

type thresholdRequest struct {
	ThresholdBps int64 `json:"threshold_bps"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code,omitempty"`
}

// --- Mutations ---

func (s *Server) handleCreateFund(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req createFundRequest
	if !s.decode(w, r, &req) {
		return
	}

	fundID, err := s.ledger.CreateFund(caller, req.Name, req.Symbol, req.ManagementFeeBps)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]int64{"fund_id": fundID})
}

func (s *Server) handleRegisterAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req registerAssetRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.ledger.RegisterAsset(caller, req.AssetID, req.TokenRef, req.Symbol, req.Decimals, req.OracleRef); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]int64{"asset_id": req.AssetID})
}

func (s *Server) handleAddFundAsset(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	var req addFundAssetRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.ledger.AddFundAsset(caller, fundID, req.AssetID, req.TargetWeightBps); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]int64{"fund_id": fundID, "asset_id": req.AssetID})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	var req depositRequest
	if !s.decode(w, r, &req) {
		return
	}

	shares, err := s.ledger.Deposit(caller, fundID, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"shares_minted": shares})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	var req withdrawRequest
	if !s.decode(w, r, &req) {
		return
	}

	value, err := s.ledger.Withdraw(caller, fundID, req.Shares)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"value_returned": value})
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}

	trades, err := s.ledger.RebalanceFund(caller, fundID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"trades": trades})
}

func (s *Server) handleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	assetID, ok := s.pathInt(w, r, "asset")
	if !ok {
		return
	}
	var req priceRequest
	if !s.decode(w, r, &req) {
		return
	}

	if err := s.ledger.UpdateAssetPrice(caller, fundID, assetID, req.Price); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"price": req.Price})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.ledger.PauseFund)
}

func (s *Server) handleReactivate(w http.ResponseWriter, r *http.Request) {
	s.lifecycle(w, r, s.ledger.ReactivateFund)
}

func (s *Server) lifecycle(w http.ResponseWriter, r *http.Request, op func(uuid.UUID, int64) error) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	if err := op(caller, fundID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"fund_id": fundID})
}

func (s *Server) handleProtocolFee(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req protocolFeeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ledger.UpdateProtocolFee(caller, req.FeeBps); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"fee_bps": req.FeeBps})
}

func (s *Server) handleRebalanceThreshold(w http.ResponseWriter, r *http.Request) {
	caller, ok := s.caller(w, r)
	if !ok {
		return
	}
	var req thresholdRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.ledger.UpdateRebalanceThreshold(caller, req.ThresholdBps); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"threshold_bps": req.ThresholdBps})
}

// --- Queries ---

func (s *Server) handleListFunds(w http.ResponseWriter, r *http.Request) {
	defer s.observe("list_funds", time.Now())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"funds": s.ledger.ListFunds()})
}

func (s *Server) handleGetFund(w http.ResponseWriter, r *http.Request) {
	defer s.observe("get_fund", time.Now())
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	f, err := s.ledger.GetFund(fundID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleGetNav(w http.ResponseWriter, r *http.Request) {
	defer s.observe("get_nav", time.Now())
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	nav, err := s.ledger.CalculateFundNav(fundID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	marked, err := s.ledger.MarkToMarketNav(fundID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"nav": nav, "mark_to_market_nav": marked})
}

func (s *Server) handleRebalanceNeeded(w http.ResponseWriter, r *http.Request) {
	defer s.observe("rebalance_needed", time.Now())
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	needed, err := s.ledger.CheckRebalanceNeeded(fundID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"rebalance_needed": needed})
}

func (s *Server) handleGetFundAsset(w http.ResponseWriter, r *http.Request) {
	defer s.observe("get_fund_asset", time.Now())
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	assetID, ok := s.pathInt(w, r, "asset")
	if !ok {
		return
	}
	a, err := s.ledger.GetFundAsset(fundID, assetID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	defer s.observe("get_position", time.Now())
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	holder, ok := s.pathUUID(w, r, "holder")
	if !ok {
		return
	}
	pos, err := s.ledger.GetUserPosition(fundID, holder)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *Server) handleGetUserValue(w http.ResponseWriter, r *http.Request) {
	defer s.observe("get_user_value", time.Now())
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	holder, ok := s.pathUUID(w, r, "holder")
	if !ok {
		return
	}
	value, err := s.ledger.GetUserValue(fundID, holder)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"value": value})
}

func (s *Server) handleHolderJournal(w http.ResponseWriter, r *http.Request) {
	defer s.observe("holder_journal", time.Now())
	if s.queries == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "history store unavailable"})
		return
	}
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	holder, ok := s.pathUUID(w, r, "holder")
	if !ok {
		return
	}
	after, limit := cursorParams(r)

	page, err := s.queries.GetHolderJournal(r.Context(), fundID, holder, after, limit)
	if err != nil {
		s.observeQueryError("holder_journal", err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleFundEvents(w http.ResponseWriter, r *http.Request) {
	defer s.observe("fund_events", time.Now())
	if s.queries == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "history store unavailable"})
		return
	}
	fundID, ok := s.pathInt(w, r, "id")
	if !ok {
		return
	}
	after, limit := cursorParams(r)

	page, err := s.queries.ListFundEvents(r.Context(), fundID, after, limit)
	if err != nil {
		s.observeQueryError("fund_events", err)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetAsset(w http.ResponseWriter, r *http.Request) {
	defer s.observe("get_asset", time.Now())
	assetID, ok := s.pathInt(w, r, "asset")
	if !ok {
		return
	}
	a, err := s.ledger.GetAssetInfo(assetID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleSequence(w http.ResponseWriter, r *http.Request) {
	defer s.observe("sequence", time.Now())
	resp := map[string]int64{"sequence": s.ledger.Sequence()}
	if s.queries != nil {
		if durable, err := s.queries.GetLatestSequence(r.Context()); err == nil {
			resp["durable_sequence"] = durable
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (s *Server) caller(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.Header.Get("X-Caller")
	if raw == "" {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing X-Caller header"})
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "malformed X-Caller header"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return false
	}
	return true
}

func (s *Server) pathInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed " + name + " path segment"})
		return 0, false
	}
	return v, true
}

func (s *Server) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	v, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed " + name + " path segment"})
		return uuid.Nil, false
	}
	return v, true
}

func cursorParams(r *http.Request) (after int64, limit int) {
	after, _ = strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
	l, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return after, l
}

func (s *Server) observeQueryError(endpoint string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueryErrors.WithLabelValues(endpoint, strconv.Itoa(engine.Code(err))).Inc()
}

func (s *Server) observe(endpoint string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
	s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// writeError maps rejection codes to HTTP statuses: authorization
// failures to 403, missing records to 404, malformed input to 400,
// business-rule rejections to 409.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := engine.Code(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrOwnerOnly), errors.Is(err, engine.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, engine.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, engine.ErrInvalidWeight), errors.Is(err, engine.ErrInvalidToken):
		status = http.StatusBadRequest
	case errors.Is(err, engine.ErrInsufficientBalance), errors.Is(err, engine.ErrFundInactive), errors.Is(err, engine.ErrRebalanceNotNeeded):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("internal error")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}
