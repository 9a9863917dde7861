// Package calls provides the HTTP handlers and business logic for
// creating trading calls, querying them, and driving manual evaluation
// and maintenance passes.
//
// All price levels use shopspring/decimal — never float64 for money.
package calls

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/callpulse/call-engine/internal/hitstate"
	"github.com/callpulse/call-engine/internal/model"
	"github.com/callpulse/call-engine/internal/poller"
	"github.com/callpulse/call-engine/internal/store"
	"github.com/callpulse/call-engine/internal/symbol"
)

// Service handles call operations. Uses a mutex to serialize manual checks
// against the background poll loop (single-instance). For horizontal
// scaling, replace with database-level optimistic concurrency.
type Service struct {
	store  store.Store
	poller *poller.Poller
	mu     sync.Mutex
	wsHub  *WSHub // optional WebSocket hub for real-time broadcasts
}

// NewService creates a new call service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, p *poller.Poller, hub *WSHub) *Service {
	return &Service{
		store:  st,
		poller: p,
		wsHub:  hub,
	}
}

// --- Request/Response types ---

// CreateCallRequest is the JSON body for call creation.
type CreateCallRequest struct {
	Symbol     string          `json:"symbol"`
	TradeType  string          `json:"trade_type"` // "SWING" or "LONG_TERM"; empty → SWING
	CallDate   time.Time       `json:"call_date"`  // zero → now; future → SCHEDULED
	EntryPrice decimal.Decimal `json:"entry_price"`
	Target1    decimal.Decimal `json:"target1"`
	Target2    decimal.Decimal `json:"target2"`
	Target3    decimal.Decimal `json:"target3"` // optional; zero → two-target call
	StopLoss   decimal.Decimal `json:"stop_loss"`
}

// CheckRequest is the JSON body for a manual evaluation. DayHigh/DayLow are
// optional; when both are present the full day range is evaluated.
type CheckRequest struct {
	Price   decimal.Decimal `json:"price"`
	DayHigh decimal.Decimal `json:"day_high"`
	DayLow  decimal.Decimal `json:"day_low"`
}

// --- HTTP Handlers ---

// CreateCall handles POST /api/v1/calls
func (s *Service) CreateCall(w http.ResponseWriter, r *http.Request) {
	var req CreateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sym, err := symbol.Normalize(req.Symbol)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tradeType := model.TradeType(req.TradeType)
	if tradeType == "" {
		tradeType = model.TradeSwing
	}
	if tradeType != model.TradeSwing && tradeType != model.TradeLongTerm {
		writeError(w, "trade_type must be SWING or LONG_TERM", http.StatusBadRequest)
		return
	}

	levels := model.Levels{
		EntryPrice: req.EntryPrice,
		Target1:    req.Target1,
		Target2:    req.Target2,
		Target3:    req.Target3,
		StopLoss:   req.StopLoss,
	}
	if err := hitstate.ValidateLevels(levels); err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	callDate := req.CallDate
	if callDate.IsZero() {
		callDate = now
	}

	status := model.StatusActive
	if callDate.After(now) {
		status = model.StatusScheduled
	}

	call := model.TradingCall{
		ID:        uuid.New().String(),
		Symbol:    sym,
		TradeType: tradeType,
		CallDate:  callDate,
		Levels:    levels,
		Status:    status,
		CreatedAt: now,
	}

	if err := s.store.CreateCall(r.Context(), &call); err != nil {
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	slog.Info("call created",
		"id", call.ID,
		"symbol", sym,
		"trade_type", tradeType,
		"status", status,
		"entry", levels.EntryPrice.String(),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(call)
}

// GetCall handles GET /api/v1/calls/{callID}
func (s *Service) GetCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	call, err := s.store.GetCall(r.Context(), callID)
	if err != nil {
		writeError(w, "call not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(call)
}

// ListCalls handles GET /api/v1/calls
// Optional filters: ?status=<STATUS>&symbol=<SYMBOL>.
func (s *Service) ListCalls(w http.ResponseWriter, r *http.Request) {
	filter := store.ListFilter{
		Status: model.Status(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("symbol"); raw != "" {
		sym, err := symbol.Normalize(raw)
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		filter.Symbol = sym
	}

	calls, err := s.store.ListCalls(r.Context(), filter)
	if err != nil {
		writeError(w, "failed to list calls", http.StatusInternalServerError)
		return
	}
	if calls == nil {
		calls = []model.TradingCall{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(calls)
}

// CheckCall handles POST /api/v1/calls/{callID}/check
// Runs one evaluation against a caller-supplied observation and persists
// the result. When day_high/day_low are both present the day range is
// evaluated; otherwise only the last price.
func (s *Service) CheckCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")

	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Price.IsPositive() {
		writeError(w, "price must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Serialize against the background poll loop.
	s.mu.Lock()
	defer s.mu.Unlock()

	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		writeError(w, "call not found", http.StatusNotFound)
		return
	}
	if call.Status == model.StatusScheduled {
		writeError(w, "call is not published yet", http.StatusConflict)
		return
	}

	obs := model.PriceObservation{
		Price:      req.Price,
		DayHigh:    req.DayHigh,
		DayLow:     req.DayLow,
		ObservedAt: time.Now().UTC(),
	}

	var updated model.TradingCall
	if obs.HasRange() {
		updated, err = hitstate.EvaluateRange(*call, obs, obs.ObservedAt)
	} else {
		updated, err = hitstate.EvaluateLastPrice(*call, obs, obs.ObservedAt)
	}
	if err != nil {
		if errors.Is(err, hitstate.ErrMissingRange) || errors.Is(err, hitstate.ErrInvalidLevels) {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeError(w, "evaluation failed", http.StatusInternalServerError)
		return
	}

	if err := s.store.UpdateCallState(ctx, &updated); err != nil {
		writeError(w, "failed to update call state", http.StatusInternalServerError)
		return
	}

	if updated.Status != call.Status {
		slog.Info("call state changed",
			"call_id", updated.ID,
			"symbol", updated.Symbol,
			"from", call.Status,
			"to", updated.Status,
			"price", updated.CurrentPrice.String(),
		)
		if s.wsHub != nil {
			s.wsHub.NotifyStateChange(updated, call.Status)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// PublishCall handles POST /api/v1/calls/{callID}/publish
// Flips a SCHEDULED call to ACTIVE so polling picks it up.
func (s *Service) PublishCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	ctx := r.Context()

	if err := s.store.PublishCall(ctx, callID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "call not found", http.StatusNotFound)
			return
		}
		writeError(w, err.Error(), http.StatusConflict)
		return
	}

	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		writeError(w, "call not found", http.StatusNotFound)
		return
	}

	slog.Info("call published", "call_id", callID, "symbol", call.Symbol)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(call)
}

// RunPoll handles POST /api/v1/poll
// Triggers one poll cycle immediately and returns its summary.
func (s *Service) RunPoll(w http.ResponseWriter, r *http.Request) {
	summary, err := s.poller.RunCycle(r.Context())
	if err != nil {
		writeError(w, "poll cycle failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// RunRepair handles POST /api/v1/maintenance/repair
// Rewrites stored calls violating the at-most-one-outcome invariant.
func (s *Service) RunRepair(w http.ResponseWriter, r *http.Request) {
	repaired, err := s.poller.RunRepair(r.Context())
	if err != nil {
		writeError(w, "repair pass failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"repaired": repaired})
}

// RunExpiry handles POST /api/v1/maintenance/expire
// Ages out untouched swing calls older than the expiry window.
func (s *Service) RunExpiry(w http.ResponseWriter, r *http.Request) {
	expired, err := s.poller.RunExpiry(r.Context(), time.Now().UTC())
	if err != nil {
		writeError(w, "expiry pass failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"expired": expired})
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
