// Package api implements the HTTP surface of the matcher service.
//
// Routes:
//
//	POST /deals                 → submit a deal for matching (full pipeline)
//	GET  /deals/{id}            → read a deal with its price history
//	POST /signals               → create a signal
//	GET  /signals/{id}          → read a signal
//	GET  /signals/{id}/matches  → list a signal's matches, newest first
//	GET  /health                → liveness + stores-reachable readiness
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tripsignal/matcher-service/internal/model"
	"tripsignal/matcher-service/internal/orchestrator"
	"tripsignal/matcher-service/internal/store"
)

const defaultPageLimit = 50

// Handler holds shared dependencies.
type Handler struct {
	orch    *orchestrator.Orchestrator
	deals   *store.DealStore
	signals *store.SignalStore
	matches *store.MatchStore
	outbox  *store.OutboxStore
	rdb     *redis.Client
	log     zerolog.Logger
	service string
	version string
}

// NewHandler returns a configured Handler.
func NewHandler(orch *orchestrator.Orchestrator, deals *store.DealStore, signals *store.SignalStore, matches *store.MatchStore, outbox *store.OutboxStore, rdb *redis.Client, log zerolog.Logger, service, version string) *Handler {
	return &Handler{
		orch:    orch,
		deals:   deals,
		signals: signals,
		matches: matches,
		outbox:  outbox,
		rdb:     rdb,
		log:     log,
		service: service,
		version: version,
	}
}

// RegisterRoutes mounts all matcher-service routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/deals", h.handleDeals)
	mux.HandleFunc("/deals/", h.handleDealSubroute)
	mux.HandleFunc("/signals", h.handleSignals)
	mux.HandleFunc("/signals/", h.handleSignalSubroute)
	mux.HandleFunc("/health", h.handleHealth)
}

// ─── Deal submission ─────────────────────────────────────────────────────────

// dealRequest is the ingestion payload. Dates are YYYY-MM-DD strings.
type dealRequest struct {
	Provider    string `json:"provider"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
	DepartDate  string `json:"depart_date"`
	ReturnDate  string `json:"return_date"`
	PriceCents  int    `json:"price_cents"`
	Currency    string `json:"currency"`
	DeeplinkURL string `json:"deeplink_url,omitempty"`
	Airline     string `json:"airline,omitempty"`
	Cabin       string `json:"cabin,omitempty"`
	Stops       int    `json:"stops,omitempty"`
}

type submitResponse struct {
	DealID      string   `json:"deal_id"`
	DealCreated bool     `json:"deal_created"`
	Stage       string   `json:"stage"`
	MatchIDs    []string `json:"match_ids"`
	NewMatches  int      `json:"new_matches"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

func (h *Handler) handleDeals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body dealRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	deal, err := body.toDeal()
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res := h.orch.SubmitDeal(r.Context(), deal)
	if res.Err != nil {
		switch {
		case !res.Stage.Reached(orchestrator.StageResolved):
			jsonError(w, res.Err.Error(), http.StatusBadRequest)
		case errors.Is(res.Err, store.ErrInvariantViolation):
			jsonError(w, res.Err.Error(), http.StatusConflict)
		default:
			h.log.Error().Err(res.Err).Str("stage", string(res.Stage)).Msg("deal submission failed")
			jsonError(w, "processing failed at stage "+string(res.Stage)+": "+res.Err.Error(), http.StatusInternalServerError)
		}
		return
	}

	resp := submitResponse{
		DealID:      res.DealID,
		DealCreated: res.DealCreated,
		Stage:       string(res.Stage),
		MatchIDs:    res.MatchIDs,
		NewMatches:  res.NewMatches,
	}
	if resp.MatchIDs == nil {
		resp.MatchIDs = []string{}
	}
	for _, d := range res.Diagnostics {
		resp.Diagnostics = append(resp.Diagnostics, "signal "+d.SignalID+": "+string(d.Reason))
	}

	status := http.StatusOK
	if res.DealCreated {
		status = http.StatusCreated
	}
	jsonWith(w, status, resp)
}

func (b dealRequest) toDeal() (model.Deal, error) {
	depart, err := time.Parse("2006-01-02", b.DepartDate)
	if err != nil {
		return model.Deal{}, errors.New("depart_date must be YYYY-MM-DD")
	}
	ret, err := time.Parse("2006-01-02", b.ReturnDate)
	if err != nil {
		return model.Deal{}, errors.New("return_date must be YYYY-MM-DD")
	}
	return model.Deal{
		Provider:    b.Provider,
		Origin:      b.Origin,
		Destination: b.Destination,
		DepartDate:  depart,
		ReturnDate:  ret,
		PriceCents:  b.PriceCents,
		Currency:    b.Currency,
		DeeplinkURL: b.DeeplinkURL,
		Airline:     b.Airline,
		Cabin:       b.Cabin,
		Stops:       b.Stops,
	}, nil
}

// ─── Deal read-back ──────────────────────────────────────────────────────────

type pricePointResponse struct {
	PriceCents int       `json:"price_cents"`
	RecordedAt time.Time `json:"recorded_at"`
}

type dealResponse struct {
	ID           string               `json:"id"`
	Provider     string               `json:"provider"`
	Origin       string               `json:"origin"`
	Destination  string               `json:"destination"`
	DepartDate   string               `json:"depart_date"`
	ReturnDate   string               `json:"return_date"`
	PriceCents   int                  `json:"price_cents"`
	Currency     string               `json:"currency"`
	DeeplinkURL  string               `json:"deeplink_url,omitempty"`
	Airline      string               `json:"airline,omitempty"`
	Cabin        string               `json:"cabin,omitempty"`
	Stops        int                  `json:"stops"`
	IsActive     bool                 `json:"is_active"`
	FoundAt      time.Time            `json:"found_at"`
	PriceHistory []pricePointResponse `json:"price_history"`
}

// handleDealSubroute handles GET /deals/{id}.
func (h *Handler) handleDealSubroute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 {
		jsonError(w, "invalid path", http.StatusNotFound)
		return
	}
	h.getDeal(w, r, parts[1])
}

func (h *Handler) getDeal(w http.ResponseWriter, r *http.Request, dealID string) {
	d, err := h.deals.Get(r.Context(), dealID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "deal not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("dealId", dealID).Msg("deal get failed")
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	history, err := h.deals.PriceHistory(r.Context(), dealID)
	if err != nil {
		h.log.Error().Err(err).Str("dealId", dealID).Msg("price history failed")
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	resp := dealResponse{
		ID:           d.ID,
		Provider:     d.Provider,
		Origin:       d.Origin,
		Destination:  d.Destination,
		DepartDate:   d.DepartDate.Format("2006-01-02"),
		ReturnDate:   d.ReturnDate.Format("2006-01-02"),
		PriceCents:   d.PriceCents,
		Currency:     d.Currency,
		DeeplinkURL:  d.DeeplinkURL,
		Airline:      d.Airline,
		Cabin:        d.Cabin,
		Stops:        d.Stops,
		IsActive:     d.IsActive,
		FoundAt:      d.FoundAt,
		PriceHistory: make([]pricePointResponse, 0, len(history)),
	}
	for _, p := range history {
		resp.PriceHistory = append(resp.PriceHistory, pricePointResponse{
			PriceCents: p.PriceCents,
			RecordedAt: p.RecordedAt,
		})
	}
	jsonOK(w, resp)
}

// ─── Signals ─────────────────────────────────────────────────────────────────

type signalRequest struct {
	Name        string                `json:"name"`
	Departure   model.DepartureSpec   `json:"departure"`
	Destination model.DestinationSpec `json:"destination"`
	Window      model.TravelWindow    `json:"travel_window"`
	Travellers  model.Travellers      `json:"travellers"`
	Budget      model.BudgetSpec      `json:"budget"`
}

type signalResponse struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Status      string                `json:"status"`
	Departure   model.DepartureSpec   `json:"departure"`
	Destination model.DestinationSpec `json:"destination"`
	Window      model.TravelWindow    `json:"travel_window"`
	Travellers  model.Travellers      `json:"travellers"`
	Budget      model.BudgetSpec      `json:"budget"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

func (h *Handler) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body signalRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	sig := model.Signal{
		Name:        body.Name,
		Status:      model.SignalActive,
		Departure:   body.Departure,
		Destination: body.Destination,
		Window:      body.Window,
		Travellers:  body.Travellers,
		Budget:      body.Budget,
	}

	id, err := h.signals.Create(r.Context(), sig)
	if err != nil {
		var vErr *store.ValidationError
		if errors.As(err, &vErr) {
			jsonError(w, vErr.Msg, http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("signal create failed")
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	created, err := h.signals.Get(r.Context(), id)
	if err != nil {
		h.log.Error().Err(err).Str("signalId", id).Msg("signal read-back failed")
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonWith(w, http.StatusCreated, toSignalResponse(created))
}

// handleSignalSubroute handles GET /signals/{id} and GET /signals/{id}/matches.
func (h *Handler) handleSignalSubroute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case len(parts) == 2:
		h.getSignal(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "matches":
		h.listMatches(w, r, parts[1])
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

func (h *Handler) getSignal(w http.ResponseWriter, r *http.Request, signalID string) {
	sig, err := h.signals.Get(r.Context(), signalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "signal not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("signalId", signalID).Msg("signal get failed")
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}
	jsonOK(w, toSignalResponse(sig))
}

type matchResponse struct {
	ID        string    `json:"id"`
	SignalID  string    `json:"signal_id"`
	DealID    string    `json:"deal_id"`
	MatchedAt time.Time `json:"matched_at"`
}

type matchListResponse struct {
	Matches    []matchResponse `json:"matches"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func (h *Handler) listMatches(w http.ResponseWriter, r *http.Request, signalID string) {
	// Confirm the signal exists so an unknown id is a 404, not an empty list.
	if _, err := h.signals.Get(r.Context(), signalID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "signal not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("signalId", signalID).Msg("signal get failed")
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	cursor := r.URL.Query().Get("cursor")
	limit := defaultPageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > 500 {
			jsonError(w, "limit must be an integer between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = v
	}

	matches, next, err := h.matches.ListForSignal(r.Context(), signalID, cursor, limit)
	if err != nil {
		h.log.Error().Err(err).Str("signalId", signalID).Msg("match list failed")
		jsonError(w, "database error", http.StatusInternalServerError)
		return
	}

	resp := matchListResponse{Matches: make([]matchResponse, 0, len(matches)), NextCursor: next}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, matchResponse{
			ID:        m.ID,
			SignalID:  m.SignalID,
			DealID:    m.DealID,
			MatchedAt: m.MatchedAt,
		})
	}
	jsonOK(w, resp)
}

// ─── Health ──────────────────────────────────────────────────────────────────

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]string{
		"status":  "ok",
		"service": h.service,
		"version": h.version,
	}

	if err := h.orch.Ready(r.Context()); err != nil {
		resp["status"] = "unavailable"
		resp["error"] = err.Error()
		jsonWith(w, http.StatusServiceUnavailable, resp)
		return
	}
	if err := h.rdb.Ping(r.Context()).Err(); err != nil {
		resp["status"] = "unavailable"
		resp["error"] = "redis: " + err.Error()
		jsonWith(w, http.StatusServiceUnavailable, resp)
		return
	}

	if pending, err := h.outbox.PendingCount(r.Context()); err == nil {
		resp["outbox_pending"] = strconv.Itoa(pending)
	}

	jsonOK(w, resp)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func toSignalResponse(sig model.Signal) signalResponse {
	return signalResponse{
		ID:          sig.ID,
		Name:        sig.Name,
		Status:      string(sig.Status),
		Departure:   sig.Departure,
		Destination: sig.Destination,
		Window:      sig.Window,
		Travellers:  sig.Travellers,
		Budget:      sig.Budget,
		CreatedAt:   sig.CreatedAt,
		UpdatedAt:   sig.UpdatedAt,
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	jsonWith(w, http.StatusOK, v)
}

func jsonWith(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
