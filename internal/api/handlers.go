package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/audit"
	"github.com/XavierBriggs/fortuna/services/decision-engine/internal/sportconfig"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Meta is the build identity served from /meta
type Meta struct {
	EngineBuildID string    `json:"engine_build_id"`
	SimVersion    string    `json:"sim_version"`
	DeployedAt    time.Time `json:"deployed_at"`
	Environment   string    `json:"environment"`
	Status        string    `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// Pinger is the storage health probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	registry     *sportconfig.Registry
	decisions    contracts.DecisionStore
	publications contracts.PublicationStore
	auditLog     *audit.Logger
	db           Pinger
	meta         Meta
	log          zerolog.Logger
}

// NewHandler creates a new handler with dependencies
func NewHandler(registry *sportconfig.Registry, decisions contracts.DecisionStore, publications contracts.PublicationStore, auditLog *audit.Logger, db Pinger, meta Meta, log zerolog.Logger) *Handler {
	return &Handler{
		registry:     registry,
		decisions:    decisions,
		publications: publications,
		auditLog:     auditLog,
		db:           db,
		meta:         meta,
		log:          log.With().Str("component", "api").Logger(),
	}
}

// HealthCheck returns the health status of the engine
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "decision-engine",
	})
}

// GetMeta returns build and version identity
func (h *Handler) GetMeta(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.meta)
}

// GetGameDecisions returns the atomic decision bundle for one game.
// Consumers never see partially updated markets: the bundle is stored and
// served as one record. Any storage uncertainty fails closed with 503.
func (h *Handler) GetGameDecisions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	league := chi.URLParam(r, "league")
	gameID := chi.URLParam(r, "gameID")

	sport, err := models.ParseSport(league)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "unknown league", err)
		return
	}

	bundle, err := h.decisions.GetGameDecisions(ctx, gameID)
	if err != nil {
		// Fail closed: an error is never reported as "no decision"
		h.respondError(w, http.StatusServiceUnavailable, "decision store unavailable", err)
		return
	}
	if bundle == nil {
		// No simulation inputs yet for this game: fail closed, never report
		// the absence as a decision
		h.respondError(w, http.StatusServiceUnavailable, "simulation inputs unavailable for game", nil)
		return
	}
	if bundle.Sport != sport {
		h.respondError(w, http.StatusNotFound, "no decisions for game", nil)
		return
	}

	h.respondJSON(w, http.StatusOK, bundle)
}

// GetMarketStates returns the per-market tier registry with visibility
// contracts for a league
func (h *Handler) GetMarketStates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	league := r.URL.Query().Get("league")
	sport, err := models.ParseSport(league)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "unknown league", err)
		return
	}

	states, err := h.decisions.ListMarketStates(ctx, sport)
	if err != nil {
		h.respondError(w, http.StatusServiceUnavailable, "decision store unavailable", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"market_states": states,
		"count":         len(states),
	})
}

// GetPredictions returns the official published track record for a league
func (h *Handler) GetPredictions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	league := r.URL.Query().Get("league")
	sport, err := models.ParseSport(league)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "unknown league", err)
		return
	}

	limit := parseIntParam(r, "limit", 100)
	if limit > 500 {
		limit = 500
	}
	offset := parseIntParam(r, "offset", 0)

	predictions, err := h.publications.ListOfficial(ctx, sport, limit, offset)
	if err != nil {
		h.respondError(w, http.StatusServiceUnavailable, "publication store unavailable", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"predictions": predictions,
		"count":       len(predictions),
		"limit":       limit,
		"offset":      offset,
	})
}

// GetAuditTrail returns the audit records for an inputs hash
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	inputsHash := chi.URLParam(r, "inputsHash")
	if inputsHash == "" {
		h.respondError(w, http.StatusBadRequest, "inputs_hash is required", nil)
		return
	}

	records, err := h.auditLog.Trace(ctx, inputsHash)
	if err != nil {
		h.respondError(w, http.StatusServiceUnavailable, "audit store unavailable", err)
		return
	}
	if len(records) == 0 {
		h.respondError(w, http.StatusNotFound, "no audit records", nil)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

func parseIntParam(r *http.Request, param string, defaultValue int) int {
	valueStr := r.URL.Query().Get(param)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("error encoding response")
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		h.log.Error().Err(err).Int("status", status).Msg(message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := errorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.log.Error().Err(err).Msg("error encoding error response")
	}
}
