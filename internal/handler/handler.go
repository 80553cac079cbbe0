// Package handler provides HTTP handlers for the cart drawer API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"cart-drawer/internal/drawer"
	"cart-drawer/internal/model"
	"cart-drawer/internal/storage"
)

// Sessions opens a drawer for the shopper behind a request.
// Drawers are cheap and live for one request; everything durable sits in
// the storefront cart and the override storage.
type Sessions struct {
	// Cart returns a cart service bound to the shopper's cart token.
	Cart     func(cartToken string) drawer.CartService
	Storage  storage.Storage
	Settings drawer.Settings
	Fetcher  *drawer.Fetcher
	Metrics  *drawer.Metrics
	Logger   *slog.Logger
}

// Open returns a drawer for state. The override is scoped to the cart token.
func (s *Sessions) Open(state SessionState) *drawer.Drawer {
	return drawer.New(drawer.Options{
		Cart:       s.Cart(state.CartToken),
		Overrides:  storage.NewOverrideStore(s.Storage, state.CartToken, s.Logger),
		Settings:   s.Settings,
		Logger:     s.Logger,
		Fetcher:    s.Fetcher,
		Metrics:    s.Metrics,
		SessionKey: state.CartToken,
		UIChecked:  state.Protection,
	})
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	sessions *Sessions
	logger   *slog.Logger
}

// New creates a new Handler with the given session factory and logger.
func New(sessions *Sessions, logger *slog.Logger) *Handler {
	return &Handler{
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterRoutes registers all HTTP routes with the given ServeMux.
// Uses Go 1.22+ method routing patterns.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// REST transport - drawer operations
	mux.HandleFunc("GET /drawer", h.handleGetDrawer)
	mux.HandleFunc("POST /drawer/protection/toggle", h.handleToggleProtection)
	mux.HandleFunc("POST /drawer/protection/disable", h.handleDisableProtection)
	mux.HandleFunc("POST /drawer/items", h.handleAddItems)
	mux.HandleFunc("POST /drawer/items/{id}/quantity", h.handleChangeQuantity)
	mux.HandleFunc("POST /drawer/items/{id}/selling-plan", h.handleSellingPlan)
	mux.HandleFunc("POST /drawer/items/{id}/swap", h.handleSwap)
	mux.HandleFunc("POST /drawer/gift", h.handleSelectGift)
	mux.HandleFunc("POST /drawer/clear", h.handleClear)

	// MCP transport - JSON-RPC endpoint using official MCP SDK
	mux.Handle("/mcp", h.NewMCPHandler())

	// Health check
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleHealth returns a simple health check response.
// GET /health, GET /healthz
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status"`
}

// === Response Helpers ===

// writeJSON sends a JSON response with the given status code.
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError sends an error response, extracting status/code from APIError if present.
// Uses errors.As() to unwrap error chains (e.g., fmt.Errorf wrapping).
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError

	if errors.As(err, &apiErr) {
		// Found APIError in error chain - use it
	} else {
		// Wrap unexpected errors
		apiErr = &model.APIError{
			Code:       "INTERNAL_ERROR",
			Message:    "an internal error occurred",
			StatusCode: http.StatusInternalServerError,
		}
		h.logger.Error("internal error", slog.String("error", err.Error()))
	}

	h.writeJSON(w, apiErr.StatusCode, errorResponse{
		Error: errorBody{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Alert:   apiErr.Alert,
		},
	})
}

// errorResponse is the JSON structure for error responses.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Alert   string `json:"alert,omitempty"` // Shopper-facing message for user actions
}

// writeView sends the drawer view and echoes the effective session state.
func (h *Handler) writeView(w http.ResponseWriter, state SessionState, view *drawer.View) {
	if view.CartToken != "" {
		state.CartToken = view.CartToken
	}
	checked := view.Protection.Checked
	state.Protection = &checked

	if header, err := FormatStateHeader(state); err != nil {
		h.logger.Warn("failed to format state header", slog.String("error", err.Error()))
	} else if header != "" {
		w.Header().Set(StateHeader, header)
	}
	h.writeJSON(w, http.StatusOK, view)
}

// MaxRequestBodySize limits JSON request bodies to 1MB to prevent DoS.
const MaxRequestBodySize = 1 << 20 // 1MB

// decodeJSON reads JSON from request body into v.
// Limits body size to MaxRequestBodySize to prevent memory exhaustion.
// Returns an APIError if decoding fails.
func decodeJSON(r *http.Request, v interface{}) error {
	// Limit request body size to prevent DoS
	r.Body = http.MaxBytesReader(nil, r.Body, MaxRequestBodySize)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Don't expose internal error details to client
		return model.NewValidationError("body", "invalid JSON")
	}
	return nil
}

// sessionState reads the Drawer-State header.
// requireCart rejects requests that would mutate an unidentified cart.
func sessionState(r *http.Request, requireCart bool) (SessionState, error) {
	state, err := ParseStateHeader(r.Header.Get(StateHeader))
	if err != nil {
		return state, model.NewValidationError(StateHeader, err.Error())
	}
	if requireCart && state.CartToken == "" {
		return state, model.NewValidationError(StateHeader, "cart token required")
	}
	return state, nil
}
