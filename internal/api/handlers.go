package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/example/trader-bot/internal/auth"
	"github.com/example/trader-bot/internal/ledger"
)

// Handlers serves the admin surface over the order ledger. It is read-mostly:
// the only mutation is the destructive ledger clear.
type Handlers struct {
	ledger       ledger.Store
	tokens       *auth.TokenService
	adminUser    string
	passwordHash string
}

func NewHandlers(store ledger.Store, tokens *auth.TokenService, adminUser, passwordHash string) *Handlers {
	return &Handlers{
		ledger:       store,
		tokens:       tokens,
		adminUser:    adminUser,
		passwordHash: passwordHash,
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse represents the issued token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login verifies the admin credentials and issues a token
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Username != h.adminUser || !auth.CheckPassword(req.Password, h.passwordHash) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, expiresAt, err := h.tokens.Generate(req.Username, "admin")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// GetOrders returns every order in the ledger
func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.ledger.All(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// GetUserOrders returns the orders of a single user
func (h *Handlers) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := extractPathParam(r.URL.Path, "/orders/")
	if userID == "" {
		http.Error(w, "user ID required", http.StatusBadRequest)
		return
	}

	orders, err := h.ledger.Orders(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

// ClearOrders wipes the whole ledger
func (h *Handlers) ClearOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Clear(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "All orders cleared"})
}

// Health reports liveness
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
