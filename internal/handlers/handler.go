package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/ArnavT27/Chat-Application/internal/chat"
	"github.com/ArnavT27/Chat-Application/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	chat  *chat.Service
	st    store.DataStore
	redis *redis.Client
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(svc *chat.Service, st store.DataStore, rdb *redis.Client) *Handler {
	return &Handler{chat: svc, st: st, redis: rdb}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
