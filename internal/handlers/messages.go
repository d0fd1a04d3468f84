package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ArnavT27/Chat-Application/internal/api/middleware"
	"github.com/ArnavT27/Chat-Application/internal/chat"
)

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// SendMessage handles POST /api/messages/send/{id}.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	sender := middleware.GetUserFromContext(r.Context())
	if sender == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	receiverID := chi.URLParam(r, "id")
	if receiverID == "" {
		h.Error(w, http.StatusBadRequest, "missing receiver ID")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	msg, err := h.chat.Send(r.Context(), sender.ID, receiverID, chat.SendInput{
		Text:  req.Text,
		Image: req.Image,
	})
	if err != nil {
		var assetErr *chat.AssetError
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			h.Error(w, http.StatusBadRequest, "message cannot be empty")
		case errors.Is(err, chat.ErrReceiverNotFound):
			h.Error(w, http.StatusNotFound, "receiver not found")
		case errors.As(err, &assetErr):
			h.Error(w, http.StatusBadGateway, "image upload failed")
		default:
			h.Error(w, http.StatusInternalServerError, "failed to send message")
		}
		return
	}

	h.JSON(w, http.StatusCreated, msg)
}

// GetMessages handles GET /api/messages/{id}.
// Fetching a conversation marks the peer's messages as seen.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetUserFromContext(r.Context())
	if me == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	peerID := chi.URLParam(r, "id")
	if peerID == "" {
		h.Error(w, http.StatusBadRequest, "missing peer ID")
		return
	}

	msgs, err := h.chat.History(r.Context(), me.ID, peerID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	h.JSON(w, http.StatusOK, msgs)
}

// MarkMessageSeen handles PUT /api/messages/mark/{id}.
func (h *Handler) MarkMessageSeen(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetUserFromContext(r.Context())
	if me == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	messageID := chi.URLParam(r, "id")
	if messageID == "" {
		h.Error(w, http.StatusBadRequest, "missing message ID")
		return
	}

	if err := h.chat.MarkSeen(r.Context(), messageID); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to mark message")
		return
	}

	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetUsersForSidebar handles GET /api/messages/users.
// Returns every other user plus the unseen counts, last-message summaries
// and online set needed to render a conversation list in one round trip.
func (h *Handler) GetUsersForSidebar(w http.ResponseWriter, r *http.Request) {
	me := middleware.GetUserFromContext(r.Context())
	if me == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	peers, err := h.chat.ListPeers(r.Context(), me.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch users")
		return
	}

	h.JSON(w, http.StatusOK, peers)
}
