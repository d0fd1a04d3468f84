// Package ws owns the persistent bidirectional event channel: one socket
// per connected client/device. The hub registers connections with the
// presence registry, broadcasts the online set on every change, and routes
// inbound call signaling to the coordinator. Handlers run to completion per
// event, so shared state mutates without interleaving mid-event.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ArnavT27/Chat-Application/internal/api/middleware"
	"github.com/ArnavT27/Chat-Application/internal/metrics"
	"github.com/ArnavT27/Chat-Application/internal/presence"
)

// CallRouter receives inbound call signaling events. Implemented by the
// call coordinator.
type CallRouter interface {
	Initiate(caller, target string, callerInfo json.RawMessage)
	Accept(target, caller string)
	Reject(target, caller string)
	Offer(from, target string, sdp json.RawMessage)
	Answer(from, target string, sdp json.RawMessage)
	IceCandidate(from, target string, candidate json.RawMessage)
	End(from, target string)
	ReleaseUser(userID string)
}

// Hub owns all live connections.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client // connID -> client
	registry *presence.Registry
	calls    CallRouter
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	// presenceMu serializes registry mutation with the broadcast of its
	// snapshot, so concurrent connects cannot deliver an older online set
	// after a newer one.
	presenceMu sync.Mutex
}

// NewHub creates a hub over the given registry. SetCallRouter must be called
// before the first connection is served.
func NewHub(registry *presence.Registry, logger zerolog.Logger, checkOrigin func(*http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		clients:  make(map[string]*Client),
		registry: registry,
		logger:   logger.With().Str("component", "ws").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
	}
}

// SetCallRouter wires the call coordinator. Split from NewHub because the
// coordinator relays through the hub.
func (h *Hub) SetCallRouter(calls CallRouter) {
	h.calls = calls
}

// Push resolves userID's live connection freshly and sends one event to it.
// Returns false when the user is offline or the write fails.
func (h *Hub) Push(userID, event string, data any) bool {
	connID, ok := h.registry.Resolve(userID)
	if !ok {
		return false
	}

	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	if err := client.Send(Event{Event: event, Data: data}); err != nil {
		h.logger.Warn().Err(err).Str("user", userID).Str("event", event).
			Msg("push failed")
		return false
	}
	return true
}

// Broadcast sends one event to every live connection.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.Send(Event{Event: event, Data: data}); err != nil {
			h.logger.Debug().Err(err).Str("conn", c.connID).Msg("broadcast skip")
		}
	}
}

// HandleWS upgrades the request into the event channel for the
// authenticated user and runs its read loop until disconnect.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, `{"error":"authentication required"}`, http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}

	client := &Client{
		connID: uuid.NewString(),
		userID: user.ID,
		conn:   conn,
	}

	h.register(client)
	defer h.unregister(client)

	for {
		var ev inboundEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug().Err(err).Str("conn", client.connID).
					Str("user", client.userID).Msg("ws read ended")
			}
			return
		}
		h.route(client, ev)
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client.connID] = client
	h.mu.Unlock()

	h.presenceMu.Lock()
	online := h.registry.Connect(client.userID, client.connID)
	metrics.SocketConnections.Inc()
	h.logger.Info().Str("user", client.userID).Str("conn", client.connID).
		Int("online", len(online)).Msg("connected")

	h.Broadcast(EventPresenceChanged, PresencePayload{OnlineUserIDs: online})
	h.presenceMu.Unlock()
}

func (h *Hub) unregister(client *Client) {
	client.close()

	h.mu.Lock()
	delete(h.clients, client.connID)
	h.mu.Unlock()

	h.presenceMu.Lock()
	changed, online := h.registry.Disconnect(client.connID)
	metrics.SocketConnections.Dec()
	h.logger.Info().Str("user", client.userID).Str("conn", client.connID).
		Bool("went_offline", changed).Msg("disconnected")

	h.Broadcast(EventPresenceChanged, PresencePayload{OnlineUserIDs: online})
	h.presenceMu.Unlock()

	// Only a real offline transition tears the user's calls down: a stale
	// disconnect means a newer connection took over the slot.
	if changed && h.calls != nil {
		h.calls.ReleaseUser(client.userID)
	}
}

// route dispatches one inbound event. Unknown event types are ignored so
// newer clients degrade gracefully against older servers.
func (h *Hub) route(client *Client, ev inboundEvent) {
	if h.calls == nil {
		return
	}

	switch ev.Event {
	case EventCallInitiate:
		var p initiatePayload
		if unmarshal(h, client, ev, &p) && p.TargetID != "" {
			h.calls.Initiate(client.userID, p.TargetID, p.CallerInfo)
		}
	case EventCallAccept:
		var p acceptPayload
		if unmarshal(h, client, ev, &p) && p.CallerID != "" {
			h.calls.Accept(client.userID, p.CallerID)
		}
	case EventCallReject:
		var p rejectPayload
		if unmarshal(h, client, ev, &p) && p.CallerID != "" {
			h.calls.Reject(client.userID, p.CallerID)
		}
	case EventCallEnd:
		var p endPayload
		if unmarshal(h, client, ev, &p) && p.TargetID != "" {
			h.calls.End(client.userID, p.TargetID)
		}
	case EventCallOffer:
		var p offerPayload
		if unmarshal(h, client, ev, &p) && p.TargetID != "" {
			h.calls.Offer(client.userID, p.TargetID, p.SDP)
		}
	case EventCallAnswer:
		var p answerPayload
		if unmarshal(h, client, ev, &p) && p.TargetID != "" {
			h.calls.Answer(client.userID, p.TargetID, p.SDP)
		}
	case EventCallIceCandidate:
		var p candidatePayload
		if unmarshal(h, client, ev, &p) && p.TargetID != "" {
			h.calls.IceCandidate(client.userID, p.TargetID, p.Candidate)
		}
	default:
		h.logger.Debug().Str("event", ev.Event).Msg("unknown event ignored")
	}
}

func unmarshal(h *Hub, client *Client, ev inboundEvent, dst any) bool {
	if err := json.Unmarshal(ev.Data, dst); err != nil {
		h.logger.Debug().Err(err).Str("event", ev.Event).
			Str("conn", client.connID).Msg("malformed event payload")
		return false
	}
	return true
}
