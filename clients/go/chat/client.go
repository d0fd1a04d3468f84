// Package chat provides a client for the chat server: the synchronous HTTP
// API plus the persistent event channel used for presence, message pushes
// and call signaling.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message mirrors the server's message record.
type Message struct {
	ID         string    `json:"_id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"messageText,omitempty"`
	Image      string    `json:"messageImage,omitempty"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User mirrors the server's user record.
type User struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// LastMessage is a per-peer conversation summary.
type LastMessage struct {
	Text     string    `json:"text"`
	Time     time.Time `json:"time"`
	SenderID string    `json:"senderId"`
}

// PeerList is the conversation-list view returned by ListPeers.
type PeerList struct {
	Users          []User                 `json:"users"`
	UnseenMessages map[string]int         `json:"unseenMessages"`
	LastMessages   map[string]LastMessage `json:"lastMessages"`
	OnlineUserIDs  []string               `json:"onlineUserIds"`
}

// Client is a chat API client for one signed-in user.
type Client struct {
	BaseURL    string
	UserID     string
	UserName   string
	ProfilePic string
	HTTPClient *http.Client
}

// NewClient creates a client for the given server and user identity.
func NewClient(baseURL, userID, userName string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserID:     userID,
		UserName:   userName,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// doRequest performs an HTTP request with identity headers.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Chat-User-Id", c.UserID)
	req.Header.Set("X-Chat-User-Name", c.UserName)
	if c.ProfilePic != "" {
		req.Header.Set("X-Chat-User-Pic", c.ProfilePic)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("chat error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// SendRequest is the request body for sending a message.
type SendRequest struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

// Send sends a message to the given receiver and returns the stored record.
// The returned text and image are ciphertext; decrypt with the pair key.
func (c *Client) Send(ctx context.Context, receiverID, text, image string) (*Message, error) {
	body, _ := json.Marshal(SendRequest{Text: text, Image: image})
	respBody, err := c.doRequest(ctx, "POST", "/api/messages/send/"+url.PathEscape(receiverID), body)
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// History retrieves the full conversation with a peer. The server marks the
// peer's messages seen as a side effect of this fetch.
func (c *Client) History(ctx context.Context, peerID string) ([]Message, error) {
	respBody, err := c.doRequest(ctx, "GET", "/api/messages/"+url.PathEscape(peerID), nil)
	if err != nil {
		return nil, err
	}

	var msgs []Message
	if err := json.Unmarshal(respBody, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// MarkSeen marks a single message as seen.
func (c *Client) MarkSeen(ctx context.Context, messageID string) error {
	_, err := c.doRequest(ctx, "PUT", "/api/messages/mark/"+url.PathEscape(messageID), nil)
	return err
}

// ListPeers retrieves the conversation-list view: every other user plus
// unseen counts, last-message summaries and the online set.
func (c *Client) ListPeers(ctx context.Context) (*PeerList, error) {
	respBody, err := c.doRequest(ctx, "GET", "/api/messages/users", nil)
	if err != nil {
		return nil, err
	}

	var peers PeerList
	if err := json.Unmarshal(respBody, &peers); err != nil {
		return nil, err
	}
	return &peers, nil
}

// Event is the wire envelope for channel messages in both directions.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handlers receives channel events. Nil fields are skipped.
type Handlers struct {
	OnPresence func(onlineUserIDs []string)
	OnMessage  func(msg Message)
	OnCall     func(event string, data json.RawMessage)
}

// Socket is one live event channel connection.
type Socket struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Dial opens the event channel for this client's user.
func (c *Client) Dial(ctx context.Context) (*Socket, error) {
	wsURL := strings.Replace(c.BaseURL, "http", "ws", 1) + "/ws?userId=" + url.QueryEscape(c.UserID)

	header := http.Header{}
	header.Set("X-Chat-User-Id", c.UserID)
	header.Set("X-Chat-User-Name", c.UserName)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, err
	}
	if resp != nil {
		resp.Body.Close()
	}
	return &Socket{conn: conn}, nil
}

// Emit sends an event over the channel.
func (s *Socket) Emit(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(Event{Event: event, Data: payload})
}

// Listen reads events until the connection closes or the context is
// cancelled. Unknown events are ignored.
func (s *Socket) Listen(ctx context.Context, h Handlers) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-done:
		}
	}()

	for {
		var ev Event
		if err := s.conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.dispatch(ev, h)
	}
}

// Close closes the channel connection.
func (s *Socket) Close() error {
	return s.conn.Close()
}

func (s *Socket) dispatch(ev Event, h Handlers) {
	switch ev.Event {
	case "presenceChanged":
		if h.OnPresence == nil {
			return
		}
		var p struct {
			OnlineUserIDs []string `json:"onlineUserIds"`
		}
		if json.Unmarshal(ev.Data, &p) == nil {
			h.OnPresence(p.OnlineUserIDs)
		}
	case "newMessage":
		if h.OnMessage == nil {
			return
		}
		var msg Message
		if json.Unmarshal(ev.Data, &msg) == nil {
			h.OnMessage(msg)
		}
	case "callIncoming", "callAccepted", "callRejected", "callEnded",
		"callOffer", "callAnswer", "callIceCandidate":
		if h.OnCall != nil {
			h.OnCall(ev.Event, ev.Data)
		}
	}
}
