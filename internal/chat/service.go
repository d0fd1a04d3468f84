// Package chat implements the message delivery pipeline: validate, upload,
// encrypt, persist, then push to whichever ends of the dyad are live.
package chat

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ArnavT27/Chat-Application/internal/assets"
	"github.com/ArnavT27/Chat-Application/internal/crypto"
	"github.com/ArnavT27/Chat-Application/internal/metrics"
	"github.com/ArnavT27/Chat-Application/internal/models"
	"github.com/ArnavT27/Chat-Application/internal/store"
)

// EventNewMessage is pushed to both ends of a dyad when a message lands.
const EventNewMessage = "newMessage"

// Pusher delivers an event to a user's live connection, if any. The
// implementation resolves the connection at push time, never from a snapshot
// taken before the pipeline's suspension points.
type Pusher interface {
	Push(userID, event string, data any) bool
}

// SendInput is the payload of a send: at least one of Text and Image must be
// present. Image may be a raw upload (base64 / data URI) or a durable URL.
type SendInput struct {
	Text  string `json:"text"`
	Image string `json:"image"`
}

// PeerList is the conversation-list view: all other users, the server
// computed unseen counts, last-message summaries, and the online set.
type PeerList struct {
	Users          []models.User                 `json:"users"`
	UnseenMessages map[string]int                `json:"unseenMessages"`
	LastMessages   map[string]models.LastMessage `json:"lastMessages"`
	OnlineUserIDs  []string                      `json:"onlineUserIds"`
}

// OnlineLister supplies the current online set for the peer list.
type OnlineLister interface {
	Online() []string
}

// Service owns the message lifecycle.
type Service struct {
	store  store.DataStore
	assets assets.Store
	pusher Pusher
	online OnlineLister
	logger zerolog.Logger
}

// NewService creates the delivery pipeline.
func NewService(st store.DataStore, as assets.Store, pusher Pusher, online OnlineLister, logger zerolog.Logger) *Service {
	return &Service{
		store:  st,
		assets: as,
		pusher: pusher,
		online: online,
		logger: logger.With().Str("component", "chat").Logger(),
	}
}

// Send runs the pipeline for one message and returns the persisted record as
// the synchronous acknowledgment. Validation and receiver lookup reject
// before anything is persisted; an asset failure aborts likewise. A receiver
// without a live connection is not an error — the message is durable and
// surfaces on their next history fetch.
func (s *Service) Send(ctx context.Context, senderID, receiverID string, in SendInput) (*models.Message, error) {
	if isBlank(in.Text) && in.Image == "" {
		return nil, ErrEmptyMessage
	}

	receiver, err := s.store.GetUser(ctx, receiverID)
	if err != nil {
		return nil, err
	}
	if receiver == nil {
		return nil, ErrReceiverNotFound
	}

	imageURL := in.Image
	if assets.IsRawUpload(in.Image) {
		start := time.Now()
		imageURL, err = s.assets.Upload(ctx, in.Image)
		metrics.AssetUploadLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, &AssetError{Err: err}
		}
	}

	msg := &models.Message{
		ID:         ulid.Make().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       crypto.Encrypt(in.Text, senderID, receiverID),
		Image:      crypto.Encrypt(imageURL, senderID, receiverID),
		Seen:       false,
		CreatedAt:  time.Now().UTC(),
	}

	start := time.Now()
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	metrics.StoreLatency.Observe(time.Since(start).Seconds())
	metrics.MessagesSent.WithLabelValues(sendKind(in)).Inc()

	// Resolve both ends only now, after the store and asset suspension
	// points, so a connection that appeared or changed mid-send is seen.
	// The sender's own connection gets the push too, keeping other open
	// sessions of the same account in sync.
	for _, userID := range []string{receiverID, senderID} {
		if s.pusher.Push(userID, EventNewMessage, msg) {
			metrics.MessagePushes.Inc()
		} else if userID == receiverID {
			s.logger.Debug().
				Str("receiver", receiverID).
				Str("message", msg.ID).
				Msg("receiver offline, deferred to history fetch")
		}
	}

	return msg, nil
}

// History returns the full conversation between me and peer in creation
// order, and marks everything the peer sent me seen as a side effect
// (read-on-fetch). The records keep their stored ciphertext; decryption is
// the consumer's concern.
func (s *Service) History(ctx context.Context, me, peer string) ([]models.Message, error) {
	msgs, err := s.store.Conversation(ctx, me, peer)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkConversationSeen(ctx, peer, me); err != nil {
		return nil, err
	}
	// Reflect the mark in the returned view.
	for i := range msgs {
		if msgs[i].SenderID == peer {
			msgs[i].Seen = true
		}
	}
	return msgs, nil
}

// MarkSeen marks a single message seen; used by the socket-driven path when
// a receiver gets a push for the conversation it has open.
func (s *Service) MarkSeen(ctx context.Context, messageID string) error {
	return s.store.MarkMessageSeen(ctx, messageID)
}

// ListPeers builds the conversation-list view for a user. Unseen counts are
// recomputed from the store here: the server is the canonical source and
// client counters only bridge the gap between loads.
func (s *Service) ListPeers(ctx context.Context, me string) (*PeerList, error) {
	users, err := s.store.ListUsersExcept(ctx, me)
	if err != nil {
		return nil, err
	}
	unseen, err := s.store.UnseenCounts(ctx, me)
	if err != nil {
		return nil, err
	}
	last, err := s.store.LastMessages(ctx, me)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return &PeerList{
		Users:          users,
		UnseenMessages: unseen,
		LastMessages:   last,
		OnlineUserIDs:  s.online.Online(),
	}, nil
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

func sendKind(in SendInput) string {
	switch {
	case !isBlank(in.Text) && in.Image != "":
		return "both"
	case in.Image != "":
		return "image"
	default:
		return "text"
	}
}
