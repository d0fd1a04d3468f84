package store

import (
	"context"

	"github.com/ArnavT27/Chat-Application/internal/models"
)

// DataStore is the durable store behind the delivery pipeline. Both
// SQLiteStore and PostgresStore implement it; the pipeline treats it as an
// opaque collaborator.
type DataStore interface {
	// Connection management
	Close()
	Ping(ctx context.Context) error

	// User operations. Users are mirrored from the external auth layer.
	UpsertUser(ctx context.Context, id, fullName, profilePic string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	ListUsersExcept(ctx context.Context, id string) ([]models.User, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	Conversation(ctx context.Context, userA, userB string) ([]models.Message, error)
	MarkConversationSeen(ctx context.Context, senderID, receiverID string) error
	MarkMessageSeen(ctx context.Context, messageID string) error
	UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error)
	LastMessages(ctx context.Context, userID string) (map[string]models.LastMessage, error)
}
