package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ArnavT27/Chat-Application/internal/models"
)

// SQLiteStore handles SQLite database operations. It is the default backend
// for development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
// If dbPath is empty, defaults to "./data/chat.db"
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		dbPath = "./data/chat.db"
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}

	// Initialize schema
	if err := store.initSchema(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

// initSchema creates tables if they don't exist.
func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT DEFAULT '',
		profile_pic TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		cipher_text TEXT DEFAULT '',
		cipher_image TEXT DEFAULT '',
		seen INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_dyad ON messages(sender_id, receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_unseen ON messages(receiver_id, seen);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() {
	s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertUser creates or refreshes a user record mirrored from the auth layer.
func (s *SQLiteStore) UpsertUser(ctx context.Context, id, fullName, profilePic string) (*models.User, error) {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, full_name, profile_pic, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			full_name = CASE WHEN excluded.full_name != '' THEN excluded.full_name ELSE users.full_name END,
			profile_pic = CASE WHEN excluded.profile_pic != '' THEN excluded.profile_pic ELSE users.profile_pic END,
			updated_at = excluded.updated_at
	`, id, fullName, profilePic, now, now)
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by ID. Returns nil when the user is unknown.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, profile_pic, created_at, updated_at
		FROM users WHERE id = ?
	`, id).Scan(
		&user.ID,
		&user.FullName,
		&user.ProfilePic,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListUsersExcept retrieves every user other than the given one.
func (s *SQLiteStore) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_name, profile_pic, created_at, updated_at
		FROM users WHERE id != ?
		ORDER BY full_name, id
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(
			&user.ID,
			&user.FullName,
			&user.ProfilePic,
			&user.CreatedAt,
			&user.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// CreateMessage persists an immutable message record.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, cipher_text, cipher_image, seen, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, boolToInt(msg.Seen), msg.CreatedAt)
	return err
}

// Conversation retrieves the full message history between two users in
// creation order.
func (s *SQLiteStore) Conversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, cipher_text, cipher_image, seen, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at, id
	`, userA, userB, userB, userA)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// MarkConversationSeen marks every message from senderID to receiverID seen.
// Seen only ever moves false to true, so re-marking is harmless.
func (s *SQLiteStore) MarkConversationSeen(ctx context.Context, senderID, receiverID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET seen = 1
		WHERE sender_id = ? AND receiver_id = ? AND seen = 0
	`, senderID, receiverID)
	return err
}

// MarkMessageSeen marks a single message seen.
func (s *SQLiteStore) MarkMessageSeen(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET seen = 1 WHERE id = ?
	`, messageID)
	return err
}

// UnseenCounts returns, per sender, how many of their messages to receiverID
// are still unseen. This is the canonical unseen source; clients mirror it.
func (s *SQLiteStore) UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender_id, COUNT(*) FROM messages
		WHERE receiver_id = ? AND seen = 0
		GROUP BY sender_id
	`, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sender string
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, err
		}
		counts[sender] = n
	}
	return counts, rows.Err()
}

// LastMessages returns the most recent message per peer of userID.
func (s *SQLiteStore) LastMessages(ctx context.Context, userID string) (map[string]models.LastMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, cipher_text, cipher_image, seen, created_at
		FROM messages
		WHERE sender_id = ? OR receiver_id = ?
		ORDER BY created_at, id
	`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}

	// Rows are in creation order, so the last write per peer wins.
	last := make(map[string]models.LastMessage)
	for _, m := range msgs {
		peer := m.SenderID
		if peer == userID {
			peer = m.ReceiverID
		}
		last[peer] = summarize(m)
	}
	return last, nil
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var seen int
		err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.ReceiverID,
			&m.Text,
			&m.Image,
			&seen,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		m.Seen = seen == 1
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// summarize builds the sidebar summary for a message. Image-only messages
// get a placeholder so the sidebar never renders an encrypted URL.
func summarize(m models.Message) models.LastMessage {
	text := m.Text
	if text == "" && m.Image != "" {
		text = "\U0001F4F7 Image"
	}
	return models.LastMessage{
		Text:     text,
		Time:     m.CreatedAt,
		SenderID: m.SenderID,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
