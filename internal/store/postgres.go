package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ArnavT27/Chat-Application/internal/models"
)

// PostgresStore handles PostgreSQL database operations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store with a connection pool.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, err
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		profile_pic TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender_id TEXT NOT NULL,
		receiver_id TEXT NOT NULL,
		cipher_text TEXT NOT NULL DEFAULT '',
		cipher_image TEXT NOT NULL DEFAULT '',
		seen BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);

	CREATE INDEX IF NOT EXISTS idx_messages_dyad ON messages(sender_id, receiver_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_messages_unseen ON messages(receiver_id, seen);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Close closes the database connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// UpsertUser creates or refreshes a user record mirrored from the auth layer.
func (s *PostgresStore) UpsertUser(ctx context.Context, id, fullName, profilePic string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, full_name, profile_pic)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			full_name = CASE WHEN EXCLUDED.full_name != '' THEN EXCLUDED.full_name ELSE users.full_name END,
			profile_pic = CASE WHEN EXCLUDED.profile_pic != '' THEN EXCLUDED.profile_pic ELSE users.profile_pic END,
			updated_at = now()
		RETURNING id, full_name, profile_pic, created_at, updated_at
	`, id, fullName, profilePic).Scan(
		&user.ID,
		&user.FullName,
		&user.ProfilePic,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser retrieves a user by ID. Returns nil when the user is unknown.
func (s *PostgresStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	user := &models.User{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, full_name, profile_pic, created_at, updated_at
		FROM users WHERE id = $1
	`, id).Scan(
		&user.ID,
		&user.FullName,
		&user.ProfilePic,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// ListUsersExcept retrieves every user other than the given one.
func (s *PostgresStore) ListUsersExcept(ctx context.Context, id string) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, full_name, profile_pic, created_at, updated_at
		FROM users WHERE id != $1
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
func (s *PostgresStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, cipher_text, cipher_image, seen, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.Image, msg.Seen, msg.CreatedAt)
	return err
}

// Conversation retrieves the full message history between two users in
// creation order.
func (s *PostgresStore) Conversation(ctx context.Context, userA, userB string) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, cipher_text, cipher_image, seen, created_at
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at, id
	`, userA, userB)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanPgxMessages(rows)
}

// MarkConversationSeen marks every message from senderID to receiverID seen.
func (s *PostgresStore) MarkConversationSeen(ctx context.Context, senderID, receiverID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE messages SET seen = TRUE
		WHERE sender_id = $1 AND receiver_id = $2 AND seen = FALSE
	`, senderID, receiverID)
	return err
}

// MarkMessageSeen marks a single message seen.
func (s *PostgresStore) MarkMessageSeen(ctx context.Context, messageID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE messages SET seen = TRUE WHERE id = $1
	`, messageID)
	return err
}

// UnseenCounts returns, per sender, how many of their messages to receiverID
// are still unseen.
func (s *PostgresStore) UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sender_id, COUNT(*) FROM messages
		WHERE receiver_id = $1 AND seen = FALSE
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
func (s *PostgresStore) LastMessages(ctx context.Context, userID string) (map[string]models.LastMessage, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (peer) * FROM (
			SELECT id, sender_id, receiver_id, cipher_text, cipher_image, seen, created_at,
				CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS peer
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
		) m
		ORDER BY peer, created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	last := make(map[string]models.LastMessage)
	for rows.Next() {
		var m models.Message
		var peer string
		err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.ReceiverID,
			&m.Text,
			&m.Image,
			&m.Seen,
			&m.CreatedAt,
			&peer,
		)
		if err != nil {
			return nil, err
		}
		last[peer] = summarize(m)
	}
	return last, rows.Err()
}

func scanPgxMessages(rows pgx.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.ReceiverID,
			&m.Text,
			&m.Image,
			&m.Seen,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
