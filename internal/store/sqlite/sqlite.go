package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/babble-server/internal/store"
)

// Schema is applied by New. Keys are stored as the int64 bit pattern of the
// uint64 client key.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	client_key INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	author_key INTEGER NOT NULL,
	author     TEXT NOT NULL,
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_key, id DESC);

CREATE TABLE IF NOT EXISTS follows (
	follower_key INTEGER NOT NULL,
	followee_key INTEGER NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (follower_key, followee_key)
);

CREATE INDEX IF NOT EXISTS idx_follows_followee ON follows(followee_key);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath (":memory:" for a process-local store)
// and applies Schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// SaveUser records a user, keeping the original creation time if it exists.
func (s *SQLiteStore) SaveUser(ctx context.Context, key uint64, name string) (*store.User, error) {
	query := `
		INSERT INTO users (client_key, name)
		VALUES (?, ?)
		ON CONFLICT(client_key) DO UPDATE SET name = excluded.name
	`
	if _, err := s.db.ExecContext(ctx, query, int64(key), name); err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return s.GetUser(ctx, key)
}

// GetUser retrieves a user by key.
func (s *SQLiteStore) GetUser(ctx context.Context, key uint64) (*store.User, error) {
	query := `
		SELECT client_key, name, created_at
		FROM users
		WHERE client_key = ?
	`
	var (
		user   store.User
		rawKey int64
	)
	err := s.db.QueryRowContext(ctx, query, int64(key)).Scan(&rawKey, &user.Name, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get user %d: %w", key, store.ErrUserNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.Key = uint64(rawKey)

	return &user, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and sets its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO messages (author_key, author, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, int64(msg.AuthorKey), msg.Author, msg.Body, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListTimeline returns the newest limit messages of the given authors, oldest first.
func (s *SQLiteStore) ListTimeline(ctx context.Context, authors []uint64, limit int) ([]*store.Message, error) {
	if limit <= 0 || len(authors) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(authors)), ",")
	query := `
		SELECT id, author_key, author, body, created_at
		FROM messages
		WHERE author_key IN (` + placeholders + `)
		ORDER BY id DESC
		LIMIT ?
	`
	args := make([]interface{}, 0, len(authors)+1)
	for _, a := range authors {
		args = append(args, int64(a))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query timeline: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var (
			msg       store.Message
			authorKey int64
		)
		if err := rows.Scan(&msg.ID, &authorKey, &msg.Author, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.AuthorKey = uint64(authorKey)
		messages = append(messages, &msg)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}

// ==== FollowStore implementation ====

// Follow records a follower edge.
func (s *SQLiteStore) Follow(ctx context.Context, follower, followee uint64) (bool, error) {
	query := `
		INSERT OR IGNORE INTO follows (follower_key, followee_key)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, int64(follower), int64(followee))
	if err != nil {
		return false, fmt.Errorf("insert follow: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rows == 1, nil
}

// ListFollowing returns the keys followed by key.
func (s *SQLiteStore) ListFollowing(ctx context.Context, key uint64) ([]uint64, error) {
	query := `
		SELECT followee_key FROM follows
		WHERE follower_key = ?
		ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, int64(key))
	if err != nil {
		return nil, fmt.Errorf("query following: %w", err)
	}
	defer rows.Close()

	var keys []uint64
	for rows.Next() {
		var k int64
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan followee: %w", err)
		}
		keys = append(keys, uint64(k))
	}

	return keys, rows.Err()
}

// CountFollowers returns how many users follow key.
func (s *SQLiteStore) CountFollowers(ctx context.Context, key uint64) (int, error) {
	query := `SELECT COUNT(*) FROM follows WHERE followee_key = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, query, int64(key)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count followers: %w", err)
	}
	return n, nil
}
