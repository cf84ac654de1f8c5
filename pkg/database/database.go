// Package database implements the durable chat message store on
// SQLite. Messages are append-only: the rowid is the monotonically
// increasing message id and nothing in this package edits or deletes
// a persisted row.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrStoreUnavailable indicates the backend rejected an operation.
// Callers treat it as a per-operation failure, never fatal.
var ErrStoreUnavailable = errors.New("message store unavailable")

// ChatMessage is a persisted chat entry.
type ChatMessage struct {
	ID          int64
	UserID      *int64 // nil for anonymous senders
	Username    string
	Message     string
	IsAnonymous bool
	UserRole    string
	CreatedAt   int64 // unix milliseconds
}

// DB wraps the SQLite database connection
type DB struct {
	conn      *sql.DB // Read connection pool
	writeConn *sql.DB // Dedicated write connection (1 connection)
	cache     *recentCache
}

// Open opens a connection to the SQLite database at the given path
// and initializes the schema if needed
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Multiple readers, one writer (WAL mode)
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := applyPragmas(conn); err != nil {
		conn.Close()
		return nil, err
	}

	// Dedicated write connection: exactly 1 connection, no pooling.
	// All appends go through it, so rowid assignment is the global
	// message order.
	writeConn, err := sql.Open("sqlite", path)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open write connection: %w", err)
	}

	writeConn.SetMaxOpenConns(1)
	writeConn.SetMaxIdleConns(1)
	writeConn.SetConnMaxLifetime(0) // Never expire

	if err := applyPragmas(writeConn); err != nil {
		conn.Close()
		writeConn.Close()
		return nil, err
	}

	db := &DB{
		conn:      conn,
		writeConn: writeConn,
		cache:     newRecentCache(time.Minute),
	}

	if err := db.initSchema(); err != nil {
		conn.Close()
		writeConn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// applyPragmas configures a connection for concurrent access
func applyPragmas(conn *sql.DB) error {
	// WAL allows multiple readers and one writer at the same time
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Wait and retry instead of immediately failing with SQLITE_BUSY
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		return fmt.Errorf("failed to set synchronous mode: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.writeConn.Close()
	return db.conn.Close()
}

// initSchema creates the chat_messages table and indexes if they don't exist
func (db *DB) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS chat_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER,
	username TEXT NOT NULL,
	message TEXT NOT NULL,
	is_anonymous INTEGER NOT NULL DEFAULT 0,
	user_role TEXT NOT NULL DEFAULT 'user',
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_created ON chat_messages(created_at);
CREATE INDEX IF NOT EXISTS idx_chat_user ON chat_messages(user_id);
`

	_, err := db.writeConn.Exec(schema)
	return err
}

// AppendMessage persists a new chat message and returns it with the
// store-assigned id and created_at timestamp.
func (db *DB) AppendMessage(userID *int64, username, message string, isAnonymous bool, userRole string) (*ChatMessage, error) {
	var userIDVal sql.NullInt64
	if userID != nil {
		userIDVal.Valid = true
		userIDVal.Int64 = *userID
	}

	now := nowMillis()
	result, err := db.writeConn.Exec(`
		INSERT INTO chat_messages (user_id, username, message, is_anonymous, user_role, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, userIDVal, username, message, isAnonymous, userRole, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	db.cache.invalidate()

	return &ChatMessage{
		ID:          id,
		UserID:      userID,
		Username:    username,
		Message:     message,
		IsAnonymous: isAnonymous,
		UserRole:    userRole,
		CreatedAt:   now,
	}, nil
}

// RecentMessages returns the most recent messages, newest first.
// Serves a cached page when one is fresh for the requested limit.
func (db *DB) RecentMessages(limit int) ([]*ChatMessage, error) {
	if cached, ok := db.cache.get(limit); ok {
		return cached, nil
	}

	rows, err := db.conn.Query(`
		SELECT id, user_id, username, message, is_anonymous, user_role, created_at
		FROM chat_messages
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	messages, err := scanMessages(rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	db.cache.put(limit, messages)
	return messages, nil
}

// CountMessages returns the total number of persisted messages
func (db *DB) CountMessages() (int64, error) {
	var count int64
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM chat_messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return count, nil
}

// scanMessages scans rows into ChatMessage structs
func scanMessages(rows *sql.Rows) ([]*ChatMessage, error) {
	messages := make([]*ChatMessage, 0)
	for rows.Next() {
		msg := &ChatMessage{}
		var userID sql.NullInt64

		if err := rows.Scan(
			&msg.ID,
			&userID,
			&msg.Username,
			&msg.Message,
			&msg.IsAnonymous,
			&msg.UserRole,
			&msg.CreatedAt,
		); err != nil {
			return nil, err
		}

		if userID.Valid {
			msg.UserID = &userID.Int64
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// nowMillis returns current time as Unix timestamp in milliseconds
func nowMillis() int64 {
	return time.Now().UnixMilli()
}
