package server

import (
	"github.com/steveharinghon-dev/SakevaNEWS/pkg/auth"
	"github.com/steveharinghon-dev/SakevaNEWS/pkg/database"
)

// MessageStore defines the persistence interface consumed by the relay.
// This abstraction allows for easier testing and potential future
// storage backends.
type MessageStore interface {
	// AppendMessage persists a message and returns it with the
	// store-assigned id and created_at.
	AppendMessage(userID *int64, username, message string, isAnonymous bool, userRole string) (*database.ChatMessage, error)

	// RecentMessages returns the most recent messages, newest first.
	RecentMessages(limit int) ([]*database.ChatMessage, error)

	// CountMessages returns the total number of persisted messages.
	CountMessages() (int64, error)

	// Close the store
	Close() error
}

// TokenVerifier validates a bearer credential and returns the identity
// it carries. Any error means the sender stays anonymous.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}
