package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	return db
}

func TestAppendMessageAssignsIncreasingIDs(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	var lastID int64
	for i := 0; i < 5; i++ {
		msg, err := db.AppendMessage(nil, "Аноним", fmt.Sprintf("message %d", i), true, "user")
		if err != nil {
			t.Fatalf("append failed: %v", err)
		}
		if msg.ID <= lastID {
			t.Fatalf("expected id > %d, got %d", lastID, msg.ID)
		}
		if msg.CreatedAt == 0 {
			t.Fatalf("expected created_at to be set")
		}
		lastID = msg.ID
	}
}

func TestAppendMessageAuthenticated(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	userID := int64(7)
	msg, err := db.AppendMessage(&userID, "Eve", "hello", false, "admin")
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}

	recent, err := db.RecentMessages(10)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(recent))
	}

	stored := recent[0]
	if stored.ID != msg.ID {
		t.Fatalf("expected id %d, got %d", msg.ID, stored.ID)
	}
	if stored.UserID == nil || *stored.UserID != userID {
		t.Fatalf("expected user_id %d, got %v", userID, stored.UserID)
	}
	if stored.Username != "Eve" {
		t.Fatalf("expected username Eve, got %q", stored.Username)
	}
	if stored.IsAnonymous {
		t.Fatalf("expected is_anonymous false")
	}
	if stored.UserRole != "admin" {
		t.Fatalf("expected user_role admin, got %q", stored.UserRole)
	}
}

func TestRecentMessagesNewestFirst(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	for i := 0; i < 60; i++ {
		if _, err := db.AppendMessage(nil, "Аноним", fmt.Sprintf("message %d", i), true, "user"); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	recent, err := db.RecentMessages(50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 50 {
		t.Fatalf("expected 50 messages, got %d", len(recent))
	}

	// Newest first: ids 60 down to 11
	if recent[0].ID != 60 {
		t.Fatalf("expected newest id 60, got %d", recent[0].ID)
	}
	if recent[49].ID != 11 {
		t.Fatalf("expected oldest id 11, got %d", recent[49].ID)
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].ID >= recent[i-1].ID {
			t.Fatalf("expected strictly descending ids at %d: %d then %d", i, recent[i-1].ID, recent[i].ID)
		}
	}
}

func TestRecentMessagesEmptyStore(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	recent, err := db.RecentMessages(50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 0 {
		t.Fatalf("expected no messages, got %d", len(recent))
	}
}

func TestRecentMessagesCacheInvalidatedByAppend(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	if _, err := db.AppendMessage(nil, "Аноним", "first", true, "user"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// Prime the cache
	first, err := db.RecentMessages(50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 message, got %d", len(first))
	}

	if _, err := db.AppendMessage(nil, "Аноним", "second", true, "user"); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	// A read immediately after an append must see the new message
	second, err := db.RecentMessages(50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected 2 messages after append, got %d", len(second))
	}
	if second[0].Message != "second" {
		t.Fatalf("expected newest message %q, got %q", "second", second[0].Message)
	}
}

func TestCountMessages(t *testing.T) {
	db := newTestDB(t)
	defer db.Close()

	for i := 0; i < 3; i++ {
		if _, err := db.AppendMessage(nil, "Аноним", "hello", true, "user"); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	count, err := db.CountMessages()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 messages, got %d", count)
	}
}

func TestAppendAfterCloseReportsStoreUnavailable(t *testing.T) {
	db := newTestDB(t)
	db.Close()

	_, err := db.AppendMessage(nil, "Аноним", "hello", true, "user")
	if err == nil {
		t.Fatalf("expected error after close")
	}
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}
