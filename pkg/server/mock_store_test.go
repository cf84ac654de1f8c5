package server

import (
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/steveharinghon-dev/SakevaNEWS/pkg/auth"
	"github.com/steveharinghon-dev/SakevaNEWS/pkg/database"
)

// initTestLoggers discards log output to keep test runs clean
func initTestLoggers(t *testing.T) {
	t.Helper()
	errorLog = log.New(io.Discard, "ERROR: ", log.LstdFlags)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)
}

// fakeStore is an in-memory MessageStore
type fakeStore struct {
	mu         sync.Mutex
	messages   []*database.ChatMessage
	nextID     int64
	failAppend bool
	failRecent bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{}
}

func (f *fakeStore) AppendMessage(userID *int64, username, message string, isAnonymous bool, userRole string) (*database.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failAppend {
		return nil, database.ErrStoreUnavailable
	}

	f.nextID++
	msg := &database.ChatMessage{
		ID:          f.nextID,
		UserID:      userID,
		Username:    username,
		Message:     message,
		IsAnonymous: isAnonymous,
		UserRole:    userRole,
		CreatedAt:   time.Now().UnixMilli(),
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeStore) RecentMessages(limit int) ([]*database.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failRecent {
		return nil, database.ErrStoreUnavailable
	}

	recent := make([]*database.ChatMessage, 0, limit)
	for i := len(f.messages) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, f.messages[i])
	}
	return recent, nil
}

func (f *fakeStore) CountMessages() (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return int64(len(f.messages)), nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.messages)
}

// fakeVerifier maps known tokens to identities; everything else fails
type fakeVerifier struct {
	identities map[string]*auth.Identity
}

func newFakeVerifier() *fakeVerifier {
	return &fakeVerifier{identities: make(map[string]*auth.Identity)}
}

func (f *fakeVerifier) add(token string, identity *auth.Identity) {
	f.identities[token] = identity
}

func (f *fakeVerifier) Verify(token string) (*auth.Identity, error) {
	identity, ok := f.identities[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return identity, nil
}

// nopConn satisfies wsConn for sessions whose transport is never used
type nopConn struct{}

func (nopConn) ReadMessage() (int, []byte, error) { return 0, nil, io.EOF }
func (nopConn) WriteMessage(int, []byte) error    { return nil }
func (nopConn) Close() error                      { return nil }

// testServer creates a server wired to in-memory fakes
func testServer(t *testing.T) (*Server, *fakeStore, *fakeVerifier) {
	t.Helper()
	initTestLoggers(t)

	store := newFakeStore()
	verifier := newFakeVerifier()

	cfg := DefaultConfig()
	srv := &Server{
		store:     store,
		verifier:  verifier,
		sessions:  NewSessionManager(),
		registry:  NewConnectionRegistry(cfg.MaxConnectionsPerIP),
		limiter:   NewMessageRateLimiter(cfg.RateLimitMessages, cfg.RateLimitWindow),
		config:    cfg,
		startTime: time.Now(),
		shutdown:  make(chan struct{}),
		metrics:   nil, // Skip metrics in tests to avoid registration conflicts
	}

	return srv, store, verifier
}

// testSession creates a registered session whose frames are read
// straight from its send buffer (no write pump)
func testSession(srv *Server) *Session {
	sess := NewSession("127.0.0.1", nopConn{})
	srv.sessions.Add(sess)
	return sess
}

// nextFrame pops one queued frame from a session's send buffer
func nextFrame(t *testing.T, sess *Session) []byte {
	t.Helper()
	select {
	case data := <-sess.send:
		return data
	default:
		t.Fatalf("session %s: expected a queued frame, got none", sess.ID)
		return nil
	}
}

// assertNoFrame asserts the session's send buffer is empty
func assertNoFrame(t *testing.T, sess *Session) {
	t.Helper()
	select {
	case data := <-sess.send:
		t.Fatalf("session %s: expected no frame, got %s", sess.ID, data)
	default:
	}
}
