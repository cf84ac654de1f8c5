package server

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sendBufferSize bounds how far a slow client may fall behind before
// it is dropped from the broadcast pool.
const sendBufferSize = 64

// wsConn is the subset of *websocket.Conn the session layer needs.
// Tests substitute in-memory implementations.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session represents one live client connection on the chat channel
type Session struct {
	ID         string
	RemoteAddr string // host only, keys the per-address cap

	conn      wsConn
	send      chan []byte
	quit      chan struct{}
	closeOnce sync.Once
}

// NewSession creates a session for a connection originating from addr
func NewSession(addr string, conn wsConn) *Session {
	return &Session{
		ID:         uuid.NewString(),
		RemoteAddr: addr,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		quit:       make(chan struct{}),
	}
}

// enqueue queues a frame for delivery without blocking. It returns
// false when the session's send buffer is full, which marks the
// session for removal.
func (s *Session) enqueue(data []byte) bool {
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// writePump drains the send buffer onto the transport. One pump per
// session keeps all writes on a single goroutine, as gorilla requires.
func (s *Session) writePump() {
	for {
		select {
		case data := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.close()
				return
			}
		case <-s.quit:
			return
		}
	}
}

// close terminates the transport and stops the write pump. Safe to
// call more than once.
func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.conn.Close()
	})
}

// SessionManager tracks all live sessions and fans broadcasts out to
// them
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates an empty session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
	}
}

// Add registers a session for broadcasts
func (sm *SessionManager) Add(sess *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.sessions[sess.ID] = sess
}

// Remove unregisters a session. It reports whether the session was
// still registered, so disconnect handling stays idempotent.
func (sm *SessionManager) Remove(sessionID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if _, ok := sm.sessions[sessionID]; !ok {
		return false
	}
	delete(sm.sessions, sessionID)
	return true
}

// Broadcast delivers a frame to every live session, including the
// sender's own. Sessions whose send buffer is full are returned as
// dead for the caller to disconnect.
func (sm *SessionManager) Broadcast(data []byte) (delivered int, dead []*Session) {
	sm.mu.RLock()
	for _, sess := range sm.sessions {
		if sess.enqueue(data) {
			delivered++
		} else {
			dead = append(dead, sess)
		}
	}
	sm.mu.RUnlock()

	return delivered, dead
}

// Count returns the number of live sessions
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	return len(sm.sessions)
}

// CloseAll closes every session and empties the manager
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for _, sess := range sm.sessions {
		sess.close()
	}
	sm.sessions = make(map[string]*Session)
}
