package server

import (
	"sync"
	"testing"
)

// recordConn captures frames written to the transport
type recordConn struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (c *recordConn) ReadMessage() (int, []byte, error) {
	select {}
}

func (c *recordConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

func (c *recordConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *recordConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func TestSessionIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sess := NewSession("127.0.0.1", nopConn{})
		if seen[sess.ID] {
			t.Fatalf("Duplicate session id %s", sess.ID)
		}
		seen[sess.ID] = true
	}
}

func TestSessionEnqueueFullBuffer(t *testing.T) {
	sess := NewSession("127.0.0.1", nopConn{})

	for i := 0; i < sendBufferSize; i++ {
		if !sess.enqueue([]byte("x")) {
			t.Fatalf("Enqueue %d should succeed with buffer space left", i+1)
		}
	}

	if sess.enqueue([]byte("x")) {
		t.Fatal("Enqueue on a full buffer should fail, not block")
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	conn := &recordConn{}
	sess := NewSession("127.0.0.1", conn)

	sess.close()
	sess.close() // must not panic on the already-closed quit channel

	if !conn.isClosed() {
		t.Fatal("Transport should be closed")
	}
}

func TestSessionManagerRemoveIsIdempotent(t *testing.T) {
	sm := NewSessionManager()
	sess := NewSession("127.0.0.1", nopConn{})
	sm.Add(sess)

	if !sm.Remove(sess.ID) {
		t.Fatal("First remove should report the session was registered")
	}
	if sm.Remove(sess.ID) {
		t.Fatal("Second remove should report the session was already gone")
	}
	if sm.Count() != 0 {
		t.Fatalf("Expected 0 sessions, got %d", sm.Count())
	}
}

func TestBroadcastReachesAllSessions(t *testing.T) {
	sm := NewSessionManager()
	a := NewSession("127.0.0.1", nopConn{})
	b := NewSession("127.0.0.2", nopConn{})
	sm.Add(a)
	sm.Add(b)

	delivered, dead := sm.Broadcast([]byte("hello"))
	if delivered != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", delivered)
	}
	if len(dead) != 0 {
		t.Fatalf("Expected no dead sessions, got %d", len(dead))
	}

	for _, sess := range []*Session{a, b} {
		select {
		case data := <-sess.send:
			if string(data) != "hello" {
				t.Fatalf("Expected frame %q, got %q", "hello", data)
			}
		default:
			t.Fatalf("Session %s did not receive the broadcast", sess.ID)
		}
	}
}

func TestBroadcastReportsSlowSessionsAsDead(t *testing.T) {
	sm := NewSessionManager()
	healthy := NewSession("127.0.0.1", nopConn{})
	slow := NewSession("127.0.0.2", nopConn{})
	sm.Add(healthy)
	sm.Add(slow)

	// Fill the slow session's buffer so the next broadcast cannot
	// be queued for it.
	for i := 0; i < sendBufferSize; i++ {
		slow.enqueue([]byte("backlog"))
	}

	delivered, dead := sm.Broadcast([]byte("hello"))
	if delivered != 1 {
		t.Fatalf("Expected 1 delivery, got %d", delivered)
	}
	if len(dead) != 1 || dead[0].ID != slow.ID {
		t.Fatalf("Expected the slow session to be reported dead, got %v", dead)
	}
}

func TestCloseAllEmptiesManager(t *testing.T) {
	sm := NewSessionManager()
	conns := []*recordConn{{}, {}, {}}
	for _, conn := range conns {
		sm.Add(NewSession("127.0.0.1", conn))
	}

	sm.CloseAll()

	if sm.Count() != 0 {
		t.Fatalf("Expected 0 sessions after CloseAll, got %d", sm.Count())
	}
	for i, conn := range conns {
		if !conn.isClosed() {
			t.Fatalf("Transport %d should be closed", i)
		}
	}
}
