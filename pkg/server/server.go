// Package server implements the SakevaNEWS realtime chat relay: it
// admits WebSocket connections under a per-address cap, replays recent
// history, and fans persisted messages out to every live session.
package server

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/steveharinghon-dev/SakevaNEWS/pkg/auth"
	"github.com/steveharinghon-dev/SakevaNEWS/pkg/database"
	"github.com/steveharinghon-dev/SakevaNEWS/pkg/protocol"
)

var (
	errorLog = log.New(os.Stderr, "ERROR: ", log.LstdFlags|log.Lmicroseconds)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags|log.Lmicroseconds)
)

// Server is the chat relay. It owns the only mutable shared state in
// the subsystem: the per-address connection counts and the
// per-connection rate windows.
type Server struct {
	store    MessageStore
	verifier TokenVerifier
	sessions *SessionManager
	registry *ConnectionRegistry
	limiter  *MessageRateLimiter
	config   ServerConfig
	metrics  *Metrics

	listener  net.Listener
	httpSrv   *http.Server
	startTime time.Time
	shutdown  chan struct{}
	wg        sync.WaitGroup
}

// NewServer creates a server instance backed by a SQLite store at dbPath
func NewServer(dbPath string, config ServerConfig) (*Server, error) {
	db, err := database.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Server{
		store:     db,
		verifier:  auth.NewVerifier(config.JWTSecret),
		sessions:  NewSessionManager(),
		registry:  NewConnectionRegistry(config.MaxConnectionsPerIP),
		limiter:   NewMessageRateLimiter(config.RateLimitMessages, config.RateLimitWindow),
		config:    config,
		startTime: time.Now(),
		shutdown:  make(chan struct{}),
	}, nil
}

// EnableDebugLogging turns on debug output
func (s *Server) EnableDebugLogging() {
	debugLog = log.New(os.Stderr, "DEBUG: ", log.LstdFlags|log.Lmicroseconds)
}

// EnableMetrics registers Prometheus metrics for this server
func (s *Server) EnableMetrics() {
	s.metrics = NewMetrics()
}

// Start begins listening for HTTP/WebSocket connections
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.HTTPPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/api/health", s.HealthHandler)
	mux.HandleFunc("/api/stats", s.StatsHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{Handler: mux}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			errorLog.Printf("HTTP server error: %v", err)
		}
	}()

	// Reclaim stale rate-limit windows periodically
	s.wg.Add(1)
	go s.purgeLoop()

	log.Printf("Chat relay listening on %s", addr)
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	close(s.shutdown)

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errorLog.Printf("HTTP shutdown error: %v", err)
		}
	}

	s.wg.Wait()

	s.sessions.CloseAll()

	return s.store.Close()
}

// Addr returns the listener address once the server has started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// broadcast encodes a message once and delivers it to every live
// session, including the sender's own. Called only after persistence
// succeeded, so every broadcast frame carries a store-assigned id.
func (s *Server) broadcast(msg protocol.ChatMessage) {
	frame, err := protocol.EncodeEvent(protocol.EventNewMessage, msg)
	if err != nil {
		errorLog.Printf("Failed to encode broadcast for message %d: %v", msg.ID, err)
		return
	}

	start := time.Now()
	delivered, dead := s.sessions.Broadcast(frame)

	// Sessions that couldn't keep up with the broadcast stream
	for _, sess := range dead {
		debugLog.Printf("Session %s: send buffer full, dropping", sess.ID)
		s.disconnectSession(sess)
	}

	if s.metrics != nil {
		s.metrics.RecordMessageBroadcast()
		s.metrics.RecordBroadcastFanout(delivered)
		s.metrics.RecordBroadcastDuration(time.Since(start).Seconds())
	}
}

// disconnectSession tears down a session: broadcast pool, address
// count, rate window, transport. Idempotent, because the read loop,
// a failed unicast, and a full send buffer can all race to it.
func (s *Server) disconnectSession(sess *Session) {
	if !s.sessions.Remove(sess.ID) {
		return
	}

	s.registry.OnDisconnect(sess.RemoteAddr)
	s.limiter.Forget(sess.ID)
	sess.close()

	if s.metrics != nil {
		s.metrics.RecordSessionDisconnected()
		s.metrics.RecordActiveSessions(s.sessions.Count())
	}
}

// purgeLoop periodically reclaims expired rate-limit windows
func (s *Server) purgeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			if purged := s.limiter.PurgeStale(); purged > 0 {
				debugLog.Printf("Purged %d stale rate-limit windows", purged)
			}
		}
	}
}
