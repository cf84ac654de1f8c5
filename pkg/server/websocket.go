package server

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/steveharinghon-dev/SakevaNEWS/pkg/protocol"
)

// maxFrameSize bounds incoming WebSocket frames. It is well above the
// message length limit so oversized bodies reach the TOO_LONG
// rejection path instead of killing the connection.
const maxFrameSize = 64 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The widget is served from the news site's origins; origin
		// policy is enforced at the reverse proxy
		return true
	},
}

// HandleWebSocket upgrades an HTTP request to a chat session. A
// connection over the per-address cap is rejected before the upgrade,
// so no chat events are ever processed for it.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	addr := remoteHost(r)

	if !s.registry.OnConnect(addr) {
		if s.metrics != nil {
			s.metrics.RecordConnectionRejected()
		}
		debugLog.Printf("Connection from %s rejected: address at cap", r.RemoteAddr)
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.registry.OnDisconnect(addr)
		errorLog.Printf("WebSocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}
	ws.SetReadLimit(maxFrameSize)

	sess := NewSession(addr, ws)
	s.sessions.Add(sess)

	if s.metrics != nil {
		s.metrics.RecordSessionCreated()
		s.metrics.RecordActiveSessions(s.sessions.Count())
	}
	debugLog.Printf("WebSocket connection from %s (session %s)", r.RemoteAddr, sess.ID)

	go sess.writePump()
	go s.readLoop(sess)
}

// readLoop processes incoming frames for one session until the
// transport closes
func (s *Server) readLoop(sess *Session) {
	defer s.disconnectSession(sess)

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			debugLog.Printf("Session %s disconnected: %v", sess.ID, err)
			return
		}

		env, err := protocol.DecodeEnvelope(data)
		if err != nil {
			debugLog.Printf("Session %s: dropping malformed frame: %v", sess.ID, err)
			continue
		}

		s.handleEvent(sess, env)
	}
}

// remoteHost extracts the client host from a request, dropping the
// ephemeral port so all of one address's connections share a counter
func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
