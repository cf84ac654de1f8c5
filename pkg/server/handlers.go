package server

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/steveharinghon-dev/SakevaNEWS/pkg/database"
	"github.com/steveharinghon-dev/SakevaNEWS/pkg/protocol"
)

// anonymousName is the display name stored for senders without a
// valid token. The web client renders it as-is.
const anonymousName = "Аноним"

// handleEvent dispatches a decoded envelope to the appropriate handler
func (s *Server) handleEvent(sess *Session, env *protocol.Envelope) {
	switch env.Event {
	case protocol.EventGetHistory:
		s.handleGetHistory(sess)
	case protocol.EventSendMessage:
		s.handleSendMessage(sess, env)
	default:
		// Tolerant reader: unknown events are not an error
		debugLog.Printf("Session %s: ignoring unknown event %q", sess.ID, env.Event)
	}
}

// handleGetHistory replies with the most recent messages in ascending
// id order. It is a point-in-time snapshot, not a subscription.
func (s *Server) handleGetHistory(sess *Session) {
	recent, err := s.store.RecentMessages(s.config.HistoryLimit)
	if err != nil {
		errorLog.Printf("Session %s: history read failed: %v", sess.ID, err)
		s.sendError(sess, protocol.ReasonStoreError)
		return
	}

	// The store returns newest first; replay reads oldest first.
	history := make([]protocol.ChatMessage, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		history = append(history, toWireMessage(recent[i]))
	}

	s.sendEvent(sess, protocol.EventHistory, history)
}

// handleSendMessage runs the send pipeline: rate check, shape
// validation, sanitization, optional authentication, persistence,
// broadcast. Order matters: a rate-limited send does no further work,
// and nothing is broadcast before persistence succeeds.
func (s *Server) handleSendMessage(sess *Session, env *protocol.Envelope) {
	if !s.limiter.Allow(sess.ID) {
		s.rejectSend(sess, protocol.ReasonRateLimited)
		return
	}

	payload, err := env.DecodeSendMessage()
	if err != nil {
		s.rejectSend(sess, protocol.ReasonInvalidFormat)
		return
	}

	raw, ok := payload.Text()
	if !ok {
		s.rejectSend(sess, protocol.ReasonInvalidFormat)
		return
	}

	body := sanitizeText(raw)
	if body == "" {
		s.rejectSend(sess, protocol.ReasonEmptyMessage)
		return
	}
	if utf8.RuneCountInString(body) > s.config.MaxMessageLength {
		s.rejectSend(sess, protocol.ReasonTooLong)
		return
	}

	// Optional authentication. A bad token never rejects the send;
	// the message simply stays anonymous.
	var userID *int64
	username := anonymousName
	role := protocol.RoleUser
	isAnonymous := true

	if payload.Token != "" {
		identity, err := s.verifier.Verify(payload.Token)
		if err != nil {
			debugLog.Printf("Session %s: token rejected, sender stays anonymous: %v", sess.ID, err)
		} else {
			id := identity.ID
			userID = &id
			username = sanitizeText(identity.Nick)
			role = identity.Role
			if !protocol.ValidRole(role) {
				// Don't trust the token payload for display roles
				role = protocol.RoleUser
			}
			isAnonymous = false
		}
	}

	stored, err := s.store.AppendMessage(userID, username, body, isAnonymous, role)
	if err != nil {
		errorLog.Printf("Session %s: message append failed: %v", sess.ID, err)
		s.rejectSend(sess, protocol.ReasonStoreError)
		return
	}

	s.broadcast(toWireMessage(stored))
}

// rejectSend reports a send rejection to the originating session only
func (s *Server) rejectSend(sess *Session, reason string) {
	if s.metrics != nil {
		s.metrics.RecordSendRejected(reason)
	}
	s.sendError(sess, reason)
}

// sendError unicasts an error event to one session
func (s *Server) sendError(sess *Session, reason string) {
	s.sendEvent(sess, protocol.EventError, protocol.ErrorPayload{Reason: reason})
}

// sendEvent unicasts an event to one session
func (s *Server) sendEvent(sess *Session, event string, data interface{}) {
	frame, err := protocol.EncodeEvent(event, data)
	if err != nil {
		errorLog.Printf("Session %s: failed to encode %s event: %v", sess.ID, event, err)
		return
	}
	if !sess.enqueue(frame) {
		s.disconnectSession(sess)
	}
}

// sanitizeText trims surrounding whitespace and escapes
// markup-significant characters so stored text can never be
// interpreted as markup by a rendering client.
func sanitizeText(text string) string {
	return html.EscapeString(strings.TrimSpace(text))
}

// toWireMessage converts a stored message to its wire form
func toWireMessage(msg *database.ChatMessage) protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:          msg.ID,
		UserID:      msg.UserID,
		Username:    msg.Username,
		Message:     msg.Message,
		IsAnonymous: msg.IsAnonymous,
		UserRole:    msg.UserRole,
		CreatedAt:   msg.CreatedAt,
	}
}
