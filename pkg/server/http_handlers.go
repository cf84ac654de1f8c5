package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthHandler reports service liveness
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "OK",
		"message": "SakevaNEWS chat relay is running",
	})
}

// StatsHandler serves operator-facing relay statistics as JSON
func (s *Server) StatsHandler(w http.ResponseWriter, r *http.Request) {
	totalMessages, err := s.store.CountMessages()
	if err != nil {
		errorLog.Printf("Error counting messages for stats endpoint: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	stats := struct {
		OnlineConnections int   `json:"onlineConnections"`
		ActiveAddresses   int   `json:"activeAddresses"`
		TotalMessages     int64 `json:"totalMessages"`
		UptimeSeconds     int64 `json:"uptimeSeconds"`
	}{
		OnlineConnections: s.sessions.Count(),
		ActiveAddresses:   s.registry.ActiveAddresses(),
		TotalMessages:     totalMessages,
		UptimeSeconds:     int64(time.Since(s.startTime).Seconds()),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(stats); err != nil {
		errorLog.Printf("Error encoding stats response: %v", err)
	}
}
