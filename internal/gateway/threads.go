package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// threadList is the GET /v1/threads response body.
type threadList struct {
	// HumanControlled lists conversation ids currently owned by a human
	// agent. Everything else is bot-controlled.
	HumanControlled []string `json:"human_controlled"`
	Count           int      `json:"count"`
}

// handleThreads reports which conversations are human-controlled.
func (s *Server) handleThreads(w http.ResponseWriter, r *http.Request) {
	ids := s.threads.Snapshot()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, threadList{HumanControlled: ids, Count: len(ids)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", "error", err)
	}
}
