package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"twin-siege/internal/game"
	"twin-siege/internal/session"

	"github.com/go-chi/chi/v5"
)

// matchStatus is the /api/match response
type matchStatus struct {
	Phase           session.Phase  `json:"phase"`
	Joined          int            `json:"joined"`
	MaxParticipants int            `json:"maxParticipants"`
	Teams           [2]teamSummary `json:"teams"`
	EventLog        map[string]any `json:"eventLog,omitempty"`
}

type teamSummary struct {
	Score    int          `json:"score"`
	Outcome  game.Outcome `json:"outcome"`
	Roster   []string     `json:"roster"`
	Outgoing int          `json:"outgoing"`
	Incoming int          `json:"incoming"`
	Tick     uint64       `json:"tick"`
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok", "phase": h.match.Phase().String()})
}

func (h *routerHandlers) handleGetMatch(w http.ResponseWriter, r *http.Request) {
	status := matchStatus{
		Phase:           h.match.Phase(),
		Joined:          h.match.Joined(),
		MaxParticipants: h.match.MaxParticipants(),
	}
	for i := range status.Teams {
		snap := h.match.Snapshot(i)
		if snap == nil {
			status.Teams[i].Roster = []string{}
			continue
		}
		roster := make([]string, len(snap.Participants))
		for j, p := range snap.Participants {
			roster[j] = p.Identity
		}
		status.Teams[i] = teamSummary{
			Score:    snap.Score,
			Outcome:  snap.Outcome,
			Roster:   roster,
			Outgoing: len(snap.Outgoing),
			Incoming: len(snap.Incoming),
			Tick:     snap.Tick,
		}
	}
	if h.events != nil {
		status.EventLog = h.events.Stats()
	}
	writeJSON(w, status)
}

func (h *routerHandlers) handleGetTeam(w http.ResponseWriter, r *http.Request) {
	team, err := strconv.Atoi(chi.URLParam(r, "team"))
	if err != nil || team < 0 || team > 1 {
		writeError(w, "Team must be 0 or 1", http.StatusNotFound)
		return
	}
	snap := h.match.Snapshot(team)
	if snap == nil {
		writeError(w, "Team not ready", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
