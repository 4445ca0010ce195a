// Package backend is an in-memory stand-in for the robot's onboard API. It
// keeps the same merge-on-POST semantics as the real server so the client can
// be run and tested without the robot.
package backend

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"onboard/display/internal/types"
)

type Server struct {
	mu     sync.RWMutex
	state  types.LocalState
	speech []string
	logs   []types.LogEntry
}

func New() *Server { return &Server{} }

// Handler serves /api/onboard, /api/onboard/speech and /api/onboard/log.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/onboard", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, s.State())
		case http.MethodPost:
			s.handleUpdate(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/onboard/speech", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body types.SpeechReport
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		log.Printf("speech: %s", body.Result)
		s.mu.Lock()
		s.speech = append(s.speech, body.Result)
		s.mu.Unlock()
		writeJSON(w, map[string]any{})
	})
	mux.HandleFunc("/api/onboard/log", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var body types.LogEntry
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if body.Info != "" {
			log.Printf("Onboard %s", body.Info)
		}
		if body.Warn != "" {
			log.Printf("Onboard warn: %s", body.Warn)
		}
		if body.Error != "" {
			log.Printf("Onboard error: %s", body.Error)
		}
		s.mu.Lock()
		s.logs = append(s.logs, body)
		s.mu.Unlock()
		writeJSON(w, map[string]any{})
	})
	return mux
}

// handleUpdate overwrites only the keys present in the body; an explicit
// null clears the field.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	for key, msg := range raw {
		var field **string
		switch strings.ToLower(key) {
		case "image":
			field = &s.state.Image
		case "text":
			field = &s.state.Text
		case "video":
			field = &s.state.Video
		case "url":
			field = &s.state.URL
		default:
			continue
		}
		var v *string
		if err := json.Unmarshal(msg, &v); err != nil {
			s.mu.Unlock()
			http.Error(w, "field "+key+" must be a string or null", http.StatusBadRequest)
			return
		}
		*field = v
	}
	out := s.state.Clone()
	s.mu.Unlock()
	writeJSON(w, out)
}

// Set replaces the desired state wholesale.
func (s *Server) Set(st types.LocalState) {
	s.mu.Lock()
	s.state = st.Clone()
	s.mu.Unlock()
}

func (s *Server) State() types.LocalState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

func (s *Server) Speech() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.speech))
	copy(out, s.speech)
	return out
}

func (s *Server) Logs() []types.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.LogEntry, len(s.logs))
	copy(out, s.logs)
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
