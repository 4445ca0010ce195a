package api

import (
	"encoding/json"
	"net/http"
	"time"

	"onboard/display/internal/auth"
	"onboard/display/internal/config"
	"onboard/display/internal/health"
	"onboard/display/internal/reconcile"
	"onboard/display/internal/types"
)

type StateSource interface {
	Snapshot() types.LocalState
	LastTick() time.Time
}

type EventLister interface {
	List() []types.Event
}

type HealthSource interface {
	Latest() health.HealthStatus
}

type Handlers struct {
	cfg     config.Config
	state   StateSource
	journal EventLister
	health  HealthSource
	display http.Handler
	events  http.Handler
}

// NewHandlers wires the local API. display serves the kiosk websocket and
// events the SSE frame stream; either may be nil.
func NewHandlers(cfg config.Config, st StateSource, j EventLister, hs HealthSource, display, events http.Handler) *Handlers {
	return &Handlers{cfg: cfg, state: st, journal: j, health: hs, display: display, events: events}
}

func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.health == nil {
		w.Write([]byte("ok"))
		return
	}
	st := h.health.Latest()
	if !st.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	w.Write([]byte(st.String()))
}

func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request) {
	local := h.state.Snapshot()
	target := reconcile.Precedence(local)
	resp := map[string]any{
		"local":  local,
		"target": target,
	}
	if t := h.state.LastTick(); !t.IsZero() {
		resp["last_tick"] = t.UTC()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) HandleJournal(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"events": h.journal.List()})
}

type tokenRequest struct {
	DisplayID string `json:"display_id"`
	TTLSecs   int    `json:"ttl_secs"`
}

// HandleMintDisplayToken issues a token a kiosk page uses to open /ws/display.
func (h *Handlers) HandleMintDisplayToken(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Display.TokenSecret == "" {
		http.Error(w, "display tokens disabled", http.StatusNotFound)
		return
	}
	var req tokenRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
	}
	if req.DisplayID == "" {
		req.DisplayID = "face"
	}
	ttl := time.Duration(req.TTLSecs) * time.Second
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	exp := time.Now().Add(ttl).Unix()
	token := auth.GenerateDisplayToken(h.cfg.Display.TokenSecret, req.DisplayID, exp)
	writeJSON(w, http.StatusOK, map[string]any{
		"display_id": req.DisplayID,
		"token":      token,
		"exp":        exp,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
