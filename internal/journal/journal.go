package journal

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"onboard/display/internal/types"
)

const maxEvents = 200

// Journal is a bounded, in-memory record of what the display did.
type Journal struct {
	mu     sync.RWMutex
	events []types.Event
	max    int
}

func New() *Journal { return &Journal{max: maxEvents} }

func (j *Journal) Append(typ string, payload map[string]any) types.Event {
	evt := types.Event{ID: uuid.New().String(), Type: typ, Ts: time.Now().UTC(), Payload: payload}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, evt)
	// Cap total events to avoid unbounded growth
	if l := len(j.events); l > j.max {
		// Keep space for a single truncation warning so the total stays at max
		keep := j.max - 1
		dropped := l - keep
		j.events = append([]types.Event(nil), j.events[l-keep:]...)
		warn := types.Event{
			ID:      uuid.New().String(),
			Type:    "events_truncated",
			Ts:      time.Now().UTC(),
			Payload: map[string]any{"dropped": dropped, "kept": keep},
		}
		j.events = append(j.events, warn)
	}
	return evt
}

func (j *Journal) List() []types.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]types.Event, len(j.events))
	copy(out, j.events)
	return out
}

// Len is the number of events currently held.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.events)
}
