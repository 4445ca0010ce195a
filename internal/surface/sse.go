package surface

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"

	"onboard/display/internal/display"
)

const StreamDisplay = "display"

// Broadcaster mirrors frames to read-only observers over server-sent events.
type Broadcaster struct {
	srv *sse.Server
}

func NewBroadcaster() *Broadcaster {
	srv := sse.New()
	srv.AutoReplay = false
	srv.CreateStream(StreamDisplay)
	return &Broadcaster{srv: srv}
}

func (b *Broadcaster) Present(_ context.Context, f display.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	b.srv.Publish(StreamDisplay, &sse.Event{Event: []byte("frame"), Data: data})
	return nil
}

// ServeHTTP serves /events?stream=display.
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.srv.ServeHTTP(w, r)
}

func (b *Broadcaster) Close() { b.srv.Close() }
