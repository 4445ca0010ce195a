package surface

import (
	"context"
	"encoding/json"
	"sync"

	ws "nhooyr.io/websocket"
)

// link is one kiosk page connection. done is closed when it goes away.
type link struct {
	conn *ws.Conn
	done chan struct{}
}

// registry keeps at most one kiosk connection.
type registry struct {
	mu    sync.Mutex
	cur   *link
	ready chan struct{} // closed while a link is present
}

func newRegistry() *registry { return &registry{ready: make(chan struct{})} }

// replace installs c and closes the previous connection if present.
func (r *registry) replace(c *ws.Conn) (l *link, prevClosed bool) {
	r.mu.Lock()
	old := r.cur
	if old != nil {
		close(old.done)
		prevClosed = true
	} else {
		close(r.ready)
	}
	l = &link{conn: c, done: make(chan struct{})}
	r.cur = l
	r.mu.Unlock()
	if old != nil {
		// the close handshake waits on the peer
		go old.conn.Close(ws.StatusNormalClosure, "replaced")
	}
	return l, prevClosed
}

// remove drops l if it is still the current link.
func (r *registry) remove(l *link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur != l {
		return
	}
	r.cur = nil
	close(l.done)
	r.ready = make(chan struct{})
}

func (r *registry) get() *link {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cur
}

// wait blocks until a link is present.
func (r *registry) wait(ctx context.Context) (*link, error) {
	for {
		r.mu.Lock()
		cur, ready := r.cur, r.ready
		r.mu.Unlock()
		if cur != nil {
			return cur, nil
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *link) sendJSON(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return l.conn.Write(ctx, ws.MessageText, b)
}
