// Package surface links the display driver to the kiosk page that actually
// draws the face. The page connects over a websocket, receives frames, and
// reports media and speech-recognition events back.
package surface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "nhooyr.io/websocket"

	"onboard/display/internal/auth"
	"onboard/display/internal/display"
	"onboard/display/internal/speech"
	"onboard/display/internal/types"
)

var (
	ErrNoDisplay    = errors.New("no display connected")
	ErrDisconnected = errors.New("display disconnected")
)

// Message is the wire format in both directions.
type Message struct {
	Type         string         `json:"type"`
	Event        string         `json:"event,omitempty"`
	PlaybackID   string         `json:"playback_id,omitempty"`
	Transcript   string         `json:"transcript,omitempty"`
	Alternatives []string       `json:"alternatives,omitempty"`
	IsFinal      *bool          `json:"is_final,omitempty"`
	Error        string         `json:"error,omitempty"`
	Lang         string         `json:"lang,omitempty"`
	Frame        *display.Frame `json:"frame,omitempty"`
}

// MediaSink receives playback events for the frames the hub presented.
type MediaSink interface {
	MediaLoaded(ctx context.Context, playbackID string)
	MediaEnded(playbackID string)
}

type Recorder interface {
	Append(typ string, payload map[string]any) types.Event
}

type Hub struct {
	secret       string
	skewSecs     int
	lang         string
	writeTimeout time.Duration
	origins      []string
	recorder     Recorder

	reg *registry

	mu    sync.Mutex
	sink  MediaSink
	last  *display.Frame
	audio chan []byte
	voice chan Message
}

type Option func(*Hub)

// WithToken requires kiosk pages to present a display token signed with secret.
func WithToken(secret string, skewSecs int) Option {
	return func(h *Hub) { h.secret, h.skewSecs = secret, skewSecs }
}

func WithLanguage(lang string) Option { return func(h *Hub) { h.lang = lang } }

func WithRecorder(r Recorder) Option { return func(h *Hub) { h.recorder = r } }

// WithOrigins sets the origin patterns accepted for the websocket handshake.
func WithOrigins(patterns ...string) Option { return func(h *Hub) { h.origins = patterns } }

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		lang:         "en-US",
		writeTimeout: 5 * time.Second,
		reg:          newRegistry(),
		audio:        make(chan []byte, 32),
		voice:        make(chan Message, 16),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// SetMediaSink routes loadeddata/ended events, usually to the display driver.
func (h *Hub) SetMediaSink(s MediaSink) {
	h.mu.Lock()
	h.sink = s
	h.mu.Unlock()
}

// Connected reports whether a kiosk page is attached.
func (h *Hub) Connected() bool { return h.reg.get() != nil }

// Present sends f to the kiosk page. The frame is kept so a page that connects
// later starts from the current picture.
func (h *Hub) Present(ctx context.Context, f display.Frame) error {
	h.mu.Lock()
	h.last = &f
	h.mu.Unlock()
	l := h.reg.get()
	if l == nil {
		return ErrNoDisplay
	}
	wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return l.sendJSON(wctx, Message{Type: "frame", Frame: &f})
}

func (h *Hub) HandleDisplayWS(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		token := r.URL.Query().Get("token")
		if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
			token = strings.TrimPrefix(authz, "Bearer ")
		}
		if token == "" {
			metricConnections.WithLabelValues("rejected").Inc()
			http.Error(w, "missing display token", http.StatusUnauthorized)
			return
		}
		if _, _, err := auth.ValidateDisplayToken(h.secret, token, r.URL.Query().Get("display_id"), time.Now(), h.skewSecs); err != nil {
			metricConnections.WithLabelValues("rejected").Inc()
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	c, err := ws.Accept(w, r, &ws.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		log.Printf("[surface] ws accept: %v", err)
		return
	}
	c.SetReadLimit(1 << 20)
	l, replaced := h.reg.replace(c)
	if replaced {
		metricConnections.WithLabelValues("replaced").Inc()
		h.record("display_replaced", nil)
	}
	metricConnections.WithLabelValues("connected").Inc()
	gaugeConnected.Set(1)
	h.record("display_connected", map[string]any{"remote": r.RemoteAddr})
	log.Printf("[surface] display connected from %s", r.RemoteAddr)

	ctx := r.Context()
	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last != nil {
		if err := l.sendJSON(ctx, Message{Type: "frame", Frame: last}); err != nil {
			log.Printf("[surface] replay frame: %v", err)
		}
	}

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			break
		}
		if typ == ws.MessageBinary {
			h.pushAudio(data)
			continue
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			metricMessages.WithLabelValues("invalid").Inc()
			h.record("display_msg_invalid", map[string]any{"error": err.Error()})
			continue
		}
		h.dispatch(ctx, msg)
	}
	_ = c.Close(ws.StatusNormalClosure, "done")
	h.reg.remove(l)
	if !h.Connected() {
		gaugeConnected.Set(0)
	}
	metricConnections.WithLabelValues("disconnected").Inc()
	h.record("display_disconnected", nil)
	log.Printf("[surface] display disconnected")
}

func (h *Hub) dispatch(ctx context.Context, msg Message) {
	metricMessages.WithLabelValues(msg.Type).Inc()
	switch msg.Type {
	case "media":
		h.mu.Lock()
		sink := h.sink
		h.mu.Unlock()
		if sink == nil {
			return
		}
		switch msg.Event {
		case "loadeddata":
			sink.MediaLoaded(ctx, msg.PlaybackID)
		case "ended":
			sink.MediaEnded(msg.PlaybackID)
		case "error":
			// no fallback: the next tick decides what to show
			log.Printf("[surface] media error playback=%s: %s", msg.PlaybackID, msg.Error)
			h.record("media_error", map[string]any{"playback_id": msg.PlaybackID, "error": msg.Error})
		}
	case "speech":
		select {
		case h.voice <- msg:
		default:
			metricDropped.WithLabelValues("speech").Inc()
		}
	case "log":
		log.Printf("[surface] page: %s", msg.Error)
	}
}

func (h *Hub) pushAudio(b []byte) {
	select {
	case h.audio <- b:
	default:
		metricDropped.WithLabelValues("audio").Inc()
	}
}

// Audio yields PCM16 frames the kiosk page streams as binary messages.
func (h *Hub) Audio() <-chan []byte { return h.audio }

// Listen runs one recognition session on the kiosk page's speech engine. It
// waits for a page to connect, asks it to start listening and forwards results
// until the page reports the end of the session.
func (h *Hub) Listen(ctx context.Context, out chan<- speech.Result) error {
	l, err := h.reg.wait(ctx)
	if err != nil {
		return err
	}
	h.drainVoice()
	wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	err = l.sendJSON(wctx, Message{Type: "speech_start", Lang: h.lang})
	cancel()
	if err != nil {
		return fmt.Errorf("start recognition: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return ErrDisconnected
		case msg := <-h.voice:
			switch msg.Event {
			case "result":
				alts := msg.Alternatives
				if len(alts) == 0 {
					alts = []string{msg.Transcript}
				}
				res := speech.Result{Alternatives: alts, Final: msg.IsFinal == nil || *msg.IsFinal}
				select {
				case out <- res:
				case <-ctx.Done():
					return ctx.Err()
				}
			case "end":
				return nil
			case "error":
				return fmt.Errorf("recognition: %s", msg.Error)
			case "unsupported":
				return speech.ErrUnavailable
			}
		}
	}
}

func (h *Hub) drainVoice() {
	for {
		select {
		case <-h.voice:
		default:
			return
		}
	}
}

func (h *Hub) record(typ string, payload map[string]any) {
	if h.recorder != nil {
		h.recorder.Append(typ, payload)
	}
}
