// Package display owns what is on the onboard screen. The screen shows exactly
// one of an image, a line of text, a video or the idle face; every transition
// replaces the whole Frame so nothing else can stay visible.
package display

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type Kind string

const (
	KindNone  Kind = "none"
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindVideo Kind = "video"
	KindIdle  Kind = "idle"
)

const DefaultIdleImage = "images/normal.png"

// Target is the render state: which modality is active and with what value.
type Target struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value,omitempty"`
}

// Frame is the complete instruction sent to a Surface.
type Frame struct {
	Seq         uint64 `json:"seq"`
	Kind        Kind   `json:"kind"`
	Source      string `json:"source,omitempty"`
	Text        string `json:"text,omitempty"`
	PlaybackID  string `json:"playback_id,omitempty"`
	CrossOrigin string `json:"cross_origin,omitempty"`
	// Visible is false for a video until its first frame has loaded.
	Visible bool `json:"visible"`
}

// Surface renders frames on a physical or virtual screen.
type Surface interface {
	Present(ctx context.Context, f Frame) error
}

type playback struct {
	id     string
	loaded bool
	ended  bool
}

type Driver struct {
	surface   Surface
	idleImage string
	observer  func(Frame)

	mu      sync.Mutex
	seq     uint64
	current Target
	frame   Frame
	video   playback
	onEnded func(playbackID string)
}

type Option func(*Driver)

func WithIdleImage(src string) Option {
	return func(d *Driver) {
		if src != "" {
			d.idleImage = src
		}
	}
}

// WithObserver is called with every frame after it is presented.
func WithObserver(fn func(Frame)) Option {
	return func(d *Driver) { d.observer = fn }
}

func NewDriver(s Surface, opts ...Option) *Driver {
	d := &Driver{
		surface:   s,
		idleImage: DefaultIdleImage,
		current:   Target{Kind: KindNone},
		frame:     Frame{Kind: KindNone},
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// OnVideoEnded registers the callback fired once per finished playback.
func (d *Driver) OnVideoEnded(fn func(playbackID string)) {
	d.mu.Lock()
	d.onEnded = fn
	d.mu.Unlock()
}

func (d *Driver) ShowImage(ctx context.Context, id string) {
	d.transition(ctx, Target{Kind: KindImage, Value: id}, Frame{Kind: KindImage, Source: id, Visible: true})
}

func (d *Driver) ShowText(ctx context.Context, text string) {
	d.transition(ctx, Target{Kind: KindText, Value: text}, Frame{Kind: KindText, Text: strings.ToUpper(text), Visible: true})
}

// ShowIdle puts the default face up. Calling it while already idle is cheap:
// the frame is not sent again.
func (d *Driver) ShowIdle(ctx context.Context) {
	d.transition(ctx, Target{Kind: KindIdle}, Frame{Kind: KindIdle, Source: d.idleImage, Visible: true})
}

// PlayVideo always starts a fresh playback, even for the id already playing.
// The video stays hidden until MediaLoaded reports its first frame.
func (d *Driver) PlayVideo(ctx context.Context, id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	pid := uuid.New().String()
	d.video = playback{id: pid}
	d.present(ctx, Target{Kind: KindVideo, Value: id}, Frame{
		Kind:        KindVideo,
		Source:      id,
		PlaybackID:  pid,
		CrossOrigin: "anonymous",
	})
	log.Printf("[display] playing video %q playback=%s", id, pid)
	return pid
}

// Apply moves to t. A video target that is already on screen is left alone,
// including one that has just ended: restarting is PlayVideo's job.
func (d *Driver) Apply(ctx context.Context, t Target) {
	switch t.Kind {
	case KindImage:
		d.ShowImage(ctx, t.Value)
	case KindText:
		d.ShowText(ctx, t.Value)
	case KindIdle:
		d.ShowIdle(ctx)
	case KindVideo:
		d.mu.Lock()
		showing := d.current == t
		d.mu.Unlock()
		if !showing {
			d.PlayVideo(ctx, t.Value)
		}
	}
}

func (d *Driver) transition(ctx context.Context, t Target, f Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == t {
		if t.Kind == KindIdle {
			metricIdleReapply.Inc()
		}
		return
	}
	d.video = playback{}
	d.present(ctx, t, f)
	switch t.Kind {
	case KindImage:
		log.Printf("[display] loading image %q", t.Value)
	case KindText:
		log.Printf("[display] setting text %q", t.Value)
	case KindIdle:
		log.Printf("[display] idle")
	}
}

// present must be called with d.mu held.
func (d *Driver) present(ctx context.Context, t Target, f Frame) {
	d.seq++
	f.Seq = d.seq
	d.current = t
	d.frame = f
	metricFrames.WithLabelValues(string(f.Kind)).Inc()
	if err := d.surface.Present(ctx, f); err != nil {
		metricSurfaceErrors.Inc()
		log.Printf("[display] present %s frame seq=%d: %v", f.Kind, f.Seq, err)
	}
	if d.observer != nil {
		d.observer(f)
	}
}

// MediaLoaded reveals the current video once its data has loaded.
func (d *Driver) MediaLoaded(ctx context.Context, playbackID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if playbackID == "" || d.video.id != playbackID || d.video.loaded {
		metricVideoEvents.WithLabelValues("loadeddata_ignored").Inc()
		return
	}
	d.video.loaded = true
	metricVideoEvents.WithLabelValues("loadeddata").Inc()
	f := d.frame
	f.Visible = true
	d.present(ctx, d.current, f)
}

// MediaEnded fires the ended callback once for the current playback. Events
// for superseded or already finished playbacks are dropped.
func (d *Driver) MediaEnded(playbackID string) {
	d.mu.Lock()
	if playbackID == "" || d.video.id != playbackID || d.video.ended {
		d.mu.Unlock()
		metricVideoEvents.WithLabelValues("ended_ignored").Inc()
		return
	}
	d.video.ended = true
	fn := d.onEnded
	d.mu.Unlock()

	metricVideoEvents.WithLabelValues("ended").Inc()
	log.Printf("[display] video ended playback=%s", playbackID)
	if fn != nil {
		fn(playbackID)
	}
}

func (d *Driver) Current() Target {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Frame returns the last presented frame.
func (d *Driver) Frame() Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frame
}

// VideoEnded reports whether the screen still shows a finished video.
func (d *Driver) VideoEnded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.Kind == KindVideo && d.video.ended
}
