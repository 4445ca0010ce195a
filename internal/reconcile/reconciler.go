package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"

	"onboard/display/internal/display"
	"onboard/display/internal/types"
)

var ErrTickInFlight = errors.New("previous tick still running")

type Fetcher interface {
	FetchDesired(ctx context.Context) (types.DesiredState, error)
}

type StatePoster interface {
	PostState(ctx context.Context, s types.LocalState) error
}

// RemoteLogger receives a line for every render decision.
type RemoteLogger interface {
	Info(ctx context.Context, msg string) error
}

// Recorder is where notable events (video end, state push) are written.
type Recorder interface {
	Append(typ string, payload map[string]any) types.Event
}

// Reconciler polls desired state and keeps the display in line with it.
type Reconciler struct {
	fetcher  Fetcher
	poster   StatePoster
	driver   *display.Driver
	interval time.Duration
	remote   RemoteLogger
	recorder Recorder
	debug    bool

	inflight atomic.Bool

	mu    sync.Mutex
	local types.LocalState
	// epoch moves whenever local state is changed outside a tick; a fetch that
	// started under an older epoch is discarded.
	epoch    uint64
	failing  bool
	lastTick time.Time
}

type Option func(*Reconciler)

func WithInterval(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithRemoteLog(l RemoteLogger) Option { return func(r *Reconciler) { r.remote = l } }

func WithRecorder(rec Recorder) Option { return func(r *Reconciler) { r.recorder = rec } }

func WithDebug(on bool) Option { return func(r *Reconciler) { r.debug = on } }

func New(f Fetcher, p StatePoster, d *display.Driver, opts ...Option) *Reconciler {
	r := &Reconciler{
		fetcher:  f,
		poster:   p,
		driver:   d,
		interval: 100 * time.Millisecond,
	}
	for _, o := range opts {
		o(r)
	}
	d.OnVideoEnded(r.videoEnded)
	return r
}

// Run ticks every interval until ctx is done. A tick that is still running
// when the next one is due is not overlapped.
func (r *Reconciler) Run(ctx context.Context) error {
	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(r.interval).SingletonMode().Do(func() {
		if err := r.Tick(ctx); err != nil && r.debug {
			log.Printf("[reconcile] tick: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reconcile tick: %w", err)
	}
	log.Printf("[reconcile] polling every %s", r.interval)
	s.StartAsync()
	<-ctx.Done()
	s.Stop()
	log.Printf("[reconcile] stopped")
	return nil
}

// Tick runs one fetch, diff and apply cycle.
func (r *Reconciler) Tick(ctx context.Context) error {
	if !r.inflight.CompareAndSwap(false, true) {
		metricTicks.WithLabelValues("skipped").Inc()
		return ErrTickInFlight
	}
	defer r.inflight.Store(false)
	start := time.Now()
	defer func() { metricTickMS.Observe(float64(time.Since(start).Milliseconds())) }()

	r.mu.Lock()
	epoch := r.epoch
	r.mu.Unlock()

	desired, err := r.fetcher.FetchDesired(ctx)
	if err != nil {
		metricTicks.WithLabelValues("fetch_error").Inc()
		r.mu.Lock()
		if !r.failing {
			log.Printf("[reconcile] fetch desired state failed, will keep polling: %v", err)
		}
		r.failing = true
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	if r.failing {
		log.Printf("[reconcile] backend reachable again")
		r.failing = false
	}
	if r.epoch != epoch {
		r.mu.Unlock()
		metricTicks.WithLabelValues("stale").Inc()
		return nil
	}
	notes := r.apply(ctx, desired)
	r.lastTick = time.Now()
	r.mu.Unlock()

	if len(notes) == 0 {
		metricTicks.WithLabelValues("unchanged").Inc()
		return nil
	}
	metricTicks.WithLabelValues("applied").Inc()
	if r.remote != nil {
		for _, n := range notes {
			if err := r.remote.Info(ctx, n); err != nil && r.debug {
				log.Printf("[reconcile] remote log: %v", err)
			}
		}
	}
	return nil
}

// apply diffs desired against local in image, text, video order and drives
// the display. It returns one note per render decision. Must hold r.mu.
func (r *Reconciler) apply(ctx context.Context, desired types.DesiredState) []string {
	var notes []string
	render := false
	playVideo := false

	if !types.Equal(desired.Image, r.local.Image) {
		r.local.Image = clonePtr(desired.Image)
		metricFieldChanges.WithLabelValues("image").Inc()
		render = true
	}
	if !types.Equal(desired.Text, r.local.Text) {
		r.local.Text = clonePtr(desired.Text)
		metricFieldChanges.WithLabelValues("text").Inc()
		render = true
	}
	if !types.Equal(desired.Video, r.local.Video) {
		r.local.Video = clonePtr(desired.Video)
		metricFieldChanges.WithLabelValues("video").Inc()
		// Clearing video does not hide it; a playing clip runs to its end.
		playVideo = types.Set(r.local.Video)
	}

	switch {
	case playVideo:
		r.driver.PlayVideo(ctx, *r.local.Video)
		notes = append(notes, "playing video: "+*r.local.Video)
	case render:
		if t := Precedence(r.local); t.Kind != display.KindIdle {
			r.driver.Apply(ctx, t)
			notes = append(notes, describe(t))
		}
	}

	if r.local.Idle() {
		r.local.Image = clonePtr(desired.Image)
		if r.driver.Current().Kind != display.KindIdle {
			notes = append(notes, "idle")
		}
		r.driver.ShowIdle(ctx)
		return notes
	}

	// A screen left blank or showing a finished clip falls back to whatever
	// local state still asks for.
	cur := r.driver.Current()
	if cur.Kind == display.KindNone || r.driver.VideoEnded() {
		t := Precedence(r.local)
		if t.Kind == display.KindVideo && r.driver.VideoEnded() {
			// videoEnded has not cleared local.Video yet; it will, and the
			// next tick settles on what is left.
			return notes
		}
		r.driver.Apply(ctx, t)
		notes = append(notes, describe(t))
	}
	return notes
}

// videoEnded clears the finished clip and tells the backend about it.
func (r *Reconciler) videoEnded(playbackID string) {
	r.mu.Lock()
	r.local.Video = nil
	r.epoch++
	snapshot := r.local.Clone()
	r.mu.Unlock()

	metricVideoEnds.Inc()
	ctx := context.Background()
	err := r.poster.PostState(ctx, snapshot)

	r.mu.Lock()
	r.epoch++
	r.mu.Unlock()

	payload := map[string]any{"playback_id": playbackID}
	if err != nil {
		metricStatePushErrors.Inc()
		payload["error"] = err.Error()
		log.Printf("[reconcile] push state after video end: %v", err)
	}
	if r.recorder != nil {
		r.recorder.Append("video_ended", payload)
	}
}

// Snapshot returns a copy of the local state.
func (r *Reconciler) Snapshot() types.LocalState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.local.Clone()
}

// LastTick is when desired state was last applied.
func (r *Reconciler) LastTick() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastTick
}

// Precedence picks the render target for s: the last set field in image,
// text, video order, or idle when none is set.
func Precedence(s types.LocalState) display.Target {
	switch {
	case types.Set(s.Video):
		return display.Target{Kind: display.KindVideo, Value: *s.Video}
	case types.Set(s.Text):
		return display.Target{Kind: display.KindText, Value: *s.Text}
	case types.Set(s.Image):
		return display.Target{Kind: display.KindImage, Value: *s.Image}
	}
	return display.Target{Kind: display.KindIdle}
}

func describe(t display.Target) string {
	switch t.Kind {
	case display.KindImage:
		return "loading image: " + t.Value
	case display.KindText:
		return "setting text: " + t.Value
	case display.KindVideo:
		return "playing video: " + t.Value
	}
	return string(t.Kind)
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
