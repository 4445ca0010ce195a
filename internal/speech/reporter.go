package speech

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
)

var ErrUnavailable = errors.New("speech recognition not supported")

// Result is one recognition event. Alternatives are ordered best first.
type Result struct {
	Alternatives []string
	Final        bool
}

// Transcript returns the top candidate.
func (r Result) Transcript() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Alternatives[0])
}

// Recognizer runs a single recognition session. Listen returns nil when the
// session ends on its own and an error when it fails.
type Recognizer interface {
	Listen(ctx context.Context, out chan<- Result) error
}

type SpeechPoster interface {
	PostSpeech(ctx context.Context, transcript string) error
}

// Reporter keeps a recognizer listening forever and posts every transcript.
type Reporter struct {
	rec          Recognizer
	poster       SpeechPoster
	restartDelay time.Duration
	onResult     func(transcript string)
}

type Option func(*Reporter)

// WithRestartDelay is the pause after a failed session before listening again.
func WithRestartDelay(d time.Duration) Option {
	return func(r *Reporter) { r.restartDelay = d }
}

// WithResultHook is called with every transcript before it is posted.
func WithResultHook(fn func(transcript string)) Option {
	return func(r *Reporter) { r.onResult = fn }
}

func NewReporter(rec Recognizer, p SpeechPoster, opts ...Option) *Reporter {
	r := &Reporter{rec: rec, poster: p, restartDelay: 100 * time.Millisecond}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run listens until ctx is cancelled. Every session end, natural or failed,
// starts a new session.
func (r *Reporter) Run(ctx context.Context) error {
	if r.rec == nil {
		log.Printf("[speech] %v", ErrUnavailable)
		return ErrUnavailable
	}
	log.Printf("[speech] recognition started")
	for ctx.Err() == nil {
		err := r.session(ctx)
		if ctx.Err() != nil {
			break
		}
		if errors.Is(err, ErrUnavailable) {
			log.Printf("[speech] %v", err)
			return err
		}
		if err != nil {
			metricSessions.WithLabelValues("error").Inc()
			log.Printf("[speech] recognition error: %v", err)
			if !sleep(ctx, r.restartDelay) {
				break
			}
			continue
		}
		metricSessions.WithLabelValues("ended").Inc()
	}
	log.Printf("[speech] recognition stopped")
	return nil
}

func (r *Reporter) session(ctx context.Context) error {
	results := make(chan Result, 8)
	done := make(chan error, 1)
	go func() {
		done <- r.rec.Listen(ctx, results)
		close(results)
	}()
	for res := range results {
		r.report(ctx, res)
	}
	return <-done
}

func (r *Reporter) report(ctx context.Context, res Result) {
	if !res.Final {
		metricSkipped.WithLabelValues("interim").Inc()
		return
	}
	text := res.Transcript()
	if text == "" {
		metricSkipped.WithLabelValues("empty").Inc()
		return
	}
	log.Printf("[speech] recognized %q", text)
	metricResults.Inc()
	if r.onResult != nil {
		r.onResult(text)
	}
	if err := r.poster.PostSpeech(ctx, text); err != nil {
		metricPostErrors.Inc()
		log.Printf("[speech] post result: %v", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
