package display

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSurface struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (s *recordingSurface) Present(_ context.Context, f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, f)
	return s.err
}

func (s *recordingSurface) all() []Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Frame(nil), s.frames...)
}

func TestShowTextUppercases(t *testing.T) {
	s := &recordingSurface{}
	d := NewDriver(s)
	d.ShowText(context.Background(), "hello there")

	frames := s.all()
	require.Len(t, frames, 1)
	assert.Equal(t, KindText, frames[0].Kind)
	assert.Equal(t, "HELLO THERE", frames[0].Text)
	assert.Equal(t, Target{Kind: KindText, Value: "hello there"}, d.Current())
}

func TestEachTransitionReplacesWholeFrame(t *testing.T) {
	s := &recordingSurface{}
	d := NewDriver(s)
	ctx := context.Background()

	d.ShowImage(ctx, "a.png")
	d.ShowText(ctx, "hi")
	d.ShowImage(ctx, "b.png")

	frames := s.all()
	require.Len(t, frames, 3)
	for i, f := range frames {
		assert.Equal(t, uint64(i+1), f.Seq)
	}
	last := frames[2]
	assert.Equal(t, KindImage, last.Kind)
	assert.Equal(t, "b.png", last.Source)
	assert.Empty(t, last.Text)
	assert.Empty(t, last.PlaybackID)
}

func TestIdleIsDeduplicated(t *testing.T) {
	s := &recordingSurface{}
	d := NewDriver(s, WithIdleImage("images/sleepy.png"))
	ctx := context.Background()

	d.ShowIdle(ctx)
	d.ShowIdle(ctx)
	d.ShowIdle(ctx)

	frames := s.all()
	require.Len(t, frames, 1)
	assert.Equal(t, KindIdle, frames[0].Kind)
	assert.Equal(t, "images/sleepy.png", frames[0].Source)
}

func TestPlayVideoStartsHiddenAndRevealsOnLoad(t *testing.T) {
	s := &recordingSurface{}
	d := NewDriver(s)
	ctx := context.Background()

	pid := d.PlayVideo(ctx, "clip.mp4")
	require.NotEmpty(t, pid)

	d.MediaLoaded(ctx, "someone-else")
	d.MediaLoaded(ctx, pid)
	d.MediaLoaded(ctx, pid)

	frames := s.all()
	require.Len(t, frames, 2)
	assert.False(t, frames[0].Visible)
	assert.Equal(t, "anonymous", frames[0].CrossOrigin)
	assert.True(t, frames[1].Visible)
	assert.Equal(t, pid, frames[1].PlaybackID)
}

func TestPlayVideoRestartsSameClip(t *testing.T) {
	s := &recordingSurface{}
	d := NewDriver(s)
	ctx := context.Background()

	first := d.PlayVideo(ctx, "clip.mp4")
	second := d.PlayVideo(ctx, "clip.mp4")

	assert.NotEqual(t, first, second)
	assert.Len(t, s.all(), 2)
}

func TestApplyLeavesPlayingVideoAlone(t *testing.T) {
	s := &recordingSurface{}
	d := NewDriver(s)
	ctx := context.Background()

	d.PlayVideo(ctx, "clip.mp4")
	d.Apply(ctx, Target{Kind: KindVideo, Value: "clip.mp4"})

	assert.Len(t, s.all(), 1)
}

func TestApplyDoesNotRestartEndedVideo(t *testing.T) {
	s := &recordingSurface{}
	d := NewDriver(s)
	ctx := context.Background()

	pid := d.PlayVideo(ctx, "clip.mp4")
	d.MediaEnded(pid)
	d.Apply(ctx, Target{Kind: KindVideo, Value: "clip.mp4"})

	assert.Len(t, s.all(), 1)
	assert.True(t, d.VideoEnded())
}

func TestMediaEndedFiresOncePerPlayback(t *testing.T) {
	d := NewDriver(&recordingSurface{})
	ctx := context.Background()

	var ended []string
	d.OnVideoEnded(func(id string) { ended = append(ended, id) })

	pid := d.PlayVideo(ctx, "clip.mp4")
	d.MediaEnded(pid)
	d.MediaEnded(pid)

	assert.Equal(t, []string{pid}, ended)
	assert.True(t, d.VideoEnded())
}

func TestMediaEndedIgnoresSupersededPlayback(t *testing.T) {
	d := NewDriver(&recordingSurface{})
	ctx := context.Background()

	calls := 0
	d.OnVideoEnded(func(string) { calls++ })

	old := d.PlayVideo(ctx, "clip.mp4")
	d.ShowImage(ctx, "a.png")
	d.MediaEnded(old)

	assert.Zero(t, calls)
	assert.False(t, d.VideoEnded())
}

func TestSurfaceErrorDoesNotBlockTransition(t *testing.T) {
	s := &recordingSurface{err: errors.New("screen unplugged")}
	d := NewDriver(s)
	d.ShowImage(context.Background(), "a.png")

	assert.Equal(t, Target{Kind: KindImage, Value: "a.png"}, d.Current())
}

func TestObserverSeesFrames(t *testing.T) {
	var seen []Kind
	d := NewDriver(&recordingSurface{}, WithObserver(func(f Frame) { seen = append(seen, f.Kind) }))
	ctx := context.Background()

	d.ShowImage(ctx, "a.png")
	d.ShowIdle(ctx)

	assert.Equal(t, []Kind{KindImage, KindIdle}, seen)
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &recordingSurface{}
	bad := &recordingSurface{err: errors.New("nope")}
	err := Multi{ok, bad}.Present(context.Background(), Frame{Kind: KindIdle})

	assert.Error(t, err)
	assert.Len(t, ok.all(), 1)
	assert.Len(t, bad.all(), 1)
}
