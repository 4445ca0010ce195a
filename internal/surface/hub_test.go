package surface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ws "nhooyr.io/websocket"

	"onboard/display/internal/auth"
	"onboard/display/internal/display"
	"onboard/display/internal/speech"
)

type sinkEvent struct {
	kind string
	id   string
}

type fakeSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *fakeSink) MediaLoaded(_ context.Context, id string) {
	s.mu.Lock()
	s.events = append(s.events, sinkEvent{"loaded", id})
	s.mu.Unlock()
}

func (s *fakeSink) MediaEnded(id string) {
	s.mu.Lock()
	s.events = append(s.events, sinkEvent{"ended", id})
	s.mu.Unlock()
}

func (s *fakeSink) all() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkEvent(nil), s.events...)
}

func startHub(t *testing.T, opts ...Option) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(opts...)
	srv := httptest.NewServer(http.HandlerFunc(h.HandleDisplayWS))
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *ws.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/display" + query
	c, _, err := ws.Dial(ctx, u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(ws.StatusNormalClosure, "") })
	return c
}

func readMsg(t *testing.T, c *ws.Conn) Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := c.Read(ctx)
	require.NoError(t, err)
	var m Message
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func writeMsg(t *testing.T, c *ws.Conn, m Message) {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, c.Write(context.Background(), ws.MessageText, b))
}

func waitConnected(t *testing.T, h *Hub) {
	t.Helper()
	require.Eventually(t, h.Connected, 2*time.Second, 5*time.Millisecond)
}

func TestPresentWithoutDisplay(t *testing.T) {
	h := NewHub()
	err := h.Present(context.Background(), display.Frame{Kind: display.KindIdle})
	assert.ErrorIs(t, err, ErrNoDisplay)
}

func TestLastFrameReplayedOnConnect(t *testing.T) {
	h, srv := startHub(t)
	_ = h.Present(context.Background(), display.Frame{Seq: 7, Kind: display.KindText, Text: "HI", Visible: true})

	c := dial(t, srv, "")
	m := readMsg(t, c)

	require.Equal(t, "frame", m.Type)
	require.NotNil(t, m.Frame)
	assert.Equal(t, uint64(7), m.Frame.Seq)
	assert.Equal(t, "HI", m.Frame.Text)
}

func TestPresentReachesPage(t *testing.T) {
	h, srv := startHub(t)
	c := dial(t, srv, "")
	waitConnected(t, h)

	require.NoError(t, h.Present(context.Background(), display.Frame{Seq: 1, Kind: display.KindImage, Source: "a.png", Visible: true}))

	m := readMsg(t, c)
	assert.Equal(t, display.KindImage, m.Frame.Kind)
	assert.Equal(t, "a.png", m.Frame.Source)
}

func TestMediaEventsReachSink(t *testing.T) {
	h, srv := startHub(t)
	sink := &fakeSink{}
	h.SetMediaSink(sink)
	c := dial(t, srv, "")
	waitConnected(t, h)

	writeMsg(t, c, Message{Type: "media", Event: "loadeddata", PlaybackID: "p1"})
	writeMsg(t, c, Message{Type: "media", Event: "ended", PlaybackID: "p1"})

	require.Eventually(t, func() bool { return len(sink.all()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []sinkEvent{{"loaded", "p1"}, {"ended", "p1"}}, sink.all())
}

func TestListenForwardsResultsUntilEnd(t *testing.T) {
	h, srv := startHub(t)
	c := dial(t, srv, "")

	out := make(chan speech.Result, 4)
	done := make(chan error, 1)
	go func() { done <- h.Listen(context.Background(), out) }()

	start := readMsg(t, c)
	assert.Equal(t, "speech_start", start.Type)
	assert.Equal(t, "en-US", start.Lang)

	writeMsg(t, c, Message{Type: "speech", Event: "result", Alternatives: []string{"hello", "hollow"}})
	writeMsg(t, c, Message{Type: "speech", Event: "end"})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return on end")
	}
	res := <-out
	assert.Equal(t, "hello", res.Transcript())
	assert.True(t, res.Final)
}

func TestListenReportsErrorsAndUnsupported(t *testing.T) {
	h, srv := startHub(t)
	c := dial(t, srv, "")

	done := make(chan error, 1)
	go func() { done <- h.Listen(context.Background(), make(chan speech.Result, 1)) }()
	readMsg(t, c)
	writeMsg(t, c, Message{Type: "speech", Event: "error", Error: "no-speech"})
	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-speech")

	go func() { done <- h.Listen(context.Background(), make(chan speech.Result, 1)) }()
	readMsg(t, c)
	writeMsg(t, c, Message{Type: "speech", Event: "unsupported"})
	assert.ErrorIs(t, <-done, speech.ErrUnavailable)
}

func TestListenEndsWhenPageLeaves(t *testing.T) {
	h, srv := startHub(t)
	c := dial(t, srv, "")

	done := make(chan error, 1)
	go func() { done <- h.Listen(context.Background(), make(chan speech.Result, 1)) }()
	readMsg(t, c)
	c.Close(ws.StatusNormalClosure, "bye")

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrDisconnected)
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not notice the disconnect")
	}
}

func TestListenWaitsForDisplay(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := h.Listen(ctx, make(chan speech.Result))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBinaryFramesAreAudio(t *testing.T) {
	h, srv := startHub(t)
	c := dial(t, srv, "")
	waitConnected(t, h)

	require.NoError(t, c.Write(context.Background(), ws.MessageBinary, []byte{1, 2, 3, 4}))

	select {
	case b := <-h.Audio():
		assert.Equal(t, []byte{1, 2, 3, 4}, b)
	case <-time.After(2 * time.Second):
		t.Fatal("no audio frame")
	}
}

func TestTokenRequired(t *testing.T) {
	_, srv := startHub(t, WithToken("s3cret", 60))

	resp, err := http.Get(srv.URL + "/ws/display")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok := auth.GenerateDisplayToken("s3cret", "face", time.Now().Add(time.Minute).Unix())
	dial(t, srv, "?display_id=face&token="+tok)
}

func TestSecondPageReplacesFirst(t *testing.T) {
	h, srv := startHub(t)
	first := dial(t, srv, "")
	waitConnected(t, h)
	second := dial(t, srv, "")

	// The first connection is closed by the hub.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := first.Read(ctx)
	assert.Error(t, err)

	require.NoError(t, h.Present(context.Background(), display.Frame{Seq: 2, Kind: display.KindIdle}))
	assert.Equal(t, uint64(2), readMsg(t, second).Frame.Seq)
}
