package stt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"onboard/display/internal/speech"
)

// fakeProvider accepts one socket, waits for the first audio frame and then
// replays script as text frames.
func fakeProvider(t *testing.T, script ...string) (*httptest.Server, <-chan http.Header) {
	t.Helper()
	headers := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()
		if typ, _, err := c.Read(ctx); err != nil || typ != websocket.MessageBinary {
			return
		}
		for _, s := range script {
			if err := c.Write(ctx, websocket.MessageText, []byte(s)); err != nil {
				return
			}
		}
		// hold the socket open until the client leaves
		for {
			if _, _, err := c.Read(ctx); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, headers
}

func newRecognizer(srv *httptest.Server) (*Deepgram, chan []byte) {
	audio := make(chan []byte, 4)
	audio <- []byte{0, 1, 0, 1}
	d := NewDeepgram(Config{APIKey: "dg-key", URL: "ws" + strings.TrimPrefix(srv.URL, "http")}, audio)
	return d, audio
}

func listen(t *testing.T, d *Deepgram) ([]speech.Result, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	out := make(chan speech.Result, 8)
	err := d.Listen(ctx, out)
	close(out)
	var got []speech.Result
	for r := range out {
		got = append(got, r)
	}
	return got, err
}

func TestListenEmitsFinalsUntilUtteranceEnd(t *testing.T) {
	srv, headers := fakeProvider(t,
		`{"type":"Metadata"}`,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"hel"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":" hello robot "},{"transcript":"yellow robot"}]}}`,
		`{"type":"UtteranceEnd"}`,
	)
	d, _ := newRecognizer(srv)

	got, err := listen(t, d)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"hello robot", "yellow robot"}, got[0].Alternatives)
	assert.True(t, got[0].Final)
	assert.Equal(t, "Token dg-key", (<-headers).Get("Authorization"))
}

func TestListenEndsOnSpeechFinal(t *testing.T) {
	srv, _ := fakeProvider(t,
		`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"stop"}]}}`,
	)
	d, _ := newRecognizer(srv)

	got, err := listen(t, d)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "stop", got[0].Transcript())
}

func TestUtteranceEndFallsBackToInterim(t *testing.T) {
	srv, _ := fakeProvider(t,
		`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"turn left"}]}}`,
		`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":""}]}}`,
		`{"type":"UtteranceEnd"}`,
	)
	d, _ := newRecognizer(srv)

	got, err := listen(t, d)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "turn left", got[0].Transcript())
}

func TestProviderErrorEndsSession(t *testing.T) {
	srv, _ := fakeProvider(t, `{"type":"Error","description":"bad audio"}`)
	d, _ := newRecognizer(srv)

	got, err := listen(t, d)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad audio")
	assert.Empty(t, got)
}

func TestMissingKeyIsUnavailable(t *testing.T) {
	d := NewDeepgram(Config{}, make(chan []byte))
	err := d.Listen(context.Background(), make(chan speech.Result))
	assert.ErrorIs(t, err, speech.ErrUnavailable)
}

func TestQueryCarriesModelAndLanguage(t *testing.T) {
	d := NewDeepgram(Config{APIKey: "k", URL: "wss://example.test/v1/listen", Model: "nova-3", Language: "de"}, nil)
	assert.True(t, strings.HasPrefix(d.url, "wss://example.test/v1/listen?"))
	assert.Contains(t, d.url, "model=nova-3")
	assert.Contains(t, d.url, "language=de")
	assert.Contains(t, d.url, "sample_rate=16000")
}
