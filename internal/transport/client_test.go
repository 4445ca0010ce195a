package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/display/internal/backend"
	"onboard/display/internal/types"
)

func newBackend(t *testing.T) (*backend.Server, *Client) {
	t.Helper()
	be := backend.New()
	srv := httptest.NewServer(be.Handler())
	t.Cleanup(srv.Close)
	return be, NewClient(srv.URL + "/api")
}

func TestFetchDesired(t *testing.T) {
	be, c := newBackend(t)
	be.Set(types.LocalState{Image: types.Str("a.png"), Video: types.Str("clip.mp4")})

	got, err := c.FetchDesired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a.png", types.Deref(got.Image))
	assert.Nil(t, got.Text)
	assert.Equal(t, "clip.mp4", types.Deref(got.Video))
}

func TestPostStateClearsVideo(t *testing.T) {
	be, c := newBackend(t)
	be.Set(types.LocalState{Image: types.Str("a.png"), Video: types.Str("clip.mp4")})

	err := c.PostState(context.Background(), types.LocalState{Image: types.Str("a.png")})
	require.NoError(t, err)

	st := be.State()
	assert.Nil(t, st.Video)
	assert.Nil(t, st.URL)
	assert.Equal(t, "a.png", types.Deref(st.Image))
}

func TestPostSpeech(t *testing.T) {
	be, c := newBackend(t)
	require.NoError(t, c.PostSpeech(context.Background(), "good morning"))
	assert.Equal(t, []string{"good morning"}, be.Speech())
}

func TestRemoteLogIsNoopUnlessEnabled(t *testing.T) {
	be := backend.New()
	srv := httptest.NewServer(be.Handler())
	defer srv.Close()

	off := NewClient(srv.URL + "/api")
	require.NoError(t, off.Info(context.Background(), "ignored"))
	assert.Empty(t, be.Logs())

	on := NewClient(srv.URL+"/api", WithRemoteLog(true))
	require.NoError(t, on.Error(context.Background(), "camera offline"))
	assert.Equal(t, []types.LogEntry{{Error: "camera offline"}}, be.Logs())
}

func TestNon2xxIsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchDesired(context.Background())
	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusInternalServerError, he.Status)
	assert.Contains(t, he.Body, "boom")
}

func TestTimeoutOption(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	c := NewClient(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := c.FetchDesired(context.Background())
	assert.Error(t, err)
}
