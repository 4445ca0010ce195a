package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"onboard/display/internal/types"
)

// HTTPError is returned for any non-2xx backend response.
type HTTPError struct {
	Op     string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Body)
}

// Client talks to the onboard endpoints of the robot backend.
type Client struct {
	http      *http.Client
	base      string
	remoteLog bool
}

type Option func(*Client)

// WithTimeout bounds every request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithRemoteLog turns the /onboard/log sink on.
func WithRemoteLog(enabled bool) Option {
	return func(c *Client) { c.remoteLog = enabled }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func NewClient(base string, opts ...Option) *Client {
	c := &Client{
		http: &http.Client{},
		base: base,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.base }

// FetchDesired reads the desired display state.
func (c *Client) FetchDesired(ctx context.Context) (types.DesiredState, error) {
	var out types.DesiredState
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/onboard", nil)
	if err != nil {
		return out, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return out, fmt.Errorf("fetch desired state: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return out, httpError("fetch desired state", resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode desired state: %w", err)
	}
	return out, nil
}

// PostState pushes the full local snapshot.
func (c *Client) PostState(ctx context.Context, s types.LocalState) error {
	return c.post(ctx, "/onboard", "post state", s)
}

// PostSpeech reports one recognized utterance.
func (c *Client) PostSpeech(ctx context.Context, transcript string) error {
	return c.post(ctx, "/onboard/speech", "post speech", types.SpeechReport{Result: transcript})
}

func (c *Client) Info(ctx context.Context, msg string) error {
	return c.logRemote(ctx, types.LogEntry{Info: msg})
}

func (c *Client) Warn(ctx context.Context, msg string) error {
	return c.logRemote(ctx, types.LogEntry{Warn: msg})
}

func (c *Client) Error(ctx context.Context, msg string) error {
	return c.logRemote(ctx, types.LogEntry{Error: msg})
}

func (c *Client) logRemote(ctx context.Context, e types.LogEntry) error {
	if !c.remoteLog {
		return nil
	}
	return c.post(ctx, "/onboard/log", "post log", e)
}

func (c *Client) post(ctx context.Context, path, op string, body any) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return httpError(op, resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func httpError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	return &HTTPError{Op: op, Status: resp.StatusCode, Body: string(b)}
}
