package types

import "time"

// DesiredState is what the backend wants on screen right now.
type DesiredState struct {
	Image *string `json:"image"`
	Text  *string `json:"text"`
	Video *string `json:"video"`
}

// LocalState is the client's record of what it last applied. URL is carried
// for wire compatibility only and is never populated.
type LocalState struct {
	Image *string `json:"image"`
	Text  *string `json:"text"`
	Video *string `json:"video"`
	URL   *string `json:"url"`
}

// Clone returns a copy that shares no pointers with s.
func (s LocalState) Clone() LocalState {
	return LocalState{Image: clone(s.Image), Text: clone(s.Text), Video: clone(s.Video), URL: clone(s.URL)}
}

// Idle reports whether nothing is requested.
func (s LocalState) Idle() bool {
	return !Set(s.Image) && !Set(s.Text) && !Set(s.Video)
}

type SpeechReport struct {
	Result string `json:"result"`
}

type LogEntry struct {
	Info  string `json:"info,omitempty"`
	Warn  string `json:"warn,omitempty"`
	Error string `json:"error,omitempty"`
}

type Event struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Ts      time.Time      `json:"timestamp"`
	Payload map[string]any `json:"payload,omitempty"`
}

func Str(s string) *string { return &s }

func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Equal compares two optional strings exactly: nil only equals nil.
func Equal(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Set reports whether p holds a non-empty value.
func Set(p *string) bool { return p != nil && *p != "" }

func clone(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
