// Package stt is the server-side speech engine: PCM audio streamed from the
// kiosk page is transcribed by Deepgram's live endpoint.
package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"onboard/display/internal/speech"
)

type Config struct {
	APIKey        string
	URL           string
	Model         string
	Language      string
	EndpointingMs int
	UtterEndMs    int
}

// Deepgram runs one live transcription socket per Listen call. It satisfies
// speech.Recognizer.
type Deepgram struct {
	apiKey string
	url    string
	audio  <-chan []byte
}

func NewDeepgram(cfg Config, audio <-chan []byte) *Deepgram {
	q := url.Values{}
	q.Set("model", orDefault(cfg.Model, "nova-2"))
	q.Set("language", orDefault(cfg.Language, "en-US"))
	q.Set("smart_format", "true")
	q.Set("endpointing", fmt.Sprintf("%d", nzd(cfg.EndpointingMs, 1000)))
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", fmt.Sprintf("%d", nzd(cfg.UtterEndMs, 1500)))
	q.Set("vad_events", "true")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", "16000")
	q.Set("channels", "1")
	base := cfg.URL
	if base == "" {
		base = "wss://api.deepgram.com/v1/listen"
	}
	return &Deepgram{apiKey: cfg.APIKey, url: base + "?" + q.Encode(), audio: audio}
}

type alternative struct {
	Transcript string `json:"transcript"`
}

// message covers the Deepgram frames we act on: Results, UtteranceEnd,
// SpeechStarted, Metadata and Error.
type message struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []alternative `json:"alternatives"`
	} `json:"channel"`
	Error       string `json:"error"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

// Listen transcribes a single utterance. Final transcripts are sent to out;
// it returns nil once Deepgram signals the end of the utterance.
func (d *Deepgram) Listen(ctx context.Context, out chan<- speech.Result) error {
	if d.apiKey == "" {
		log.Printf("[deepgram] DEEPGRAM_API_KEY not set")
		return speech.ErrUnavailable
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hdr := make(http.Header)
	hdr.Set("Authorization", "Token "+d.apiKey)
	dctx, dcancel := context.WithTimeout(ctx, 10*time.Second)
	start := time.Now()
	conn, _, err := websocket.Dial(dctx, d.url, &websocket.DialOptions{HTTPHeader: hdr})
	dcancel()
	if err != nil {
		return fmt.Errorf("deepgram connect: %w", err)
	}
	metricConnectMS.Observe(float64(time.Since(start).Milliseconds()))
	gaugeSessions.Inc()
	defer gaugeSessions.Dec()
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	go d.pump(ctx, conn)

	var lastText string
	emitted := false
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("deepgram read: %w", err)
		}
		var m message
		if err := json.Unmarshal(data, &m); err != nil {
			log.Printf("[deepgram] JSON parse error: %v", err)
			continue
		}
		switch {
		case strings.EqualFold(m.Type, "Error") || m.Error != "":
			msg := orDefault(m.Error, orDefault(m.Description, orDefault(m.Message, "provider_error")))
			return fmt.Errorf("deepgram: %s", msg)
		case strings.EqualFold(m.Type, "Metadata"):
		case strings.EqualFold(m.Type, "SpeechStarted"):
			metricUtteranceEvents.WithLabelValues("speech_started").Inc()
		case strings.EqualFold(m.Type, "UtteranceEnd"):
			metricUtteranceEvents.WithLabelValues("utterance_end").Inc()
			// Finals can be missed when endpointing and utterance_end race;
			// fall back to the last interim text.
			if !emitted && lastText != "" {
				if err := send(ctx, out, []string{lastText}, "interim_fallback"); err != nil {
					return err
				}
			}
			return nil
		case strings.EqualFold(m.Type, "Results"):
			alts := transcripts(m.Channel.Alternatives)
			if len(alts) > 0 {
				lastText = alts[0]
			}
			if !m.IsFinal {
				continue
			}
			if len(alts) == 0 {
				metricEmptyFinalSkipped.Inc()
				continue
			}
			if err := send(ctx, out, alts, "provider"); err != nil {
				return err
			}
			emitted = true
			if m.SpeechFinal {
				return nil
			}
		}
	}
}

// pump forwards kiosk audio until the session ends, then asks Deepgram to
// flush and close the stream.
func (d *Deepgram) pump(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			wctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = conn.Write(wctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
			cancel()
			return
		case b, ok := <-d.audio:
			if !ok {
				return
			}
			if len(b) == 0 {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(wctx, websocket.MessageBinary, b)
			cancel()
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Printf("[deepgram] write error: %v", err)
				}
				return
			}
			metricAudioBytes.Add(float64(len(b)))
			metricFrames.Inc()
		}
	}
}

func send(ctx context.Context, out chan<- speech.Result, alts []string, source string) error {
	select {
	case out <- speech.Result{Alternatives: alts, Final: true}:
		metricFinalEmitted.WithLabelValues(source).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func transcripts(alts []alternative) []string {
	var out []string
	for _, a := range alts {
		if t := strings.TrimSpace(a.Transcript); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func nzd(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
