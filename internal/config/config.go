package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port     string
		LogLevel string
	}
	Backend struct {
		BaseURL   string
		Timeout   time.Duration
		RemoteLog bool
	}
	Poll struct {
		Interval time.Duration
	}
	Display struct {
		IdleImage     string
		TokenSecret   string
		TokenSkewSecs int
		KioskCmd      string
		MediaDir      string
	}
	Speech struct {
		Engine       string
		RestartDelay time.Duration
	}
	Deepgram struct {
		APIKey   string
		URL      string
		Model    string
		Language string
	}
	GRPC struct {
		Addr string
	}
	Health struct {
		Interval time.Duration
	}
}

func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("backend.base_url", "http://localhost:5000/api")
	v.SetDefault("backend.timeout_ms", 0)
	v.SetDefault("backend.remote_log", false)

	v.SetDefault("poll.interval_ms", 100)

	v.SetDefault("display.idle_image", "images/normal.png")
	v.SetDefault("display.token_skew_secs", 60)

	v.SetDefault("speech.engine", "browser")
	v.SetDefault("speech.restart_delay_ms", 100)

	v.SetDefault("deepgram.url", "wss://api.deepgram.com/v1/listen")
	v.SetDefault("deepgram.model", "nova-2")
	v.SetDefault("deepgram.language", "en-US")

	v.SetDefault("grpc.addr", ":9095")
	v.SetDefault("health.interval_ms", 5000)

	// Map envs
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.log_level", "LOG_LEVEL")

	v.BindEnv("backend.base_url", "BACKEND_BASE_URL")
	v.BindEnv("backend.timeout_ms", "BACKEND_TIMEOUT_MS")
	v.BindEnv("backend.remote_log", "BACKEND_REMOTE_LOG")

	v.BindEnv("poll.interval_ms", "POLL_INTERVAL_MS")

	v.BindEnv("display.idle_image", "DISPLAY_IDLE_IMAGE")
	v.BindEnv("display.token_secret", "DISPLAY_TOKEN_SECRET")
	v.BindEnv("display.token_skew_secs", "DISPLAY_TOKEN_SKEW_SECS")
	v.BindEnv("display.kiosk_cmd", "DISPLAY_KIOSK_CMD")
	v.BindEnv("display.media_dir", "DISPLAY_MEDIA_DIR")

	v.BindEnv("speech.engine", "SPEECH_ENGINE")
	v.BindEnv("speech.restart_delay_ms", "SPEECH_RESTART_DELAY_MS")

	v.BindEnv("deepgram.api_key", "DEEPGRAM_API_KEY")
	v.BindEnv("deepgram.url", "DEEPGRAM_WS_URL")
	v.BindEnv("deepgram.model", "DEEPGRAM_MODEL")
	v.BindEnv("deepgram.language", "DEEPGRAM_LANGUAGE")

	v.BindEnv("grpc.addr", "GRPC_ADDR")
	v.BindEnv("health.interval_ms", "HEALTH_INTERVAL_MS")

	var c Config
	c.Server.Port = toString(v.Get("server.port"))
	c.Server.LogLevel = v.GetString("server.log_level")

	c.Backend.BaseURL = strings.TrimSuffix(v.GetString("backend.base_url"), "/")
	c.Backend.Timeout = millis(v.GetInt("backend.timeout_ms"))
	c.Backend.RemoteLog = v.GetBool("backend.remote_log")

	c.Poll.Interval = millis(v.GetInt("poll.interval_ms"))
	if c.Poll.Interval <= 0 {
		c.Poll.Interval = 100 * time.Millisecond
	}

	c.Display.IdleImage = v.GetString("display.idle_image")
	c.Display.TokenSecret = v.GetString("display.token_secret")
	c.Display.TokenSkewSecs = v.GetInt("display.token_skew_secs")
	c.Display.KioskCmd = v.GetString("display.kiosk_cmd")
	c.Display.MediaDir = v.GetString("display.media_dir")

	c.Speech.Engine = strings.ToLower(v.GetString("speech.engine"))
	c.Speech.RestartDelay = millis(v.GetInt("speech.restart_delay_ms"))

	c.Deepgram.APIKey = v.GetString("deepgram.api_key")
	c.Deepgram.URL = v.GetString("deepgram.url")
	c.Deepgram.Model = v.GetString("deepgram.model")
	c.Deepgram.Language = v.GetString("deepgram.language")

	c.GRPC.Addr = v.GetString("grpc.addr")
	c.Health.Interval = millis(v.GetInt("health.interval_ms"))

	log.Printf("config loaded: port=%s backend=%s poll=%s speech=%s", c.Server.Port, c.Backend.BaseURL, c.Poll.Interval, c.Speech.Engine)
	return c
}

// Debug reports whether per-tick logging is enabled.
func (c Config) Debug() bool { return strings.EqualFold(c.Server.LogLevel, "debug") }

func toString(v any) string { return fmt.Sprint(v) }

func millis(n int) time.Duration { return time.Duration(n) * time.Millisecond }
