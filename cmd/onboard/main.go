package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"onboard/display/internal/api"
	"onboard/display/internal/auth"
	"onboard/display/internal/config"
	"onboard/display/internal/display"
	"onboard/display/internal/health"
	"onboard/display/internal/journal"
	"onboard/display/internal/kiosk"
	"onboard/display/internal/reconcile"
	"onboard/display/internal/speech"
	"onboard/display/internal/stt"
	"onboard/display/internal/surface"
	"onboard/display/internal/transport"
)

var mintToken = flag.String("mint-token", "", "print a display token for the given display id and exit")

func main() {
	flag.Parse()
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	if *mintToken != "" {
		if cfg.Display.TokenSecret == "" {
			log.Fatalf("DISPLAY_TOKEN_SECRET not set")
		}
		exp := time.Now().Add(24 * time.Hour).Unix()
		fmt.Println(auth.GenerateDisplayToken(cfg.Display.TokenSecret, *mintToken, exp))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := transport.NewClient(cfg.Backend.BaseURL,
		transport.WithTimeout(cfg.Backend.Timeout),
		transport.WithRemoteLog(cfg.Backend.RemoteLog))
	j := journal.New()

	hub := surface.NewHub(
		surface.WithToken(cfg.Display.TokenSecret, cfg.Display.TokenSkewSecs),
		surface.WithRecorder(j),
		surface.WithOrigins("*"))
	events := surface.NewBroadcaster()

	driver := display.NewDriver(display.Multi{hub, events, display.LogSurface{}},
		display.WithIdleImage(cfg.Display.IdleImage),
		display.WithObserver(func(f display.Frame) {
			j.Append("frame", map[string]any{
				"seq": f.Seq, "kind": f.Kind, "source": f.Source, "text": f.Text,
				"playback_id": f.PlaybackID, "visible": f.Visible,
			})
		}))
	hub.SetMediaSink(driver)

	rec := reconcile.New(client, client, driver,
		reconcile.WithInterval(cfg.Poll.Interval),
		reconcile.WithRemoteLog(client),
		reconcile.WithRecorder(j),
		reconcile.WithDebug(cfg.Debug()))

	var recognizer speech.Recognizer
	switch cfg.Speech.Engine {
	case "deepgram":
		recognizer = stt.NewDeepgram(stt.Config{
			APIKey:   cfg.Deepgram.APIKey,
			URL:      cfg.Deepgram.URL,
			Model:    cfg.Deepgram.Model,
			Language: cfg.Deepgram.Language,
		}, hub.Audio())
	case "none", "off":
	default:
		recognizer = hub
	}
	reporter := speech.NewReporter(recognizer, client,
		speech.WithRestartDelay(cfg.Speech.RestartDelay),
		speech.WithResultHook(func(s string) { j.Append("speech_result", map[string]any{"result": s}) }))

	hs := grpchealth.NewServer()
	mon := health.NewMonitor(health.Deps{
		Backend: func(ctx context.Context) error {
			_, err := client.FetchDesired(ctx)
			return err
		},
		Display: hub.Connected,
	}, hs)

	runner := kiosk.NewLocalRunner(cfg.Display.KioskCmd, func(err error) {
		j.Append("kiosk_exit", map[string]any{"error": errString(err), "code": exitCodeFromErr(err)})
	}, func(stream, line string) {
		j.Append("kiosk_log", map[string]any{"stream": stream, "line": line})
	})

	// gRPC health with keepalive for fast death detection
	gs := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionIdle: 2 * time.Minute,
		Time:              30 * time.Second,
		Timeout:           10 * time.Second,
	}))
	healthpb.RegisterHealthServer(gs, hs)
	lis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.GRPC.Addr, err)
	}

	h := api.NewHandlers(cfg, rec, j, mon, http.HandlerFunc(hub.HandleDisplayWS), events)
	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(api.NewRouter(h)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("grpc health listening on %s", cfg.GRPC.Addr)
		if err := gs.Serve(lis); err != nil {
			log.Printf("grpc serve: %v", err)
		}
	}()
	go mon.Watch(ctx, cfg.Health.Interval)
	go func() {
		if err := rec.Run(ctx); err != nil {
			log.Fatalf("reconcile: %v", err)
		}
	}()
	go func() {
		err := reporter.Run(ctx)
		if errors.Is(err, speech.ErrUnavailable) {
			j.Append("speech_unavailable", nil)
		}
	}()

	if runner.Enabled() {
		env := map[string]string{"KIOSK_URL": kioskURL(cfg)}
		if err := runner.Start(env); err != nil {
			log.Printf("kiosk start: %v", err)
		}
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Printf("shutdown signal received; stopping...")
		cancel()
		if runner.IsRunning() {
			_ = runner.Stop()
		}
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		events.Close()
		_ = srv.Shutdown(sctx)
		gs.GracefulStop()
	}()

	log.Printf("server starting on %s", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Println("server error:", err)
		os.Exit(1)
	}
}

// kioskURL is the face page on this server, carrying a display token when
// tokens are required and asking for microphone audio when Deepgram listens.
func kioskURL(cfg config.Config) string {
	q := url.Values{}
	if cfg.Display.TokenSecret != "" {
		exp := time.Now().Add(365 * 24 * time.Hour).Unix()
		q.Set("display_id", "face")
		q.Set("token", auth.GenerateDisplayToken(cfg.Display.TokenSecret, "face", exp))
	}
	if cfg.Speech.Engine == "deepgram" {
		q.Set("audio", "1")
	}
	u := "http://localhost:" + cfg.Server.Port + "/"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func exitCodeFromErr(err error) int {
	if err == nil {
		return 0
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 1
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if r.URL.Path != "/metrics" {
			log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
		}
	})
}
