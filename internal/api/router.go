package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"onboard/display/internal/kiosk"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", getOnly(h.HandleReady))
	mux.HandleFunc("/state", getOnly(h.HandleState))
	mux.HandleFunc("/journal", getOnly(h.HandleJournal))

	mux.HandleFunc("/display/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.HandleMintDisplayToken(w, r)
	})

	if h.display != nil {
		mux.Handle("/ws/display", h.display)
	}
	if h.events != nil {
		mux.Handle("/events", h.events)
	}
	mux.Handle("/metrics", promhttp.Handler())
	// The face page the kiosk browser opens, plus its media files.
	mux.Handle("/", kiosk.PageHandler(h.cfg.Display.MediaDir))

	// The kiosk page may be served from another origin (file:// or the robot's
	// web server), so the API answers CORS preflights.
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(mux)
}

func getOnly(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	}
}
