// Command onboard-backend serves the robot backend's /api/onboard endpoints
// in memory, for running the display without the robot.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"onboard/display/internal/backend"
)

var addr = flag.String("addr", ":5000", "listen address")

func main() {
	flag.Parse()
	_ = godotenv.Load()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           backend.New().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("backend listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
