// Package kiosk launches the browser process that hosts the face page.
package kiosk

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotConfigured  = errors.New("kiosk command not configured")
	ErrAlreadyRunning = errors.New("kiosk already running")
	ErrNotRunning     = errors.New("kiosk not running")
)

// ExitCallback is invoked when the kiosk process exits (naturally or killed).
type ExitCallback func(err error)
type LogCallback func(stream string, line string)

type LocalRunner struct {
	cmdLine string
	grace   time.Duration
	onExit  ExitCallback
	onLog   LogCallback

	mu   sync.Mutex
	proc *proc
}

type proc struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLocalRunner(cmdLine string, onExit ExitCallback, onLog LogCallback) *LocalRunner {
	return &LocalRunner{
		cmdLine: cmdLine,
		grace:   3 * time.Second,
		onExit:  onExit,
		onLog:   onLog,
	}
}

// Enabled reports whether a kiosk command is configured.
func (r *LocalRunner) Enabled() bool { return strings.TrimSpace(r.cmdLine) != "" }

func (r *LocalRunner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proc != nil
}

// Start runs the kiosk command with the current environment plus env.
func (r *LocalRunner) Start(env map[string]string) error {
	if !r.Enabled() {
		return ErrNotConfigured
	}

	parts := strings.Fields(r.cmdLine)
	name, args := parts[0], parts[1:]
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), envToList(env)...)

	// Reserve the slot before starting so concurrent Starts cannot both launch.
	r.mu.Lock()
	if r.proc != nil {
		r.mu.Unlock()
		cancel()
		return ErrAlreadyRunning
	}
	p := &proc{cancel: cancel, done: make(chan struct{})}
	r.proc = p
	r.mu.Unlock()

	release := func(err error) error {
		r.mu.Lock()
		r.proc = nil
		r.mu.Unlock()
		cancel()
		return err
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return release(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return release(err)
	}
	if err := cmd.Start(); err != nil {
		return release(err)
	}
	p.cmd = cmd
	log.Printf("[kiosk] started pid=%d: %s", cmd.Process.Pid, r.cmdLine)

	var streams sync.WaitGroup
	streams.Add(2)
	go r.stream("stdout", stdout, &streams)
	go r.stream("stderr", stderr, &streams)

	go func() {
		// Wait must not run before the pipes are drained.
		streams.Wait()
		err := cmd.Wait()
		r.mu.Lock()
		if r.proc == p {
			r.proc = nil
		}
		r.mu.Unlock()
		close(p.done)
		log.Printf("[kiosk] exited: %v", err)
		if r.onExit != nil {
			r.onExit(err)
		}
	}()
	return nil
}

// Stop cancels the process and kills it if it is still alive after the grace
// period.
func (r *LocalRunner) Stop() error {
	r.mu.Lock()
	p := r.proc
	r.mu.Unlock()
	if p == nil || p.cmd == nil {
		return ErrNotRunning
	}
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(r.grace):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
	return nil
}

func envToList(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func (r *LocalRunner) stream(stream string, rdr io.Reader, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(rdr)
	for scanner.Scan() {
		line := scanner.Text()
		log.Printf("[kiosk] %s: %s", stream, line)
		if r.onLog != nil {
			r.onLog(stream, line)
		}
	}
}
