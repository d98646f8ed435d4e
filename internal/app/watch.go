package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/streamctl/internal/config"
	"github.com/rbright/streamctl/internal/feed"
	"github.com/rbright/streamctl/internal/health"
	"github.com/rbright/streamctl/internal/ipc"
	"github.com/rbright/streamctl/internal/monitor"
	"github.com/rbright/streamctl/internal/session"
	"github.com/rbright/streamctl/internal/version"
)

// commandWatch owns the runtime socket and runs the poll loop until ctx ends or
// the server violates the protocol.
func (r Runner) commandWatch(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	cfg := loaded.Config

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{ProbeTimeout: 180 * time.Millisecond, Retries: 8, Logger: logger})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	logger.Info("watcher starting", append(version.LogAttrs(),
		"endpoint", cfg.Control.Address,
		"interval_ms", cfg.Poll.IntervalMS,
		"auto_connect", cfg.Poll.AutoConnect,
	)...)

	engine := newEngine(cfg, logger)
	defer engine.Close()
	controller := engine.controller

	hub := feed.NewHub(runID, logger)
	defer hub.Close()
	reporter := health.NewReporter()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)
	spawn := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
				cancel()
			}
		}()
	}

	if cfg.Feed.Listen != "" {
		feedListener, err := net.Listen("tcp", cfg.Feed.Listen)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: listen feed %s: %v\n", cfg.Feed.Listen, err)
			return 1
		}
		server := &http.Server{Handler: hub.Handler(), ReadHeaderTimeout: 5 * time.Second}
		spawn("feed server", func() error { return serveHTTP(ctx, server, feedListener) })
		logger.Info("event feed listening", "addr", feedListener.Addr().String())
	}

	if cfg.Health.Listen != "" {
		healthListener, err := net.Listen("tcp", cfg.Health.Listen)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: listen health %s: %v\n", cfg.Health.Listen, err)
			cancel()
			wg.Wait()
			return 1
		}
		spawn("health server", func() error { return reporter.Serve(ctx, healthListener) })
		logger.Info("health service listening", "addr", healthListener.Addr().String())
	}

	spawn("ipc server", func() error { return ipc.Serve(ctx, listener, controller) })

	if loaded.Exists {
		spawn("config watcher", func() error {
			return config.Watch(ctx, loaded.Path, func(next config.Loaded) {
				controller.SetAutoConnect(next.Config.Poll.AutoConnect)
				logger.Info("config reloaded", "path", next.Path)
			}, func(err error) {
				logger.Warn("config reload failed", "error", err.Error())
			})
		})
	}

	sink := func(result session.Result) {
		logCycleResult(logger, result)
		reporter.SetServing(result.Status == monitor.StatusConnected && !result.Halted())

		frameType := feed.TypeCycle
		if result.Halted() {
			frameType = feed.TypeHalt
		}
		if err := hub.Publish(frameType, result); err != nil {
			logger.Warn("publish cycle failed", "error", err.Error())
		}
	}

	runErr := controller.Run(ctx, cfg.Poll.Interval(), sink)
	cancel()
	wg.Wait()
	close(errCh)

	if runErr != nil {
		last := controller.Snapshot()
		if body, err := encodeResult(last); err == nil {
			_ = r.printStatus(body, false)
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", runErr)
		return 1
	}

	var serveErr error
	for err := range errCh {
		serveErr = errors.Join(serveErr, err)
	}
	if serveErr != nil {
		logger.Error("watcher component failed", "error", serveErr.Error())
		fmt.Fprintf(r.Stderr, "error: %v\n", serveErr)
		return 1
	}

	logger.Info("watcher stopped")
	return 0
}

func serveHTTP(ctx context.Context, server *http.Server, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
