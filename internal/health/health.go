// Package health exposes control-session liveness over the standard gRPC health protocol.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the health service name reported by the watcher.
const Service = "streamctl.control"

// stopGrace bounds GracefulStop. Open Watch streams never end on their own.
const stopGrace = 500 * time.Millisecond

// Reporter serves grpc.health.v1.Health with a single service entry.
type Reporter struct {
	server *grpc.Server
	health *health.Server
}

// NewReporter starts in NOT_SERVING until the first connected cycle.
func NewReporter() *Reporter {
	hs := health.NewServer()
	hs.SetServingStatus(Service, healthpb.HealthCheckResponse_NOT_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &Reporter{server: srv, health: hs}
}

func (r *Reporter) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	r.health.SetServingStatus(Service, status)
}

// Serve blocks until ctx is cancelled or the listener fails.
func (r *Reporter) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		r.health.Shutdown()
		r.stop()
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve health: %w", err)
	}
}

func (r *Reporter) stop() {
	stopped := make(chan struct{})
	go func() {
		r.server.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(stopGrace)
	defer timer.Stop()
	select {
	case <-stopped:
	case <-timer.C:
		r.server.Stop()
		<-stopped
	}
}

// Check queries a watcher's health endpoint and returns the reported status.
func Check(ctx context.Context, target string, timeout time.Duration) (healthpb.HealthCheckResponse_ServingStatus, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return healthpb.HealthCheckResponse_UNKNOWN, errors.New("health target is empty")
	}
	if timeout <= 0 {
		timeout = time.Second
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial health %q: %w", target, err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("wait for health readiness: %w", err)
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: Service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus(), nil
}
