package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"signalbridge/internal/core"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// SignalService is the service name reported by the gRPC health server
const SignalService = "signalbridge.SignalModule"

// HealthWatcher reports overall health changes
type HealthWatcher interface {
	Watch(ctx context.Context, interval time.Duration, onChange func(healthy bool))
}

// GRPCHealthServer serves grpc.health.v1 reflecting the watcher's state
type GRPCHealthServer struct {
	addr     string
	interval time.Duration
	watcher  HealthWatcher
	logger   core.ILogger

	lis    net.Listener
	srv    *grpc.Server
	health *grpchealth.Server
}

func NewGRPCHealthServer(addr string, watcher HealthWatcher, logger core.ILogger) *GRPCHealthServer {
	return &GRPCHealthServer{
		addr:     addr,
		interval: time.Second,
		watcher:  watcher,
		logger:   logger.WithField("component", "grpc_health"),
		health:   grpchealth.NewServer(),
	}
}

// Listen binds the address. Serve calls it when needed.
func (s *GRPCHealthServer) Listen() error {
	if s.lis != nil {
		return nil
	}
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("grpc health listen %s: %w", s.addr, err)
	}
	s.lis = lis
	return nil
}

// Addr is the bound address once listening
func (s *GRPCHealthServer) Addr() string {
	if s.lis == nil {
		return s.addr
	}
	return s.lis.Addr().String()
}

// Serve answers health checks until ctx is done
func (s *GRPCHealthServer) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.srv = grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(s.srv, s.health)
	s.setServing(false)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.watcher.Watch(watchCtx, s.interval, s.setServing)

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("gRPC health server serving", "addr", s.Addr())
		errChan <- s.srv.Serve(s.lis)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		s.srv.GracefulStop()
		return nil
	}
}

func (s *GRPCHealthServer) setServing(healthy bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if healthy {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(SignalService, status)
}
