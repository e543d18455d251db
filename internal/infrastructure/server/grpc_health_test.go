package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"signalbridge/internal/infrastructure/health"
	"signalbridge/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestGRPCHealthServer_FollowsHealthManager(t *testing.T) {
	logger := logging.NopLogger{}
	hm := health.NewHealthManager(logger)
	var started atomic.Bool
	hm.Register("signal_module", func() error {
		if !started.Load() {
			return assert.AnError
		}
		return nil
	})

	s := NewGRPCHealthServer("127.0.0.1:0", hm, logger)
	s.interval = 10 * time.Millisecond
	require.NoError(t, s.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	conn, err := grpc.NewClient(s.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	client := grpc_health_v1.NewHealthClient(conn)

	check := func(service string) grpc_health_v1.HealthCheckResponse_ServingStatus {
		cctx, ccancel := context.WithTimeout(context.Background(), time.Second)
		defer ccancel()
		resp, err := client.Check(cctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		if err != nil {
			return grpc_health_v1.HealthCheckResponse_UNKNOWN
		}
		return resp.Status
	}

	assert.Eventually(t, func() bool {
		return check(SignalService) == grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	started.Store(true)
	assert.Eventually(t, func() bool {
		return check("") == grpc_health_v1.HealthCheckResponse_SERVING &&
			check(SignalService) == grpc_health_v1.HealthCheckResponse_SERVING
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
