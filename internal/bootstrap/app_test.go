package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"signalbridge/internal/config"
	"signalbridge/pkg/logging"

	"github.com/stretchr/testify/assert"
)

func testApp() *App {
	return &App{Cfg: config.DefaultConfig(), Logger: logging.NopLogger{}}
}

func TestApp_FirstFailureStopsOthers(t *testing.T) {
	boom := errors.New("listener failed")
	stopped := make(chan struct{})

	err := testApp().RunContext(context.Background(),
		RunnerFunc(func(ctx context.Context) error { return boom }),
		RunnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		}),
	)

	assert.ErrorIs(t, err, boom)
	select {
	case <-stopped:
	default:
		t.Fatal("second runner was not cancelled")
	}
}

func TestApp_CancelIsGraceful(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := testApp().RunContext(ctx,
		RunnerFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	)
	assert.NoError(t, err)
}
