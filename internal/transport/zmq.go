package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "signalbridge/pkg/errors"
	"signalbridge/pkg/telemetry"

	"github.com/go-zeromq/zmq4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ZMQDialer opens ZeroMQ DEALER sockets whose routing identity is the bridge name
type ZMQDialer struct {
	opts   DialOptions
	tracer trace.Tracer
}

func NewZMQDialer(opts DialOptions) *ZMQDialer {
	return &ZMQDialer{
		opts:   opts.withDefaults(),
		tracer: telemetry.GetTracer("zmq-dealer"),
	}
}

func (d *ZMQDialer) Dial(ctx context.Context, ep Endpoint, identity string) (Socket, error) {
	if identity == "" {
		return nil, apperrors.ErrInvalidIdentity
	}

	_, span := d.tracer.Start(ctx, "ZMQ Dial",
		trace.WithAttributes(attribute.String("zmq.endpoint", ep.String()), attribute.String("zmq.identity", identity)),
	)
	defer span.End()

	// the socket lives until Close, not until the dial context ends
	sockCtx, cancel := context.WithCancel(context.Background())
	retry := 100 * time.Millisecond
	sock := zmq4.NewDealer(sockCtx,
		zmq4.WithID(zmq4.SocketIdentity(identity)),
		zmq4.WithDialerRetry(retry),
		zmq4.WithDialerMaxRetries(int(d.opts.DialTimeout/retry)),
	)

	if err := sock.Dial("tcp://" + ep.Address()); err != nil {
		cancel()
		_ = sock.Close()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("zmq dial %s: %w", ep, err)
	}

	s := &zmqSocket{
		pump:   newPump(d.opts),
		sock:   sock,
		cancel: cancel,
	}
	s.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()
	return s, nil
}

type zmqSocket struct {
	*pump
	sock   zmq4.Socket
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (s *zmqSocket) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.out:
			if err := s.sock.Send(zmq4.NewMsg(msg)); err != nil {
				s.fail(err)
				return
			}
		}
	}
}

func (s *zmqSocket) readLoop() {
	defer s.wg.Done()
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			s.fail(err)
			return
		}
		if len(msg.Frames) == 0 {
			continue
		}
		// a router reply is [payload]; tolerate a leading empty delimiter
		if !s.deliver(msg.Frames[len(msg.Frames)-1]) {
			return
		}
	}
}

func (s *zmqSocket) Close() error {
	if !s.stop() {
		return nil
	}
	s.fail(errors.New("closed locally"))
	s.cancel()
	err := s.sock.Close()
	s.wg.Wait()
	return err
}
