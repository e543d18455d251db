package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	apperrors "signalbridge/pkg/errors"
	"signalbridge/pkg/telemetry"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// IdentityHeader carries the dealer identity on the WebSocket handshake
	IdentityHeader = "X-Signal-Identity"
	// KeyHeader carries the dealer key when the router requires one
	KeyHeader = "X-Signal-Key"
	// DefaultWSPath is where the router accepts dealers
	DefaultWSPath = "/dealer"

	writeWait = 10 * time.Second
)

// WSDialer opens dealer connections over WebSocket, for deployments where
// only HTTP traffic reaches the router.
type WSDialer struct {
	opts   DialOptions
	tracer trace.Tracer
}

func NewWSDialer(opts DialOptions) *WSDialer {
	return &WSDialer{
		opts:   opts.withDefaults(),
		tracer: telemetry.GetTracer("ws-dealer"),
	}
}

func (d *WSDialer) Dial(ctx context.Context, ep Endpoint, identity string) (Socket, error) {
	if identity == "" {
		return nil, apperrors.ErrInvalidIdentity
	}

	ctx, span := d.tracer.Start(ctx, "WS Dial",
		trace.WithAttributes(attribute.String("ws.url", ep.String()), attribute.String("ws.identity", identity)),
	)
	defer span.End()

	dialer := websocket.Dialer{HandshakeTimeout: d.opts.DialTimeout}
	header := http.Header{}
	header.Set(IdentityHeader, identity)
	if d.opts.AuthKey != "" {
		header.Set(KeyHeader, d.opts.AuthKey)
	}

	conn, _, err := dialer.DialContext(ctx, ep.String(), header)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("ws dial %s: %w", ep, err)
	}

	s := &wsSocket{
		pump: newPump(d.opts),
		conn: conn,
		opts: d.opts,
	}

	if d.opts.PingInterval > 0 {
		conn.SetReadDeadline(time.Now().Add(d.opts.PongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(d.opts.PongWait))
			return nil
		})
	}

	s.wg.Add(2)
	go s.writeLoop()
	go s.readLoop()
	return s, nil
}

type wsSocket struct {
	*pump
	conn *websocket.Conn
	opts DialOptions
	wg   sync.WaitGroup
}

// writeLoop is the only goroutine writing data or pings to the connection
func (s *wsSocket) writeLoop() {
	defer s.wg.Done()

	var ping <-chan time.Time
	if s.opts.PingInterval > 0 {
		ticker := time.NewTicker(s.opts.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case msg := <-s.out:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				s.fail(err)
				return
			}
		case <-ping:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.fail(err)
				return
			}
		}
	}
}

func (s *wsSocket) readLoop() {
	defer s.wg.Done()
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.fail(err)
			return
		}
		if !s.deliver(msg) {
			return
		}
	}
}

func (s *wsSocket) Close() error {
	if !s.stop() {
		return nil
	}
	s.fail(errors.New("closed locally"))

	// let the writer send the close frame before tearing the connection down
	writerDone := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(writerDone)
	}()
	select {
	case <-writerDone:
	case <-time.After(100 * time.Millisecond):
	}

	err := s.conn.Close()
	<-writerDone
	return err
}
