// Package transport provides the identity-addressed dealer connection to the
// router peer and the poll and dispatch loops that decouple it from callers.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	apperrors "signalbridge/pkg/errors"
)

// Socket is one dealer-style connection. Both calls return immediately:
// apperrors.ErrWouldBlock means nothing could be transferred right now.
// Any other error means the connection is unusable.
type Socket interface {
	TrySend(msg []byte) error
	TryRecv() ([]byte, error)
	Close() error
}

// Dialer opens a Socket that announces identity to the peer at ep.
// Dial blocks until the connection is established or fails.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint, identity string) (Socket, error)
}

// Supported schemes
const (
	SchemeTCP = "tcp"
	SchemeWS  = "ws"
)

// Endpoint addresses the router peer
type Endpoint struct {
	Scheme string
	Host   string
	Port   int
	Path   string // ws only
}

// NewEndpoint builds an endpoint from the configured parts
func NewEndpoint(scheme, host string, port int) (Endpoint, error) {
	ep := Endpoint{Scheme: strings.ToLower(scheme), Host: host, Port: port}
	if ep.Scheme == SchemeWS {
		ep.Path = DefaultWSPath
	}
	return ep, ep.Validate()
}

// ParseEndpoint parses "tcp://host:port" or "ws://host:port/path"
func ParseEndpoint(raw string) (Endpoint, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidEndpoint, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidEndpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: port %q", apperrors.ErrInvalidEndpoint, portStr)
	}
	ep := Endpoint{Scheme: strings.ToLower(u.Scheme), Host: host, Port: port, Path: u.Path}
	if ep.Scheme == SchemeWS && ep.Path == "" {
		ep.Path = DefaultWSPath
	}
	return ep, ep.Validate()
}

// Validate checks the endpoint can be dialed
func (e Endpoint) Validate() error {
	switch e.Scheme {
	case SchemeTCP, SchemeWS:
	default:
		return fmt.Errorf("%w: %q", apperrors.ErrUnsupportedScheme, e.Scheme)
	}
	if e.Host == "" {
		return fmt.Errorf("%w: empty host", apperrors.ErrInvalidEndpoint)
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", apperrors.ErrInvalidEndpoint, e.Port)
	}
	return nil
}

// Address is host:port
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	return e.Scheme + "://" + e.Address() + e.Path
}

// SchemeDialer routes Dial to the dialer registered for the endpoint scheme
type SchemeDialer map[string]Dialer

// NewDefaultDialer returns a dialer for tcp (ZeroMQ) and ws (WebSocket)
func NewDefaultDialer(opts DialOptions) SchemeDialer {
	return SchemeDialer{
		SchemeTCP: NewZMQDialer(opts),
		SchemeWS:  NewWSDialer(opts),
	}
}

func (d SchemeDialer) Dial(ctx context.Context, ep Endpoint, identity string) (Socket, error) {
	dialer, ok := d[ep.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedScheme, ep.Scheme)
	}
	return dialer.Dial(ctx, ep, identity)
}
