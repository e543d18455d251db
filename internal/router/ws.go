package router

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"signalbridge/internal/auth"
	"signalbridge/internal/core"
	"signalbridge/internal/transport"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

var (
	routerActiveConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "signal_router_active_connections",
		Help: "Current number of connected WebSocket dealers",
	}, []string{"endpoint"})

	routerRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "signal_router_rejected_total",
		Help: "Total number of rejected dealer connections",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(routerActiveConnections)
	prometheus.MustRegister(routerRejectedTotal)
}

const (
	pingPeriod = 54 * time.Second
	pongWait   = 60 * time.Second
	writeWait  = 10 * time.Second
)

// WSOptions configures a WSRouter
type WSOptions struct {
	Path           string
	AllowedOrigins []string
	MaxConnections int
	RateLimit      float64 // connections per second per IP
	RateBurst      int
	Auth           *auth.KeyValidator // nil accepts every dealer
}

// WSRouter accepts dealers over WebSocket. The dealer identity comes from
// the handshake header; anonymous dealers get a random one.
type WSRouter struct {
	hub      *Hub
	handler  FrameHandler
	logger   core.ILogger
	opts     WSOptions
	upgrader websocket.Upgrader

	connSemaphore chan struct{}
	ipLimiters    sync.Map // map[string]*rate.Limiter

	mu  sync.Mutex
	srv *http.Server
	wg  sync.WaitGroup
}

func NewWSRouter(opts WSOptions, handler FrameHandler, logger core.ILogger) *WSRouter {
	if opts.Path == "" {
		opts.Path = transport.DefaultWSPath
	}
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 1000
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 20
	}

	logger = logger.WithField("component", "ws_router")
	r := &WSRouter{
		hub:           NewHub(logger),
		handler:       handler,
		logger:        logger,
		opts:          opts,
		connSemaphore: make(chan struct{}, opts.MaxConnections),
	}
	r.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     r.checkOrigin,
	}
	return r
}

// checkOrigin admits non-browser dealers, which send no Origin, and browsers
// from an allowed origin
func (r *WSRouter) checkOrigin(req *http.Request) bool {
	origin := req.Header.Get("Origin")
	if origin == "" {
		return true
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		routerRejectedTotal.WithLabelValues("invalid_origin").Inc()
		return false
	}
	originStr := parsed.Scheme + "://" + parsed.Host
	for _, allowed := range r.opts.AllowedOrigins {
		if allowed == "*" || allowed == originStr {
			return true
		}
	}

	r.logger.Warn("Rejected dealer from unauthorized origin", "origin", origin, "remote_addr", req.RemoteAddr)
	routerRejectedTotal.WithLabelValues("invalid_origin").Inc()
	return false
}

// Handler serves the dealer endpoint
func (r *WSRouter) Handler() http.Handler {
	mux := http.NewServeMux()
	var dealer http.Handler = http.HandlerFunc(r.handleDealer)
	if r.opts.Auth != nil {
		dealer = r.opts.Auth.Middleware(dealer)
	}
	mux.Handle(r.opts.Path, dealer)
	return mux
}

// Start serves on addr until ctx is done
func (r *WSRouter) Start(ctx context.Context, addr string) error {
	r.mu.Lock()
	r.srv = &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := r.srv
	r.mu.Unlock()

	r.logger.Info("Starting WebSocket router", "addr", addr, "path", r.opts.Path)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("ws router: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return r.Stop(shutdownCtx)
	}
}

// Stop shuts the listener down and disconnects every dealer
func (r *WSRouter) Stop(ctx context.Context) error {
	r.mu.Lock()
	srv := r.srv
	r.srv = nil
	r.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	r.hub.CloseAll()
	r.wg.Wait()
	return err
}

// SendTo queues frame for the dealer with identity
func (r *WSRouter) SendTo(identity string, frame []byte) error {
	if !r.hub.SendTo(identity, frame) {
		return fmt.Errorf("dealer %q unreachable", identity)
	}
	return nil
}

func (r *WSRouter) Identities() []string {
	return r.hub.Identities()
}

func (r *WSRouter) handleDealer(w http.ResponseWriter, req *http.Request) {
	ip := remoteIP(req)
	if !r.limiter(ip).Allow() {
		r.logger.Warn("IP rate limit exceeded", "ip", ip)
		routerRejectedTotal.WithLabelValues("rate_limit").Inc()
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	select {
	case r.connSemaphore <- struct{}{}:
		routerActiveConnections.WithLabelValues(r.opts.Path).Inc()
		defer func() {
			<-r.connSemaphore
			routerActiveConnections.WithLabelValues(r.opts.Path).Dec()
		}()
	default:
		r.logger.Warn("Max connections reached")
		routerRejectedTotal.WithLabelValues("connection_limit").Inc()
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}

	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	identity := req.Header.Get(transport.IdentityHeader)
	if identity == "" {
		identity = uuid.NewString()
	}
	r.wg.Add(1)
	defer r.wg.Done()

	peer := NewPeer(identity)
	r.hub.Register(peer)
	r.logger.Info("Dealer connected", "identity", identity, "remote_addr", req.RemoteAddr)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.writePump(conn, peer)
	}()
	r.readPump(conn, peer)

	r.hub.Unregister(peer)
	<-done
	conn.Close()
	r.logger.Info("Dealer disconnected", "identity", identity)
}

func (r *WSRouter) writePump(conn *websocket.Conn, peer *Peer) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-peer.sendChan():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				// unblock the read pump
				conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				r.logger.Warn("Write error", "identity", peer.Identity(), "error", err)
				conn.Close()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (r *WSRouter) readPump(conn *websocket.Conn, peer *Peer) {
	defer peer.Close()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				r.logger.Warn("Read error", "identity", peer.Identity(), "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if len(frame) > 0 && r.handler != nil {
			r.handler(peer.Identity(), frame)
		}
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (r *WSRouter) limiter(ip string) *rate.Limiter {
	if val, ok := r.ipLimiters.Load(ip); ok {
		return val.(*rate.Limiter)
	}
	actual, _ := r.ipLimiters.LoadOrStore(ip, rate.NewLimiter(rate.Limit(r.opts.RateLimit), r.opts.RateBurst))
	return actual.(*rate.Limiter)
}
