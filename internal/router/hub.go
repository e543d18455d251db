package router

import (
	"sync"
)

// Peer is one connected dealer
type Peer struct {
	identity string
	send     chan []byte
	mu       sync.Mutex
	closed   bool
}

func NewPeer(identity string) *Peer {
	return &Peer{
		identity: identity,
		send:     make(chan []byte, 256),
	}
}

func (p *Peer) Identity() string { return p.identity }

// Send queues a frame for the peer without blocking
func (p *Peer) Send(frame []byte) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

func (p *Peer) sendChan() <-chan []byte {
	return p.send
}

func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.closed {
		p.closed = true
		close(p.send)
	}
}

// Hub indexes connected peers by identity. A reconnecting dealer replaces
// its previous connection.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]*Peer
	logger Logger
}

// Logger is the subset of core.ILogger the hub needs
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

func NewHub(logger Logger) *Hub {
	return &Hub{
		peers:  make(map[string]*Peer),
		logger: logger,
	}
}

// Register adds p, closing any older peer with the same identity
func (h *Hub) Register(p *Peer) {
	h.mu.Lock()
	old, replaced := h.peers[p.identity]
	h.peers[p.identity] = p
	total := len(h.peers)
	h.mu.Unlock()

	if replaced && old != p {
		old.Close()
	}
	if h.logger != nil {
		h.logger.Info("Peer registered", "identity", p.identity, "replaced", replaced, "total_peers", total)
	}
}

// Unregister removes p if it is still the current peer for its identity
func (h *Hub) Unregister(p *Peer) {
	h.mu.Lock()
	current, ok := h.peers[p.identity]
	if ok && current == p {
		delete(h.peers, p.identity)
	}
	total := len(h.peers)
	h.mu.Unlock()

	p.Close()
	if ok && current == p && h.logger != nil {
		h.logger.Info("Peer unregistered", "identity", p.identity, "total_peers", total)
	}
}

// SendTo queues frame for identity. It reports false when the identity is
// unknown or its queue is full.
func (h *Hub) SendTo(identity string, frame []byte) bool {
	h.mu.RLock()
	p, ok := h.peers[identity]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if !p.Send(frame) {
		if h.logger != nil {
			h.logger.Warn("Peer queue full, dropping frame", "identity", identity)
		}
		return false
	}
	return true
}

// Identities lists connected peers
func (h *Hub) Identities() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.peers))
	for id := range h.peers {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) PeerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers)
}

// CloseAll disconnects every peer
func (h *Hub) CloseAll() {
	h.mu.Lock()
	peers := h.peers
	h.peers = make(map[string]*Peer)
	h.mu.Unlock()

	for _, p := range peers {
		p.Close()
	}
}
