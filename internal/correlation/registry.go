// Package correlation matches locally issued trade request ids with the
// out-of-band price confirmations that complete them.
package correlation

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"signalbridge/internal/core"
	apperrors "signalbridge/pkg/errors"
	"signalbridge/pkg/telemetry"
)

// PendingTrade is a submitted trade waiting for its dealer confirmation
type PendingTrade struct {
	RequestID    int32
	Kind         core.ActionType
	Request      core.TradeRequest
	RegisteredAt time.Time

	resolve func(bid, ask float64)
}

// NewPendingTrade builds a pending trade that runs resolve once confirmed
func NewPendingTrade(id int32, req core.TradeRequest, resolve func(bid, ask float64)) *PendingTrade {
	return &PendingTrade{
		RequestID:    id,
		Kind:         req.Kind,
		Request:      req,
		RegisteredAt: time.Now(),
		resolve:      resolve,
	}
}

// Resolve completes the trade at the confirmed prices
func (p *PendingTrade) Resolve(bid, ask float64) {
	if p.resolve != nil {
		p.resolve(bid, ask)
	}
}

type pendingMap struct {
	name string
	mu   sync.Mutex
	m    map[int32]*PendingTrade
}

// Registry holds open and close pending trades in two independently locked
// maps. A request id is present in at most one of them.
type Registry struct {
	open    pendingMap
	close   pendingMap
	metrics *telemetry.MetricsHolder
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		open:    pendingMap{name: "open", m: make(map[int32]*PendingTrade)},
		close:   pendingMap{name: "close", m: make(map[int32]*PendingTrade)},
		metrics: telemetry.GetGlobalMetrics(),
	}
}

func (r *Registry) mapFor(kind core.ActionType) *pendingMap {
	if kind == core.Close {
		return &r.close
	}
	return &r.open
}

// Register inserts p into the map of its kind. Both maps are locked, open
// first, so the id cannot appear in the other map concurrently.
func (r *Registry) Register(p *PendingTrade) error {
	r.open.mu.Lock()
	defer r.open.mu.Unlock()
	r.close.mu.Lock()
	defer r.close.mu.Unlock()

	if _, ok := r.open.m[p.RequestID]; ok {
		return fmt.Errorf("request %d: %w", p.RequestID, apperrors.ErrDuplicatePending)
	}
	if _, ok := r.close.m[p.RequestID]; ok {
		return fmt.Errorf("request %d: %w", p.RequestID, apperrors.ErrDuplicatePending)
	}

	target := r.mapFor(p.Kind)
	target.m[p.RequestID] = p
	r.metrics.SetPendingTrades(target.name, int64(len(target.m)))
	return nil
}

// Take removes and returns the pending trade of the given kind, if present.
// Only that kind's lock is held.
func (r *Registry) Take(kind core.ActionType, id int32) (*PendingTrade, bool) {
	pm := r.mapFor(kind)
	pm.mu.Lock()
	defer pm.mu.Unlock()

	p, ok := pm.m[id]
	if ok {
		delete(pm.m, id)
		r.metrics.SetPendingTrades(pm.name, int64(len(pm.m)))
	}
	return p, ok
}

// Len returns how many trades of a kind are pending
func (r *Registry) Len(kind core.ActionType) int {
	pm := r.mapFor(kind)
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.m)
}

// Count returns how many entries exist for id across both maps
func (r *Registry) Count(id int32) int {
	n := 0
	for _, pm := range []*pendingMap{&r.open, &r.close} {
		pm.mu.Lock()
		if _, ok := pm.m[id]; ok {
			n++
		}
		pm.mu.Unlock()
	}
	return n
}

// ExpireBefore removes every pending trade registered before cutoff
func (r *Registry) ExpireBefore(cutoff time.Time) []*PendingTrade {
	var expired []*PendingTrade
	for _, pm := range []*pendingMap{&r.open, &r.close} {
		pm.mu.Lock()
		for id, p := range pm.m {
			if p.RegisteredAt.Before(cutoff) {
				expired = append(expired, p)
				delete(pm.m, id)
			}
		}
		r.metrics.SetPendingTrades(pm.name, int64(len(pm.m)))
		pm.mu.Unlock()
	}
	return expired
}

// PendingInfo describes a pending trade for the admin surface
type PendingInfo struct {
	RequestID int32     `json:"request_id"`
	Kind      string    `json:"kind"`
	Login     int32     `json:"login"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Volume    float64   `json:"volume"`
	OrderID   int32     `json:"order_id,omitempty"`
	Since     time.Time `json:"since"`
}

// Snapshot lists every pending trade ordered by request id
func (r *Registry) Snapshot() []PendingInfo {
	var out []PendingInfo
	for _, pm := range []*pendingMap{&r.open, &r.close} {
		pm.mu.Lock()
		for _, p := range pm.m {
			out = append(out, PendingInfo{
				RequestID: p.RequestID,
				Kind:      strings.ToLower(p.Kind.String()),
				Login:     p.Request.Login,
				Symbol:    p.Request.Symbol,
				Side:      p.Request.Side.String(),
				Volume:    p.Request.Volume,
				OrderID:   p.Request.OrderID,
				Since:     p.RegisteredAt,
			})
		}
		pm.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestID < out[j].RequestID })
	return out
}
