// Package auth authenticates dealers connecting to the router
package auth

import (
	"crypto/subtle"
	"net/http"
	"sync"

	"signalbridge/internal/core"
	"signalbridge/internal/transport"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	// HeaderKey carries the dealer key on the WebSocket handshake
	HeaderKey = transport.KeyHeader

	// DefaultRateLimitPerKey is the default number of handshakes per second allowed per key
	DefaultRateLimitPerKey = 5
)

// KeyValidator checks dealer keys and rate limits handshakes per key
type KeyValidator struct {
	validKeys     map[string]bool
	rateLimiters  map[string]*rate.Limiter
	rateLimit     int
	logger        core.ILogger
	failureLogger core.ILogger
	mu            sync.RWMutex
}

// NewKeyValidator creates a validator accepting keys. With no keys every
// dealer is accepted.
func NewKeyValidator(keys []string, rateLimit int, logger core.ILogger) *KeyValidator {
	validKeys := make(map[string]bool)
	for _, key := range keys {
		if key != "" {
			validKeys[key] = true
		}
	}

	if rateLimit <= 0 {
		rateLimit = DefaultRateLimitPerKey
	}

	return &KeyValidator{
		validKeys:     validKeys,
		rateLimiters:  make(map[string]*rate.Limiter),
		rateLimit:     rateLimit,
		logger:        logger.WithField("component", "auth"),
		failureLogger: logger.WithField("component", "auth_failure"),
	}
}

// Enabled reports whether any key is configured
func (v *KeyValidator) Enabled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.validKeys) > 0
}

// AddKey adds a key (for key rotation)
func (v *KeyValidator) AddKey(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.validKeys[key] = true
	v.logger.Info("Dealer key added")
}

// RemoveKey removes a key (for key rotation)
func (v *KeyValidator) RemoveKey(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.validKeys, key)
	delete(v.rateLimiters, key)
	v.logger.Info("Dealer key removed")
}

// ValidateKey checks key in constant time against every configured key
func (v *KeyValidator) ValidateKey(key string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()

	ok := false
	for valid := range v.validKeys {
		if subtle.ConstantTimeCompare([]byte(valid), []byte(key)) == 1 {
			ok = true
		}
	}
	return ok
}

// CheckRateLimit reports whether key may perform another handshake now
func (v *KeyValidator) CheckRateLimit(key string) bool {
	v.mu.Lock()
	limiter, exists := v.rateLimiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(v.rateLimit), v.rateLimit)
		v.rateLimiters[key] = limiter
	}
	v.mu.Unlock()

	return limiter.Allow()
}

// Middleware rejects requests without a valid key before they reach next
func (v *KeyValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		requestID := uuid.NewString()
		key := r.Header.Get(HeaderKey)
		if key == "" {
			v.failureLogger.Warn("Authentication failed: missing key",
				"path", r.URL.Path,
				"request_id", requestID,
				"client_ip", r.RemoteAddr)
			http.Error(w, "missing dealer key", http.StatusUnauthorized)
			return
		}

		if !v.ValidateKey(key) {
			v.failureLogger.Warn("Authentication failed: invalid key",
				"path", r.URL.Path,
				"request_id", requestID,
				"client_ip", r.RemoteAddr)
			http.Error(w, "invalid dealer key", http.StatusUnauthorized)
			return
		}

		if !v.CheckRateLimit(key) {
			v.failureLogger.Warn("Rate limit exceeded",
				"path", r.URL.Path,
				"request_id", requestID,
				"client_ip", r.RemoteAddr)
			http.Error(w, "rate limit exceeded for dealer key", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
