package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"signalbridge/pkg/logging"

	"github.com/stretchr/testify/assert"
)

func TestKeyValidator_ValidateKey(t *testing.T) {
	validator := NewKeyValidator([]string{"valid-key-1", "valid-key-2", ""}, 100, logging.NopLogger{})

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"valid key 1", "valid-key-1", true},
		{"valid key 2", "valid-key-2", true},
		{"invalid key", "invalid-key", false},
		{"empty key", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validator.ValidateKey(tt.key))
		})
	}
}

func TestKeyValidator_Rotation(t *testing.T) {
	validator := NewKeyValidator(nil, 0, logging.NopLogger{})
	assert.False(t, validator.Enabled())

	validator.AddKey("new-key")
	assert.True(t, validator.Enabled())
	assert.True(t, validator.ValidateKey("new-key"))

	validator.RemoveKey("new-key")
	assert.False(t, validator.ValidateKey("new-key"))
}

func TestKeyValidator_RateLimit(t *testing.T) {
	validator := NewKeyValidator([]string{"k"}, 2, logging.NopLogger{})
	assert.True(t, validator.CheckRateLimit("k"))
	assert.True(t, validator.CheckRateLimit("k"))
	assert.False(t, validator.CheckRateLimit("k"))
}

func TestKeyValidator_Middleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name string
		keys []string
		sent string
		want int
	}{
		{"disabled passes everything", nil, "", http.StatusOK},
		{"missing key", []string{"secret"}, "", http.StatusUnauthorized},
		{"wrong key", []string{"secret"}, "guess", http.StatusUnauthorized},
		{"valid key", []string{"secret"}, "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewKeyValidator(tt.keys, 10, logging.NopLogger{}).Middleware(ok)
			req := httptest.NewRequest(http.MethodGet, "/dealer", nil)
			if tt.sent != "" {
				req.Header.Set(HeaderKey, tt.sent)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
