package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	km := NewKeyManager()
	key, err := km.GenerateKey("opjctl", time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if err := km.Validate("opjctl", key); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
	if err := km.Validate("opjctl", "wrong"); err != ErrInvalidKey {
		t.Errorf("wrong key: got %v, want ErrInvalidKey", err)
	}
	if err := km.Validate("nobody", key); err != ErrInvalidKey {
		t.Errorf("unknown client: got %v, want ErrInvalidKey", err)
	}
}

func TestExpiredKey(t *testing.T) {
	km := NewKeyManager()
	key, err := km.GenerateKey("opjctl", -time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := km.Validate("opjctl", key); err != ErrKeyExpired {
		t.Errorf("expired key: got %v, want ErrKeyExpired", err)
	}

	km.CleanupExpired()
	if err := km.Validate("opjctl", key); err != ErrInvalidKey {
		t.Errorf("after cleanup: got %v, want ErrInvalidKey", err)
	}
}

func TestRevoke(t *testing.T) {
	km := NewKeyManager()
	key, _ := km.GenerateKey("opjctl", time.Hour)
	km.Revoke("opjctl")
	if err := km.Validate("opjctl", key); err != ErrInvalidKey {
		t.Errorf("revoked key: got %v, want ErrInvalidKey", err)
	}
}

func TestMiddleware(t *testing.T) {
	km := NewKeyManager()
	key, _ := km.GenerateKey("opjctl", time.Hour)

	handler := km.Middleware("/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		path   string
		client string
		key    string
		want   int
	}{
		{"valid credentials", "/dbs/app/docs/k", "opjctl", key, http.StatusNoContent},
		{"missing credentials", "/dbs/app/docs/k", "", "", http.StatusUnauthorized},
		{"wrong key", "/dbs/app/docs/k", "opjctl", "nope", http.StatusUnauthorized},
		{"skipped path", "/health", "", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.client != "" {
				req.Header.Set(ClientHeader, tt.client)
				req.Header.Set(KeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
