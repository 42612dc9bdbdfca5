package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/opjourney/opjourney/pkg/journey"
	"github.com/opjourney/opjourney/pkg/ops"
)

var (
	ErrInvalidKey = errors.New("invalid API key")
	ErrKeyExpired = errors.New("API key expired")
)

// ClientHeader and KeyHeader carry the credentials on every request.
const (
	ClientHeader = "X-API-Client"
	KeyHeader    = "X-API-Key"
)

// KeyInfo contains API key metadata. Only the bcrypt hash is retained.
type KeyInfo struct {
	Hash      string
	Client    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// KeyManager manages per-client API keys.
type KeyManager struct {
	keys map[string]*KeyInfo
	mu   sync.RWMutex
}

// NewKeyManager creates a new key manager.
func NewKeyManager() *KeyManager {
	return &KeyManager{
		keys: make(map[string]*KeyInfo),
	}
}

// GenerateKey creates and registers a new API key for a client, returning
// the plaintext key exactly once.
func (km *KeyManager) GenerateKey(client string, ttl time.Duration) (string, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", fmt.Errorf("failed to generate API key: %w", err)
	}
	key := base64.URLEncoding.EncodeToString(keyBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}

	km.mu.Lock()
	defer km.mu.Unlock()
	km.keys[client] = &KeyInfo{
		Hash:      string(hash),
		Client:    client,
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}
	return key, nil
}

// Validate checks an API key for a client.
func (km *KeyManager) Validate(client, key string) error {
	km.mu.RLock()
	defer km.mu.RUnlock()

	info, ok := km.keys[client]
	if !ok {
		return ErrInvalidKey
	}
	if time.Now().After(info.ExpiresAt) {
		return ErrKeyExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(info.Hash), []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// Revoke removes a client's key.
func (km *KeyManager) Revoke(client string) {
	km.mu.Lock()
	defer km.mu.Unlock()
	delete(km.keys, client)
}

// CleanupExpired removes expired keys.
func (km *KeyManager) CleanupExpired() {
	km.mu.Lock()
	defer km.mu.Unlock()
	now := time.Now()
	for client, info := range km.keys {
		if now.After(info.ExpiresAt) {
			delete(km.keys, client)
		}
	}
}

// Middleware authenticates requests from the credential headers. The
// validation runs under the checkAuthorization stage of the request's
// journey. Paths in skip bypass authentication entirely.
func (km *KeyManager) Middleware(skip ...string) func(http.Handler) http.Handler {
	skipped := make(map[string]bool, len(skip))
	for _, path := range skip {
		skipped[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipped[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			op := ops.FromContext(r.Context())
			done := ops.BeginStage(op, journey.StageCheckAuthorization)
			err := km.Validate(r.Header.Get(ClientHeader), r.Header.Get(KeyHeader))
			done()

			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
