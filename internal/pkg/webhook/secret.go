package webhook

import (
	"strings"
	"sync"
	"time"

	"github.com/expensehq/expensehq/internal/pkg/env"
)

// SecretStore resolves HMAC signing secrets by a well-known name. The
// pipeline depends on this capability but does not implement the backing
// store itself.
type SecretStore interface {
	GetSecret(name string) (string, error)
}

// EnvSecretStore resolves secrets from the process environment / env file.
type EnvSecretStore struct{}

func (EnvSecretStore) GetSecret(name string) (string, error) {
	secret := strings.TrimSpace(env.GetEnv(name, ""))
	if secret == "" {
		return "", Validationf("secret %s is not configured", name)
	}
	return secret, nil
}

// CachedSecretStore memoizes secret lookups per verifier instance. The cache
// is per worker and must tolerate cold misses; entries refresh after TTL so
// rotated secrets are picked up without a restart.
type CachedSecretStore struct {
	inner SecretStore
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	fetchedAt time.Time
}

// NewCachedSecretStore wraps inner with a TTL cache.
func NewCachedSecretStore(inner SecretStore, ttl time.Duration) *CachedSecretStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedSecretStore{
		inner:   inner,
		ttl:     ttl,
		entries: make(map[string]cachedSecret),
	}
}

func (s *CachedSecretStore) GetSecret(name string) (string, error) {
	s.mu.RLock()
	entry, ok := s.entries[name]
	s.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < s.ttl {
		return entry.value, nil
	}

	value, err := s.inner.GetSecret(name)
	if err != nil {
		// Serve a stale entry rather than fail if the backing store is
		// temporarily unavailable.
		if ok {
			return entry.value, nil
		}
		return "", err
	}

	s.mu.Lock()
	s.entries[name] = cachedSecret{value: value, fetchedAt: time.Now()}
	s.mu.Unlock()
	return value, nil
}
