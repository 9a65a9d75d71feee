package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jwalitptl/hms/internal/repository"
)

type entry struct {
	value   string
	expires time.Time
}

type tokenRepository struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewTokenRepository() repository.TokenRepository {
	return &tokenRepository{entries: map[string]entry{}, now: time.Now}
}

func (r *tokenRepository) set(key, value string, ttl time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = entry{value: value, expires: r.now().Add(ttl)}
}

// take deletes key and reports whether it held value.
func (r *tokenRepository) take(key, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok || r.now().After(e.expires) {
		delete(r.entries, key)
		return false
	}
	if e.value != value {
		return false
	}
	delete(r.entries, key)
	return true
}

func (r *tokenRepository) StoreCode(ctx context.Context, purpose, email, code string, ttl time.Duration) error {
	r.set("code:"+purpose+":"+email, code, ttl)
	return nil
}

func (r *tokenRepository) ConsumeCode(ctx context.Context, purpose, email, code string) (bool, error) {
	return r.take("code:"+purpose+":"+email, code), nil
}

func (r *tokenRepository) StoreResetToken(ctx context.Context, email, token string, ttl time.Duration) error {
	r.set("reset:"+email, token, ttl)
	return nil
}

func (r *tokenRepository) ConsumeResetToken(ctx context.Context, email, token string) (bool, error) {
	return r.take("reset:"+email, token), nil
}

func (r *tokenRepository) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries["revoked:"+tokenID] = entry{value: "1", expires: until}
	return nil
}

func (r *tokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries["revoked:"+tokenID]
	return ok && r.now().Before(e.expires), nil
}

// Sweep drops expired entries and returns how many were removed.
func (r *tokenRepository) Sweep(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	n := 0
	for key, e := range r.entries {
		if now.After(e.expires) {
			delete(r.entries, key)
			n++
		}
	}
	return n, nil
}
