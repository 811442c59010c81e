// Package challenge holds the contract with the external challenge-solving
// service and the script-evaluation capability used for signature
// transforms. The pipeline depends on this package only through narrow
// interfaces so the solving machinery stays swappable.
package challenge

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultTokenTTL is how long a proof-of-origin token stays usable.
const DefaultTokenTTL = 6 * time.Hour

// Token is a proof-of-origin token with its generation timestamp.
type Token struct {
	Value       string
	GeneratedAt time.Time
}

// TokenProvider requests an opaque token for an identifier (visitor data
// or data-sync id).
type TokenProvider interface {
	RequestToken(ctx context.Context, identifier string) (Token, error)
}

// Identifier selects the cache key for a token request. The data-sync id
// takes priority over visitor data when both are present.
func Identifier(visitorData, dataSyncID string) string {
	if s := strings.TrimSpace(dataSyncID); s != "" {
		return s
	}
	return strings.TrimSpace(visitorData)
}

type cachedToken struct {
	token    Token
	cachedAt time.Time
}

// CachedProvider wraps a TokenProvider with per-identifier TTL caching.
type CachedProvider struct {
	base TokenProvider
	ttl  time.Duration

	mu    sync.RWMutex
	cache map[string]cachedToken
}

// NewCachedProvider wraps base with in-memory identifier-keyed token
// caching. Empty tokens are not cached. A non-positive ttl selects
// DefaultTokenTTL. Returns nil when base is nil so callers can pass the
// absence through unchanged.
func NewCachedProvider(base TokenProvider, ttl time.Duration) *CachedProvider {
	if base == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &CachedProvider{
		base:  base,
		ttl:   ttl,
		cache: make(map[string]cachedToken),
	}
}

func (p *CachedProvider) RequestToken(ctx context.Context, identifier string) (Token, error) {
	key := strings.TrimSpace(identifier)
	if key == "" {
		return p.base.RequestToken(ctx, identifier)
	}

	p.mu.RLock()
	entry, ok := p.cache[key]
	p.mu.RUnlock()
	if ok && time.Since(entry.cachedAt) < p.ttl {
		return entry.token, nil
	}

	token, err := p.base.RequestToken(ctx, identifier)
	if err != nil || strings.TrimSpace(token.Value) == "" {
		return token, err
	}

	p.mu.Lock()
	p.cache[key] = cachedToken{token: token, cachedAt: time.Now()}
	p.mu.Unlock()
	return token, nil
}

// InvalidateAll drops every cached token.
func (p *CachedProvider) InvalidateAll() {
	p.mu.Lock()
	p.cache = make(map[string]cachedToken)
	p.mu.Unlock()
}
