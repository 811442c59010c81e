package playerjs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/famomatic/onesie/internal/blobcache"
)

const (
	defaultBaseURL   = "https://www.youtube.com"
	iframeAPIPath    = "/iframe_api"
	playerPathFormat = "/s/player/%s/player_ias.vflset/en_US/base.js"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var playerIDPattern = regexp.MustCompile(`player\\?/([0-9a-fA-F]{8})\\?/`)

// Resolver fetches player source, keyed by player build id, through the
// shared blob store. Concurrent fetches for the same id collapse into one
// upstream request.
type Resolver struct {
	client   *http.Client
	store    blobcache.Store
	baseURL  string
	playerID string // optional fixed override
	logger   zerolog.Logger
	group    singleflight.Group
}

// ResolverConfig tunes a Resolver.
type ResolverConfig struct {
	BaseURL  string // override the platform host, mainly for tests
	PlayerID string // pin a specific player build instead of discovering one
}

func NewResolver(client *http.Client, store blobcache.Store, cfg ResolverConfig, logger zerolog.Logger) *Resolver {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Resolver{
		client:   client,
		store:    store,
		baseURL:  strings.TrimRight(baseURL, "/"),
		playerID: cfg.PlayerID,
		logger:   logger,
	}
}

// CurrentPlayer discovers the active player build (or uses the pinned
// override), fetches its source, and parses it.
func (r *Resolver) CurrentPlayer(ctx context.Context) (*Player, error) {
	id := r.playerID
	if id == "" {
		discovered, err := r.discoverPlayerID(ctx)
		if err != nil {
			return nil, err
		}
		id = discovered
	}

	js, err := r.playerSource(ctx, id)
	if err != nil {
		return nil, err
	}
	return ParsePlayer(id, js)
}

// discoverPlayerID scrapes the current player build id from the iframe API
// shim, the cheapest stable source for it.
func (r *Resolver) discoverPlayerID(ctx context.Context) (string, error) {
	body, err := r.get(ctx, r.baseURL+iframeAPIPath)
	if err != nil {
		return "", fmt.Errorf("fetch iframe api: %w", err)
	}
	m := playerIDPattern.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("player id not found in iframe api response")
	}
	return string(m[1]), nil
}

// playerSource returns the player JS body, via the blob store when
// available. Store misses and store failures both fall through to the
// network; the store itself is best-effort.
func (r *Resolver) playerSource(ctx context.Context, id string) (string, error) {
	cacheKey := "playerjs:" + id
	if cached, ok := r.store.Get(ctx, cacheKey); ok {
		return string(cached), nil
	}

	v, err, _ := r.group.Do(id, func() (any, error) {
		url := r.baseURL + fmt.Sprintf(playerPathFormat, id)
		body, err := r.get(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetch player source: %w", err)
		}
		r.store.Set(ctx, cacheKey, body)
		r.logger.Debug().Str("player_id", id).Int("bytes", len(body)).Msg("fetched player source")
		return body, nil
	})
	if err != nil {
		return "", err
	}
	return string(v.([]byte)), nil
}

func (r *Resolver) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
