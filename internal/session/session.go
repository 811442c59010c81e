// Package session constructs and caches the platform session: the client
// identity the request envelope is built under, the visitor id, and the
// signing capabilities derived from the current player build.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/famomatic/onesie/internal/blobcache"
	"github.com/famomatic/onesie/internal/playerjs"
	"github.com/famomatic/onesie/internal/refresh"
)

const (
	// DefaultRefreshInterval is how long a constructed session stays fresh.
	DefaultRefreshInterval = 48 * time.Hour

	// The TV client the Onesie endpoint is probed with.
	clientName      = "TVHTML5"
	clientNameID    = 7
	clientVersion   = "7.20250219.14.00"
	clientUserAgent = "Mozilla/5.0 (ChromiumStylePlatform) Cobalt/Version"

	visitorDataCacheKey = "session:visitor_data"
)

var (
	// ErrMissingSigningSecret indicates the player build carried no
	// signature timestamp. No request can be built without it.
	ErrMissingSigningSecret = errors.New("signing secret (sts) not available")

	// ErrURLResolution indicates the input could not be mapped to a
	// video id.
	ErrURLResolution = errors.New("could not resolve input to a video id")
)

var (
	videoIDPattern  = regexp.MustCompile(`^[0-9A-Za-z_-]{11}$`)
	watchURLPattern = regexp.MustCompile(`(?:v=|/shorts/|/live/|/embed/|youtu\.be/)([0-9A-Za-z_-]{11})`)

	visitorDataPattern = regexp.MustCompile(`"visitorData"\s*:\s*"([^"]+)"`)
)

// Context is the innertube request context the envelope body carries.
type Context struct {
	Client ClientInfo `json:"client"`
}

// ClientInfo identifies the requesting client to the platform.
type ClientInfo struct {
	ClientName       string `json:"clientName"`
	ClientVersion    string `json:"clientVersion"`
	UserAgent        string `json:"userAgent,omitempty"`
	VisitorData      string `json:"visitorData,omitempty"`
	AcceptLanguage   string `json:"hl"`
	TimeZone         string `json:"timeZone"`
	UtcOffsetMinutes int    `json:"utcOffsetMinutes"`
}

// Session is one constructed platform session. Immutable after
// construction; refresh replaces it wholesale.
type Session struct {
	context Context
	player  *playerjs.Player
}

// Context returns a copy of the session's request context, so callers can
// amend it without mutating the shared session.
func (s *Session) Context() Context {
	return s.context
}

// ClientNameID is the platform's numeric identifier for the session's
// client.
func (s *Session) ClientNameID() int { return clientNameID }

// ClientVersion is the session client's version string.
func (s *Session) ClientVersion() string { return s.context.Client.ClientVersion }

// UserAgent is the user agent requests under this session present.
func (s *Session) UserAgent() string { return s.context.Client.UserAgent }

// VisitorData is the session's visitor id, possibly empty.
func (s *Session) VisitorData() string { return s.context.Client.VisitorData }

// SignatureTimestamp is the signing secret ("sts") of the session's player
// build.
func (s *Session) SignatureTimestamp() int { return s.player.STS }

// ResolveVideoID maps a raw video id or a watch/shorts/live/embed URL to
// the platform video id.
func (s *Session) ResolveVideoID(input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", ErrURLResolution
	}
	if videoIDPattern.MatchString(trimmed) {
		return trimmed, nil
	}
	if m := watchURLPattern.FindStringSubmatch(trimmed); len(m) == 2 {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: %q", ErrURLResolution, input)
}

// DecipherURL resolves a format's playback URL through the player's
// signature and throttling transforms.
func (s *Session) DecipherURL(plainURL, signatureCipher string) (string, error) {
	return s.player.DecipherURL(plainURL, signatureCipher)
}

// Source constructs Sessions and caches them behind a refresh.Cache.
type Source struct {
	client   *http.Client
	resolver *playerjs.Resolver
	store    blobcache.Store
	baseURL  string
	logger   zerolog.Logger
	cache    *refresh.Cache[*Session]
}

// SourceConfig tunes a Source.
type SourceConfig struct {
	RefreshInterval time.Duration // non-positive selects DefaultRefreshInterval
	BaseURL         string        // override the platform host, mainly for tests
	PlayerID        string        // pin a specific player build
}

func NewSource(client *http.Client, store blobcache.Store, cfg SourceConfig, logger zerolog.Logger) *Source {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.youtube.com"
	}
	s := &Source{
		client: client,
		resolver: playerjs.NewResolver(client, store, playerjs.ResolverConfig{
			BaseURL:  cfg.BaseURL,
			PlayerID: cfg.PlayerID,
		}, logger),
		store:   store,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
	s.cache = refresh.New("session", interval, s.fetch, logger)
	return s
}

// Get returns the current session, constructing or refreshing as needed.
func (s *Source) Get(ctx context.Context) (*Session, error) {
	return s.cache.Get(ctx)
}

func (s *Source) fetch(ctx context.Context) (*Session, error) {
	player, err := s.resolver.CurrentPlayer(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve player: %w", err)
	}
	if player.STS == 0 {
		return nil, ErrMissingSigningSecret
	}

	visitorData := s.visitorData(ctx)

	sess := &Session{
		context: Context{
			Client: ClientInfo{
				ClientName:       clientName,
				ClientVersion:    clientVersion,
				UserAgent:        clientUserAgent,
				VisitorData:      visitorData,
				AcceptLanguage:   "en",
				TimeZone:         "UTC",
				UtcOffsetMinutes: 0,
			},
		},
		player: player,
	}

	s.logger.Info().
		Str("player_id", player.ID).
		Int("sts", player.STS).
		Bool("visitor_data", visitorData != "").
		Msg("constructed platform session")
	return sess, nil
}

// visitorData scrapes the visitor id from the platform landing page,
// going through the blob store first. A missing visitor id degrades the
// session rather than failing it.
func (s *Source) visitorData(ctx context.Context) string {
	if cached, ok := s.store.Get(ctx, visitorDataCacheKey); ok {
		return string(cached)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/", nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", clientUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("visitor data fetch failed, continuing without")
		return ""
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		s.logger.Warn().Err(err).Msg("visitor data read failed, continuing without")
		return ""
	}

	m := visitorDataPattern.FindSubmatch(body)
	if m == nil {
		s.logger.Warn().Msg("visitor data not present on landing page")
		return ""
	}

	value := string(m[1])
	s.store.Set(ctx, visitorDataCacheKey, []byte(value))
	return value
}
