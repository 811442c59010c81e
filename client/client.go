// Package client is the public API: it resolves a video URL or id to a
// normalized metadata record with a directly playable stream URL,
// speaking the platform's binary playback protocol.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/famomatic/onesie/internal/blobcache"
	"github.com/famomatic/onesie/internal/challenge"
	"github.com/famomatic/onesie/internal/dispatch"
	"github.com/famomatic/onesie/internal/liveness"
	"github.com/famomatic/onesie/internal/log"
	"github.com/famomatic/onesie/internal/netx"
	"github.com/famomatic/onesie/internal/onesie"
	"github.com/famomatic/onesie/internal/session"
	"github.com/famomatic/onesie/internal/tvconfig"
	"github.com/famomatic/onesie/internal/types"
	"github.com/famomatic/onesie/internal/ump"
)

// Client resolves video metadata through the playback edge. All requests
// are serialized through a single worker; construct one Client and share
// it.
type Client struct {
	config     Config
	logger     zerolog.Logger
	store      blobcache.Store
	tvConfig   *tvconfig.Source
	sessions   *session.Source
	tokens     challenge.TokenProvider
	prober     *liveness.Prober
	dispatcher *dispatch.Dispatcher[*types.VideoMetadata]
	transport  *transport
}

// New creates a client. Close it when done.
func New(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = netx.DefaultClient(cfg.ProxyURL)
	}

	logger := log.Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	store := cfg.BlobStore
	if store == nil {
		store = blobcache.NewMemory(blobcache.DefaultTTL)
	}

	var tokens challenge.TokenProvider
	if cached := challenge.NewCachedProvider(cfg.TokenProvider, cfg.TokenTTL); cached != nil {
		tokens = cached
	}

	c := &Client{
		config: cfg,
		logger: logger,
		store:  store,
		tvConfig: tvconfig.NewSource(cfg.HTTPClient, tvconfig.SourceConfig{
			RefreshInterval: cfg.TVConfigRefresh,
			Endpoint:        cfg.TVConfigURL,
		}, logger),
		sessions: session.NewSource(cfg.HTTPClient, store, session.SourceConfig{
			RefreshInterval: cfg.SessionRefresh,
			BaseURL:         cfg.BaseURL,
			PlayerID:        cfg.PlayerID,
		}, logger),
		tokens:     tokens,
		dispatcher: dispatch.New[*types.VideoMetadata](cfg.QueueDepth, logger),
		transport:  newTransport(cfg.HTTPClient, cfg.RedirectorURL, logger),
	}
	c.prober = liveness.New(cfg.HTTPClient, liveness.Config{
		Skip: cfg.DisableLivenessCheck,
	}, logger)
	return c
}

// GetMetadata resolves input (a video id or watch URL) to normalized
// metadata for the requested track kind. Requests queue behind a single
// worker; a full queue returns ErrQueueFull immediately.
func (c *Client) GetMetadata(ctx context.Context, input string, kind TrackKind) (*VideoMetadata, error) {
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	if timeout := c.config.RequestTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return c.dispatcher.Submit(ctx, func(ctx context.Context) (*types.VideoMetadata, error) {
		return c.retrieve(ctx, input, kind)
	})
}

// Close releases the worker. Pending requests finish first.
func (c *Client) Close() {
	c.dispatcher.Close()
}

// retrieve is one full protocol round trip. It runs on the dispatcher
// worker.
func (c *Client) retrieve(ctx context.Context, input string, kind TrackKind) (*types.VideoMetadata, error) {
	started := time.Now()

	sess, err := c.sessions.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	videoID, err := sess.ResolveVideoID(input)
	if err != nil {
		return nil, err
	}
	logger := c.logger.With().Str("video_id", videoID).Logger()

	cfg, err := c.tvConfig.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("client config: %w", err)
	}

	token := c.requestToken(ctx, sess, logger)

	req, err := onesie.BuildRequest(videoID, token, cfg, sess)
	if err != nil {
		return nil, err
	}

	body, err := c.transport.roundTrip(ctx, cfg, req, sess.UserAgent())
	if err != nil {
		return nil, err
	}

	records, err := ump.Parse(body, logger)
	if err != nil {
		return nil, fmt.Errorf("parse response stream: %w", err)
	}

	resp, err := onesie.DecodeResponse(records, cfg.ClientKey, logger)
	if err != nil {
		return nil, err
	}

	meta, err := onesie.Normalize(resp, kind, sess)
	if err != nil {
		return nil, err
	}

	if meta.URL != nil {
		if err := c.prober.Check(ctx, *meta.URL); err != nil {
			return nil, err
		}
	}

	logger.Info().
		Str("kind", string(kind)).
		Dur("elapsed", time.Since(started)).
		Bool("playable", meta.URL != nil).
		Msg("resolved video metadata")
	return meta, nil
}

// requestToken fetches an attestation token when a provider is
// configured. Token failures degrade the request rather than failing it.
func (c *Client) requestToken(ctx context.Context, sess *session.Session, logger zerolog.Logger) string {
	if c.tokens == nil {
		return ""
	}
	identifier := challenge.Identifier(sess.VisitorData(), "")
	if identifier == "" {
		return ""
	}
	token, err := c.tokens.RequestToken(ctx, identifier)
	if err != nil {
		logger.Warn().Err(err).Msg("token request failed, continuing without")
		return ""
	}
	return token.Value
}
