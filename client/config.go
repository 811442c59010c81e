package client

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/famomatic/onesie/internal/blobcache"
	"github.com/famomatic/onesie/internal/challenge"
)

// Config holds configuration for the metadata client. The zero value is
// usable; every field has a working default.
type Config struct {
	// HTTPClient is the client used for all requests. If nil, a tuned
	// default client is constructed (honoring ProxyURL).
	HTTPClient *http.Client

	// ProxyURL routes requests through a proxy. Ignored when HTTPClient
	// is provided.
	ProxyURL string

	// Logger receives structured client logs. If nil, the package-global
	// logger is used.
	Logger *zerolog.Logger

	// TokenProvider supplies attestation tokens for requests. If nil, no
	// token is attached, which may degrade results for some videos.
	TokenProvider challenge.TokenProvider

	// TokenTTL bounds how long fetched tokens are reused. Zero selects
	// the provider cache default.
	TokenTTL time.Duration

	// BlobStore persists small derived artifacts (player scripts, visitor
	// ids) across sessions. If nil, an in-process store is used.
	BlobStore blobcache.Store

	// TVConfigRefresh is the client config cache lifetime.
	TVConfigRefresh time.Duration

	// SessionRefresh is the session cache lifetime.
	SessionRefresh time.Duration

	// PlayerID pins a specific player build instead of discovering the
	// current one.
	PlayerID string

	// BaseURL overrides the platform host, mainly for tests.
	BaseURL string

	// TVConfigURL overrides the client config endpoint, mainly for tests.
	TVConfigURL string

	// RedirectorURL overrides the playback redirector endpoint, mainly
	// for tests.
	RedirectorURL string

	// DisableLivenessCheck skips probing resolved stream URLs.
	DisableLivenessCheck bool

	// QueueDepth bounds pending requests behind the single worker. Zero
	// selects the package default.
	QueueDepth int

	// RequestTimeout bounds one metadata retrieval end to end. Zero means
	// no client-imposed deadline beyond the caller's context.
	RequestTimeout time.Duration
}
