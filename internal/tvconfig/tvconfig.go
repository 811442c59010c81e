// Package tvconfig fetches and caches the platform's signed TV client
// configuration, which carries the key material and base URL required to
// address and encrypt Onesie requests.
package tvconfig

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/famomatic/onesie/internal/crypto"
	"github.com/famomatic/onesie/internal/netx"
	"github.com/famomatic/onesie/internal/refresh"
)

const (
	// DefaultRefreshInterval is how long a fetched config stays fresh.
	DefaultRefreshInterval = 5 * time.Hour

	configURL = "https://www.youtube.com/tv_config?action_get_config=true&client=lb4&theme=cl"
	userAgent = "Mozilla/5.0 (ChromiumStylePlatform) Cobalt/Version"

	// xssiPrefix guards the endpoint against cross-site script inclusion
	// and must be stripped before the body parses as JSON.
	xssiPrefix = ")]}'"
)

// ErrMalformedConfig indicates the endpoint response was missing the
// anti-XSSI prefix or one of the required config fields.
var ErrMalformedConfig = errors.New("malformed tv config response")

// ClientConfig is the signed client configuration. Immutable once
// constructed; refresh replaces it wholesale.
type ClientConfig struct {
	ClientKey          []byte // 32-byte request sealing key
	EncryptedClientKey []byte // server-sealed copy, echoed back in requests
	UstreamerConfig    []byte // opaque edge configuration blob
	BaseURL            string // request path on the redirector host
}

// Source fetches ClientConfigs and caches them behind a refresh.Cache.
type Source struct {
	client   *http.Client
	endpoint string
	logger   zerolog.Logger
	cache    *refresh.Cache[ClientConfig]
}

// SourceConfig tunes a Source.
type SourceConfig struct {
	RefreshInterval time.Duration // non-positive selects DefaultRefreshInterval
	Endpoint        string        // override the config endpoint, mainly for tests
}

// NewSource creates a config source.
func NewSource(client *http.Client, cfg SourceConfig, logger zerolog.Logger) *Source {
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = configURL
	}
	s := &Source{
		client:   client,
		endpoint: endpoint,
		logger:   logger,
	}
	s.cache = refresh.New("tvconfig", interval, s.fetch, logger)
	return s
}

// Get returns the current client config, fetching or refreshing as needed.
func (s *Source) Get(ctx context.Context) (ClientConfig, error) {
	return s.cache.Get(ctx)
}

func (s *Source) fetch(ctx context.Context) (ClientConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("build tv config request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("fetch tv config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ClientConfig{}, fmt.Errorf("tv config endpoint returned status %d", resp.StatusCode)
	}

	body, err := netx.ReadBody(resp)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("read tv config response: %w", err)
	}

	cfg, err := Parse(body)
	if err != nil {
		return ClientConfig{}, err
	}

	s.logger.Debug().Str("base_url", cfg.BaseURL).Msg("fetched tv config")
	return cfg, nil
}

// hotConfig is the nested document shape the platform serves. Only the
// onesie section is of interest.
type configDocument struct {
	WebPlayerContextConfig struct {
		LivingRoomWatch struct {
			OnesieHotConfig struct {
				ClientKey             string `json:"clientKey"`
				EncryptedClientKey    string `json:"encryptedClientKey"`
				OnesieUstreamerConfig string `json:"onesieUstreamerConfig"`
				BaseURL               string `json:"baseUrl"`
			} `json:"onesieHotConfig"`
		} `json:"WEB_PLAYER_CONTEXT_CONFIG_ID_LIVING_ROOM_WATCH"`
	} `json:"webPlayerContextConfig"`
}

// Parse validates the anti-XSSI prefix, strips it, and extracts the four
// required config fields. Any absent field is ErrMalformedConfig.
func Parse(body []byte) (ClientConfig, error) {
	text := string(body)
	if !strings.HasPrefix(text, xssiPrefix) {
		return ClientConfig{}, fmt.Errorf("%w: missing anti-XSSI prefix", ErrMalformedConfig)
	}

	var doc configDocument
	if err := json.Unmarshal([]byte(text[len(xssiPrefix):]), &doc); err != nil {
		return ClientConfig{}, fmt.Errorf("%w: %v", ErrMalformedConfig, err)
	}

	hot := doc.WebPlayerContextConfig.LivingRoomWatch.OnesieHotConfig
	fields := map[string]string{
		"clientKey":             hot.ClientKey,
		"encryptedClientKey":    hot.EncryptedClientKey,
		"onesieUstreamerConfig": hot.OnesieUstreamerConfig,
		"baseUrl":               hot.BaseURL,
	}
	for name, value := range fields {
		if value == "" {
			return ClientConfig{}, fmt.Errorf("%w: missing %s", ErrMalformedConfig, name)
		}
	}

	clientKey, err := base64.StdEncoding.DecodeString(hot.ClientKey)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("%w: clientKey: %v", ErrMalformedConfig, err)
	}
	if len(clientKey) != crypto.KeyLength {
		return ClientConfig{}, fmt.Errorf("%w: clientKey is %d bytes, want %d", ErrMalformedConfig, len(clientKey), crypto.KeyLength)
	}
	encryptedClientKey, err := base64.StdEncoding.DecodeString(hot.EncryptedClientKey)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("%w: encryptedClientKey: %v", ErrMalformedConfig, err)
	}
	ustreamerConfig, err := base64.StdEncoding.DecodeString(hot.OnesieUstreamerConfig)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("%w: onesieUstreamerConfig: %v", ErrMalformedConfig, err)
	}

	return ClientConfig{
		ClientKey:          clientKey,
		EncryptedClientKey: encryptedClientKey,
		UstreamerConfig:    ustreamerConfig,
		BaseURL:            hot.BaseURL,
	}, nil
}
