package client

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/famomatic/onesie/internal/netx"
	"github.com/famomatic/onesie/internal/onesie"
	"github.com/famomatic/onesie/internal/tvconfig"
)

// defaultRedirectorURL answers with the URL of the playback host to use
// for the actual request.
const defaultRedirectorURL = "https://redirector.googlevideo.com/initplayback?source=youtube&itag=0&pvi=0&pai=0&owc=yes&alr=yes&mv=m&mvi=0&pl=0"

// transport performs the two-step exchange: discover the playback host
// through the redirector, then POST the sealed envelope to it.
type transport struct {
	client        *http.Client
	redirectorURL string
	logger        zerolog.Logger
}

func newTransport(client *http.Client, redirectorURL string, logger zerolog.Logger) *transport {
	if redirectorURL == "" {
		redirectorURL = defaultRedirectorURL
	}
	return &transport{client: client, redirectorURL: redirectorURL, logger: logger}
}

func (t *transport) roundTrip(ctx context.Context, cfg tvconfig.ClientConfig, req *onesie.Request, userAgent string) ([]byte, error) {
	host, err := t.playbackHost(ctx, userAgent)
	if err != nil {
		return nil, err
	}

	target, err := onesie.RequestURL(host, cfg, req.VideoID)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/octet-stream")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("playback request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("playback request: unexpected status %d", resp.StatusCode)
	}

	body, err := netx.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("playback request: %w", err)
	}
	t.logger.Debug().Int("bytes", len(body)).Msg("received playback response")
	return body, nil
}

// playbackHost resolves the edge host. The redirector answers with the
// full URL of a playback endpoint; everything before its request path is
// the host the envelope must be POSTed to.
func (t *transport) playbackHost(ctx context.Context, userAgent string) (string, error) {
	// Cache-busting parameter so intermediaries never serve a stale
	// playback host.
	sep := "?"
	if strings.Contains(t.redirectorURL, "?") {
		sep = "&"
	}
	target := t.redirectorURL + sep + "mn=" + strconv.FormatUint(rand.Uint64(), 36)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("redirector: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("redirector: unexpected status %d", resp.StatusCode)
	}

	body, err := netx.ReadBody(resp)
	if err != nil {
		return "", fmt.Errorf("redirector: %w", err)
	}

	answer := strings.TrimSpace(string(body))
	host, _, found := strings.Cut(answer, "/initplayback")
	if !found || host == "" {
		return "", fmt.Errorf("redirector: unusable answer %q", truncate(answer, 120))
	}
	return host, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
