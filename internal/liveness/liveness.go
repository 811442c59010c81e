// Package liveness verifies that a resolved stream URL is actually
// servable before it is handed to a caller. Freshly deciphered URLs
// occasionally come back 403 for a short window; probing with a bounded
// retry loop absorbs that.
package liveness

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// ErrLivenessCheck is the class every probe failure belongs to; match it
// with errors.Is. The metadata a failed check accompanies may still be
// usable, so callers need to tell this failure apart from the rest.
var ErrLivenessCheck = errors.New("liveness check failed")

const (
	defaultMaxRetries = 5
	defaultMinDelay   = 2 * time.Second
	defaultMaxDelay   = 10 * time.Second
	backoffFactor     = 2

	// skipDelay is how long a probe-disabled check waits instead, giving
	// the edge the same settling window a real probe would.
	skipDelay = 2 * time.Second
)

// Error reports a URL that never became servable within the retry budget.
type Error struct {
	URL        string
	Attempts   int
	LastStatus int // 0 when the last attempt failed before a response
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("liveness check failed after %d attempts: %v", e.Attempts, e.Err)
	}
	return fmt.Sprintf("liveness check failed after %d attempts: status %d", e.Attempts, e.LastStatus)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrLivenessCheck.
func (e *Error) Is(target error) bool { return target == ErrLivenessCheck }

// Prober HEADs stream URLs until one answers with a success status.
type Prober struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	minDelay   time.Duration
	maxDelay   time.Duration
	skip       bool
	logger     zerolog.Logger
}

// Config tunes a Prober. Zero values select the defaults.
type Config struct {
	UserAgent  string
	MaxRetries int
	MinDelay   time.Duration
	MaxDelay   time.Duration

	// Skip disables probing entirely; Check then only sleeps the settling
	// delay.
	Skip bool
}

func New(client *http.Client, cfg Config, logger zerolog.Logger) *Prober {
	p := &Prober{
		client:     client,
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		minDelay:   cfg.MinDelay,
		maxDelay:   cfg.MaxDelay,
		skip:       cfg.Skip,
		logger:     logger,
	}
	if p.maxRetries <= 0 {
		p.maxRetries = defaultMaxRetries
	}
	if p.minDelay <= 0 {
		p.minDelay = defaultMinDelay
	}
	if p.maxDelay <= 0 {
		p.maxDelay = defaultMaxDelay
	}
	return p
}

// Check probes url until it answers with a status below 400, retrying on
// any failure up to the retry budget. 403 is the expected transient state
// for a URL the edge has not finished propagating; it is retried like
// every other failure but logged with the status so the pattern is
// visible.
func (p *Prober) Check(ctx context.Context, url string) error {
	if p.skip {
		p.logger.Debug().Msg("liveness probe disabled, waiting settling delay")
		return sleep(ctx, skipDelay)
	}

	attempts := p.maxRetries + 1
	delay := p.minDelay
	var lastStatus int
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		status, err := p.probe(ctx, url)
		if err == nil && status < 400 {
			if attempt > 1 {
				p.logger.Info().Int("attempt", attempt).Msg("stream url became servable")
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastStatus, lastErr = status, err

		event := p.logger.Warn().Int("attempt", attempt).Int("max_attempts", attempts)
		if err != nil {
			event = event.Err(err)
		} else {
			event = event.Int("status", status)
		}
		event.Msg("stream url not servable yet")

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay *= backoffFactor
		if delay > p.maxDelay {
			delay = p.maxDelay
		}
	}

	return &Error{URL: url, Attempts: attempts, LastStatus: lastStatus, Err: lastErr}
}

func (p *Prober) probe(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
