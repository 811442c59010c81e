// Package config loads runtime configuration for the Onesie client.
// Layering is defaults -> ONESIE_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "ONESIE_"

// Config holds the merged runtime configuration.
type Config struct {
	// TVConfigRefresh is the client-config cache refresh interval.
	TVConfigRefresh time.Duration `koanf:"tvconfig_refresh"`
	// SessionRefresh is the platform-session cache refresh interval.
	SessionRefresh time.Duration `koanf:"session_refresh"`
	// BlobCacheTTL is the TTL applied on writes to the external blob store.
	BlobCacheTTL time.Duration `koanf:"blob_cache_ttl"`
	// PoTokenTTL is the proof-of-origin token cache TTL.
	PoTokenTTL time.Duration `koanf:"potoken_ttl"`
	// PlayerID optionally pins a specific platform player build.
	PlayerID string `koanf:"player_id"`
	// RedisURL selects the external blob store; empty keeps the in-memory one.
	RedisURL string `koanf:"redis_url"`
	// LogLevel is the zerolog level name.
	LogLevel string `koanf:"log_level"`
	// LivenessCheck toggles the post-retrieval HEAD probe.
	LivenessCheck bool `koanf:"liveness_check"`
	// QueueDepth bounds the task dispatcher queue. Zero auto-sizes.
	QueueDepth int `koanf:"queue_depth"`
	// ProxyURL optionally routes upstream requests through a proxy.
	ProxyURL string `koanf:"proxy_url"`
}

// Defaults mirrors the upstream service's stock intervals.
func Defaults() Config {
	return Config{
		TVConfigRefresh: 5 * time.Hour,
		SessionRefresh:  48 * time.Hour,
		BlobCacheTTL:    48 * time.Hour,
		PoTokenTTL:      6 * time.Hour,
		LogLevel:        "info",
		LivenessCheck:   true,
	}
}

// Load merges defaults with ONESIE_-prefixed environment variables and
// validates the result.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	envProvider := env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
		},
	})
	if err := k.Load(envProvider, nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid config: %w", errs[0])
	}
	return cfg, nil
}

// Validate reports every constraint violation rather than stopping at the
// first.
func Validate(cfg Config) []error {
	var errs []error
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"tvconfig_refresh", cfg.TVConfigRefresh},
		{"session_refresh", cfg.SessionRefresh},
		{"blob_cache_ttl", cfg.BlobCacheTTL},
		{"potoken_ttl", cfg.PoTokenTTL},
	}
	for _, dv := range durations {
		if dv.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", dv.name, dv.d))
		}
	}
	if cfg.QueueDepth < 0 {
		errs = append(errs, fmt.Errorf("queue_depth must not be negative, got %d", cfg.QueueDepth))
	}
	return errs
}
