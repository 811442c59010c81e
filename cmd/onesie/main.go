// Command onesie resolves a video URL or id to normalized metadata with
// a playable stream URL and prints it as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/famomatic/onesie/client"
	"github.com/famomatic/onesie/internal/blobcache"
	"github.com/famomatic/onesie/internal/config"
	"github.com/famomatic/onesie/internal/log"
	"github.com/famomatic/onesie/internal/netx"
)

func main() {
	var (
		track   = flag.String("track", "video", "track kind to resolve: video or audio")
		timeout = flag.Duration("timeout", 2*time.Minute, "overall request timeout")
		pretty  = flag.Bool("pretty", false, "indent the JSON output")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: onesie [flags] <video url or id>\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	input := flag.Arg(0)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "onesie: %v\n", err)
		os.Exit(1)
	}

	log.Configure(log.Config{Level: cfg.LogLevel})
	logger := log.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store := blobStore(ctx, cfg)

	c := client.New(client.Config{
		HTTPClient:           netx.DefaultClient(cfg.ProxyURL),
		Logger:               &logger,
		BlobStore:            store,
		TVConfigRefresh:      cfg.TVConfigRefresh,
		SessionRefresh:       cfg.SessionRefresh,
		TokenTTL:             cfg.PoTokenTTL,
		PlayerID:             cfg.PlayerID,
		DisableLivenessCheck: !cfg.LivenessCheck,
		QueueDepth:           cfg.QueueDepth,
	})
	defer c.Close()

	meta, err := c.GetMetadata(ctx, input, client.TrackKind(*track))
	if err != nil {
		logger.Error().Err(err).Msg("metadata retrieval failed")
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(meta); err != nil {
		logger.Error().Err(err).Msg("encode output")
		os.Exit(1)
	}
}

// blobStore selects the external store when one is configured, falling
// back to the in-process one when it is unreachable.
func blobStore(ctx context.Context, cfg config.Config) blobcache.Store {
	logger := log.Logger()
	if cfg.RedisURL == "" {
		return blobcache.NewMemory(cfg.BlobCacheTTL)
	}
	store, err := blobcache.NewRedis(ctx, cfg.RedisURL, cfg.BlobCacheTTL, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, using in-memory blob store")
		return blobcache.NewMemory(cfg.BlobCacheTTL)
	}
	return store
}
