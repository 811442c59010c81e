package onesie

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog"

	"github.com/famomatic/onesie/internal/crypto"
	"github.com/famomatic/onesie/internal/types"
	"github.com/famomatic/onesie/internal/ump"
)

// DecodeResponse extracts the player response from the multipart records.
// key is the 32-byte client key the request was sealed under; the same
// key opens the response when the edge encrypted it.
func DecodeResponse(records []ump.Record, key []byte, logger zerolog.Logger) (*types.PlayerResponse, error) {
	record, params, err := findPlayerResponse(records)
	if err != nil {
		return nil, err
	}

	// Compression wraps the sealed bytes, so it comes off before
	// decryption.
	body, err := decompress(record.Data, params.Compression)
	if err != nil {
		return nil, err
	}
	if len(params.IV) > 0 && len(params.HMAC) > 0 {
		body, err = crypto.Open(key, params.IV, params.HMAC, body)
		if err != nil {
			return nil, fmt.Errorf("open player response: %w", err)
		}
	}

	inner, err := decodeInnertubeResponse(body)
	if err != nil {
		return nil, fmt.Errorf("decode inner response: %w", err)
	}
	if inner.ProxyStatus != proxyStatusOK || inner.HTTPStatus != 200 {
		return nil, &ProtocolError{ProxyStatus: inner.ProxyStatus, HTTPStatus: inner.HTTPStatus}
	}

	var resp types.PlayerResponse
	if err := json.Unmarshal(inner.Body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal player response: %w", err)
	}

	logger.Debug().
		Str("video_id", resp.VideoDetails.VideoID).
		Str("playability", resp.PlayabilityStatus.Status).
		Msg("decoded player response")
	return &resp, nil
}

// findPlayerResponse locates the player response record and its crypto
// parameters. The parameters block must be present even when the body is
// unencrypted, since it also carries the compression mode.
func findPlayerResponse(records []ump.Record) (ump.Record, cryptoParams, error) {
	for _, record := range records {
		h, err := decodeHeader(record.Header)
		if err != nil {
			return ump.Record{}, cryptoParams{}, fmt.Errorf("decode record header: %w", err)
		}
		if h.Type != headerTypePlayerResponse {
			continue
		}
		if h.CryptoParams == nil {
			return ump.Record{}, cryptoParams{}, ErrCryptoParamsMissing
		}
		return record, *h.CryptoParams, nil
	}
	return ump.Record{}, cryptoParams{}, ErrPlayerResponseNotFound
}

func decompress(body []byte, mode int) ([]byte, error) {
	switch mode {
	case compressionNone:
		return body, nil
	case compressionGzip:
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip response: %w", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gzip response: %w", err)
		}
		return out, nil
	case compressionBrotli:
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli response: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown compression mode %d", mode)
	}
}
