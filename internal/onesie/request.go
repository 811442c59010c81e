package onesie

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/famomatic/onesie/internal/crypto"
	"github.com/famomatic/onesie/internal/session"
	"github.com/famomatic/onesie/internal/tvconfig"
)

// Session is the slice of the platform session the request builder and
// normalizer consume. *session.Session satisfies it.
type Session interface {
	Context() session.Context
	ClientNameID() int
	ClientVersion() string
	UserAgent() string
	VisitorData() string
	SignatureTimestamp() int
	DecipherURL(plainURL, signatureCipher string) (string, error)
}

// Request is a fully sealed envelope ready to POST.
type Request struct {
	// Body is the serialized outer envelope.
	Body []byte

	// VideoID is the plain video id the request targets.
	VideoID string
}

// playerRequest is the JSON body of the inner player call.
type playerRequest struct {
	Context                    session.Context      `json:"context"`
	VideoID                    string               `json:"videoId"`
	PlaybackContext            playbackContext      `json:"playbackContext"`
	ServiceIntegrityDimensions *integrityDimensions `json:"serviceIntegrityDimensions,omitempty"`
}

type playbackContext struct {
	ContentPlaybackContext contentPlaybackContext `json:"contentPlaybackContext"`
}

type contentPlaybackContext struct {
	Vis                int    `json:"vis"`
	Splay              bool   `json:"splay"`
	LactMilliseconds   string `json:"lactMilliseconds"`
	SignatureTimestamp int    `json:"signatureTimestamp"`
}

type integrityDimensions struct {
	PoToken string `json:"poToken"`
}

// BuildRequest seals a player request for videoID under the current
// client config and session. poToken may be empty.
func BuildRequest(videoID, poToken string, cfg tvconfig.ClientConfig, sess Session) (*Request, error) {
	body := playerRequest{
		Context: sess.Context(),
		VideoID: videoID,
		PlaybackContext: playbackContext{
			ContentPlaybackContext: contentPlaybackContext{
				Vis:                0,
				Splay:              false,
				LactMilliseconds:   "-1",
				SignatureTimestamp: sess.SignatureTimestamp(),
			},
		},
	}
	if poToken != "" {
		body.ServiceIntegrityDimensions = &integrityDimensions{PoToken: poToken}
	}

	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal player request: %w", err)
	}

	headers := []httpHeader{
		{Name: "Content-Type", Value: "application/json"},
		{Name: "User-Agent", Value: sess.UserAgent()},
	}
	if vd := sess.VisitorData(); vd != "" {
		headers = append(headers, httpHeader{Name: "X-Goog-Visitor-Id", Value: vd})
	}

	inner := encodeInnertubeRequest(innertubeRequest{
		URL:                     "https://youtubei.googleapis.com/youtubei/v1/player",
		Headers:                 headers,
		Body:                    bodyJSON,
		ProxiedByTrustedBandaid: true,
	})

	sealed, err := crypto.Seal(cfg.ClientKey, inner)
	if err != nil {
		return nil, fmt.Errorf("seal player request: %w", err)
	}

	var poTokenBytes []byte
	if poToken != "" {
		poTokenBytes, err = decodeBase64Loose(poToken)
		if err != nil {
			return nil, fmt.Errorf("decode po token: %w", err)
		}
	}

	envelopeBytes := encodeEnvelope(envelope{
		InnertubeRequest: encryptedRequest{
			EncryptedClientKey: cfg.EncryptedClientKey,
			Ciphertext:         sealed.Ciphertext,
			IV:                 sealed.IV,
			HMAC:               sealed.HMAC,
			EnableCompression:  true,
			SerializeAsJSON:    true,
		},
		StreamerContext: streamerContext{
			Client: clientInfo{
				ClientName:    sess.ClientNameID(),
				ClientVersion: sess.ClientVersion(),
			},
			PoToken: poTokenBytes,
		},
		UstreamerConfig: cfg.UstreamerConfig,
	})

	return &Request{Body: envelopeBytes, VideoID: videoID}, nil
}

// RequestURL composes the POST target: the playback host's request path
// plus the encoded video id and the fixed protocol parameters.
func RequestURL(host string, cfg tvconfig.ClientConfig, videoID string) (string, error) {
	encodedID, err := EncodedVideoID(videoID)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("id", encodedID)
	params.Set("opr", "1")
	params.Set("por", "1")
	params.Set("rn", "0")
	params.Set("cmo:sensitive_content", "yes")
	params.Set("osts", "0")

	sep := "?"
	if strings.Contains(cfg.BaseURL, "?") {
		sep = "&"
	}
	return host + cfg.BaseURL + sep + params.Encode(), nil
}

// EncodedVideoID converts a video id to the hex form the edge expects:
// the hex encoding of its base64url-decoded bytes.
func EncodedVideoID(videoID string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(videoID)
	if err != nil {
		return "", fmt.Errorf("video id %q is not base64url: %w", videoID, err)
	}
	return hex.EncodeToString(raw), nil
}

// decodeBase64Loose accepts both standard and url-safe alphabets, padded
// or not. Tokens show up in either form depending on their producer.
func decodeBase64Loose(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("not base64: %q", s)
}
