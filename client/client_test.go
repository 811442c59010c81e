package client

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/famomatic/onesie/internal/challenge"
	"github.com/famomatic/onesie/internal/crypto"
	"github.com/famomatic/onesie/internal/liveness"
)

// fixturePlayerJS carries the minified player structures the extractor
// understands, with a known signature timestamp and transforms.
const fixturePlayerJS = `
var _yt_player={};(function(g){
var Wka={signatureTimestamp:19834,other:1};
var Xq={wB:function(a){a.reverse()},o9:function(a,b){a.splice(0,b)},Dv:function(a,b){var c=a[0];a[0]=a[b%a.length];a[b%a.length]=c}};
var decodeSig=function(a){a=a.split("");Xq.wB(a,3);Xq.o9(a,1);Xq.Dv(a,2);return a.join("")};
var pqa=function(a){var b=a.split("");b.push("Z");return b.join("")};
var Qra=[pqa];
g.process=function(a,b){if(c&&(b=a.get("n"))&&(b=Qra[0](b)||b,a.set("n",b)),a.get("s")){}};
})(_yt_player);
`

const testPlayerID = "00000000"

// fakeEdge is an in-process stand-in for the whole upstream surface:
// landing page, player source, tv config, redirector, playback edge, and
// the stream host the liveness probe hits.
type fakeEdge struct {
	t         *testing.T
	clientKey []byte

	srv *httptest.Server

	tvConfigHits atomic.Int32
	playerHits   atomic.Int32
	playbackHits atomic.Int32

	// lastRequestBody is the decrypted inner player request JSON of the
	// most recent playback POST.
	lastRequestBody atomic.Value

	playerResponse func() map[string]any
	streamStatus   atomic.Int32
}

func newFakeEdge(t *testing.T) *fakeEdge {
	t.Helper()

	key := make([]byte, crypto.KeyLength)
	_, err := rand.Read(key)
	require.NoError(t, err)

	e := &fakeEdge{t: t, clientKey: key}
	e.streamStatus.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", e.handleLanding)
	mux.HandleFunc("GET /s/player/", e.handlePlayer)
	mux.HandleFunc("GET /tv_config", e.handleTVConfig)
	mux.HandleFunc("GET /redirector", e.handleRedirector)
	mux.HandleFunc("POST /initplayback", e.handlePlayback)
	mux.HandleFunc("HEAD /stream", e.handleStream)

	e.srv = httptest.NewServer(mux)
	t.Cleanup(e.srv.Close)

	e.playerResponse = e.defaultPlayerResponse
	return e
}

func (e *fakeEdge) clientConfig() Config {
	return Config{
		HTTPClient:    e.srv.Client(),
		BaseURL:       e.srv.URL,
		TVConfigURL:   e.srv.URL + "/tv_config",
		RedirectorURL: e.srv.URL + "/redirector",
		PlayerID:      testPlayerID,
	}
}

func (e *fakeEdge) handleLanding(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, `<script>ytcfg = {"visitorData":"test-visitor-data"};</script>`)
}

func (e *fakeEdge) handlePlayer(w http.ResponseWriter, _ *http.Request) {
	e.playerHits.Add(1)
	fmt.Fprint(w, fixturePlayerJS)
}

func (e *fakeEdge) handleTVConfig(w http.ResponseWriter, _ *http.Request) {
	e.tvConfigHits.Add(1)
	doc := map[string]any{
		"webPlayerContextConfig": map[string]any{
			"WEB_PLAYER_CONTEXT_CONFIG_ID_LIVING_ROOM_WATCH": map[string]any{
				"onesieHotConfig": map[string]any{
					"clientKey":             base64.StdEncoding.EncodeToString(e.clientKey),
					"encryptedClientKey":    base64.StdEncoding.EncodeToString([]byte("sealed-key")),
					"onesieUstreamerConfig": base64.StdEncoding.EncodeToString([]byte{0x01, 0x02}),
					"baseUrl":               "/initplayback?source=onesie",
				},
			},
		},
	}
	body, err := json.Marshal(doc)
	require.NoError(e.t, err)
	w.Write(append([]byte(")]}'"), body...))
}

func (e *fakeEdge) handleRedirector(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, e.srv.URL+"/initplayback?source=youtube")
}

func (e *fakeEdge) handleStream(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(int(e.streamStatus.Load()))
}

func (e *fakeEdge) defaultPlayerResponse() map[string]any {
	return map[string]any{
		"playabilityStatus": map[string]any{"status": "OK"},
		"streamingData": map[string]any{
			"formats": []any{map[string]any{
				"itag":          18,
				"url":           e.srv.URL + "/stream?itag=18&n=abc",
				"mimeType":      `video/mp4; codecs="avc1.42001E, mp4a.40.2"`,
				"bitrate":       500000,
				"height":        360,
				"contentLength": "1048576",
			}},
			"adaptiveFormats": []any{map[string]any{
				"itag":           140,
				"url":            e.srv.URL + "/stream?itag=140&n=abc",
				"mimeType":       `audio/mp4; codecs="mp4a.40.2"`,
				"averageBitrate": 128000,
				"contentLength":  "4194304",
			}},
		},
		"videoDetails": map[string]any{
			"videoId":       "dQw4w9WgXcQ",
			"title":         "Test Video",
			"lengthSeconds": "212",
			"author":        "Test Channel",
		},
		"microformat": map[string]any{
			"playerMicroformatRenderer": map[string]any{
				"ownerChannelName": "Test Channel",
				"ownerProfileUrl":  "https://www.youtube.com/@testchannel",
			},
		},
	}
}

func (e *fakeEdge) handlePlayback(w http.ResponseWriter, r *http.Request) {
	e.playbackHits.Add(1)

	assert.Equal(e.t, "750c38c3d5a05dc4", r.URL.Query().Get("id"))
	assert.Equal(e.t, "yes", r.URL.Query().Get("cmo:sensitive_content"))
	assert.Equal(e.t, "1", r.URL.Query().Get("opr"))

	body, err := io.ReadAll(r.Body)
	require.NoError(e.t, err)
	e.recordInnerRequest(body)

	responseJSON, err := json.Marshal(e.playerResponse())
	require.NoError(e.t, err)

	inner := appendVarintField(nil, 1, 1) // proxy status OK
	inner = appendVarintField(inner, 2, 200)
	inner = appendBytesField(inner, 4, responseJSON)

	sealed, err := crypto.Seal(e.clientKey, inner)
	require.NoError(e.t, err)

	params := appendBytesField(nil, 1, sealed.IV)
	params = appendBytesField(params, 2, sealed.HMAC)
	header := appendBytesField(nil, 2, []byte("dQw4w9WgXcQ"))
	header = appendBytesField(header, 3, params)

	var stream []byte
	stream = appendUmpPart(stream, 10, header)
	stream = appendUmpPart(stream, 21, []byte("media noise")) // skipped
	stream = appendUmpPart(stream, 11, sealed.Ciphertext)
	w.Write(stream)
}

// recordInnerRequest unwraps the envelope, opens the sealed inner
// request, and stores its JSON body for assertions.
func (e *fakeEdge) recordInnerRequest(envelope []byte) {
	var ciphertext, iv, mac []byte
	walkTestFields(e.t, envelope, func(num protowire.Number, value []byte, _ uint64) {
		if num != 2 {
			return
		}
		walkTestFields(e.t, value, func(num protowire.Number, value []byte, _ uint64) {
			switch num {
			case 2:
				ciphertext = value
			case 3:
				iv = value
			case 4:
				mac = value
			}
		})
	})
	require.NotEmpty(e.t, ciphertext)

	plaintext, err := crypto.Open(e.clientKey, iv, mac, ciphertext)
	require.NoError(e.t, err)

	walkTestFields(e.t, plaintext, func(num protowire.Number, value []byte, _ uint64) {
		if num == 3 {
			e.lastRequestBody.Store(string(value))
		}
	})
}

func walkTestFields(t *testing.T, data []byte, visit func(num protowire.Number, value []byte, varint uint64)) {
	t.Helper()
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		require.GreaterOrEqual(t, n, 0)
		data = data[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			require.GreaterOrEqual(t, n, 0)
			visit(num, nil, v)
			data = data[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			require.GreaterOrEqual(t, n, 0)
			visit(num, v, 0)
			data = data[n:]
		default:
			t.Fatalf("unexpected wire type %v", typ)
		}
	}
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// appendUmpPart frames one multipart container part. Sizes up to 16383
// cover every fixture here.
func appendUmpPart(b []byte, partType int, payload []byte) []byte {
	b = appendUmpVarint(b, partType)
	b = appendUmpVarint(b, len(payload))
	return append(b, payload...)
}

func appendUmpVarint(b []byte, v int) []byte {
	if v < 0x80 {
		return append(b, byte(v))
	}
	return append(b, 0x80|byte(v&0x3F), byte(v>>6))
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	logger := zerolog.Nop()
	cfg.Logger = &logger
	c := New(cfg)
	t.Cleanup(c.Close)
	return c
}

func TestGetMetadataVideo(t *testing.T) {
	edge := newFakeEdge(t)
	c := newTestClient(t, edge.clientConfig())

	meta, err := c.GetMetadata(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", TrackVideo)
	require.NoError(t, err)

	assert.Equal(t, "Test Video", meta.Title)
	assert.Equal(t, int64(212), meta.Duration)
	assert.Equal(t, "Test Channel", meta.Channel)
	assert.Equal(t, "mp4", meta.Ext)
	require.NotNil(t, meta.URL)
	assert.Contains(t, *meta.URL, "/stream?")
	assert.Contains(t, *meta.URL, "itag=18")
	// The throttling parameter must have gone through the player
	// transform.
	assert.Contains(t, *meta.URL, "n=abcZ")

	body, _ := edge.lastRequestBody.Load().(string)
	assert.Contains(t, body, `"videoId":"dQw4w9WgXcQ"`)
	assert.Contains(t, body, `"signatureTimestamp":19834`)
	assert.NotContains(t, body, "serviceIntegrityDimensions")
}

func TestGetMetadataAudio(t *testing.T) {
	edge := newFakeEdge(t)
	c := newTestClient(t, edge.clientConfig())

	meta, err := c.GetMetadata(context.Background(), "dQw4w9WgXcQ", TrackAudio)
	require.NoError(t, err)

	assert.Equal(t, "m4a", meta.Ext)
	require.NotNil(t, meta.URL)
	assert.Contains(t, *meta.URL, "itag=140")
	require.NotNil(t, meta.FilesizeApprox)
	assert.Equal(t, int64(4194304), *meta.FilesizeApprox)
}

func TestGetMetadataReusesCachedState(t *testing.T) {
	edge := newFakeEdge(t)
	c := newTestClient(t, edge.clientConfig())

	_, err := c.GetMetadata(context.Background(), "dQw4w9WgXcQ", TrackVideo)
	require.NoError(t, err)
	_, err = c.GetMetadata(context.Background(), "dQw4w9WgXcQ", TrackVideo)
	require.NoError(t, err)

	assert.EqualValues(t, 1, edge.tvConfigHits.Load())
	assert.EqualValues(t, 1, edge.playerHits.Load())
	assert.EqualValues(t, 2, edge.playbackHits.Load())
}

func TestGetMetadataAttachesToken(t *testing.T) {
	edge := newFakeEdge(t)

	cfg := edge.clientConfig()
	cfg.TokenProvider = tokenProviderFunc(func(ctx context.Context, identifier string) (challenge.Token, error) {
		assert.Equal(t, "test-visitor-data", identifier)
		return challenge.Token{Value: "cG8tdG9rZW4", GeneratedAt: time.Now()}, nil
	})
	c := newTestClient(t, cfg)

	_, err := c.GetMetadata(context.Background(), "dQw4w9WgXcQ", TrackVideo)
	require.NoError(t, err)

	body, _ := edge.lastRequestBody.Load().(string)
	assert.Contains(t, body, `"poToken":"cG8tdG9rZW4"`)
}

func TestGetMetadataUpcoming(t *testing.T) {
	edge := newFakeEdge(t)
	edge.playerResponse = func() map[string]any {
		resp := edge.defaultPlayerResponse()
		resp["playabilityStatus"] = map[string]any{"status": "LIVE_STREAM_OFFLINE", "reason": "Premieres soon"}
		resp["videoDetails"].(map[string]any)["isUpcoming"] = true
		resp["microformat"].(map[string]any)["playerMicroformatRenderer"].(map[string]any)["liveBroadcastDetails"] = map[string]any{
			"startTimestamp": "2024-01-15T10:30:00Z",
		}
		return resp
	}
	c := newTestClient(t, edge.clientConfig())

	meta, err := c.GetMetadata(context.Background(), "dQw4w9WgXcQ", TrackVideo)
	require.NoError(t, err)

	assert.Nil(t, meta.URL)
	require.NotNil(t, meta.LiveStatus)
	assert.Equal(t, "is_upcoming", *meta.LiveStatus)
	require.NotNil(t, meta.ReleaseTimestamp)
	assert.Equal(t, int64(1705314600), *meta.ReleaseTimestamp)
}

func TestGetMetadataNotPlayable(t *testing.T) {
	edge := newFakeEdge(t)
	edge.playerResponse = func() map[string]any {
		resp := edge.defaultPlayerResponse()
		resp["playabilityStatus"] = map[string]any{"status": "UNPLAYABLE", "reason": "Video unavailable"}
		return resp
	}
	c := newTestClient(t, edge.clientConfig())

	_, err := c.GetMetadata(context.Background(), "dQw4w9WgXcQ", TrackVideo)
	assert.ErrorIs(t, err, ErrNotPlayable)
}

func TestGetMetadataRejectsBadInput(t *testing.T) {
	edge := newFakeEdge(t)
	c := newTestClient(t, edge.clientConfig())

	_, err := c.GetMetadata(context.Background(), "https://example.com/not-a-video", TrackVideo)
	assert.ErrorIs(t, err, ErrURLResolution)

	_, err = c.GetMetadata(context.Background(), "dQw4w9WgXcQ", TrackKind("subtitles"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subtitles")
}

func TestLivenessFailureMatchesSentinel(t *testing.T) {
	probeErr := &liveness.Error{URL: "https://stream.example.com", Attempts: 6, LastStatus: 403}
	assert.ErrorIs(t, probeErr, ErrLivenessCheck)
	assert.NotErrorIs(t, probeErr, ErrNotPlayable)
}

func TestGetMetadataClosedClient(t *testing.T) {
	edge := newFakeEdge(t)
	logger := zerolog.Nop()
	cfg := edge.clientConfig()
	cfg.Logger = &logger
	c := New(cfg)
	c.Close()

	_, err := c.GetMetadata(context.Background(), "dQw4w9WgXcQ", TrackVideo)
	assert.ErrorIs(t, err, ErrClosed)
}

type tokenProviderFunc func(ctx context.Context, identifier string) (challenge.Token, error)

func (f tokenProviderFunc) RequestToken(ctx context.Context, identifier string) (challenge.Token, error) {
	return f(ctx, identifier)
}
