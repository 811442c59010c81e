package formats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/famomatic/onesie/internal/types"
)

func testStreamingData() types.StreamingData {
	return types.StreamingData{
		Formats: []types.Format{
			{Itag: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Height: 360, Bitrate: 500_000},
			{Itag: 22, MimeType: `video/mp4; codecs="avc1.64001F, mp4a.40.2"`, Height: 720, Bitrate: 1_500_000},
		},
		AdaptiveFormats: []types.Format{
			{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130_000, AudioQuality: "AUDIO_QUALITY_MEDIUM"},
			{Itag: 139, MimeType: `audio/mp4; codecs="mp4a.40.5"`, Bitrate: 48_000, AudioQuality: "AUDIO_QUALITY_LOW"},
			{Itag: 137, MimeType: `video/mp4; codecs="avc1.640028"`, Height: 1080, Bitrate: 4_000_000},
		},
	}
}

func TestSelectBestVideoPrefersHighestMuxed(t *testing.T) {
	f, err := Select(testStreamingData(), types.TrackVideo)
	require.NoError(t, err)
	assert.Equal(t, 22, f.Itag, "video-only adaptive 1080p must not win over muxed 720p")
}

func TestSelectBestAudio(t *testing.T) {
	f, err := Select(testStreamingData(), types.TrackAudio)
	require.NoError(t, err)
	assert.Equal(t, 140, f.Itag)
}

func TestSelectPrefersAverageBitrate(t *testing.T) {
	data := types.StreamingData{
		AdaptiveFormats: []types.Format{
			{Itag: 1, MimeType: "audio/mp4", Bitrate: 100, AverageBitrate: 60},
			{Itag: 2, MimeType: "audio/mp4", Bitrate: 50, AverageBitrate: 80},
		},
	}
	f, err := Select(data, types.TrackAudio)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Itag)
}

func TestSelectEqualHeightFallsBackToBitrate(t *testing.T) {
	data := types.StreamingData{
		Formats: []types.Format{
			{Itag: 1, MimeType: "video/mp4", Height: 720, Bitrate: 900},
			{Itag: 2, MimeType: "video/mp4", Height: 720, Bitrate: 1200},
		},
	}
	f, err := Select(data, types.TrackVideo)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Itag)
}

func TestSelectSkipsNonMP4Containers(t *testing.T) {
	data := types.StreamingData{
		Formats: []types.Format{
			{Itag: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Height: 360, Bitrate: 500_000},
			{Itag: 43, MimeType: `video/webm; codecs="vp8.0, vorbis"`, Height: 720, Bitrate: 2_000_000},
		},
		AdaptiveFormats: []types.Format{
			{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, Bitrate: 130_000},
			{Itag: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160_000},
		},
	}

	f, err := Select(data, types.TrackAudio)
	require.NoError(t, err)
	assert.Equal(t, 140, f.Itag, "opus at a higher bitrate must not beat the m4a stream")

	f, err = Select(data, types.TrackVideo)
	require.NoError(t, err)
	assert.Equal(t, 18, f.Itag, "webm at a higher resolution must not beat the mp4 stream")

	webmOnly := types.StreamingData{
		AdaptiveFormats: []types.Format{{Itag: 251, MimeType: `audio/webm; codecs="opus"`, Bitrate: 160_000}},
	}
	_, err = Select(webmOnly, types.TrackAudio)
	require.ErrorIs(t, err, ErrNoMatchingFormat)
}

func TestSelectNoCandidates(t *testing.T) {
	_, err := Select(types.StreamingData{}, types.TrackAudio)
	require.ErrorIs(t, err, ErrNoMatchingFormat)

	audioOnly := types.StreamingData{
		AdaptiveFormats: []types.Format{{MimeType: "audio/mp4"}},
	}
	_, err = Select(audioOnly, types.TrackVideo)
	require.ErrorIs(t, err, ErrNoMatchingFormat)
}
