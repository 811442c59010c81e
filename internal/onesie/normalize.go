package onesie

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/famomatic/onesie/internal/formats"
	"github.com/famomatic/onesie/internal/types"
)

// ErrNotPlayable is wrapped into the error returned when the platform
// refuses playback for a reason other than the stream not having started.
var ErrNotPlayable = errors.New("video is not playable")

const liveStatusUpcoming = "is_upcoming"

// Normalize flattens a player response into the output metadata record.
// For playable content the URL of the best matching format is resolved
// through the session's player transforms; upcoming broadcasts get a
// release timestamp instead of a URL.
func Normalize(resp *types.PlayerResponse, kind types.TrackKind, sess Session) (*types.VideoMetadata, error) {
	details := resp.VideoDetails
	micro := resp.Microformat.PlayerMicroformatRenderer

	meta := &types.VideoMetadata{
		Title:       details.Title,
		Channel:     firstNonEmpty(micro.OwnerChannelName, details.Author),
		ChannelURL:  micro.OwnerProfileURL,
		UploaderURL: micro.OwnerProfileURL,
		Description: details.ShortDescription,
		Ext:         kind.Ext(),
		Kind:        "video",
		Thumbnail:   largestThumbnail(details.Thumbnail),
	}
	if secs, err := strconv.ParseInt(details.LengthSeconds, 10, 64); err == nil {
		meta.Duration = secs
	}

	if upcoming(resp) {
		status := liveStatusUpcoming
		meta.LiveStatus = &status
		if ts := micro.LiveBroadcastDetails.StartTimestamp; ts != "" {
			start, err := time.Parse(time.RFC3339, ts)
			if err != nil {
				return nil, fmt.Errorf("broadcast start timestamp %q: %w", ts, err)
			}
			unix := start.Unix()
			meta.ReleaseTimestamp = &unix
		}
		return meta, nil
	}

	if status := resp.PlayabilityStatus.Status; status != "OK" {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotPlayable, status, resp.PlayabilityStatus.Reason)
	}

	format, err := formats.Select(resp.StreamingData, kind)
	if err != nil {
		return nil, err
	}

	resolved, err := sess.DecipherURL(format.URL, format.SignatureCipher)
	if err != nil {
		return nil, fmt.Errorf("resolve format url: %w", err)
	}
	meta.URL = &resolved

	if size := approxFilesize(format, meta.Duration); size > 0 {
		meta.FilesizeApprox = &size
	}
	return meta, nil
}

// upcoming reports whether the video is a broadcast that has not started.
func upcoming(resp *types.PlayerResponse) bool {
	if resp.VideoDetails.IsUpcoming {
		return true
	}
	return resp.PlayabilityStatus.Status == "LIVE_STREAM_OFFLINE"
}

// approxFilesize prefers the format's declared content length and falls
// back to estimating from bitrate and duration.
func approxFilesize(format types.Format, durationSecs int64) int64 {
	if n, err := strconv.ParseInt(format.ContentLength, 10, 64); err == nil && n > 0 {
		return n
	}
	bitrate := format.AverageBitrate
	if bitrate == 0 {
		bitrate = format.Bitrate
	}
	if bitrate > 0 && durationSecs > 0 {
		return int64(bitrate) * durationSecs / 8
	}
	return 0
}

func largestThumbnail(t types.Thumbnail) string {
	best := ""
	bestArea := -1
	for _, v := range t.Thumbnails {
		if area := v.Width * v.Height; area > bestArea {
			best = v.URL
			bestArea = area
		}
	}
	return best
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
