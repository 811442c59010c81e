// Package formats ranks the stream variants of a player response and
// selects the one matching a requested track kind.
package formats

import (
	"errors"
	"sort"
	"strings"

	"github.com/famomatic/onesie/internal/types"
)

// ErrNoMatchingFormat indicates no variant satisfied the requested kind.
var ErrNoMatchingFormat = errors.New("no format matches the requested track kind")

// Select picks the best variant for the kind: audio wants the best
// audio-only adaptive stream, video wants the best muxed video+audio
// stream. Candidates are restricted to the mp4 family so the container
// always matches the extension the metadata record declares; webm/opus
// variants are skipped even at a higher bitrate. Ranking follows the
// platform's quality ordering: height, then average bitrate, then
// bitrate.
func Select(streaming types.StreamingData, kind types.TrackKind) (types.Format, error) {
	var candidates []types.Format

	switch kind {
	case types.TrackAudio:
		for _, f := range streaming.AdaptiveFormats {
			if isMP4Audio(f) {
				candidates = append(candidates, f)
			}
		}
		sortByAudioQuality(candidates)
	default:
		// Muxed formats carry both tracks; adaptive ones never do.
		for _, f := range streaming.Formats {
			if isMP4Video(f) {
				candidates = append(candidates, f)
			}
		}
		sortByBest(candidates)
	}

	if len(candidates) == 0 {
		return types.Format{}, ErrNoMatchingFormat
	}
	return candidates[0], nil
}

func isMP4Audio(f types.Format) bool {
	return strings.HasPrefix(f.MimeType, "audio/mp4")
}

func isMP4Video(f types.Format) bool {
	return strings.HasPrefix(f.MimeType, "video/mp4")
}

// sortByBest orders by resolution first, bitrate second.
func sortByBest(formats []types.Format) {
	sort.SliceStable(formats, func(i, j int) bool {
		if formats[i].Height != formats[j].Height {
			return formats[i].Height > formats[j].Height
		}
		return effectiveBitrate(formats[i]) > effectiveBitrate(formats[j])
	})
}

// sortByAudioQuality orders by bitrate; the platform's audio quality
// labels track bitrate monotonically.
func sortByAudioQuality(formats []types.Format) {
	sort.SliceStable(formats, func(i, j int) bool {
		return effectiveBitrate(formats[i]) > effectiveBitrate(formats[j])
	})
}

func effectiveBitrate(f types.Format) int {
	if f.AverageBitrate != 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}
