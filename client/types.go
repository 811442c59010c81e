package client

import "github.com/famomatic/onesie/internal/types"

// TrackKind selects which format family to resolve.
type TrackKind = types.TrackKind

const (
	// TrackAudio resolves the best audio-only stream.
	TrackAudio = types.TrackAudio
	// TrackVideo resolves the best combined video+audio stream.
	TrackVideo = types.TrackVideo
)

// VideoMetadata is the normalized result record.
type VideoMetadata = types.VideoMetadata
