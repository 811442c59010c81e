// Package types holds the shared data model: the requested track kind,
// the platform's player response shape, and the normalized metadata
// record the pipeline produces.
package types

import "fmt"

// TrackKind selects which format family a request is for.
type TrackKind string

const (
	// TrackAudio selects the best audio-only format.
	TrackAudio TrackKind = "audio"
	// TrackVideo selects the best combined video+audio format.
	TrackVideo TrackKind = "video"
)

// Ext is the container extension the kind normalizes to.
func (k TrackKind) Ext() string {
	if k == TrackAudio {
		return "m4a"
	}
	return "mp4"
}

// Validate rejects unknown kinds.
func (k TrackKind) Validate() error {
	switch k {
	case TrackAudio, TrackVideo:
		return nil
	default:
		return fmt.Errorf("unknown track kind %q", string(k))
	}
}

// VideoMetadata is the normalized output record. For upcoming or live
// content URL is nil and LiveStatus/ReleaseTimestamp are set; for
// playable content it is the reverse.
type VideoMetadata struct {
	Title          string  `json:"title"`
	Duration       int64   `json:"duration"`
	FilesizeApprox *int64  `json:"filesize_approx"`
	Channel        string  `json:"channel"`
	ChannelURL     string  `json:"channel_url"`
	UploaderURL    string  `json:"uploader_url"`
	Description    string  `json:"description"`
	Ext            string  `json:"ext"`
	Kind           string  `json:"_type"`
	Thumbnail      string  `json:"thumbnail"`
	URL            *string `json:"url"`
	LiveStatus     *string `json:"live_status"`
	// ReleaseTimestamp is in Unix seconds, not milliseconds.
	ReleaseTimestamp *int64 `json:"release_timestamp"`
}
