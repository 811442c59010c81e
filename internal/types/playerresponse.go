package types

// PlayerResponse is the subset of the platform's player document this
// client consumes. The upstream shape is externally defined; only fields
// the normalizer reads are declared.
type PlayerResponse struct {
	PlayabilityStatus PlayabilityStatus `json:"playabilityStatus"`
	StreamingData     StreamingData     `json:"streamingData"`
	VideoDetails      VideoDetails      `json:"videoDetails"`
	Microformat       Microformat       `json:"microformat"`
}

type PlayabilityStatus struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type StreamingData struct {
	ExpiresInSeconds string   `json:"expiresInSeconds"`
	Formats          []Format `json:"formats"`
	AdaptiveFormats  []Format `json:"adaptiveFormats"`
}

// Format is one muxed or adaptive stream variant.
type Format struct {
	Itag             int    `json:"itag"`
	URL              string `json:"url"`
	MimeType         string `json:"mimeType"`
	Bitrate          int    `json:"bitrate"`
	AverageBitrate   int    `json:"averageBitrate"`
	Width            int    `json:"width"`
	Height           int    `json:"height"`
	FPS              int    `json:"fps"`
	Quality          string `json:"quality"`
	QualityLabel     string `json:"qualityLabel"`
	AudioQuality     string `json:"audioQuality"`
	AudioSampleRate  string `json:"audioSampleRate"`
	AudioChannels    int    `json:"audioChannels"`
	ContentLength    string `json:"contentLength"`
	ApproxDurationMs string `json:"approxDurationMs"`
	SignatureCipher  string `json:"signatureCipher"`
}

type VideoDetails struct {
	VideoID          string    `json:"videoId"`
	Title            string    `json:"title"`
	LengthSeconds    string    `json:"lengthSeconds"`
	ChannelID        string    `json:"channelId"`
	Author           string    `json:"author"`
	ShortDescription string    `json:"shortDescription"`
	IsLive           bool      `json:"isLive"`
	IsUpcoming       bool      `json:"isUpcoming"`
	IsLiveContent    bool      `json:"isLiveContent"`
	Thumbnail        Thumbnail `json:"thumbnail"`
}

type Thumbnail struct {
	Thumbnails []ThumbnailVariant `json:"thumbnails"`
}

type ThumbnailVariant struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Microformat struct {
	PlayerMicroformatRenderer PlayerMicroformatRenderer `json:"playerMicroformatRenderer"`
}

type PlayerMicroformatRenderer struct {
	OwnerChannelName     string               `json:"ownerChannelName"`
	OwnerProfileURL      string               `json:"ownerProfileUrl"`
	PublishDate          string               `json:"publishDate"`
	LiveBroadcastDetails LiveBroadcastDetails `json:"liveBroadcastDetails"`
}

type LiveBroadcastDetails struct {
	IsLiveNow      bool   `json:"isLiveNow"`
	StartTimestamp string `json:"startTimestamp"`
}
