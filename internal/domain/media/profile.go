package media

// Profile is the fixed target encoding for vertical clips.
type Profile struct {
	VideoCodec      string
	AudioCodec      string
	Width           int
	Height          int
	Aspect          string
	Preset          string
	CRF             int
	MaxBitrate      string
	BufferSize      string
	AudioBitrate    string
	AudioSampleRate int
	AudioChannels   int
	FastStart       bool
}

// VerticalProfile is the 1080x1920 H.264/AAC profile used for every clip.
var VerticalProfile = Profile{
	VideoCodec:      "libx264",
	AudioCodec:      "aac",
	Width:           1080,
	Height:          1920,
	Aspect:          "9:16",
	Preset:          "fast",
	CRF:             23,
	MaxBitrate:      "4M",
	BufferSize:      "8M",
	AudioBitrate:    "128k",
	AudioSampleRate: 44100,
	AudioChannels:   2,
	FastStart:       true,
}
