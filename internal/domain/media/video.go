package media

import "time"

// Thumbnail is a preview image reference reported by the metadata provider.
type Thumbnail struct {
	URL    string `json:"url"`
	Width  uint   `json:"width"`
	Height uint   `json:"height"`
}

// Metadata describes a source video as reported by the metadata provider.
type Metadata struct {
	Key         VideoKey
	Title       string
	Author      string
	Description string
	Duration    time.Duration
	Thumbnails  []Thumbnail
}

// DurationLimits bounds the source durations accepted for clipping.
type DurationLimits struct {
	Min time.Duration
	Max time.Duration
}

// Check returns ErrTooShort or ErrTooLong when d falls outside the limits.
func (l DurationLimits) Check(d time.Duration) error {
	if l.Min > 0 && d < l.Min {
		return ErrTooShort
	}
	if l.Max > 0 && d > l.Max {
		return ErrTooLong
	}
	return nil
}

// CachedSource is a downloaded source file kept in the temp directory.
type CachedSource struct {
	Key        VideoKey
	Path       string
	Size       int64
	ModifiedAt time.Time
}

// ProcessedClip is a finished clip in the processed directory.
type ProcessedClip struct {
	ID        string
	Path      string
	Size      int64
	CreatedAt time.Time
}
