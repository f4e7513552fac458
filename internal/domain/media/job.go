package media

import "time"

// Stage names one step of the clip pipeline.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageMetadata  Stage = "metadata"
	StageDownload  Stage = "download"
	StagePlan      Stage = "plan"
	StageTranscode Stage = "transcode"
)

// Job is the request-scoped state of one clip request. It is never persisted.
type Job struct {
	Key       VideoKey
	Metadata  Metadata
	Source    CachedSource
	Window    ClipWindow
	Clip      ProcessedClip
	StartedAt time.Time
}

// ClipURL returns the public URL of the finished clip.
func (j Job) ClipURL() string {
	return ClipURL(j.Clip.ID)
}

// ClipURL returns the public URL for a clip id.
func ClipURL(clipID string) string {
	return "/api/videos/" + clipID
}
