package media

import (
	"context"
	"io"
	"time"

	mediadomain "viralclip/internal/domain/media"
)

// MetadataProvider is an application port for the external media-info engine.
// Implementations return ErrMetadataUnavailable for private, deleted or
// otherwise inaccessible videos.
type MetadataProvider interface {
	Metadata(ctx context.Context, key mediadomain.VideoKey) (mediadomain.Metadata, error)
}

// SourceFetcher is an application port for the external media-retrieval engine.
// Fetch streams the full source media for key into w and must honour ctx.
type SourceFetcher interface {
	Fetch(ctx context.Context, key mediadomain.VideoKey, w io.Writer) (int64, error)
}

// Transcoder is an application port for the external transcoding engine.
type Transcoder interface {
	Clip(ctx context.Context, inputPath, outputPath string, window mediadomain.ClipWindow, profile mediadomain.Profile) error
	Sample(ctx context.Context, outputPath string, length time.Duration, profile mediadomain.Profile) error
}

// Prober reports the playable duration of a local media file.
type Prober interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
}

// AssetStore is an application port over the temp and processed directories.
type AssetStore interface {
	SourcePath(key mediadomain.VideoKey) string
	NewClipID(key mediadomain.VideoKey, now time.Time) string
	ClipPath(clipID string) (string, error)
	StatClip(clipID string) (mediadomain.ProcessedClip, error)
}
