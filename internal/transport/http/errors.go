package http

import (
	"fmt"
	"net/http"
	"time"

	"viralclip/internal/domain/media"
)

const genericProcessMessage = "Failed to process video"

type failure struct {
	status  int
	message string
}

// processFailures maps each pipeline failure kind to one status and a message
// that is safe to show to clients.
func processFailures(limits media.DurationLimits) map[error]failure {
	return map[error]failure{
		media.ErrInvalidIdentifier:   {http.StatusBadRequest, "Invalid YouTube URL"},
		media.ErrMetadataUnavailable: {http.StatusBadRequest, "Video is private, deleted or otherwise unavailable"},
		media.ErrTooLong:             {http.StatusBadRequest, fmt.Sprintf("Video is too long. Please use videos shorter than %s.", humanDuration(limits.Max))},
		media.ErrTooShort:            {http.StatusBadRequest, fmt.Sprintf("Video is too short. Please use videos at least %s long.", humanDuration(limits.Min))},
		media.ErrMetadataTimeout:     {http.StatusRequestTimeout, "Timed out while fetching video information"},
		media.ErrDownloadTimeout:     {http.StatusRequestTimeout, "Video download timed out"},
		media.ErrTranscodeTimeout:    {http.StatusRequestTimeout, "Video processing timed out"},
		media.ErrSourceUnavailable:   {http.StatusServiceUnavailable, "Could not reach the video source, please try again later"},
		media.ErrCorruptDownload:     {http.StatusInternalServerError, "Downloaded video was incomplete, please try again"},
		media.ErrTranscodeBadInput:   {http.StatusInternalServerError, "Source video could not be decoded"},
		media.ErrTranscodeNoInput:    {http.StatusInternalServerError, genericProcessMessage},
		media.ErrTranscodeFailed:     {http.StatusInternalServerError, genericProcessMessage},
		media.ErrInvalidOutput:       {http.StatusInternalServerError, genericProcessMessage},
	}
}

// infoFailures differs from processFailures only in reporting unavailable
// videos as missing.
func infoFailures(limits media.DurationLimits) map[error]failure {
	table := processFailures(limits)
	table[media.ErrMetadataUnavailable] = failure{http.StatusNotFound, "Video not found or unavailable"}
	return table
}

func lookupFailure(table map[error]failure, err error, fallback string) failure {
	if kind := media.KindOf(err); kind != nil {
		if f, ok := table[kind]; ok {
			return f
		}
	}
	return failure{http.StatusInternalServerError, fallback}
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	default:
		return plural(int64(d/time.Second), "second")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
