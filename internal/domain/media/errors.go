package media

import (
	"errors"
	"fmt"
)

// Failure kinds surfaced by the clip pipeline. Each stage returns one of
// these (possibly wrapped) instead of a bare error.
var (
	ErrInvalidIdentifier   = errors.New("invalid video identifier")
	ErrMetadataUnavailable = errors.New("video metadata unavailable")
	ErrMetadataTimeout     = errors.New("video metadata request timed out")
	ErrTooShort            = errors.New("video is too short")
	ErrTooLong             = errors.New("video is too long")
	ErrDownloadTimeout     = errors.New("download timed out")
	ErrCorruptDownload     = errors.New("downloaded file is corrupt")
	ErrSourceUnavailable   = errors.New("source unavailable")
	ErrTranscodeFailed     = errors.New("transcode failed")
	ErrTranscodeTimeout    = fmt.Errorf("%w: timed out", ErrTranscodeFailed)
	ErrTranscodeBadInput   = fmt.Errorf("%w: invalid input data", ErrTranscodeFailed)
	ErrTranscodeNoInput    = fmt.Errorf("%w: missing input", ErrTranscodeFailed)
	ErrInvalidOutput       = errors.New("transcode produced invalid output")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// StageError pairs a failure kind with the cause that produced it.
type StageError struct {
	Kind error
	Err  error
}

// Fail wraps cause under kind. A nil cause yields the bare kind.
func Fail(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &StageError{Kind: kind, Err: cause}
}

func (e *StageError) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// KindOf returns the most specific failure kind found in err, or nil.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range orderedKinds {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// Sub-kinds come before the kinds they wrap.
var orderedKinds = []error{
	ErrInvalidIdentifier,
	ErrMetadataUnavailable,
	ErrMetadataTimeout,
	ErrTooShort,
	ErrTooLong,
	ErrDownloadTimeout,
	ErrCorruptDownload,
	ErrSourceUnavailable,
	ErrTranscodeTimeout,
	ErrTranscodeBadInput,
	ErrTranscodeNoInput,
	ErrTranscodeFailed,
	ErrInvalidOutput,
	ErrAssetNotFound,
	ErrRangeNotSatisfiable,
}

var kindNames = map[error]string{
	ErrInvalidIdentifier:   "invalid_identifier",
	ErrMetadataUnavailable: "metadata_unavailable",
	ErrMetadataTimeout:     "metadata_timeout",
	ErrTooShort:            "too_short",
	ErrTooLong:             "too_long",
	ErrDownloadTimeout:     "download_timeout",
	ErrCorruptDownload:     "corrupt_download",
	ErrSourceUnavailable:   "source_unavailable",
	ErrTranscodeTimeout:    "transcode_timeout",
	ErrTranscodeBadInput:   "transcode_invalid_input",
	ErrTranscodeNoInput:    "transcode_missing_input",
	ErrTranscodeFailed:     "transcode_failed",
	ErrInvalidOutput:       "transcode_invalid_output",
	ErrAssetNotFound:       "asset_not_found",
	ErrRangeNotSatisfiable: "range_not_satisfiable",
}

// KindName returns a stable label for err's failure kind, "internal" for
// unclassified errors and "ok" for nil.
func KindName(err error) string {
	if err == nil {
		return "ok"
	}
	if name, ok := kindNames[KindOf(err)]; ok {
		return name
	}
	return "internal"
}
