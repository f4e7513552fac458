package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	mediadomain "viralclip/internal/domain/media"

	"github.com/rs/zerolog"
)

const defaultTranscodeTimeout = 10 * time.Minute

// ClipMaker runs one transcode attempt per call and verifies what the engine
// wrote. It owns no retry policy.
type ClipMaker struct {
	transcoder Transcoder
	timeout    time.Duration
	minBytes   int64
	logger     zerolog.Logger
}

// NewClipMaker creates a transcode orchestrator around transcoder.
func NewClipMaker(transcoder Transcoder, timeout time.Duration, minBytes int64, logger zerolog.Logger) *ClipMaker {
	if timeout <= 0 {
		timeout = defaultTranscodeTimeout
	}
	return &ClipMaker{transcoder: transcoder, timeout: timeout, minBytes: minBytes, logger: logger}
}

// Make cuts window out of inputPath into outputPath using profile and returns
// the size of the verified output. Any failure leaves no file at outputPath.
func (m *ClipMaker) Make(ctx context.Context, inputPath, outputPath string, window mediadomain.ClipWindow, profile mediadomain.Profile) (int64, error) {
	if info, err := os.Stat(inputPath); err != nil || info.IsDir() {
		if err == nil {
			err = errors.New("input is a directory")
		}
		return 0, mediadomain.Fail(mediadomain.ErrTranscodeNoInput, err)
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.transcoder.Clip(ctx, inputPath, outputPath, window, profile)
	return m.finish(ctx, outputPath, err)
}

// MakeSample renders a placeholder clip of length into outputPath.
func (m *ClipMaker) MakeSample(ctx context.Context, outputPath string, length time.Duration, profile mediadomain.Profile) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.transcoder.Sample(ctx, outputPath, length, profile)
	return m.finish(ctx, outputPath, err)
}

func (m *ClipMaker) finish(ctx context.Context, outputPath string, err error) (int64, error) {
	if err != nil {
		m.discard(outputPath)
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return 0, mediadomain.Fail(mediadomain.ErrTranscodeTimeout, err)
		case mediadomain.KindOf(err) != nil:
			return 0, err
		default:
			return 0, mediadomain.Fail(mediadomain.ErrTranscodeFailed, err)
		}
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return 0, mediadomain.Fail(mediadomain.ErrInvalidOutput, err)
	}
	if info.Size() < m.minBytes {
		m.discard(outputPath)
		return 0, mediadomain.Fail(mediadomain.ErrInvalidOutput,
			fmt.Errorf("output is %d bytes, want at least %d", info.Size(), m.minBytes))
	}
	return info.Size(), nil
}

func (m *ClipMaker) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Error().Err(err).Str("path", path).Msg("remove failed transcode output")
	}
}
