package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"viralclip/internal/domain/media"

	"github.com/rs/zerolog"
)

const (
	defaultBinary      = "ffmpeg"
	defaultProbeBinary = "ffprobe"

	badInputMarker = "Invalid data found when processing input"
	noInputMarker  = "No such file or directory"
)

// Converter wraps ffmpeg calls.
type Converter struct {
	BinPath   string
	ProbePath string
	logger    zerolog.Logger
}

// NewConverter creates ffmpeg adapter. An empty binPath resolves ffmpeg from PATH.
func NewConverter(binPath string, logger zerolog.Logger) *Converter {
	if strings.TrimSpace(binPath) == "" {
		binPath = defaultBinary
	}
	return &Converter{BinPath: binPath, ProbePath: defaultProbeBinary, logger: logger}
}

// Probe returns the container duration of inputPath as reported by ffprobe.
func (c *Converter) Probe(ctx context.Context, inputPath string) (time.Duration, error) {
	bin := c.ProbePath
	if strings.TrimSpace(bin) == "" {
		bin = defaultProbeBinary
	}
	out, err := exec.CommandContext(ctx, bin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=nokey=1:noprint_wrappers=1",
		inputPath,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", inputPath, err)
	}
	return parseProbeDuration(string(out))
}

func parseProbeDuration(out string) (time.Duration, error) {
	value := strings.TrimSpace(out)
	if value == "" {
		return 0, errors.New("duration missing")
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", value, err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", value)
	}
	return time.Duration(math.Round(secs * float64(time.Second))), nil
}

// Clip cuts window out of inputPath and re-encodes it to the vertical profile.
func (c *Converter) Clip(ctx context.Context, inputPath, outputPath string, window media.ClipWindow, profile media.Profile) error {
	return c.encode(ctx, outputPath, func(tmpPath string) []string {
		return clipArgs(inputPath, tmpPath, window, profile)
	})
}

// Sample renders a solid-colour clip with a silent audio track.
func (c *Converter) Sample(ctx context.Context, outputPath string, length time.Duration, profile media.Profile) error {
	return c.encode(ctx, outputPath, func(tmpPath string) []string {
		return sampleArgs(tmpPath, length, profile)
	})
}

func (c *Converter) encode(ctx context.Context, outputPath string, build func(tmpPath string) []string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}

	tmpPath := outputPath + ".tmp.mp4"
	_ = os.Remove(tmpPath)

	args := build(tmpPath)
	c.logger.Debug().Strs("args", args).Msg("ffmpeg start")

	started := time.Now()
	if err := run(ctx, c.BinPath, args...); err != nil {
		_ = os.Remove(tmpPath)
		return classify(err)
	}
	c.logger.Debug().Str("output", outputPath).Dur("elapsed", time.Since(started)).Msg("ffmpeg done")

	_ = os.Remove(outputPath)
	if err := os.Rename(tmpPath, outputPath); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func clipArgs(inputPath, outputPath string, window media.ClipWindow, profile media.Profile) []string {
	// -ss before -i seeks on the demuxer instead of decoding up to the start.
	args := []string{
		"-y",
		"-ss", seconds(window.Start),
		"-i", inputPath,
		"-t", seconds(window.Length),
		"-sn",
		"-map", "0:v:0?",
		"-map", "0:a:0?",
		"-vf", verticalFilter(profile),
	}
	return append(args, encodeArgs(profile, outputPath)...)
}

func sampleArgs(outputPath string, length time.Duration, profile media.Profile) []string {
	args := []string{
		"-y",
		"-f", "lavfi",
		"-i", fmt.Sprintf("color=c=blue:s=%dx%d:d=%s", profile.Width, profile.Height, seconds(length)),
		"-f", "lavfi",
		"-i", fmt.Sprintf("anullsrc=r=%d:cl=stereo", profile.AudioSampleRate),
		"-t", seconds(length),
		"-shortest",
	}
	return append(args, encodeArgs(profile, outputPath)...)
}

func encodeArgs(profile media.Profile, outputPath string) []string {
	args := []string{
		"-c:v", profile.VideoCodec,
		"-preset", profile.Preset,
		"-crf", strconv.Itoa(profile.CRF),
		"-maxrate", profile.MaxBitrate,
		"-bufsize", profile.BufferSize,
		"-pix_fmt", "yuv420p",
		"-aspect", profile.Aspect,
		"-c:a", profile.AudioCodec,
		"-b:a", profile.AudioBitrate,
		"-ar", strconv.Itoa(profile.AudioSampleRate),
		"-ac", strconv.Itoa(profile.AudioChannels),
		"-f", "mp4",
	}
	if profile.FastStart {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, outputPath)
}

func verticalFilter(profile media.Profile) string {
	return fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
		profile.Width, profile.Height, profile.Width, profile.Height,
	)
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// classify maps recognisable ffmpeg diagnostics onto transcode failure kinds.
func classify(err error) error {
	var runErr *runError
	if !errors.As(err, &runErr) {
		return media.Fail(media.ErrTranscodeFailed, err)
	}
	switch {
	case strings.Contains(runErr.stderr, badInputMarker):
		return media.Fail(media.ErrTranscodeBadInput, err)
	case strings.Contains(runErr.stderr, noInputMarker):
		return media.Fail(media.ErrTranscodeNoInput, err)
	default:
		return media.Fail(media.ErrTranscodeFailed, err)
	}
}

type runError struct {
	name   string
	err    error
	stderr string
}

func (e *runError) Error() string {
	return fmt.Sprintf("%s failed: %v: %s", e.name, e.err, lastLines(e.stderr, 5))
}

func (e *runError) Unwrap() error {
	return e.err
}

func run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.Stdout = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return &runError{name: name, err: err, stderr: strings.TrimSpace(stderr.String())}
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
