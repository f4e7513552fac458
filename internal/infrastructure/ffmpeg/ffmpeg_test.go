package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"viralclip/internal/domain/media"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func argValue(t *testing.T, args []string, flag string) string {
	t.Helper()
	for i, arg := range args {
		if arg == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	t.Fatalf("flag %s not found in %v", flag, args)
	return ""
}

func indexOf(args []string, value string) int {
	for i, arg := range args {
		if arg == value {
			return i
		}
	}
	return -1
}

func TestClipArgs(t *testing.T) {
	window := media.ClipWindow{Start: 12500 * time.Millisecond, Length: 40 * time.Second}
	args := clipArgs("/tmp/in.mp4", "/out/clip.tmp.mp4", window, media.VerticalProfile)

	assert.Equal(t, "12.500", argValue(t, args, "-ss"))
	assert.Equal(t, "40.000", argValue(t, args, "-t"))
	assert.Less(t, indexOf(args, "-ss"), indexOf(args, "-i"), "seek must precede input")
	assert.Equal(t, "scale=1080:1920:force_original_aspect_ratio=increase,crop=1080:1920,setsar=1", argValue(t, args, "-vf"))
	assert.Equal(t, "libx264", argValue(t, args, "-c:v"))
	assert.Equal(t, "aac", argValue(t, args, "-c:a"))
	assert.Equal(t, "fast", argValue(t, args, "-preset"))
	assert.Equal(t, "23", argValue(t, args, "-crf"))
	assert.Equal(t, "4M", argValue(t, args, "-maxrate"))
	assert.Equal(t, "8M", argValue(t, args, "-bufsize"))
	assert.Equal(t, "128k", argValue(t, args, "-b:a"))
	assert.Equal(t, "44100", argValue(t, args, "-ar"))
	assert.Equal(t, "2", argValue(t, args, "-ac"))
	assert.Equal(t, "9:16", argValue(t, args, "-aspect"))
	assert.Equal(t, "+faststart", argValue(t, args, "-movflags"))
	assert.Equal(t, "/out/clip.tmp.mp4", args[len(args)-1])
}

func TestSampleArgs(t *testing.T) {
	args := sampleArgs("/out/sample.tmp.mp4", 10*time.Second, media.VerticalProfile)

	assert.Equal(t, "color=c=blue:s=1080x1920:d=10.000", args[indexOf(args, "-i")+1])
	assert.Contains(t, args, "anullsrc=r=44100:cl=stereo")
	assert.Equal(t, "10.000", argValue(t, args, "-t"))
	assert.Equal(t, "/out/sample.tmp.mp4", args[len(args)-1])
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		want   error
	}{
		{name: "bad input", stderr: "in.mp4: Invalid data found when processing input", want: media.ErrTranscodeBadInput},
		{name: "missing input", stderr: "in.mp4: No such file or directory", want: media.ErrTranscodeNoInput},
		{name: "other", stderr: "Conversion failed!", want: media.ErrTranscodeFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(&runError{name: "ffmpeg", err: errors.New("exit status 1"), stderr: tt.stderr})
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, media.ErrTranscodeFailed)
		})
	}
}

func fakeBinary(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return path
}

func TestConverterClipRenamesOutput(t *testing.T) {
	bin := fakeBinary(t, "for last; do :; done\nhead -c 20000 /dev/zero > \"$last\"\n")
	conv := NewConverter(bin, zerolog.Nop())

	out := filepath.Join(t.TempDir(), "processed", "clip.mp4")
	err := conv.Clip(context.Background(), "/in.mp4", out, media.ClipWindow{Length: time.Second}, media.VerticalProfile)
	require.NoError(t, err)

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.EqualValues(t, 20000, info.Size())

	_, err = os.Stat(out + ".tmp.mp4")
	assert.True(t, os.IsNotExist(err))
}

func TestConverterClipFailureLeavesNothing(t *testing.T) {
	bin := fakeBinary(t, "for last; do :; done\necho junk > \"$last\"\necho 'Invalid data found when processing input' >&2\nexit 1\n")
	conv := NewConverter(bin, zerolog.Nop())

	out := filepath.Join(t.TempDir(), "clip.mp4")
	err := conv.Clip(context.Background(), "/in.mp4", out, media.ClipWindow{Length: time.Second}, media.VerticalProfile)
	require.ErrorIs(t, err, media.ErrTranscodeBadInput)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(out + ".tmp.mp4")
	assert.True(t, os.IsNotExist(statErr))
}

func TestConverterClipRenameFailureRemovesTemp(t *testing.T) {
	bin := fakeBinary(t, "for last; do :; done\nhead -c 20000 /dev/zero > \"$last\"\n")
	conv := NewConverter(bin, zerolog.Nop())

	// A non-empty directory at the output path can be neither removed nor replaced.
	out := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.MkdirAll(filepath.Join(out, "keep"), 0o755))

	err := conv.Clip(context.Background(), "/in.mp4", out, media.ClipWindow{Length: time.Second}, media.VerticalProfile)
	require.Error(t, err)

	_, statErr := os.Stat(out + ".tmp.mp4")
	assert.True(t, os.IsNotExist(statErr))
}

func TestConverterProbe(t *testing.T) {
	conv := NewConverter("ffmpeg", zerolog.Nop())

	conv.ProbePath = fakeBinary(t, "echo 12.480000\n")
	d, err := conv.Probe(context.Background(), "/in.mp4")
	require.NoError(t, err)
	assert.Equal(t, 12480*time.Millisecond, d)

	conv.ProbePath = fakeBinary(t, "echo 'No such file or directory' >&2\nexit 1\n")
	_, err = conv.Probe(context.Background(), "/missing.mp4")
	assert.Error(t, err)
}

func TestParseProbeDuration(t *testing.T) {
	d, err := parseProbeDuration("40.000000\n")
	require.NoError(t, err)
	assert.Equal(t, 40*time.Second, d)

	for _, out := range []string{"", "N/A", "0.000000", "-1"} {
		_, err := parseProbeDuration(out)
		assert.Error(t, err, "output %q", out)
	}
}
