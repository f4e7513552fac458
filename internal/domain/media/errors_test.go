package media

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFail_MatchesKindAndCause(t *testing.T) {
	err := Fail(ErrSourceUnavailable, context.Canceled)

	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ErrSourceUnavailable, KindOf(err))
}

func TestFail_NilCause(t *testing.T) {
	assert.Equal(t, ErrCorruptDownload, Fail(ErrCorruptDownload, nil))
}

func TestKindOf_PrefersSubKinds(t *testing.T) {
	err := Fail(ErrTranscodeBadInput, errors.New("exit status 1"))

	assert.ErrorIs(t, err, ErrTranscodeFailed)
	assert.Equal(t, ErrTranscodeBadInput, KindOf(err))
	assert.Equal(t, ErrTranscodeFailed, KindOf(fmt.Errorf("ffmpeg: %w", ErrTranscodeFailed)))
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Nil(t, KindOf(errors.New("boom")))
	assert.Nil(t, KindOf(nil))
}

func TestKindName(t *testing.T) {
	assert.Equal(t, "ok", KindName(nil))
	assert.Equal(t, "too_long", KindName(ErrTooLong))
	assert.Equal(t, "transcode_missing_input", KindName(Fail(ErrTranscodeNoInput, errors.New("stat"))))
	assert.Equal(t, "internal", KindName(errors.New("disk full")))
}
