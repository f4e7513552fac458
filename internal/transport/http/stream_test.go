package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"viralclip/internal/domain/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func serve(t *testing.T, content []byte, rangeHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/videos/clip", nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	streamFile(rec, req, bytes.NewReader(content), int64(len(content)), videoMediaType)
	return rec
}

func TestStreamFileFullContent(t *testing.T) {
	content := payload(1000)
	rec := serve(t, content, "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000", rec.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	assert.Equal(t, "video/mp4", rec.Header().Get("Content-Type"))
	assert.Equal(t, content, rec.Body.Bytes())
}

func TestStreamFilePartialContent(t *testing.T) {
	content := payload(1000)

	tests := []struct {
		name   string
		header string
		start  int
		end    int
	}{
		{name: "first hundred", header: "bytes=0-99", start: 0, end: 99},
		{name: "open ended", header: "bytes=900-", start: 900, end: 999},
		{name: "end clamped", header: "bytes=990-5000", start: 990, end: 999},
		{name: "single byte", header: "bytes=999-999", start: 999, end: 999},
		{name: "suffix", header: "bytes=-10", start: 990, end: 999},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, content, tt.header)

			require.Equal(t, http.StatusPartialContent, rec.Code)
			length := tt.end - tt.start + 1
			assert.Equal(t, "bytes "+strconv.Itoa(tt.start)+"-"+strconv.Itoa(tt.end)+"/1000", rec.Header().Get("Content-Range"))
			assert.Equal(t, strconv.Itoa(length), rec.Header().Get("Content-Length"))
			assert.Equal(t, content[tt.start:tt.end+1], rec.Body.Bytes())
		})
	}
}

func TestStreamFileUnsatisfiable(t *testing.T) {
	content := payload(1000)

	for _, header := range []string{"bytes=1000-", "bytes=5000-6000", "bytes=50-10", "bytes=0-1,5-6", "items=0-1", "bytes=abc-", "bytes=-0"} {
		t.Run(header, func(t *testing.T) {
			rec := serve(t, content, header)
			assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
			assert.Equal(t, "bytes */1000", rec.Header().Get("Content-Range"))
		})
	}
}

type countingSeeker struct {
	*bytes.Reader
	read int
}

func (c *countingSeeker) Read(p []byte) (int, error) {
	n, err := c.Reader.Read(p)
	c.read += n
	return n, err
}

func TestStreamFileReadsOnlyRequestedSpan(t *testing.T) {
	body := &countingSeeker{Reader: bytes.NewReader(payload(1 << 20))}
	req := httptest.NewRequest(http.MethodGet, "/api/videos/clip", nil)
	req.Header.Set("Range", "bytes=100-199")
	rec := httptest.NewRecorder()

	streamFile(rec, req, body, 1<<20, videoMediaType)

	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, 100, body.read)
}

func TestParseRange(t *testing.T) {
	span, err := parseRange("bytes=0-99", 100)
	require.NoError(t, err)
	assert.Equal(t, byteRange{start: 0, end: 99}, span)
	assert.EqualValues(t, 100, span.length())

	_, err = parseRange("bytes=0-", 0)
	assert.ErrorIs(t, err, media.ErrRangeNotSatisfiable)
}
