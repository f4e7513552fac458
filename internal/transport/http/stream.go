package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"viralclip/internal/domain/media"
	"viralclip/internal/metrics"
)

// byteRange is an inclusive span inside a resource of known size.
type byteRange struct {
	start int64
	end   int64
}

func (r byteRange) length() int64 {
	return r.end - r.start + 1
}

// parseRange parses a single-range header value. Suffix ranges (bytes=-N)
// address the last N bytes. Anything else, including multi-range requests,
// yields ErrRangeNotSatisfiable.
func parseRange(header string, size int64) (byteRange, error) {
	spec, ok := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !ok || strings.Contains(spec, ",") {
		return byteRange{}, media.ErrRangeNotSatisfiable
	}
	startText, endText, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return byteRange{}, media.ErrRangeNotSatisfiable
	}
	startText = strings.TrimSpace(startText)
	endText = strings.TrimSpace(endText)

	if startText == "" {
		suffix, err := strconv.ParseInt(endText, 10, 64)
		if err != nil || suffix <= 0 || size == 0 {
			return byteRange{}, media.ErrRangeNotSatisfiable
		}
		if suffix > size {
			suffix = size
		}
		return byteRange{start: size - suffix, end: size - 1}, nil
	}

	start, err := strconv.ParseInt(startText, 10, 64)
	if err != nil || start < 0 || start >= size {
		return byteRange{}, media.ErrRangeNotSatisfiable
	}
	end := size - 1
	if endText != "" {
		end, err = strconv.ParseInt(endText, 10, 64)
		if err != nil || end < start {
			return byteRange{}, media.ErrRangeNotSatisfiable
		}
		if end >= size {
			end = size - 1
		}
	}
	return byteRange{start: start, end: end}, nil
}

// streamFile writes body honouring a single byte range. Only the requested
// span is read from body.
func streamFile(w http.ResponseWriter, r *http.Request, body io.ReadSeeker, size int64, contentType string) {
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		n, _ := io.Copy(w, body)
		metrics.ServedBytes.WithLabelValues("full").Add(float64(n))
		return
	}

	span, err := parseRange(rangeHeader, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeJSON(w, http.StatusRequestedRangeNotSatisfiable, map[string]any{
			"error": "Requested range not satisfiable",
		})
		return
	}

	if _, err := body.Seek(span.start, io.SeekStart); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to read video"})
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(span.length(), 10))
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", span.start, span.end, size))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method == http.MethodHead {
		return
	}
	n, _ := io.CopyN(w, body, span.length())
	metrics.ServedBytes.WithLabelValues("partial").Add(float64(n))
}
