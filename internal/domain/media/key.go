package media

import (
	"net/url"
	"regexp"
	"strings"
)

// KeyLength is the length of a canonical video key.
const KeyLength = 11

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var recognizedHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"gaming.youtube.com":       true,
	"youtu.be":                 true,
	"www.youtu.be":             true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

// Path prefixes that carry the key as the next path segment.
var keyedPathPrefixes = []string{"/embed/", "/v/", "/e/", "/shorts/", "/live/"}

// VideoKey is the canonical identifier of a source video.
type VideoKey string

// String returns the raw key.
func (k VideoKey) String() string {
	return string(k)
}

// WatchURL returns the canonical watch URL for the key.
func (k VideoKey) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + string(k)
}

// IsValidKey reports whether raw is already a canonical key.
func IsValidKey(raw string) bool {
	return keyPattern.MatchString(raw)
}

// ResolveKey turns a bare key or a recognized video URL into a canonical key.
// It never touches the network.
func ResolveKey(raw string) (VideoKey, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", ErrInvalidIdentifier
	}
	if IsValidKey(value) {
		return VideoKey(value), nil
	}

	if !strings.Contains(value, "://") {
		value = "https://" + value
	}
	u, err := url.Parse(value)
	if err != nil {
		return "", ErrInvalidIdentifier
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidIdentifier
	}
	host := strings.ToLower(u.Hostname())
	if !recognizedHosts[host] {
		return "", ErrInvalidIdentifier
	}

	for _, candidate := range keyCandidates(host, u) {
		if IsValidKey(candidate) {
			return VideoKey(candidate), nil
		}
	}
	return "", ErrInvalidIdentifier
}

// keyCandidates lists possible keys in recognition order: watch query,
// short link, embed-style paths, then the raw first path segment.
func keyCandidates(host string, u *url.URL) []string {
	out := make([]string, 0, 3)
	if u.Path == "/watch" {
		out = append(out, u.Query().Get("v"))
	}
	if strings.HasSuffix(host, "youtu.be") {
		out = append(out, firstSegment(u.Path))
	}
	for _, prefix := range keyedPathPrefixes {
		if strings.HasPrefix(u.Path, prefix) {
			out = append(out, firstSegment(strings.TrimPrefix(u.Path, prefix)))
		}
	}
	out = append(out, firstSegment(u.Path))
	return out
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if idx := strings.IndexByte(p, '/'); idx >= 0 {
		p = p[:idx]
	}
	return p
}
