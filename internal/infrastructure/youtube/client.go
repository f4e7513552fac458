package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"viralclip/internal/domain/media"

	yt "github.com/kkdai/youtube/v2"
	"github.com/rs/zerolog"
)

const (
	defaultDialTimeout           = 10 * time.Second
	defaultResponseHeaderTimeout = 20 * time.Second
	defaultIdleConnTimeout       = 90 * time.Second

	// Stream URLs in a video response stay valid for hours.
	recentVideoTTL = 10 * time.Minute
)

// videoAPI is the subset of the upstream client this adapter uses.
type videoAPI interface {
	GetVideoContext(ctx context.Context, id string) (*yt.Video, error)
	GetStreamContext(ctx context.Context, video *yt.Video, format *yt.Format) (io.ReadCloser, int64, error)
}

// Client is a YouTube infrastructure adapter for metadata and source retrieval.
type Client struct {
	api    videoAPI
	logger zerolog.Logger

	mu     sync.Mutex
	recent map[media.VideoKey]recentVideo
}

type recentVideo struct {
	video     *yt.Video
	fetchedAt time.Time
}

// NewClient creates a YouTube adapter with bounded dial and header timeouts.
// The body transfer itself is bounded by the caller's context.
func NewClient(logger zerolog.Logger) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: defaultResponseHeaderTimeout,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultDialTimeout,
		MaxIdleConnsPerHost:   4,
	}
	return &Client{
		api:    &yt.Client{HTTPClient: &http.Client{Transport: transport}},
		logger: logger,
	}
}

// Metadata fetches title, author, duration and thumbnails for key.
func (c *Client) Metadata(ctx context.Context, key media.VideoKey) (media.Metadata, error) {
	video, err := c.api.GetVideoContext(ctx, key.String())
	if err != nil {
		return media.Metadata{}, mapError(ctx, err)
	}
	c.remember(key, video)
	return toMetadata(key, video), nil
}

// Fetch streams the best progressive MP4 rendition of key into w. A video
// response from a recent Metadata call is reused instead of asking again.
func (c *Client) Fetch(ctx context.Context, key media.VideoKey, w io.Writer) (int64, error) {
	video, ok := c.takeRecent(key)
	if !ok {
		var err error
		video, err = c.api.GetVideoContext(ctx, key.String())
		if err != nil {
			return 0, mapError(ctx, err)
		}
	}

	format, err := pickFormat(video.Formats)
	if err != nil {
		return 0, media.Fail(media.ErrSourceUnavailable, err)
	}
	c.logger.Debug().
		Str("video_key", key.String()).
		Int("itag", format.ItagNo).
		Str("mime", format.MimeType).
		Str("quality", format.Quality).
		Msg("selected source format")

	stream, size, err := c.api.GetStreamContext(ctx, video, format)
	if err != nil {
		return 0, mapError(ctx, err)
	}
	defer stream.Close()

	n, err := io.Copy(w, stream)
	if err != nil {
		return n, err
	}
	if size > 0 && n != size {
		return n, media.Fail(media.ErrSourceUnavailable, fmt.Errorf("short read: got %d of %d bytes", n, size))
	}
	return n, nil
}

func (c *Client) remember(key media.VideoKey, video *yt.Video) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recent == nil {
		c.recent = make(map[media.VideoKey]recentVideo)
	}
	for k, entry := range c.recent {
		if now.Sub(entry.fetchedAt) > recentVideoTTL {
			delete(c.recent, k)
		}
	}
	c.recent[key] = recentVideo{video: video, fetchedAt: now}
}

func (c *Client) takeRecent(key media.VideoKey) (*yt.Video, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.recent[key]
	if !ok {
		return nil, false
	}
	delete(c.recent, key)
	if time.Since(entry.fetchedAt) > recentVideoTTL {
		return nil, false
	}
	return entry.video, true
}

func toMetadata(key media.VideoKey, video *yt.Video) media.Metadata {
	meta := media.Metadata{
		Key:         key,
		Title:       video.Title,
		Author:      video.Author,
		Description: video.Description,
		Duration:    video.Duration,
	}
	if video.ID != "" {
		meta.Key = media.VideoKey(video.ID)
	}
	for _, thumb := range video.Thumbnails {
		meta.Thumbnails = append(meta.Thumbnails, media.Thumbnail{
			URL:    thumb.URL,
			Width:  thumb.Width,
			Height: thumb.Height,
		})
	}
	return meta
}

// pickFormat chooses the highest-bitrate MP4 format carrying both audio and video.
func pickFormat(formats yt.FormatList) (*yt.Format, error) {
	var best *yt.Format
	for i := range formats {
		f := &formats[i]
		if !strings.HasPrefix(f.MimeType, "video/mp4") || f.AudioChannels <= 0 {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	if best == nil {
		return nil, errors.New("no progressive mp4 format available")
	}
	return best, nil
}

// mapError classifies upstream failures. Deadline errors pass through so the
// caller can attribute them to its own stage.
func mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", ctxErr, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	var (
		playability    yt.ErrPlayabiltyStatus
		playabilityPtr *yt.ErrPlayabiltyStatus
		status         yt.ErrUnexpectedStatusCode
	)
	switch {
	case errors.Is(err, yt.ErrVideoPrivate),
		errors.Is(err, yt.ErrLoginRequired),
		errors.Is(err, yt.ErrNotPlayableInEmbed),
		errors.As(err, &playability),
		errors.As(err, &playabilityPtr):
		return media.Fail(media.ErrMetadataUnavailable, err)
	case errors.As(err, &status):
		if int(status) == http.StatusNotFound || int(status) == http.StatusGone {
			return media.Fail(media.ErrMetadataUnavailable, err)
		}
		return media.Fail(media.ErrSourceUnavailable, err)
	default:
		return media.Fail(media.ErrSourceUnavailable, err)
	}
}
