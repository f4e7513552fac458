package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	mediadomain "viralclip/internal/domain/media"
	"viralclip/internal/metrics"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const defaultDownloadTimeout = 5 * time.Minute

// SourceCache keeps one downloaded source per video key in the temp directory.
// Concurrent requests for the same key share a single download; different keys
// download in parallel. File size on disk is the only validity signal.
type SourceCache struct {
	store    AssetStore
	fetcher  SourceFetcher
	timeout  time.Duration
	minBytes int64
	logger   zerolog.Logger
	flights  singleflight.Group
}

// NewSourceCache creates a download cache over store using fetcher for misses.
func NewSourceCache(store AssetStore, fetcher SourceFetcher, timeout time.Duration, minBytes int64, logger zerolog.Logger) *SourceCache {
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	return &SourceCache{
		store:    store,
		fetcher:  fetcher,
		timeout:  timeout,
		minBytes: minBytes,
		logger:   logger,
	}
}

// Get returns a cached source for key, downloading it when absent or too small.
func (c *SourceCache) Get(ctx context.Context, key mediadomain.VideoKey) (mediadomain.CachedSource, error) {
	if src, ok := c.lookup(key); ok {
		metrics.DownloadCache.WithLabelValues("hit").Inc()
		return src, nil
	}

	// The shared download outlives any single caller; its own timeout bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.flights.DoChan(string(key), func() (interface{}, error) {
		if src, ok := c.lookup(key); ok {
			metrics.DownloadCache.WithLabelValues("hit").Inc()
			return src, nil
		}
		metrics.DownloadCache.WithLabelValues("miss").Inc()
		return c.download(flightCtx, key)
	})

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return mediadomain.CachedSource{}, mediadomain.Fail(mediadomain.ErrDownloadTimeout, ctx.Err())
		}
		return mediadomain.CachedSource{}, mediadomain.Fail(mediadomain.ErrSourceUnavailable, ctx.Err())
	case res := <-ch:
		if res.Shared {
			metrics.DownloadCache.WithLabelValues("shared").Inc()
		}
		if res.Err != nil {
			return mediadomain.CachedSource{}, res.Err
		}
		return res.Val.(mediadomain.CachedSource), nil
	}
}

// lookup reports a usable cached file and removes one that is too small.
func (c *SourceCache) lookup(key mediadomain.VideoKey) (mediadomain.CachedSource, bool) {
	path := c.store.SourcePath(key)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return mediadomain.CachedSource{}, false
	}
	if info.Size() < c.minBytes {
		metrics.DownloadCache.WithLabelValues("corrupt").Inc()
		c.logger.Warn().Str("video_key", key.String()).Int64("size", info.Size()).Msg("discarding undersized cached source")
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Error().Err(err).Str("video_key", key.String()).Msg("remove undersized cached source")
		}
		return mediadomain.CachedSource{}, false
	}
	return mediadomain.CachedSource{
		Key:        key,
		Path:       path,
		Size:       info.Size(),
		ModifiedAt: info.ModTime(),
	}, true
}

type fetchResult struct {
	n   int64
	err error
}

func (c *SourceCache) download(ctx context.Context, key mediadomain.VideoKey) (mediadomain.CachedSource, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	path := c.store.SourcePath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return mediadomain.CachedSource{}, fmt.Errorf("create source dir: %w", err)
	}

	// The pending file lives next to the target so the final rename is atomic.
	// Cleanup removes it on every path that does not commit.
	pending, err := renameio.NewPendingFile(path, renameio.WithTempDir(filepath.Dir(path)))
	if err != nil {
		return mediadomain.CachedSource{}, fmt.Errorf("create pending source file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			c.logger.Debug().Err(err).Str("video_key", key.String()).Msg("cleanup pending source file")
		}
	}()

	started := time.Now()
	c.logger.Info().Str("video_key", key.String()).Dur("timeout", c.timeout).Msg("source download started")

	w := &ctxWriter{ctx: ctx, w: pending}
	done := make(chan fetchResult, 1)
	go func() {
		n, err := c.fetcher.Fetch(ctx, key, w)
		done <- fetchResult{n: n, err: err}
	}()

	var res fetchResult
	select {
	case <-ctx.Done():
		c.logger.Warn().Str("video_key", key.String()).Dur("elapsed", time.Since(started)).Msg("source download timed out")
		return mediadomain.CachedSource{}, mediadomain.Fail(mediadomain.ErrDownloadTimeout, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		err := c.classify(ctx, w, res.err)
		c.logger.Warn().Err(res.err).Str("video_key", key.String()).Msg("source download failed")
		return mediadomain.CachedSource{}, err
	}

	info, err := pending.Stat()
	if err != nil {
		return mediadomain.CachedSource{}, fmt.Errorf("stat pending source file: %w", err)
	}
	if info.Size() < c.minBytes {
		return mediadomain.CachedSource{}, mediadomain.Fail(mediadomain.ErrCorruptDownload,
			fmt.Errorf("got %d bytes, want at least %d", info.Size(), c.minBytes))
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return mediadomain.CachedSource{}, fmt.Errorf("commit source file: %w", err)
	}

	metrics.DownloadedBytes.Add(float64(info.Size()))
	c.logger.Info().
		Str("video_key", key.String()).
		Int64("size", info.Size()).
		Dur("elapsed", time.Since(started)).
		Msg("source download finished")

	return mediadomain.CachedSource{
		Key:        key,
		Path:       path,
		Size:       info.Size(),
		ModifiedAt: time.Now(),
	}, nil
}

func (c *SourceCache) classify(ctx context.Context, w *ctxWriter, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(err, context.DeadlineExceeded):
		return mediadomain.Fail(mediadomain.ErrDownloadTimeout, err)
	case w.err != nil && !errors.Is(w.err, context.Canceled) && !errors.Is(w.err, context.DeadlineExceeded):
		return fmt.Errorf("write source file: %w", w.err)
	case mediadomain.KindOf(err) != nil:
		return err
	default:
		return mediadomain.Fail(mediadomain.ErrSourceUnavailable, err)
	}
}

// ctxWriter stops accepting bytes once ctx is done and remembers local write failures.
type ctxWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (cw *ctxWriter) Write(p []byte) (int, error) {
	if err := cw.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := cw.w.Write(p)
	if err != nil && cw.err == nil {
		cw.err = err
	}
	return n, err
}
