package media

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	mediadomain "viralclip/internal/domain/media"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = mediadomain.VideoKey("dQw4w9WgXcQ")

func TestSourceCacheHitSkipsFetch(t *testing.T) {
	store := newTempStore(t)
	fetcher := &stubFetcher{payload: 20000}
	cache := NewSourceCache(store, fetcher, time.Second, testMinBytes, zerolog.Nop())

	first, err := cache.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.EqualValues(t, 20000, first.Size)
	assert.Equal(t, store.SourcePath(testKey), first.Path)

	second, err := cache.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.Equal(t, first.Path, second.Path)
	assert.EqualValues(t, 1, fetcher.calls.Load())
}

func TestSourceCacheSharesConcurrentDownload(t *testing.T) {
	store := newTempStore(t)
	fetcher := &stubFetcher{payload: 20000, gate: make(chan struct{})}
	cache := NewSourceCache(store, fetcher, 5*time.Second, testMinBytes, zerolog.Nop())

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background(), testKey)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, fetcher.calls.Load())
}

func TestSourceCacheRefetchesUndersizedFile(t *testing.T) {
	store := newTempStore(t)
	require.NoError(t, os.WriteFile(store.SourcePath(testKey), []byte("tiny"), 0o644))
	fetcher := &stubFetcher{payload: 20000}
	cache := NewSourceCache(store, fetcher, time.Second, testMinBytes, zerolog.Nop())

	src, err := cache.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.EqualValues(t, 20000, src.Size)
	assert.EqualValues(t, 1, fetcher.calls.Load())
}

func TestSourceCacheFailuresLeaveNoFiles(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *stubFetcher
		timeout time.Duration
		want    error
	}{
		{name: "corrupt", fetcher: &stubFetcher{payload: 100}, timeout: time.Second, want: mediadomain.ErrCorruptDownload},
		{name: "timeout", fetcher: &stubFetcher{block: true}, timeout: 50 * time.Millisecond, want: mediadomain.ErrDownloadTimeout},
		{name: "source error", fetcher: &stubFetcher{err: errors.New("403 forbidden")}, timeout: time.Second, want: mediadomain.ErrSourceUnavailable},
		{name: "classified error", fetcher: &stubFetcher{err: mediadomain.Fail(mediadomain.ErrMetadataUnavailable, errors.New("private"))}, timeout: time.Second, want: mediadomain.ErrMetadataUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTempStore(t)
			cache := NewSourceCache(store, tt.fetcher, tt.timeout, testMinBytes, zerolog.Nop())

			_, err := cache.Get(context.Background(), testKey)
			require.ErrorIs(t, err, tt.want)
			assert.Empty(t, dirEntries(t, store.TempRoot()))
		})
	}
}

func TestSourceCacheCallerDeadline(t *testing.T) {
	store := newTempStore(t)
	fetcher := &stubFetcher{payload: 20000, gate: make(chan struct{})}
	cache := NewSourceCache(store, fetcher, 5*time.Second, testMinBytes, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := cache.Get(ctx, testKey)
	require.ErrorIs(t, err, mediadomain.ErrDownloadTimeout)

	// The shared download keeps going for later callers.
	close(fetcher.gate)
	src, err := cache.Get(context.Background(), testKey)
	require.NoError(t, err)
	assert.EqualValues(t, 20000, src.Size)
	assert.EqualValues(t, 1, fetcher.calls.Load())
}
