package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	mediadomain "viralclip/internal/domain/media"

	"github.com/stretchr/testify/require"
)

const testMinBytes = 10240

type stubProvider struct {
	meta  mediadomain.Metadata
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (p *stubProvider) Metadata(ctx context.Context, key mediadomain.VideoKey) (mediadomain.Metadata, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return mediadomain.Metadata{}, ctx.Err()
		}
	}
	if p.err != nil {
		return mediadomain.Metadata{}, p.err
	}
	meta := p.meta
	meta.Key = key
	return meta, nil
}

type stubFetcher struct {
	payload int
	err     error
	gate    chan struct{}
	block   bool
	calls   atomic.Int32
}

func (f *stubFetcher) Fetch(ctx context.Context, _ mediadomain.VideoKey, w io.Writer) (int64, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if f.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if f.err != nil {
		return 0, f.err
	}
	n, err := io.Copy(w, bytes.NewReader(make([]byte, f.payload)))
	return n, err
}

type stubTranscoder struct {
	size        int
	err         error
	block       bool
	clipCalls   atomic.Int32
	sampleCalls atomic.Int32
	lastWindow  atomic.Value
}

func (s *stubTranscoder) Clip(ctx context.Context, _, outputPath string, window mediadomain.ClipWindow, _ mediadomain.Profile) error {
	s.clipCalls.Add(1)
	s.lastWindow.Store(window)
	return s.write(ctx, outputPath)
}

func (s *stubTranscoder) Sample(ctx context.Context, outputPath string, _ time.Duration, _ mediadomain.Profile) error {
	s.sampleCalls.Add(1)
	return s.write(ctx, outputPath)
}

func (s *stubTranscoder) write(ctx context.Context, outputPath string) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.size > 0 {
		if err := os.WriteFile(outputPath, make([]byte, s.size), 0o644); err != nil {
			return err
		}
	}
	return s.err
}

type stubProber struct {
	duration time.Duration
	err      error
	calls    atomic.Int32
	lastPath atomic.Value
}

func (p *stubProber) Probe(_ context.Context, path string) (time.Duration, error) {
	p.calls.Add(1)
	p.lastPath.Store(path)
	return p.duration, p.err
}

type tempStore struct {
	temp      string
	processed string
	seq       atomic.Int64
}

func newTempStore(t *testing.T) *tempStore {
	t.Helper()
	root := t.TempDir()
	store := &tempStore{temp: filepath.Join(root, "temp"), processed: filepath.Join(root, "processed")}
	require.NoError(t, os.MkdirAll(store.temp, 0o755))
	require.NoError(t, os.MkdirAll(store.processed, 0o755))
	return store
}

func (s *tempStore) SourcePath(key mediadomain.VideoKey) string {
	return filepath.Join(s.temp, key.String()+"_original.mp4")
}

func (s *tempStore) TempRoot() string { return s.temp }

func (s *tempStore) NewClipID(key mediadomain.VideoKey, _ time.Time) string {
	return fmt.Sprintf("viral_%s_%d", key, s.seq.Add(1))
}

func (s *tempStore) ClipPath(clipID string) (string, error) {
	return filepath.Join(s.processed, clipID+".mp4"), nil
}

func (s *tempStore) StatClip(clipID string) (mediadomain.ProcessedClip, error) {
	path, _ := s.ClipPath(clipID)
	info, err := os.Stat(path)
	if err != nil {
		return mediadomain.ProcessedClip{}, mediadomain.ErrAssetNotFound
	}
	return mediadomain.ProcessedClip{ID: clipID, Path: path, Size: info.Size(), CreatedAt: info.ModTime()}, nil
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
