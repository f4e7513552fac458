package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"viralclip/internal/domain/media"
)

const clipExt = ".mp4"

var clipIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// Store maps video keys and clip ids onto the temp and processed directories.
// Directory listing plus stat is the only metadata source.
type Store struct {
	TempDir      string
	ProcessedDir string

	mu       sync.Mutex
	lastNano int64
}

// NewStore creates filesystem adapter with configured roots.
func NewStore(tempDir, processedDir string) *Store {
	return &Store{TempDir: tempDir, ProcessedDir: processedDir}
}

// EnsureDirs creates filesystem roots used by service.
func (s *Store) EnsureDirs() error {
	if err := os.MkdirAll(s.TempDir, 0o755); err != nil {
		return err
	}
	return os.MkdirAll(s.ProcessedDir, 0o755)
}

// TempRoot returns the directory holding downloaded sources.
func (s *Store) TempRoot() string {
	return s.TempDir
}

// ProcessedRoot returns the directory holding finished clips.
func (s *Store) ProcessedRoot() string {
	return s.ProcessedDir
}

// SourcePath returns the deterministic cache path for a video key.
func (s *Store) SourcePath(key media.VideoKey) string {
	return filepath.Join(s.TempDir, key.String()+"_original.mp4")
}

// NewClipID returns a clip id built from key and a strictly increasing
// nanosecond timestamp, so ids never repeat within the process.
func (s *Store) NewClipID(key media.VideoKey, now time.Time) string {
	nano := now.UnixNano()
	s.mu.Lock()
	if nano <= s.lastNano {
		nano = s.lastNano + 1
	}
	s.lastNano = nano
	s.mu.Unlock()
	return fmt.Sprintf("viral_%s_%d", key, nano)
}

// ClipPath validates clipID and returns its file path in the processed directory.
func (s *Store) ClipPath(clipID string) (string, error) {
	if !clipIDPattern.MatchString(clipID) {
		return "", media.ErrAssetNotFound
	}
	full := filepath.Join(s.ProcessedDir, clipID+clipExt)
	if !isWithinDir(s.ProcessedDir, full) {
		return "", media.ErrAssetNotFound
	}
	return full, nil
}

// StatClip returns the stored clip for clipID or ErrAssetNotFound.
func (s *Store) StatClip(clipID string) (media.ProcessedClip, error) {
	full, err := s.ClipPath(clipID)
	if err != nil {
		return media.ProcessedClip{}, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return media.ProcessedClip{}, media.ErrAssetNotFound
		}
		return media.ProcessedClip{}, err
	}
	if info.IsDir() {
		return media.ProcessedClip{}, media.ErrAssetNotFound
	}
	return media.ProcessedClip{
		ID:        clipID,
		Path:      full,
		Size:      info.Size(),
		CreatedAt: info.ModTime(),
	}, nil
}

// OpenClip opens a stored clip for reading. The caller closes the reader.
func (s *Store) OpenClip(clipID string) (io.ReadSeekCloser, media.ProcessedClip, error) {
	clip, err := s.StatClip(clipID)
	if err != nil {
		return nil, media.ProcessedClip{}, err
	}
	file, err := os.Open(clip.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, media.ProcessedClip{}, media.ErrAssetNotFound
		}
		return nil, media.ProcessedClip{}, err
	}
	// Size from the open handle: the sweep may have replaced the path meanwhile.
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, media.ProcessedClip{}, err
	}
	clip.Size = info.Size()
	clip.CreatedAt = info.ModTime()
	return file, clip, nil
}

func isWithinDir(basePath, targetPath string) bool {
	baseAbs, err := filepath.Abs(basePath)
	if err != nil {
		return false
	}
	targetAbs, err := filepath.Abs(targetPath)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(baseAbs, targetAbs)
	if err != nil {
		return false
	}
	sep := string(os.PathSeparator)
	if rel == ".." || strings.HasPrefix(rel, ".."+sep) {
		return false
	}
	return true
}
