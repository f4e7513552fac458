package filesystem

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"viralclip/internal/metrics"

	"github.com/rs/zerolog"
)

const (
	defaultRetention     = time.Hour
	defaultSweepInterval = 30 * time.Minute
)

// SweepStats summarises one sweep pass.
type SweepStats struct {
	Scanned int
	Removed int
	Failed  int
}

// Sweeper deletes files older than a retention window from a set of directories.
type Sweeper struct {
	dirs      []string
	retention time.Duration
	keep      map[string]bool
	logger    zerolog.Logger

	now    func() time.Time
	remove func(string) error
}

// NewSweeper creates a retention sweeper over dirs. Files whose base name is
// listed in keep are never deleted.
func NewSweeper(dirs []string, retention time.Duration, logger zerolog.Logger, keep ...string) *Sweeper {
	if retention <= 0 {
		retention = defaultRetention
	}
	keepSet := make(map[string]bool, len(keep))
	for _, name := range keep {
		keepSet[name] = true
	}
	return &Sweeper{
		dirs:      dirs,
		retention: retention,
		keep:      keepSet,
		logger:    logger,
		now:       time.Now,
		remove:    os.Remove,
	}
}

// Start sweeps once immediately and then every interval until ctx is done.
// The returned channel is closed when the loop exits.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	done := make(chan struct{})
	s.logger.Info().Dur("interval", interval).Dur("retention", s.retention).Msg("retention sweep enabled")

	go func() {
		defer close(done)
		s.Sweep()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
	return done
}

// Sweep runs one pass over every directory. A failed delete is logged and
// skipped; it never stops the pass.
func (s *Sweeper) Sweep() SweepStats {
	var stats SweepStats
	cutoff := s.now().Add(-s.retention)

	for _, dir := range s.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				s.logger.Error().Err(err).Str("dir", dir).Msg("sweep: read dir failed")
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() || s.keep[entry.Name()] {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			stats.Scanned++
			if !info.ModTime().Before(cutoff) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if err := s.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				stats.Failed++
				metrics.SweptFiles.WithLabelValues("failed").Inc()
				s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("sweep: delete failed")
				continue
			}
			stats.Removed++
			metrics.SweptFiles.WithLabelValues("removed").Inc()
			s.logger.Info().Str("file", entry.Name()).Time("modified_at", info.ModTime()).Msg("cleaned up old file")
		}
	}

	if stats.Removed > 0 || stats.Failed > 0 {
		s.logger.Info().Int("scanned", stats.Scanned).Int("removed", stats.Removed).Int("failed", stats.Failed).Msg("sweep finished")
	}
	return stats
}
