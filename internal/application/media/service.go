package media

import (
	"context"
	"errors"
	"strings"
	"time"

	mediadomain "viralclip/internal/domain/media"
	xglog "viralclip/internal/log"
	"viralclip/internal/metrics"
	"viralclip/internal/telemetry"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMetadataTimeout = 20 * time.Second
	defaultSampleLength    = 10 * time.Second
	defaultProbeTimeout    = 30 * time.Second

	// SampleClipID names the placeholder clip in the processed directory.
	SampleClipID = "sample"
)

// Config tunes the clip pipeline.
type Config struct {
	Limits           mediadomain.DurationLimits
	Planner          mediadomain.Planner
	Profile          mediadomain.Profile
	MetadataTimeout  time.Duration
	DownloadTimeout  time.Duration
	TranscodeTimeout time.Duration
	MinValidBytes    int64
	SampleLength     time.Duration
}

// ProcessRequest is the inbound clip request. Exactly one identifier is
// needed; when both are set they must name the same video.
type ProcessRequest struct {
	VideoID string
	URL     string
}

// ProcessResult describes a finished clip.
type ProcessResult struct {
	ClipID   string
	URL      string
	Metadata mediadomain.Metadata
	Window   mediadomain.ClipWindow
	Size     int64
}

// Service handles the clip use cases.
type Service struct {
	provider MetadataProvider
	prober   Prober
	store    AssetStore
	sources  *SourceCache
	clips    *ClipMaker
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time

	samples singleflight.Group
}

// NewService creates the clip use-case service with injected ports. A nil
// prober plans clips on the provider-reported duration.
func NewService(provider MetadataProvider, fetcher SourceFetcher, transcoder Transcoder, prober Prober, store AssetStore, cfg Config, logger zerolog.Logger) *Service {
	if cfg.MetadataTimeout <= 0 {
		cfg.MetadataTimeout = defaultMetadataTimeout
	}
	if cfg.SampleLength <= 0 {
		cfg.SampleLength = defaultSampleLength
	}
	if cfg.Profile == (mediadomain.Profile{}) {
		cfg.Profile = mediadomain.VerticalProfile
	}
	return &Service{
		provider: provider,
		prober:   prober,
		store:    store,
		sources:  NewSourceCache(store, fetcher, cfg.DownloadTimeout, cfg.MinValidBytes, logger.With().Str("component", "source-cache").Logger()),
		clips:    NewClipMaker(transcoder, cfg.TranscodeTimeout, cfg.MinValidBytes, logger.With().Str("component", "transcode").Logger()),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Validate resolves raw into a canonical key without any network access.
func (s *Service) Validate(raw string) (mediadomain.VideoKey, bool) {
	key, err := mediadomain.ResolveKey(raw)
	return key, err == nil
}

// Info returns metadata for a video without duration gating.
func (s *Service) Info(ctx context.Context, raw string) (mediadomain.Metadata, error) {
	key, err := mediadomain.ResolveKey(raw)
	if err != nil {
		return mediadomain.Metadata{}, err
	}
	return s.metadata(ctx, key)
}

// Process runs the full pipeline: resolve, metadata, duration gate, download,
// window planning and transcode.
func (s *Service) Process(ctx context.Context, req ProcessRequest) (result ProcessResult, err error) {
	defer func() {
		metrics.JobsTotal.WithLabelValues(outcome(err)).Inc()
	}()

	var job mediadomain.Job
	job.StartedAt = s.now()

	err = s.stage(ctx, mediadomain.StageResolve, "", func(context.Context) error {
		key, err := resolveRequest(req)
		job.Key = key
		return err
	})
	if err != nil {
		return ProcessResult{}, err
	}

	job.Clip.ID = s.store.NewClipID(job.Key, job.StartedAt)
	ctx = xglog.ContextWithJobID(ctx, job.Clip.ID)
	logger := xglog.WithContext(ctx, s.logger).With().Str("video_key", job.Key.String()).Logger()
	logger.Info().Msg("clip job started")

	err = s.stage(ctx, mediadomain.StageMetadata, job.Key, func(ctx context.Context) error {
		meta, err := s.metadata(ctx, job.Key)
		if err != nil {
			return err
		}
		job.Metadata = meta
		// Gate before download: the download is the expensive step.
		return s.cfg.Limits.Check(meta.Duration)
	})
	if err != nil {
		logger.Warn().Err(err).Str("stage", string(mediadomain.StageMetadata)).Msg("clip job rejected")
		return ProcessResult{}, err
	}

	err = s.stage(ctx, mediadomain.StageDownload, job.Key, func(ctx context.Context) error {
		src, err := s.sources.Get(ctx, job.Key)
		job.Source = src
		return err
	})
	if err != nil {
		logger.Error().Err(err).Str("stage", string(mediadomain.StageDownload)).Msg("clip job failed")
		return ProcessResult{}, err
	}

	_ = s.stage(ctx, mediadomain.StagePlan, job.Key, func(ctx context.Context) error {
		job.Window = s.cfg.Planner.Plan(s.sourceDuration(ctx, job, logger))
		return nil
	})

	err = s.stage(ctx, mediadomain.StageTranscode, job.Key, func(ctx context.Context) error {
		out, err := s.store.ClipPath(job.Clip.ID)
		if err != nil {
			return err
		}
		size, err := s.clips.Make(ctx, job.Source.Path, out, job.Window, s.cfg.Profile)
		if err != nil {
			return err
		}
		job.Clip.Path = out
		job.Clip.Size = size
		job.Clip.CreatedAt = s.now()
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Str("stage", string(mediadomain.StageTranscode)).Msg("clip job failed")
		return ProcessResult{}, err
	}

	logger.Info().
		Dur("start", job.Window.Start).
		Dur("length", job.Window.Length).
		Int64("size", job.Clip.Size).
		Dur("elapsed", s.now().Sub(job.StartedAt)).
		Msg("clip job finished")

	return ProcessResult{
		ClipID:   job.Clip.ID,
		URL:      job.ClipURL(),
		Metadata: job.Metadata,
		Window:   job.Window,
		Size:     job.Clip.Size,
	}, nil
}

// Sample returns the placeholder clip id, rendering the clip on first use.
// Concurrent first callers share one render.
func (s *Service) Sample(ctx context.Context) (string, error) {
	if clip, err := s.store.StatClip(SampleClipID); err == nil && clip.Size >= s.cfg.MinValidBytes {
		return SampleClipID, nil
	}

	ch := s.samples.DoChan(SampleClipID, func() (interface{}, error) {
		if clip, err := s.store.StatClip(SampleClipID); err == nil && clip.Size >= s.cfg.MinValidBytes {
			return SampleClipID, nil
		}
		out, err := s.store.ClipPath(SampleClipID)
		if err != nil {
			return "", err
		}
		s.logger.Info().Dur("length", s.cfg.SampleLength).Msg("rendering sample clip")
		if _, err := s.clips.MakeSample(context.WithoutCancel(ctx), out, s.cfg.SampleLength, s.cfg.Profile); err != nil {
			s.logger.Error().Err(err).Msg("sample clip render failed")
			return "", err
		}
		return SampleClipID, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// ClipStatus reports a stored clip.
func (s *Service) ClipStatus(clipID string) (mediadomain.ProcessedClip, error) {
	return s.store.StatClip(clipID)
}

// metadata fetches and validates metadata under the service's own timeout.
func (s *Service) metadata(ctx context.Context, key mediadomain.VideoKey) (mediadomain.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.MetadataTimeout)
	defer cancel()

	type result struct {
		meta mediadomain.Metadata
		err  error
	}
	done := make(chan result, 1)
	go func() {
		meta, err := s.provider.Metadata(ctx, key)
		done <- result{meta: meta, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return mediadomain.Metadata{}, mediadomain.Fail(mediadomain.ErrMetadataTimeout, ctx.Err())
		}
		return mediadomain.Metadata{}, mediadomain.Fail(mediadomain.ErrSourceUnavailable, ctx.Err())
	case res = <-done:
	}

	if res.err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded), errors.Is(res.err, context.DeadlineExceeded):
			return mediadomain.Metadata{}, mediadomain.Fail(mediadomain.ErrMetadataTimeout, res.err)
		case mediadomain.KindOf(res.err) != nil:
			return mediadomain.Metadata{}, res.err
		default:
			return mediadomain.Metadata{}, mediadomain.Fail(mediadomain.ErrSourceUnavailable, res.err)
		}
	}

	meta := res.meta
	if meta.Duration <= 0 {
		return mediadomain.Metadata{}, mediadomain.Fail(mediadomain.ErrMetadataUnavailable, errors.New("provider reported no duration"))
	}
	if meta.Key == "" {
		meta.Key = key
	}
	if meta.Key != key {
		return mediadomain.Metadata{}, mediadomain.Fail(mediadomain.ErrMetadataUnavailable, errors.New("provider answered for a different video"))
	}
	meta.Title = strings.TrimSpace(meta.Title)
	return meta, nil
}

// sourceDuration is the shorter of the reported and the probed duration. A
// failed probe falls back to the reported one.
func (s *Service) sourceDuration(ctx context.Context, job mediadomain.Job, logger zerolog.Logger) time.Duration {
	reported := job.Metadata.Duration
	if s.prober == nil {
		return reported
	}

	ctx, cancel := context.WithTimeout(ctx, defaultProbeTimeout)
	defer cancel()

	probed, err := s.prober.Probe(ctx, job.Source.Path)
	if err != nil || probed <= 0 {
		logger.Warn().Err(err).Str("path", job.Source.Path).Msg("probe failed, planning on reported duration")
		return reported
	}
	if probed < reported {
		logger.Debug().Dur("reported", reported).Dur("probed", probed).Msg("source shorter than reported")
		return probed
	}
	return reported
}

func (s *Service) stage(ctx context.Context, stage mediadomain.Stage, key mediadomain.VideoKey, fn func(context.Context) error) error {
	ctx, span := telemetry.StartSpan(ctx, "clip."+string(stage),
		attribute.String("video.key", key.String()),
		attribute.String("clip.id", xglog.JobIDFromContext(ctx)),
	)
	started := time.Now()
	err := fn(ctx)
	metrics.StageDuration.WithLabelValues(string(stage), mediadomain.KindName(err)).Observe(time.Since(started).Seconds())
	telemetry.EndSpan(span, err)
	return err
}

func resolveRequest(req ProcessRequest) (mediadomain.VideoKey, error) {
	videoID := strings.TrimSpace(req.VideoID)
	rawURL := strings.TrimSpace(req.URL)

	switch {
	case videoID == "" && rawURL == "":
		return "", mediadomain.ErrInvalidIdentifier
	case rawURL == "":
		return mediadomain.ResolveKey(videoID)
	case videoID == "":
		return mediadomain.ResolveKey(rawURL)
	}

	fromID, err := mediadomain.ResolveKey(videoID)
	if err != nil {
		return "", err
	}
	fromURL, err := mediadomain.ResolveKey(rawURL)
	if err != nil {
		return "", err
	}
	if fromID != fromURL {
		return "", mediadomain.ErrInvalidIdentifier
	}
	return fromID, nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	return mediadomain.KindName(err)
}

