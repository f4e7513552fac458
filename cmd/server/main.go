package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"viralclip/internal/application/media"
	"viralclip/internal/config"
	domainmedia "viralclip/internal/domain/media"
	"viralclip/internal/infrastructure/ffmpeg"
	"viralclip/internal/infrastructure/filesystem"
	"viralclip/internal/infrastructure/youtube"
	xglog "viralclip/internal/log"
	"viralclip/internal/telemetry"
	httptransport "viralclip/internal/transport/http"

	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "viralclip: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "viralclip"})
	logger := xglog.WithComponent("server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracing, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.OTelEnabled,
		ServiceName:    "viralclip",
		ServiceVersion: version,
		Environment:    cfg.Environment,
		ExporterType:   cfg.OTelExporter,
		Endpoint:       cfg.OTelEndpoint,
		SamplingRate:   cfg.OTelSampling,
	})
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}

	store := filesystem.NewStore(cfg.TempDir, cfg.ProcessedDir)
	if err := store.EnsureDirs(); err != nil {
		return fmt.Errorf("storage init: %w", err)
	}

	sweeper := filesystem.NewSweeper(
		[]string{store.TempRoot(), store.ProcessedRoot()},
		cfg.Retention,
		xglog.WithComponent("sweep"),
		media.SampleClipID+".mp4",
	)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	sweepDone := sweeper.Start(sweepCtx, cfg.SweepInterval)

	source := youtube.NewClient(xglog.WithComponent("youtube"))
	converter := ffmpeg.NewConverter(cfg.FFmpegBin, xglog.WithComponent("ffmpeg"))
	converter.ProbePath = cfg.FFprobeBin
	service := media.NewService(source, source, converter, converter, store, media.Config{
		Limits:           cfg.Limits(),
		Planner:          cfg.Planner(),
		Profile:          domainmedia.VerticalProfile,
		MetadataTimeout:  cfg.MetadataTimeout,
		DownloadTimeout:  cfg.DownloadTimeout,
		TranscodeTimeout: cfg.TranscodeTimeout,
		MinValidBytes:    cfg.MinValidBytes,
	}, xglog.WithComponent("pipeline"))

	handler := httptransport.NewHandler(service, store, httptransport.HandlerConfig{
		Port:        cfg.Port,
		Environment: cfg.Environment,
		Limits:      cfg.Limits(),
	}, xglog.WithComponent("http"))
	router := httptransport.NewRouter(handler, httptransport.RouterConfig{
		RateLimit: httptransport.RateLimitConfig{
			RequestLimit: cfg.RateLimitRequests,
			WindowSize:   cfg.RateLimitWindow,
		},
		ExposeErrors: cfg.IsDevelopment(),
	}, xglog.WithComponent("http"))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Range", "X-Request-ID"},
		ExposedHeaders: []string{"Content-Range", "Content-Length", "Accept-Ranges", "X-Request-ID"},
	})

	// No write timeout: a process request spans download plus transcode and
	// clips are streamed to slow players.
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           otelhttp.NewHandler(c.Handler(router), "viralclip"),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().
		Str("addr", cfg.ServerAddr).
		Str("environment", cfg.Environment).
		Str("temp_dir", cfg.TempDir).
		Str("processed_dir", cfg.ProcessedDir).
		Msg("server started")

	serveErr := serve(ctx, srv, cfg.ShutdownTimeout)
	if serveErr != nil {
		logger.Error().Err(serveErr).Msg("server stopped with error")
	}

	logger.Info().Msg("shutting down")
	stopSweep()
	<-sweepDone
	stats := sweeper.Sweep()
	logger.Info().Int("removed", stats.Removed).Int("failed", stats.Failed).Msg("final sweep done")

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.Shutdown(flushCtx); err != nil {
		logger.Warn().Err(err).Msg("telemetry shutdown")
	}
	return serveErr
}

// serve runs srv until ctx is done, then shuts it down within timeout.
func serve(ctx context.Context, srv *http.Server, timeout time.Duration) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	shutdownErr := srv.Shutdown(shutdownCtx)
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-shutdownCtx.Done():
		if shutdownErr != nil {
			return shutdownErr
		}
		return shutdownCtx.Err()
	}
	return shutdownErr
}
