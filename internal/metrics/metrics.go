// Package metrics holds the Prometheus collectors for the clip pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished clip jobs by outcome ("success" or a failure kind).
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viralclip",
		Name:      "jobs_total",
		Help:      "Clip jobs by outcome",
	}, []string{"outcome"})

	// StageDuration tracks the wall time of each pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "viralclip",
		Name:      "stage_duration_seconds",
		Help:      "Duration of clip pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2.5, 12), // 10ms to ~10min
	}, []string{"stage", "result"})

	// DownloadCache counts source cache lookups by result (hit, miss, corrupt, shared).
	DownloadCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viralclip",
		Name:      "download_cache_total",
		Help:      "Source download cache lookups",
	}, []string{"result"})

	// DownloadedBytes counts bytes written into the source cache.
	DownloadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "viralclip",
		Name:      "downloaded_bytes_total",
		Help:      "Bytes fetched from the media source",
	})

	// SweptFiles counts retention sweep deletions by result.
	SweptFiles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viralclip",
		Name:      "sweep_files_total",
		Help:      "Files handled by the retention sweep",
	}, []string{"result"})

	// ServedBytes counts clip bytes written to HTTP clients by response kind.
	ServedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viralclip",
		Name:      "served_bytes_total",
		Help:      "Clip bytes streamed to clients",
	}, []string{"kind"})

	// HTTPRequests counts HTTP requests by route and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "viralclip",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status",
	}, []string{"route", "code"})
)
