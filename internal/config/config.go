package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"viralclip/internal/domain/media"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings for the server.
type Config struct {
	ServerAddr   string
	Port         string
	Environment  string
	VideosDir    string
	TempDir      string
	ProcessedDir string
	FFmpegBin    string
	FFprobeBin   string

	MinDuration      time.Duration
	MaxDuration      time.Duration
	MetadataTimeout  time.Duration
	DownloadTimeout  time.Duration
	TranscodeTimeout time.Duration
	MinValidBytes    int64

	ClipTarget      time.Duration
	ClipMax         time.Duration
	ClipMin         time.Duration
	ClipMaxFraction float64
	ClipLeadIn      time.Duration
	ClipPolicy      media.ClipPolicy

	Retention     time.Duration
	SweepInterval time.Duration

	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSOrigins       []string

	LogLevel string

	OTelEnabled  bool
	OTelExporter string
	OTelEndpoint string
	OTelSampling float64

	ShutdownTimeout time.Duration
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE. Durations are
// Go duration strings.
type fileConfig struct {
	ServerAddr   string `yaml:"serverAddr"`
	Environment  string `yaml:"environment"`
	VideosDir    string `yaml:"videosDir"`
	TempDir      string `yaml:"tempDir"`
	ProcessedDir string `yaml:"processedDir"`
	FFmpegBin    string `yaml:"ffmpegBin"`
	FFprobeBin   string `yaml:"ffprobeBin"`

	MinDuration      string `yaml:"minDuration"`
	MaxDuration      string `yaml:"maxDuration"`
	MetadataTimeout  string `yaml:"metadataTimeout"`
	DownloadTimeout  string `yaml:"downloadTimeout"`
	TranscodeTimeout string `yaml:"transcodeTimeout"`
	MinValidBytes    int64  `yaml:"minValidBytes"`

	Clip struct {
		Target      string  `yaml:"target"`
		Max         string  `yaml:"max"`
		Min         string  `yaml:"min"`
		MaxFraction float64 `yaml:"maxFraction"`
		LeadIn      string  `yaml:"leadIn"`
		Policy      string  `yaml:"policy"`
	} `yaml:"clip"`

	Retention     string `yaml:"retention"`
	SweepInterval string `yaml:"sweepInterval"`

	RateLimit struct {
		Requests int    `yaml:"requests"`
		Window   string `yaml:"window"`
	} `yaml:"rateLimit"`
	CORSOrigins []string `yaml:"corsOrigins"`

	LogLevel string `yaml:"logLevel"`

	Telemetry struct {
		Enabled  *bool   `yaml:"enabled"`
		Exporter string  `yaml:"exporter"`
		Endpoint string  `yaml:"endpoint"`
		Sampling float64 `yaml:"sampling"`
	} `yaml:"telemetry"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		ServerAddr:        ":5000",
		Port:              "5000",
		Environment:       "development",
		VideosDir:         "./videos",
		FFmpegBin:         "ffmpeg",
		FFprobeBin:        "ffprobe",
		MinDuration:       3 * time.Second,
		MaxDuration:       30 * time.Minute,
		MetadataTimeout:   20 * time.Second,
		DownloadTimeout:   5 * time.Minute,
		TranscodeTimeout:  10 * time.Minute,
		MinValidBytes:     10240,
		ClipTarget:        media.DefaultClipTarget,
		ClipMax:           media.DefaultClipMax,
		ClipMin:           media.DefaultClipMin,
		ClipMaxFraction:   media.DefaultMaxFraction,
		ClipPolicy:        media.PolicyFixed,
		Retention:         time.Hour,
		SweepInterval:     30 * time.Minute,
		RateLimitRequests: 10,
		RateLimitWindow:   15 * time.Minute,
		CORSOrigins:       []string{"*"},
		LogLevel:          "info",
		OTelExporter:      "http",
		OTelSampling:      1.0,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Load builds the runtime config from defaults, the optional CONFIG_FILE
// overlay and environment variables, in increasing precedence.
func Load() (Config, error) {
	cfg := Defaults()

	if path := getEnv("CONFIG_FILE", ""); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(cfg.VideosDir, "temp")
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = filepath.Join(cfg.VideosDir, "processed")
	}
	if _, port, err := splitPort(cfg.ServerAddr); err == nil {
		cfg.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDevelopment reports whether internal error detail may be shown to clients.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Limits returns the accepted source duration range.
func (c Config) Limits() media.DurationLimits {
	return media.DurationLimits{Min: c.MinDuration, Max: c.MaxDuration}
}

// Planner returns the clip window planner described by the config.
func (c Config) Planner() media.Planner {
	return media.Planner{
		Target:      c.ClipTarget,
		Max:         c.ClipMax,
		Min:         c.ClipMin,
		MaxFraction: c.ClipMaxFraction,
		LeadIn:      c.ClipLeadIn,
		Policy:      c.ClipPolicy,
	}
}

// Validate rejects settings the pipeline cannot honour.
func (c Config) Validate() error {
	var errs []error
	if c.MinDuration < 0 || c.MaxDuration <= 0 || c.MinDuration >= c.MaxDuration {
		errs = append(errs, fmt.Errorf("duration limits: min %s must be below max %s", c.MinDuration, c.MaxDuration))
	}
	if c.ClipMin < 0 || c.ClipMax <= 0 || c.ClipMin > c.ClipMax {
		errs = append(errs, fmt.Errorf("clip length: min %s must not exceed max %s", c.ClipMin, c.ClipMax))
	}
	if c.ClipMaxFraction <= 0 || c.ClipMaxFraction > 1 {
		errs = append(errs, fmt.Errorf("clip max fraction %.3f must be in (0, 1]", c.ClipMaxFraction))
	}
	if c.ClipPolicy != media.PolicyFixed && c.ClipPolicy != media.PolicyRandom {
		errs = append(errs, fmt.Errorf("clip policy %q must be %q or %q", c.ClipPolicy, media.PolicyFixed, media.PolicyRandom))
	}
	for name, d := range map[string]time.Duration{
		"metadata timeout":  c.MetadataTimeout,
		"download timeout":  c.DownloadTimeout,
		"transcode timeout": c.TranscodeTimeout,
		"retention":         c.Retention,
		"sweep interval":    c.SweepInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.MinValidBytes < 0 {
		errs = append(errs, fmt.Errorf("min valid bytes must not be negative, got %d", c.MinValidBytes))
	}
	if c.OTelExporter != "http" && c.OTelExporter != "grpc" {
		errs = append(errs, fmt.Errorf("otel exporter %q must be http or grpc", c.OTelExporter))
	}
	return errors.Join(errs...)
}

func applyFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&cfg.ServerAddr, fc.ServerAddr)
	setString(&cfg.Environment, fc.Environment)
	setString(&cfg.VideosDir, fc.VideosDir)
	setString(&cfg.TempDir, fc.TempDir)
	setString(&cfg.ProcessedDir, fc.ProcessedDir)
	setString(&cfg.FFmpegBin, fc.FFmpegBin)
	setString(&cfg.FFprobeBin, fc.FFprobeBin)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.OTelExporter, fc.Telemetry.Exporter)
	setString(&cfg.OTelEndpoint, fc.Telemetry.Endpoint)
	if fc.Clip.Policy != "" {
		cfg.ClipPolicy = media.ClipPolicy(fc.Clip.Policy)
	}
	if fc.MinValidBytes > 0 {
		cfg.MinValidBytes = fc.MinValidBytes
	}
	if fc.Clip.MaxFraction > 0 {
		cfg.ClipMaxFraction = fc.Clip.MaxFraction
	}
	if fc.RateLimit.Requests > 0 {
		cfg.RateLimitRequests = fc.RateLimit.Requests
	}
	if len(fc.CORSOrigins) > 0 {
		cfg.CORSOrigins = fc.CORSOrigins
	}
	if fc.Telemetry.Enabled != nil {
		cfg.OTelEnabled = *fc.Telemetry.Enabled
	}
	if fc.Telemetry.Sampling > 0 {
		cfg.OTelSampling = fc.Telemetry.Sampling
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"minDuration", fc.MinDuration, &cfg.MinDuration},
		{"maxDuration", fc.MaxDuration, &cfg.MaxDuration},
		{"metadataTimeout", fc.MetadataTimeout, &cfg.MetadataTimeout},
		{"downloadTimeout", fc.DownloadTimeout, &cfg.DownloadTimeout},
		{"transcodeTimeout", fc.TranscodeTimeout, &cfg.TranscodeTimeout},
		{"clip.target", fc.Clip.Target, &cfg.ClipTarget},
		{"clip.max", fc.Clip.Max, &cfg.ClipMax},
		{"clip.min", fc.Clip.Min, &cfg.ClipMin},
		{"clip.leadIn", fc.Clip.LeadIn, &cfg.ClipLeadIn},
		{"retention", fc.Retention, &cfg.Retention},
		{"sweepInterval", fc.SweepInterval, &cfg.SweepInterval},
		{"rateLimit.window", fc.RateLimit.Window, &cfg.RateLimitWindow},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("config file %s: invalid %s %q: %w", path, d.name, d.value, err)
		}
		*d.dst = parsed
	}
	return nil
}

func applyEnv(cfg *Config) {
	if port := getEnv("PORT", ""); port != "" {
		cfg.ServerAddr = ":" + port
	}
	cfg.ServerAddr = getEnv("SERVER_ADDR", cfg.ServerAddr)
	cfg.Environment = getEnv("APP_ENV", cfg.Environment)
	cfg.VideosDir = getEnv("VIDEOS_DIR", cfg.VideosDir)
	cfg.TempDir = getEnv("TEMP_DIR", cfg.TempDir)
	cfg.ProcessedDir = getEnv("PROCESSED_DIR", cfg.ProcessedDir)
	cfg.FFmpegBin = getEnv("FFMPEG_BIN", cfg.FFmpegBin)
	cfg.FFprobeBin = getEnv("FFPROBE_BIN", cfg.FFprobeBin)

	cfg.MinDuration = getEnvDuration("MIN_DURATION", cfg.MinDuration)
	cfg.MaxDuration = getEnvDuration("MAX_DURATION", cfg.MaxDuration)
	cfg.MetadataTimeout = getEnvDuration("METADATA_TIMEOUT", cfg.MetadataTimeout)
	cfg.DownloadTimeout = getEnvDuration("DOWNLOAD_TIMEOUT", cfg.DownloadTimeout)
	cfg.TranscodeTimeout = getEnvDuration("TRANSCODE_TIMEOUT", cfg.TranscodeTimeout)
	cfg.MinValidBytes = int64(getEnvInt("MIN_VALID_BYTES", int(cfg.MinValidBytes)))

	cfg.ClipTarget = getEnvDuration("CLIP_TARGET", cfg.ClipTarget)
	cfg.ClipMax = getEnvDuration("CLIP_MAX", cfg.ClipMax)
	cfg.ClipMin = getEnvDuration("CLIP_MIN", cfg.ClipMin)
	cfg.ClipMaxFraction = getEnvFloat("CLIP_MAX_FRACTION", cfg.ClipMaxFraction)
	cfg.ClipLeadIn = getEnvDuration("CLIP_LEAD_IN", cfg.ClipLeadIn)
	cfg.ClipPolicy = media.ClipPolicy(getEnv("CLIP_POLICY", string(cfg.ClipPolicy)))

	cfg.Retention = getEnvDuration("RETENTION", cfg.Retention)
	cfg.SweepInterval = getEnvDuration("SWEEP_INTERVAL", cfg.SweepInterval)

	cfg.RateLimitRequests = getEnvInt("RATE_LIMIT_REQUESTS", cfg.RateLimitRequests)
	cfg.RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", cfg.RateLimitWindow)
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.OTelEnabled = getEnvBool("OTEL_ENABLED", cfg.OTelEnabled)
	cfg.OTelExporter = getEnv("OTEL_EXPORTER", cfg.OTelExporter)
	cfg.OTelEndpoint = getEnv("OTEL_ENDPOINT", cfg.OTelEndpoint)
	cfg.OTelSampling = getEnvFloat("OTEL_SAMPLING", cfg.OTelSampling)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
}

func setString(dst *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*dst = value
	}
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func splitPort(addr string) (string, string, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 || idx == len(addr)-1 {
		return "", "", fmt.Errorf("address %q has no port", addr)
	}
	return addr[:idx], addr[idx+1:], nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	var out int
	_, err := fmt.Sscanf(value, "%d", &out)
	if err != nil || out <= 0 {
		return fallback
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	out, err := time.ParseDuration(value)
	if err != nil || out < 0 {
		return fallback
	}
	return out
}

func getEnvFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	out, err := strconv.ParseFloat(value, 64)
	if err != nil || out <= 0 {
		return fallback
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	out, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return out
}
