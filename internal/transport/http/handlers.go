package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	appmedia "viralclip/internal/application/media"
	"viralclip/internal/domain/media"
	xglog "viralclip/internal/log"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

const (
	maxBodyBytes   = 1 << 20
	videoMediaType = "video/mp4"
)

type clipUseCases interface {
	Process(ctx context.Context, req appmedia.ProcessRequest) (appmedia.ProcessResult, error)
	Info(ctx context.Context, raw string) (media.Metadata, error)
	Validate(raw string) (media.VideoKey, bool)
	Sample(ctx context.Context) (string, error)
	ClipStatus(clipID string) (media.ProcessedClip, error)
}

type clipReader interface {
	OpenClip(clipID string) (io.ReadSeekCloser, media.ProcessedClip, error)
}

// HandlerConfig carries process facts reported by the HTTP surface.
type HandlerConfig struct {
	Port        string
	Environment string
	Limits      media.DurationLimits
}

type Handler struct {
	clips   clipUseCases
	store   clipReader
	cfg     HandlerConfig
	logger  zerolog.Logger
	now     func() time.Time
	process map[error]failure
	info    map[error]failure
}

// NewHandler wires HTTP handlers with application use cases.
func NewHandler(clips clipUseCases, store clipReader, cfg HandlerConfig, logger zerolog.Logger) *Handler {
	return &Handler{
		clips:   clips,
		store:   store,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		process: processFailures(cfg.Limits),
		info:    infoFailures(cfg.Limits),
	}
}

type processRequest struct {
	VideoID string `json:"videoId"`
	URL     string `json:"url"`
}

type processResponse struct {
	Success        bool    `json:"success"`
	VideoID        string  `json:"videoId"`
	URL            string  `json:"url"`
	OriginalTitle  string  `json:"originalTitle"`
	OriginalAuthor string  `json:"originalAuthor"`
	Duration       float64 `json:"duration"`
	ClipStart      float64 `json:"clipStart"`
	ClipLength     float64 `json:"clipLength"`
	Message        string  `json:"message"`
}

// Process handles POST /api/process.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	var req processRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body"})
		return
	}
	if strings.TrimSpace(req.VideoID) == "" && strings.TrimSpace(req.URL) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Video ID is required"})
		return
	}

	res, err := h.clips.Process(r.Context(), appmedia.ProcessRequest{VideoID: req.VideoID, URL: req.URL})
	if err != nil {
		f := lookupFailure(h.process, err, genericProcessMessage)
		h.logFailure(r, err, f.status, "process request failed")
		writeJSON(w, f.status, map[string]any{"success": false, "error": f.message})
		return
	}

	writeJSON(w, http.StatusOK, processResponse{
		Success:        true,
		VideoID:        res.ClipID,
		URL:            res.URL,
		OriginalTitle:  res.Metadata.Title,
		OriginalAuthor: res.Metadata.Author,
		Duration:       res.Metadata.Duration.Seconds(),
		ClipStart:      res.Window.Start.Seconds(),
		ClipLength:     res.Window.Length.Seconds(),
		Message:        "Viral clip created successfully!",
	})
}

// Video handles GET /api/videos/{id}.
func (h *Handler) Video(w http.ResponseWriter, r *http.Request) {
	h.serveClip(w, r, mux.Vars(r)["id"])
}

// Sample handles GET /api/videos/sample.
func (h *Handler) Sample(w http.ResponseWriter, r *http.Request) {
	id, err := h.clips.Sample(r.Context())
	if err != nil {
		h.logFailure(r, err, http.StatusInternalServerError, "sample clip unavailable")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to generate sample video"})
		return
	}
	h.serveClip(w, r, id)
}

func (h *Handler) serveClip(w http.ResponseWriter, r *http.Request, clipID string) {
	body, clip, err := h.store.OpenClip(clipID)
	if err != nil {
		if errors.Is(err, media.ErrAssetNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "Video not found"})
			return
		}
		h.logFailure(r, err, http.StatusInternalServerError, "open clip failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Failed to read video"})
		return
	}
	defer body.Close()

	streamFile(w, r, body, clip.Size, videoMediaType)
}

type infoResponse struct {
	VideoID     string            `json:"videoId"`
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Duration    float64           `json:"duration"`
	Description string            `json:"description"`
	Thumbnails  []media.Thumbnail `json:"thumbnails"`
}

// Info handles GET /api/info/{videoId}.
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	meta, err := h.clips.Info(r.Context(), mux.Vars(r)["videoId"])
	if err != nil {
		f := lookupFailure(h.info, err, "Failed to get video info")
		h.logFailure(r, err, f.status, "info request failed")
		writeJSON(w, f.status, map[string]any{"error": f.message})
		return
	}

	thumbs := meta.Thumbnails
	if thumbs == nil {
		thumbs = []media.Thumbnail{}
	}
	writeJSON(w, http.StatusOK, infoResponse{
		VideoID:     meta.Key.String(),
		Title:       meta.Title,
		Author:      meta.Author,
		Duration:    meta.Duration.Seconds(),
		Description: meta.Description,
		Thumbnails:  thumbs,
	})
}

// Validate handles POST /api/validate.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": "Invalid request body"})
		return
	}

	key, ok := h.clips.Validate(req.URL)
	var videoID any
	if ok {
		videoID = key.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"isValid": ok,
		"videoId": videoID,
	})
}

// Status handles GET /api/status/{id}.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	clip, err := h.clips.ClipStatus(id)
	if err != nil {
		if !errors.Is(err, media.ErrAssetNotFound) {
			h.logFailure(r, err, http.StatusInternalServerError, "clip status failed")
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "missing", "progress": 0})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"status":    "completed",
		"progress":  100,
		"size":      clip.Size,
		"createdAt": clip.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "Server is running properly",
		"timestamp":   h.now().UTC().Format(time.RFC3339Nano),
		"port":        h.cfg.Port,
		"environment": h.cfg.Environment,
	})
}

// NotFound answers unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found", "path": r.URL.Path})
}

func (h *Handler) logFailure(r *http.Request, err error, status int, msg string) {
	logger := xglog.WithContext(r.Context(), h.logger)
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).
		Str("kind", media.KindName(err)).
		Int("status", status).
		Str("path", r.URL.Path).
		Msg(msg)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
