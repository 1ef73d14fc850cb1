package server

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/desertthunder/tuneflow/internal/media"
	"github.com/desertthunder/tuneflow/internal/services"
	"github.com/desertthunder/tuneflow/internal/shared"
	"github.com/dustin/go-humanize"
)

// Streamer pipes live media for an id into a response. Implemented by [media.Extractor].
type Streamer interface {
	Stream(ctx context.Context, w http.ResponseWriter, mediaID string) error
	StreamHeaders(h http.Header)
}

// Downloader materializes a complete file for an id. Implemented by [media.Extractor].
type Downloader interface {
	Download(ctx context.Context, mediaID, title string) (*media.Materialized, error)
}

// HealthResponse is the body of the liveness route.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthHandler answers the root liveness probe.
type HealthHandler struct{}

func (h *HealthHandler) Routes() []string { return []string{"GET /{$}"} }

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Message: "TuneFlow API Server"})
}

// SearchHandler resolves the query parameter into tracks.
type SearchHandler struct {
	searcher services.Searcher
}

func (h *SearchHandler) Routes() []string { return []string{"GET /search"} }

func (h *SearchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		writeError(w, r, fmt.Errorf("%w: query parameter is required", shared.ErrInvalidInput))
		return
	}

	tracks, err := h.searcher.Search(r.Context(), query)
	if err != nil {
		writeError(w, r, err)
		return
	}

	LoggerFrom(r.Context()).Debug("search complete", "query", query, "results", len(tracks))
	writeJSON(w, http.StatusOK, tracks)
}

// StreamHandler streams audio for a media id as it is extracted.
type StreamHandler struct {
	streamer Streamer
}

func (h *StreamHandler) Routes() []string { return []string{"GET /stream/{mediaId}"} }

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mediaID := r.PathValue("mediaId")

	// GET patterns also match HEAD; answer with headers only instead of running an extraction.
	if r.Method == http.MethodHead {
		if err := media.ValidateMediaID(mediaID); err != nil {
			writeError(w, r, err)
			return
		}
		h.streamer.StreamHeaders(w.Header())
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.streamer.Stream(r.Context(), w, mediaID); err != nil {
		writeError(w, r, err)
	}
}

// DownloadHandler extracts a complete audio file and serves it as an attachment.
type DownloadHandler struct {
	downloader Downloader
}

func (h *DownloadHandler) Routes() []string { return []string{"GET /download/{mediaId}"} }

func (h *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFrom(r.Context())

	m, err := h.downloader.Download(r.Context(), r.PathValue("mediaId"), r.URL.Query().Get("title"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("failed to remove download", "path", m.Path, "err", err)
		}
	}()

	f, err := m.Open()
	if err != nil {
		writeError(w, r, fmt.Errorf("%w: open materialized file: %v", shared.ErrDownloadFailed, err))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", m.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": m.Filename}))
	logger.Info("serving download", "file", m.Filename, "size", humanize.Bytes(uint64(m.Size)))

	http.ServeContent(w, r, m.Filename, m.ModTime, f)
}
