package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/desertthunder/tuneflow/internal/shared"
)

// ErrorResponse is the JSON body of every non-streaming failure.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Error categories reported in [ErrorResponse.Error].
const (
	CategoryInvalidInput     = "InvalidInput"
	CategoryRateLimited      = "RateLimited"
	CategoryNoResults        = "NoResults"
	CategoryNoValidResults   = "NoValidResults"
	CategoryNoSuitableFormat = "NoSuitableFormat"
	CategoryStreamingFailed  = "StreamingFailed"
	CategoryDownloadFailed   = "DownloadFailed"
	CategoryNotFound         = "NotFound"
	CategoryInternalError    = "InternalError"
)

var errorCategories = []struct {
	err      error
	status   int
	category string
}{
	{shared.ErrInvalidInput, http.StatusBadRequest, CategoryInvalidInput},
	{shared.ErrRateLimited, http.StatusTooManyRequests, CategoryRateLimited},
	{shared.ErrNoResults, http.StatusNotFound, CategoryNoResults},
	{shared.ErrNoValidResults, http.StatusNotFound, CategoryNoValidResults},
	{shared.ErrNoSuitableFormat, http.StatusNotFound, CategoryNoSuitableFormat},
	{shared.ErrStreamingFailed, http.StatusInternalServerError, CategoryStreamingFailed},
	{shared.ErrDownloadFailed, http.StatusInternalServerError, CategoryDownloadFailed},
}

// Classify maps err to an HTTP status and error category. Unknown errors are internal.
func Classify(err error) (int, string) {
	for _, c := range errorCategories {
		if errors.Is(err, c.err) {
			return c.status, c.category
		}
	}
	return http.StatusInternalServerError, CategoryInternalError
}

// writeJSON writes v as the JSON response body with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"InternalError","details":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

// writeError sends the JSON error body for err, unless the response has already been committed, in which
// case the failure is only logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, category := Classify(err)
	logger := LoggerFrom(r.Context())

	if committed(w) {
		logger.Error("error after response committed", "category", category, "err", err)
		return
	}

	details := err.Error()
	var d interface{ Details() string }
	if errors.As(err, &d) {
		details = d.Details()
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "category", category, "err", err)
	} else {
		logger.Warn("request rejected", "status", status, "category", category, "err", err)
	}
	writeJSON(w, status, ErrorResponse{Error: category, Details: details})
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{
		Error:   CategoryNotFound,
		Details: fmt.Sprintf("Route %s %s not found", r.Method, r.URL.Path),
	})
}

// statusWriter records whether headers were sent and how many body bytes followed.
// It exposes the wrapped writer through Unwrap so [http.ResponseController] can reach Flush.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func newStatusWriter(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w}
}

func (s *statusWriter) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(p []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(p)
	s.written += int64(n)
	return n, err
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Status returns the status sent, or 200 when nothing has been sent yet.
func (s *statusWriter) Status() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

// committed reports whether any writer in the chain has already sent headers.
func committed(w http.ResponseWriter) bool {
	for w != nil {
		if sw, ok := w.(*statusWriter); ok {
			return sw.status != 0
		}
		u, ok := w.(interface{ Unwrap() http.ResponseWriter })
		if !ok {
			return false
		}
		w = u.Unwrap()
	}
	return false
}
