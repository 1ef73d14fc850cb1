package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/desertthunder/tuneflow/internal/models"
	"github.com/desertthunder/tuneflow/internal/shared"
	"github.com/dustin/go-humanize"
)

// Stream pipes the extractor's output for mediaID into w as it is produced.
//
// Framing headers are set before the subprocess starts. A returned error means nothing was written to w
// and the caller may still send an error response; failures after the first byte are logged and the
// stream is cut short.
func (e *Extractor) Stream(ctx context.Context, w http.ResponseWriter, mediaID string) error {
	req := models.ExtractionRequest{MediaID: mediaID, Mode: models.ModeStream}
	if err := ValidateMediaID(req.MediaID); err != nil {
		return err
	}
	logger := e.logger.With("media_id", req.MediaID, "mode", req.Mode)

	header := w.Header()
	e.StreamHeaders(header)

	release, err := e.gate.Acquire(ctx)
	if err != nil {
		e.resetStreamHeaders(header)
		return &ExtractionError{Kind: shared.ErrStreamingFailed, MediaID: mediaID, Err: fmt.Errorf("waiting for extraction slot: %w", err)}
	}
	defer release()

	args := []string{"-f", e.streamFormat, "--no-playlist", "--no-progress", "-o", "-", e.SourceURL(mediaID)}
	proc, err := e.spawn(ctx, nil, logger, args...)
	if err != nil {
		e.resetStreamHeaders(header)
		return &ExtractionError{Kind: shared.ErrStreamingFailed, MediaID: mediaID, Err: err}
	}
	logger.Info("streaming started", "pid", proc.PID(), "active", e.gate.Active())

	out := newFlushWriter(w)
	copyErr := pump(out, proc.Stdout())
	if copyErr != nil {
		proc.Terminate()
	}

	outcome := proc.Wait(context.WithoutCancel(ctx))
	sent := humanize.Bytes(uint64(out.written))

	switch {
	case ctx.Err() != nil:
		logger.Info("client disconnected, extractor terminated", "sent", sent, "outcome", outcome.Kind)
		return nil
	case copyErr != nil && out.written > 0:
		logger.Warn("stream interrupted", "err", copyErr, "sent", sent)
		return nil
	case outcome.Success() && copyErr == nil:
		logger.Info("streaming complete", "sent", sent)
		return nil
	case out.written > 0:
		logger.Error("extractor failed mid-stream, truncating response",
			"code", outcome.ExitCode, "err", outcome.Err, "sent", sent, "stderr", proc.Stderr())
		return nil
	}

	e.resetStreamHeaders(header)
	xerr := &ExtractionError{
		Kind:     shared.ErrStreamingFailed,
		MediaID:  mediaID,
		ExitCode: outcome.ExitCode,
		Stderr:   proc.Stderr(),
		Err:      errors.Join(outcome.Err, copyErr),
	}
	logger.Error("extractor failed before any output", "code", outcome.ExitCode, "stderr", xerr.Stderr)
	return xerr
}

// StreamHeaders sets the framing headers a stream response carries.
func (e *Extractor) StreamHeaders(h http.Header) {
	h.Set("Content-Type", e.streamContentType)
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "no-cache")
}

func (e *Extractor) resetStreamHeaders(h http.Header) {
	h.Del("Content-Type")
	h.Del("Accept-Ranges")
	h.Del("Cache-Control")
}

// pump copies src to dst chunk by chunk. A slow dst blocks the read loop, which in turn leaves the
// subprocess blocked on a full pipe.
func pump(dst io.Writer, src io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

// flushWriter flushes after each write so bytes reach the client as they arrive.
type flushWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	written int64
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	return &flushWriter{w: w, rc: http.NewResponseController(w)}
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	f.written += int64(n)
	if err != nil {
		return n, err
	}
	if err := f.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return n, err
	}
	return n, nil
}
