package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneflow/internal/models"
	"github.com/desertthunder/tuneflow/internal/retry"
	"github.com/desertthunder/tuneflow/internal/shared"
	"github.com/dustin/go-humanize"
	"golang.org/x/text/unicode/norm"
)

const (
	tempDirPrefix   = "dl-"
	defaultFilename = "download"
)

var audioContentTypes = map[string]string{
	"mp3":    "audio/mpeg",
	"m4a":    "audio/mp4",
	"aac":    "audio/aac",
	"opus":   "audio/ogg",
	"ogg":    "audio/ogg",
	"vorbis": "audio/ogg",
	"webm":   "audio/webm",
	"wav":    "audio/wav",
	"flac":   "audio/flac",
}

// Materialized is a finished download waiting to be served. Close removes it from disk.
type Materialized struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64
	ModTime     time.Time
	Format      models.AudioFormat

	dir       string
	closeOnce sync.Once
	closeErr  error
}

// Open opens the materialized file for reading.
func (m *Materialized) Open() (*os.File, error) {
	return os.Open(m.Path)
}

// Close deletes the temporary directory holding the file.
func (m *Materialized) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = os.RemoveAll(m.dir)
	})
	return m.closeErr
}

// Probe fetches metadata for mediaID, retrying when the extractor reports rate limiting.
func (e *Extractor) Probe(ctx context.Context, mediaID string) (*models.MediaInfo, error) {
	if err := ValidateMediaID(mediaID); err != nil {
		return nil, err
	}
	return retry.Do(ctx, e.infoRetry, func(ctx context.Context) (*models.MediaInfo, error) {
		return e.probeOnce(ctx, mediaID)
	})
}

func (e *Extractor) probeOnce(ctx context.Context, mediaID string) (*models.MediaInfo, error) {
	logger := e.logger.With("media_id", mediaID, "op", "probe")

	release, err := e.gate.Acquire(ctx)
	if err != nil {
		return nil, &ExtractionError{Kind: shared.ErrDownloadFailed, MediaID: mediaID, Err: err}
	}
	defer release()

	var stdout bytes.Buffer
	args := []string{"--dump-json", "--no-playlist", "--no-warnings", e.SourceURL(mediaID)}
	proc, err := e.spawn(ctx, &stdout, logger, args...)
	if err != nil {
		return nil, &ExtractionError{Kind: shared.ErrDownloadFailed, MediaID: mediaID, Err: err}
	}

	outcome := proc.Wait(ctx)
	if !outcome.Success() {
		kind := shared.ErrDownloadFailed
		if proc.stderr.Saw("rate_limited") {
			kind = shared.ErrRateLimited
		}
		return nil, &ExtractionError{Kind: kind, MediaID: mediaID, ExitCode: outcome.ExitCode, Stderr: proc.Stderr(), Err: outcome.Err}
	}

	var info models.MediaInfo
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &info); err != nil {
		return nil, &ExtractionError{Kind: shared.ErrDownloadFailed, MediaID: mediaID, Err: fmt.Errorf("decode metadata: %w", err)}
	}
	return &info, nil
}

// BestAudioFormat returns the audio-only format with the highest bitrate.
func BestAudioFormat(formats []models.AudioFormat) (models.AudioFormat, error) {
	var best models.AudioFormat
	found := false
	for _, f := range formats {
		if !f.AudioOnly() {
			continue
		}
		if !found || f.Bitrate() > best.Bitrate() {
			best = f
			found = true
		}
	}
	if !found {
		return models.AudioFormat{}, shared.ErrNoSuitableFormat
	}
	return best, nil
}

// Download resolves the best audio format for mediaID, extracts it into a fresh temporary directory and returns
// the finished file. The caller must Close the result once it has been served.
func (e *Extractor) Download(ctx context.Context, mediaID, title string) (*Materialized, error) {
	req := models.ExtractionRequest{MediaID: mediaID, Mode: models.ModeDownload, Title: title}
	logger := e.logger.With("media_id", req.MediaID, "mode", req.Mode)

	info, err := e.Probe(ctx, req.MediaID)
	if err != nil {
		return nil, err
	}

	format, err := BestAudioFormat(info.Formats)
	if err != nil {
		return nil, &ExtractionError{Kind: shared.ErrNoSuitableFormat, MediaID: mediaID, Err: fmt.Errorf("%d formats offered", len(info.Formats))}
	}
	logger.Info("resolved audio format", "format", format.ID, "codec", format.ACodec, "abr", format.Bitrate())

	if err := os.MkdirAll(e.tempDir, 0755); err != nil {
		return nil, &ExtractionError{Kind: shared.ErrDownloadFailed, MediaID: mediaID, Err: fmt.Errorf("create temp root: %w", err)}
	}
	dir := filepath.Join(e.tempDir, tempDirPrefix+shared.GenerateID())
	if err := os.Mkdir(dir, 0755); err != nil {
		return nil, &ExtractionError{Kind: shared.ErrDownloadFailed, MediaID: mediaID, Err: fmt.Errorf("create temp dir: %w", err)}
	}

	result, err := e.extractTo(ctx, dir, mediaID, format)
	if err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			logger.Warn("failed to remove temp dir", "dir", dir, "err", rmErr)
		}
		return nil, err
	}

	result.Filename = AttachmentName(req.Title, info.Title, e.audioFormat)
	result.ContentType = ContentTypeFor(e.audioFormat)
	result.Format = format
	logger.Info("download materialized", "file", result.Filename, "size", humanize.Bytes(uint64(result.Size)))
	return result, nil
}

func (e *Extractor) extractTo(ctx context.Context, dir, mediaID string, format models.AudioFormat) (*Materialized, error) {
	logger := e.logger.With("media_id", mediaID, "op", "extract")

	release, err := e.gate.Acquire(ctx)
	if err != nil {
		return nil, &ExtractionError{Kind: shared.ErrDownloadFailed, MediaID: mediaID, Err: fmt.Errorf("waiting for extraction slot: %w", err)}
	}
	defer release()

	args := []string{
		"-f", format.ID,
		"--no-playlist", "--no-progress",
		"-x", "--audio-format", e.audioFormat,
		"-o", filepath.Join(dir, mediaID+".%(ext)s"),
		e.SourceURL(mediaID),
	}
	proc, err := e.spawn(ctx, io.Discard, logger, args...)
	if err != nil {
		return nil, &ExtractionError{Kind: shared.ErrDownloadFailed, MediaID: mediaID, Err: err}
	}

	outcome := proc.Wait(ctx)
	if err := extractFailure(ctx, outcome, logger); err != nil {
		kind := shared.ErrDownloadFailed
		if proc.stderr.Saw("rate_limited") {
			kind = shared.ErrRateLimited
		}
		return nil, &ExtractionError{Kind: kind, MediaID: mediaID, ExitCode: outcome.ExitCode, Stderr: proc.Stderr(), Err: err}
	}

	path, stat, err := locateOutput(dir, e.audioFormat)
	if err != nil {
		return nil, &ExtractionError{Kind: shared.ErrDownloadFailed, MediaID: mediaID, Stderr: proc.Stderr(), Err: err}
	}

	return &Materialized{Path: path, Size: stat.Size(), ModTime: stat.ModTime(), dir: dir}, nil
}

// locateOutput finds the file the extractor wrote, preferring one with the requested extension.
func locateOutput(dir, ext string) (string, fs.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", nil, fmt.Errorf("read temp dir: %w", err)
	}

	var bestPath string
	var bestInfo fs.FileInfo
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasSuffix(entry.Name(), ".part") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if bestInfo == nil || outputRank(info, ext) > outputRank(bestInfo, ext) {
			bestPath, bestInfo = filepath.Join(dir, entry.Name()), info
		}
	}

	if bestInfo == nil {
		return "", nil, errors.New("extractor produced no output file")
	}
	return bestPath, bestInfo, nil
}

// outputRank orders candidates by extension match first, then size.
func outputRank(info fs.FileInfo, ext string) int64 {
	rank := info.Size()
	if strings.EqualFold(filepath.Ext(info.Name()), "."+ext) {
		rank += 1 << 62
	}
	return rank
}

// AttachmentName picks the download filename: the requested title, then the metadata title, then a generic
// name, always ending in ext.
func AttachmentName(title, metaTitle, ext string) string {
	name := sanitizeFileName(title)
	if name == "" {
		name = sanitizeFileName(metaTitle)
	}
	if name == "" {
		name = defaultFilename
	}
	return name + "." + strings.TrimPrefix(ext, ".")
}

// ContentTypeFor returns the MIME type for an audio extension.
func ContentTypeFor(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ct, ok := audioContentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func sanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", "*", "-", "?", "", "\"", "", "<", "", ">", "", "|", "")
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, replacer.Replace(name))
	return norm.NFC.String(strings.Trim(strings.TrimSpace(name), "."))
}

// extractFailure returns the first failure of an extraction run: the wait error (which carries stderr pipe
// errors), then a non-zero exit, then cancellation. Later failures are only logged.
func extractFailure(ctx context.Context, outcome models.Outcome, logger *log.Logger) error {
	var failures []error
	if outcome.Err != nil {
		failures = append(failures, outcome.Err)
	}
	if !outcome.Success() && outcome.ExitCode > 0 {
		failures = append(failures, fmt.Errorf("exit code %d", outcome.ExitCode))
	}
	if err := ctx.Err(); err != nil {
		failures = append(failures, err)
	}
	if len(failures) == 0 {
		return nil
	}
	for _, err := range failures[1:] {
		logger.Debug("additional extraction failure", "err", err)
	}
	return failures[0]
}
