package media

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneflow/internal/retry"
	"github.com/desertthunder/tuneflow/internal/shared"
)

const (
	defaultBinary      = "yt-dlp"
	defaultSourceURL   = "https://www.youtube.com/watch?v=%s"
	defaultStreamFmt   = "bestaudio[ext=webm]"
	defaultContentType = "audio/webm"
	defaultAudioFormat = "mp3"
	defaultKillGrace   = 5 * time.Second
	chunkSize          = 32 * 1024
)

var mediaIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Options configures an [Extractor].
type Options struct {
	Binary            string        // Extractor executable, yt-dlp compatible
	SourceURL         string        // fmt template with one %s for the media id
	StreamFormat      string        // -f selector for live streaming
	StreamContentType string        // Content-Type sent with streams
	AudioFormat       string        // Extension and --audio-format for downloads
	TempDir           string        // Root for per-request download directories
	StderrLimit       int           // Bytes of stderr tail kept per process
	KillGrace         time.Duration // Delay between SIGTERM and SIGKILL
	Gate              *Gate         // Admission gate, unlimited when nil
	InfoRetry         retry.Policy  // Policy for metadata probes
	Logger            *log.Logger
}

// Extractor runs the external media extraction executable for stream and download requests.
type Extractor struct {
	binary            string
	sourceURL         string
	streamFormat      string
	streamContentType string
	audioFormat       string
	tempDir           string
	stderrLimit       int
	killGrace         time.Duration
	gate              *Gate
	infoRetry         retry.Policy
	logger            *log.Logger
}

// NewExtractor creates an Extractor, filling unset options with defaults.
func NewExtractor(opts Options) *Extractor {
	if opts.Binary == "" {
		opts.Binary = defaultBinary
	}
	if opts.SourceURL == "" {
		opts.SourceURL = defaultSourceURL
	}
	if opts.StreamFormat == "" {
		opts.StreamFormat = defaultStreamFmt
	}
	if opts.StreamContentType == "" {
		opts.StreamContentType = defaultContentType
	}
	if opts.AudioFormat == "" {
		opts.AudioFormat = defaultAudioFormat
	}
	if opts.TempDir == "" {
		opts.TempDir = "./tmp/downloads"
	}
	if opts.KillGrace <= 0 {
		opts.KillGrace = defaultKillGrace
	}
	if opts.Gate == nil {
		opts.Gate = NewGate(0)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.InfoRetry.Logger == nil {
		opts.InfoRetry.Logger = opts.Logger
	}

	return &Extractor{
		binary:            opts.Binary,
		sourceURL:         opts.SourceURL,
		streamFormat:      opts.StreamFormat,
		streamContentType: opts.StreamContentType,
		audioFormat:       strings.TrimPrefix(opts.AudioFormat, "."),
		tempDir:           opts.TempDir,
		stderrLimit:       opts.StderrLimit,
		killGrace:         opts.KillGrace,
		gate:              opts.Gate,
		infoRetry:         opts.InfoRetry,
		logger:            opts.Logger,
	}
}

// Gate returns the admission gate shared by all extractor subprocesses.
func (e *Extractor) Gate() *Gate {
	return e.gate
}

// SourceURL returns the canonical page URL for mediaID.
func (e *Extractor) SourceURL(mediaID string) string {
	return fmt.Sprintf(e.sourceURL, mediaID)
}

// ValidateMediaID rejects ids that are empty or could be mistaken for extractor flags.
func ValidateMediaID(mediaID string) error {
	if mediaID == "" {
		return fmt.Errorf("%w: media id is required", shared.ErrInvalidInput)
	}
	if !mediaIDPattern.MatchString(mediaID) || strings.HasPrefix(mediaID, "-") {
		return fmt.Errorf("%w: malformed media id %q", shared.ErrInvalidInput, mediaID)
	}
	return nil
}

// ExtractionError describes a failed extractor run. It matches its Kind sentinel with [errors.Is].
type ExtractionError struct {
	Kind     error // shared.ErrStreamingFailed, ErrDownloadFailed, ErrRateLimited or ErrNoSuitableFormat
	MediaID  string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.MediaID != "" {
		fmt.Fprintf(&b, " for %s", e.MediaID)
	}
	if e.ExitCode > 0 {
		fmt.Fprintf(&b, ": extractor exited with code %d", e.ExitCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Details returns the captured stderr when there is any, otherwise the error message.
func (e *ExtractionError) Details() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return e.Error()
}
