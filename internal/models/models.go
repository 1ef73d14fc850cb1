// package models defines the data model for the media retrieval gateway
package models

import "fmt"

// Track is a playable search candidate returned to clients.
//
// ID and VideoID always hold the same value.
type Track struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Image       string `json:"image,omitempty"`
	VideoID     string `json:"videoId"`
	Description string `json:"description"`
}

// NewTrack builds a [Track] keyed by videoID.
func NewTrack(videoID, name, artist, image, description string) Track {
	return Track{
		ID:          videoID,
		Name:        name,
		Artist:      artist,
		Image:       image,
		VideoID:     videoID,
		Description: description,
	}
}

// OutputMode selects how extracted audio reaches the client.
type OutputMode int

const (
	ModeStream OutputMode = iota
	ModeDownload
)

func (m OutputMode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeDownload:
		return "download"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ExtractionRequest is created per inbound stream or download request and lives only as long as it.
type ExtractionRequest struct {
	MediaID string
	Mode    OutputMode
	Title   string // Optional attachment title, download only
}

// OutcomeKind enumerates the states of an extraction subprocess.
type OutcomeKind int

const (
	OutcomeRunning OutcomeKind = iota
	OutcomeCompleted
	OutcomeFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRunning:
		return "running"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome reports what became of a subprocess.
//
// Completed carries the exit code (which may be non-zero); Failed means the process could not be
// started or waited on, or was killed, and carries Err.
type Outcome struct {
	Kind     OutcomeKind
	ExitCode int
	Err      error
}

// Running reports an outcome for a process that has not exited yet.
func Running() Outcome { return Outcome{Kind: OutcomeRunning, ExitCode: -1} }

// Completed reports a process that exited on its own with code.
func Completed(code int) Outcome { return Outcome{Kind: OutcomeCompleted, ExitCode: code} }

// Failed reports a process that did not run to completion.
func Failed(err error) Outcome { return Outcome{Kind: OutcomeFailed, ExitCode: -1, Err: err} }

// Success reports whether the process completed with exit code zero.
func (o Outcome) Success() bool {
	return o.Kind == OutcomeCompleted && o.ExitCode == 0
}

// AudioFormat is a single downloadable rendition reported by the extractor.
type AudioFormat struct {
	ID       string  `json:"format_id"`
	Ext      string  `json:"ext"`
	ACodec   string  `json:"acodec"`
	VCodec   string  `json:"vcodec"`
	ABR      float64 `json:"abr"`
	TBR      float64 `json:"tbr"`
	Filesize int64   `json:"filesize"`
}

// AudioOnly reports whether the format carries audio and no video.
func (f AudioFormat) AudioOnly() bool {
	hasAudio := f.ACodec != "" && f.ACodec != "none"
	return hasAudio && f.VCodec == "none"
}

// Bitrate returns the audio bitrate, falling back to the total bitrate.
func (f AudioFormat) Bitrate() float64 {
	if f.ABR > 0 {
		return f.ABR
	}
	return f.TBR
}

// MediaInfo is the subset of extractor metadata the gateway uses.
type MediaInfo struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Uploader string        `json:"uploader"`
	Duration float64       `json:"duration"`
	Formats  []AudioFormat `json:"formats"`
}
