// package formatter renders search results and media metadata for the command line (CSV, JSON, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/tuneflow/internal/models"
	"github.com/desertthunder/tuneflow/internal/shared"
)

// Format names an export encoding.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name or a common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
}

// Export encodes tracks in format.
func Export(tracks []models.Track, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return shared.MarshalJSON(tracks, true)
	case FormatCSV:
		return ExportToCSV(tracks)
	case FormatMarkdown:
		return ExportToMarkdown(tracks, "")
	default:
		return ExportToText(tracks)
	}
}

// ExportToCSV converts tracks to CSV format with columns: ID, VideoID, Name, Artist, Image
func ExportToCSV(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "VideoID", "Name", "Artist", "Image"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		record := []string{track.ID, track.VideoID, track.Name, track.Artist, track.Image}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts tracks to a Markdown list linking each track to its watch page.
//
// sourceURL is a fmt template with one %s for the video id and defaults to the YouTube watch URL.
func ExportToMarkdown(tracks []models.Track, sourceURL string) ([]byte, error) {
	if sourceURL == "" {
		sourceURL = "https://www.youtube.com/watch?v=%s"
	}

	var buf bytes.Buffer
	buf.WriteString("# Search Results\n\n")
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(tracks))

	for i, track := range tracks {
		fmt.Fprintf(&buf, "%d. [%s - %s](%s)\n", i+1, track.Artist, track.Name, fmt.Sprintf(sourceURL, track.VideoID))
	}

	return buf.Bytes(), nil
}

// ExportToText converts tracks to plain text format
func ExportToText(tracks []models.Track) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(tracks))
	for i, track := range tracks {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, track.Artist, track.Name, track.VideoID)
	}

	return buf.Bytes(), nil
}

// WriteExport encodes tracks in format and writes them to path.
func WriteExport(tracks []models.Track, format Format, path string) error {
	data, err := Export(tracks, format)
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", format, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
