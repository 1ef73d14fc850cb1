package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/tuneflow/internal/models"
	"github.com/dustin/go-humanize"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// Title renders s as a heading.
func Title(s string) string { return styles.title.Render(s) }

// Success renders s in the success color.
func Success(s string) string { return styles.ok.Render(s) }

// Failure renders s in the error color.
func Failure(s string) string { return styles.err.Render(s) }

// Warning renders s in the warning color.
func Warning(s string) string { return styles.warn.Render(s) }

// Muted renders s as secondary help text.
func Muted(s string) string { return styles.help.Render(s) }

// RenderTracks renders search results for a terminal.
func RenderTracks(query string, tracks []models.Track) string {
	var b strings.Builder
	b.WriteString(Title(fmt.Sprintf("Results for %q (%d)", query, len(tracks))))
	b.WriteString("\n")

	for i, track := range tracks {
		fmt.Fprintf(&b, "%2d. %s %s %s\n", i+1, styles.ok.Render(track.Name), Muted("by"), track.Artist)
		fmt.Fprintf(&b, "    %s\n", Muted(track.VideoID))
	}
	return b.String()
}

// RenderMediaInfo renders probe output with the format a download would use.
func RenderMediaInfo(info *models.MediaInfo, best *models.AudioFormat) string {
	var b strings.Builder
	b.WriteString(Title(info.Title))
	b.WriteString("\n")

	fmt.Fprintf(&b, "%s %s\n", Muted("id:      "), info.ID)
	if info.Uploader != "" {
		fmt.Fprintf(&b, "%s %s\n", Muted("uploader:"), info.Uploader)
	}
	if info.Duration > 0 {
		fmt.Fprintf(&b, "%s %s\n", Muted("duration:"), time.Duration(info.Duration*float64(time.Second)).Round(time.Second))
	}

	audio := 0
	for _, f := range info.Formats {
		if f.AudioOnly() {
			audio++
		}
	}
	fmt.Fprintf(&b, "%s %d (%d audio-only)\n", Muted("formats: "), len(info.Formats), audio)

	if best == nil {
		b.WriteString(Warning("no audio-only format available"))
		b.WriteString("\n")
		return b.String()
	}

	line := fmt.Sprintf("best audio: %s %s/%s %.0fkbps", best.ID, best.Ext, best.ACodec, best.Bitrate())
	if best.Filesize > 0 {
		line += " " + humanize.Bytes(uint64(best.Filesize))
	}
	b.WriteString(Success(line))
	b.WriteString("\n")
	return b.String()
}
