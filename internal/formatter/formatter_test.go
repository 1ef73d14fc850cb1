package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tuneflow/internal/models"
	"github.com/desertthunder/tuneflow/internal/shared"
	th "github.com/desertthunder/tuneflow/internal/testing"
)

func sampleTracks() []models.Track {
	return []models.Track{
		{ID: "t1", Name: "Song One", Artist: "Artist One", Image: "https://img/1.jpg", VideoID: "vid1"},
		{ID: "t2", Name: "Song, Two", Artist: "Artist Two", VideoID: "vid2"},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleTracks())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "ID,VideoID,Name,Artist,Image\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "t1,vid1,Song One,Artist One,https://img/1.jpg") {
			t.Errorf("CSV missing first track, got: %s", output)
		}
		if !strings.Contains(output, `"Song, Two"`) {
			t.Errorf("CSV should quote fields with commas, got: %s", output)
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleTracks())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Tracks: 2") {
			t.Errorf("text missing count, got: %s", output)
		}
		if !strings.Contains(output, "1. Artist One - Song One [vid1]") {
			t.Errorf("text missing first track, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleTracks(), "")
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "[Artist One - Song One](https://www.youtube.com/watch?v=vid1)") {
			t.Errorf("markdown missing link, got: %s", output)
		}
	})

	t.Run("Export JSON", func(t *testing.T) {
		data, err := Export(sampleTracks(), FormatJSON)
		if err != nil {
			t.Fatalf("Export failed: %v", err)
		}

		var decoded []models.Track
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded) != 2 || decoded[1].VideoID != "vid2" {
			t.Errorf("unexpected decoded tracks: %+v", decoded)
		}
	})

	t.Run("empty tracks", func(t *testing.T) {
		data, err := ExportToCSV(nil)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if strings.Count(string(data), "\n") != 1 {
			t.Errorf("expected header only, got: %q", data)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatText, false},
		{"TEXT", FormatText, false},
		{"json", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"md", FormatMarkdown, false},
		{"yaml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteExport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	if err := WriteExport(sampleTracks(), FormatCSV, path); err != nil {
		t.Fatalf("WriteExport failed: %v", err)
	}

	th.AssertFileExists(t, path)
	if content := th.MustReadFile(t, path); !strings.Contains(content, "vid2") {
		t.Errorf("export file missing track, got: %s", content)
	}

	if err := WriteExport(sampleTracks(), FormatCSV, filepath.Join(t.TempDir(), "missing", "x.csv")); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}

func TestRender(t *testing.T) {
	t.Run("RenderTracks", func(t *testing.T) {
		out := RenderTracks("lofi", sampleTracks())
		for _, want := range []string{"lofi", "Song One", "Artist Two", "vid2"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("RenderMediaInfo", func(t *testing.T) {
		info := &models.MediaInfo{
			ID:       "abc",
			Title:    "A Title",
			Uploader: "Someone",
			Duration: 125,
			Formats: []models.AudioFormat{
				{ID: "251", Ext: "webm", ACodec: "opus", VCodec: "none", ABR: 160, Filesize: 3_400_000},
				{ID: "18", ACodec: "mp4a", VCodec: "avc1"},
			},
		}
		best := info.Formats[0]

		out := RenderMediaInfo(info, &best)
		for _, want := range []string{"A Title", "Someone", "2m5s", "2 (1 audio-only)", "251", "160kbps", "3.4 MB"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}

		if out := RenderMediaInfo(info, nil); !strings.Contains(out, "no audio-only format") {
			t.Errorf("expected warning without best format:\n%s", out)
		}
	})
}

func TestRenderFormats(t *testing.T) {
	formats := []models.AudioFormat{
		{ID: "18", Ext: "mp4", ACodec: "mp4a", VCodec: "avc1", TBR: 900},
		{ID: "140", Ext: "m4a", ACodec: "mp4a", VCodec: "none", ABR: 128, Filesize: 2_000_000},
		{ID: "251", Ext: "webm", ACodec: "opus", VCodec: "none", ABR: 160},
	}

	out := RenderFormats(formats)
	for _, want := range []string{"ID", "Kbps", "251", "140", "18", "2.0 MB"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}

	i251, i140, i18 := strings.Index(out, " 251 "), strings.Index(out, " 140 "), strings.Index(out, " 18 ")
	if !(i251 < i140 && i140 < i18) {
		t.Errorf("expected audio-only formats first by bitrate:\n%s", out)
	}
	if formats[0].ID != "18" {
		t.Error("RenderFormats must not reorder its input")
	}
}
