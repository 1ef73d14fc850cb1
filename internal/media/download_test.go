package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/tuneflow/internal/models"
	"github.com/desertthunder/tuneflow/internal/retry"
	"github.com/desertthunder/tuneflow/internal/shared"
	tu "github.com/desertthunder/tuneflow/internal/testing"
)

const probeJSON = `{"id":"abc123","title":"Remote Title","uploader":"Someone","duration":212,"formats":[
{"format_id":"18","ext":"mp4","acodec":"mp4a.40.2","vcodec":"avc1","tbr":500},
{"format_id":"139","ext":"m4a","acodec":"mp4a.40.5","vcodec":"none","abr":48},
{"format_id":"251","ext":"webm","acodec":"opus","vcodec":"none","abr":160},
{"format_id":"140","ext":"m4a","acodec":"mp4a.40.2","vcodec":"none","abr":128}
]}`

// fakeExtractorScript answers metadata probes with probeJSON and writes a small mp3 for extraction runs.
func fakeExtractorScript(t *testing.T, argsFile string) string {
	t.Helper()
	return tu.WriteScript(t, "yt-dlp", fmt.Sprintf(`case "$1" in
--dump-json)
cat <<'JSON'
%s
JSON
;;
*)
printf '%%s\n' "$@" > %q
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
printf 'ID3fakeaudio' > "${out%%.*}.mp3"
;;
esac
`, probeJSON, argsFile))
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestProbe(t *testing.T) {
	t.Run("decodes metadata", func(t *testing.T) {
		ex := newTestExtractor(t, fakeExtractorScript(t, filepath.Join(t.TempDir(), "args")))

		info, err := ex.Probe(context.Background(), "abc123")
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if info.Title != "Remote Title" || info.ID != "abc123" {
			t.Errorf("unexpected info: %+v", info)
		}
		if len(info.Formats) != 4 {
			t.Errorf("expected 4 formats, got %d", len(info.Formats))
		}
	})

	t.Run("retries rate limited probes", func(t *testing.T) {
		counter := filepath.Join(t.TempDir(), "count")
		script := tu.WriteScript(t, "yt-dlp", fmt.Sprintf(`n=$(cat %[1]q 2>/dev/null || echo 0)
n=$((n+1))
echo $n > %[1]q
if [ $n -lt 3 ]; then
  echo "ERROR: unable to download webpage: HTTP Error 429: Too Many Requests" >&2
  exit 1
fi
echo '{"id":"abc123","title":"t","formats":[]}'
`, counter))
		ex := newTestExtractor(t, script)
		ex.infoRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: noSleep}

		info, err := ex.Probe(context.Background(), "abc123")
		if err != nil {
			t.Fatalf("Probe() error = %v", err)
		}
		if info.ID != "abc123" {
			t.Errorf("ID = %q", info.ID)
		}
		if got := strings.TrimSpace(tu.MustReadFile(t, counter)); got != "3" {
			t.Errorf("expected 3 invocations, got %s", got)
		}
	})

	t.Run("persistent rate limit stays classified", func(t *testing.T) {
		script := tu.WriteScript(t, "yt-dlp", `echo "ERROR: HTTP Error 429: Too Many Requests" >&2
exit 1
`)
		ex := newTestExtractor(t, script)
		ex.infoRetry = retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, Sleep: noSleep}

		_, err := ex.Probe(context.Background(), "abc123")
		if !errors.Is(err, shared.ErrRateLimited) {
			t.Errorf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("other failures are not retried", func(t *testing.T) {
		counter := filepath.Join(t.TempDir(), "count")
		script := tu.WriteScript(t, "yt-dlp", fmt.Sprintf(`echo x >> %q
echo "ERROR: Video unavailable" >&2
exit 1
`, counter))
		ex := newTestExtractor(t, script)
		ex.infoRetry = retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Sleep: noSleep}

		_, err := ex.Probe(context.Background(), "abc123")
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
		if got := strings.Count(tu.MustReadFile(t, counter), "x"); got != 1 {
			t.Errorf("expected 1 invocation, got %d", got)
		}
	})

	t.Run("invalid metadata", func(t *testing.T) {
		script := tu.WriteScript(t, "yt-dlp", "echo 'not json'\n")
		ex := newTestExtractor(t, script)

		_, err := ex.Probe(context.Background(), "abc123")
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
	})
}

func TestBestAudioFormat(t *testing.T) {
	t.Run("picks highest audio-only bitrate", func(t *testing.T) {
		formats := []models.AudioFormat{
			{ID: "18", ACodec: "mp4a", VCodec: "avc1", TBR: 900},
			{ID: "139", ACodec: "mp4a", VCodec: "none", ABR: 48},
			{ID: "251", ACodec: "opus", VCodec: "none", ABR: 160},
			{ID: "140", ACodec: "mp4a", VCodec: "none", ABR: 128},
		}

		best, err := BestAudioFormat(formats)
		if err != nil {
			t.Fatalf("BestAudioFormat() error = %v", err)
		}
		if best.ID != "251" {
			t.Errorf("expected 251, got %s", best.ID)
		}
	})

	t.Run("falls back to total bitrate", func(t *testing.T) {
		formats := []models.AudioFormat{
			{ID: "a", ACodec: "opus", VCodec: "none", TBR: 70},
			{ID: "b", ACodec: "opus", VCodec: "none", TBR: 130},
		}

		best, err := BestAudioFormat(formats)
		if err != nil {
			t.Fatalf("BestAudioFormat() error = %v", err)
		}
		if best.ID != "b" {
			t.Errorf("expected b, got %s", best.ID)
		}
	})

	t.Run("no audio-only formats", func(t *testing.T) {
		formats := []models.AudioFormat{
			{ID: "18", ACodec: "mp4a", VCodec: "avc1"},
			{ID: "160", ACodec: "none", VCodec: "none"},
		}

		if _, err := BestAudioFormat(formats); !errors.Is(err, shared.ErrNoSuitableFormat) {
			t.Errorf("expected ErrNoSuitableFormat, got %v", err)
		}
		if _, err := BestAudioFormat(nil); !errors.Is(err, shared.ErrNoSuitableFormat) {
			t.Errorf("expected ErrNoSuitableFormat for empty list, got %v", err)
		}
	})
}

func TestDownload(t *testing.T) {
	t.Run("materializes best audio format", func(t *testing.T) {
		argsFile := filepath.Join(t.TempDir(), "args")
		ex := newTestExtractor(t, fakeExtractorScript(t, argsFile))

		m, err := ex.Download(context.Background(), "abc123", "My Song")
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}

		if m.Filename != "My Song.mp3" {
			t.Errorf("Filename = %q, want %q", m.Filename, "My Song.mp3")
		}
		if m.ContentType != "audio/mpeg" {
			t.Errorf("ContentType = %q, want audio/mpeg", m.ContentType)
		}
		if m.Format.ID != "251" {
			t.Errorf("Format.ID = %q, want 251", m.Format.ID)
		}
		if m.Size != int64(len("ID3fakeaudio")) {
			t.Errorf("Size = %d", m.Size)
		}
		tu.AssertFileExists(t, m.Path)

		f, err := m.Open()
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		f.Close()

		args := tu.MustReadFile(t, argsFile)
		for _, want := range []string{"-f\n251\n", "-x\n", "--audio-format\nmp3\n", "https://www.youtube.com/watch?v=abc123"} {
			if !strings.Contains(args, want) {
				t.Errorf("args missing %q:\n%s", want, args)
			}
		}

		dir := filepath.Dir(m.Path)
		if !strings.HasPrefix(filepath.Base(dir), "dl-") {
			t.Errorf("expected dl- temp dir, got %s", dir)
		}
		if err := m.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
		tu.AssertNotExists(t, dir)
		if err := m.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})

	t.Run("uses metadata title when none given", func(t *testing.T) {
		ex := newTestExtractor(t, fakeExtractorScript(t, filepath.Join(t.TempDir(), "args")))

		m, err := ex.Download(context.Background(), "abc123", "  ")
		if err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		defer m.Close()

		if m.Filename != "Remote Title.mp3" {
			t.Errorf("Filename = %q, want %q", m.Filename, "Remote Title.mp3")
		}
	})

	t.Run("no suitable format", func(t *testing.T) {
		script := tu.WriteScript(t, "yt-dlp", `echo '{"id":"abc123","title":"t","formats":[{"format_id":"18","acodec":"mp4a","vcodec":"avc1"}]}'
`)
		ex := newTestExtractor(t, script)

		_, err := ex.Download(context.Background(), "abc123", "")
		if !errors.Is(err, shared.ErrNoSuitableFormat) {
			t.Errorf("expected ErrNoSuitableFormat, got %v", err)
		}
		tu.AssertNotExists(t, ex.tempDir)
	})

	t.Run("extraction failure cleans up", func(t *testing.T) {
		script := tu.WriteScript(t, "yt-dlp", fmt.Sprintf(`if [ "$1" = "--dump-json" ]; then
cat <<'JSON'
%s
JSON
exit 0
fi
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
printf 'half' > "${out%%.*}.webm.part"
echo "ERROR: Postprocessing: ffmpeg not found" >&2
exit 1
`, probeJSON))
		ex := newTestExtractor(t, script)

		_, err := ex.Download(context.Background(), "abc123", "x")
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Fatalf("expected ErrDownloadFailed, got %v", err)
		}

		var xerr *ExtractionError
		if errors.As(err, &xerr) && !strings.Contains(xerr.Details(), "ffmpeg not found") {
			t.Errorf("Details() = %q, want stderr", xerr.Details())
		}

		entries, _ := os.ReadDir(ex.tempDir)
		if len(entries) != 0 {
			t.Errorf("expected temp root to be empty, found %d entries", len(entries))
		}
	})

	t.Run("no output file", func(t *testing.T) {
		script := tu.WriteScript(t, "yt-dlp", fmt.Sprintf(`if [ "$1" = "--dump-json" ]; then
cat <<'JSON'
%s
JSON
fi
exit 0
`, probeJSON))
		ex := newTestExtractor(t, script)

		_, err := ex.Download(context.Background(), "abc123", "x")
		if !errors.Is(err, shared.ErrDownloadFailed) {
			t.Errorf("expected ErrDownloadFailed, got %v", err)
		}
	})
}

func TestAttachmentName(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		metaTitle string
		ext       string
		want      string
	}{
		{"requested title", "My Song", "Other", "mp3", "My Song.mp3"},
		{"metadata fallback", "", "Remote Title", "mp3", "Remote Title.mp3"},
		{"generic fallback", "", "", "mp3", "download.mp3"},
		{"strips path separators", "AC/DC: Back in Black", "", "mp3", "AC-DC- Back in Black.mp3"},
		{"strips reserved characters", `what?"<now>|`, "", "m4a", "whatnow.m4a"},
		{"drops control characters", "line\nbreak", "", "mp3", "linebreak.mp3"},
		{"trims dots", "...hidden", "", ".mp3", "hidden.mp3"},
		{"unicode survives", "Café del Mar", "", "mp3", "Café del Mar.mp3"},
		{"composes decomposed accents", "Cafe\u0301", "", "mp3", "Caf\u00e9.mp3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AttachmentName(tt.title, tt.metaTitle, tt.ext); got != tt.want {
				t.Errorf("AttachmentName(%q, %q, %q) = %q, want %q", tt.title, tt.metaTitle, tt.ext, got, tt.want)
			}
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"mp3":     "audio/mpeg",
		".m4a":    "audio/mp4",
		"OPUS":    "audio/ogg",
		"flac":    "audio/flac",
		"unknown": "application/octet-stream",
	}
	for ext, want := range tests {
		if got := ContentTypeFor(ext); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", ext, got, want)
		}
	}
}

func TestExtractFailure(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	waitErr := errors.New("stderr pipe closed")
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		outcome models.Outcome
		want    error
		wantMsg string
	}{
		{name: "clean exit", ctx: context.Background(), outcome: models.Completed(0)},
		{name: "non-zero exit", ctx: context.Background(), outcome: models.Completed(3), wantMsg: "exit code 3"},
		{name: "wait error wins", ctx: context.Background(), outcome: models.Failed(waitErr), want: waitErr},
		{name: "wait error before cancellation", ctx: cancelled, outcome: models.Failed(waitErr), want: waitErr},
		{name: "exit code before cancellation", ctx: cancelled, outcome: models.Completed(1), wantMsg: "exit code 1"},
		{name: "cancellation alone", ctx: cancelled, outcome: models.Completed(0), want: context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := extractFailure(tt.ctx, tt.outcome, logger)
			switch {
			case tt.want == nil && tt.wantMsg == "":
				if err != nil {
					t.Errorf("extractFailure() = %v, want nil", err)
				}
			case tt.want != nil:
				if !errors.Is(err, tt.want) {
					t.Errorf("extractFailure() = %v, want %v", err, tt.want)
				}
			default:
				if err == nil || err.Error() != tt.wantMsg {
					t.Errorf("extractFailure() = %v, want %q", err, tt.wantMsg)
				}
			}
		})
	}
}
