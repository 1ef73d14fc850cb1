package media

import (
	"bytes"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

const defaultStderrLimit = 64 * 1024

// signature is a known fatal extractor message.
type signature struct {
	name    string
	needles []string
	warning string
}

var fatalSignatures = []signature{
	{
		name:    "signature_extraction",
		needles: []string{"signature extraction failed", "nsig extraction failed", "unable to extract signature", "unable to decode n-parameter"},
		warning: "extractor failed to decipher the player script; the extractor binary likely needs an update",
	},
	{
		name:    "format_unavailable",
		needles: []string{"requested format is not available"},
		warning: "requested format is not available for this media",
	},
}

var rateLimitNeedles = []string{"http error 429", "too many requests"}

// stderrSink accumulates a bounded tail of subprocess stderr and warns once per fatal signature seen.
type stderrSink struct {
	mu      sync.Mutex
	limit   int
	tail    []byte
	partial []byte
	seen    map[string]bool
	logger  *log.Logger
}

func newStderrSink(limit int, logger *log.Logger) *stderrSink {
	if limit <= 0 {
		limit = defaultStderrLimit
	}
	return &stderrSink{limit: limit, seen: map[string]bool{}, logger: logger}
}

func (s *stderrSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tail = append(s.tail, p...)
	if over := len(s.tail) - s.limit; over > 0 {
		s.tail = append(s.tail[:0], s.tail[over:]...)
	}

	data := append(s.partial, p...)
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		s.inspect(string(data[:i]))
		data = data[i+1:]
	}
	if len(data) > s.limit {
		data = data[len(data)-s.limit:]
	}
	s.partial = append(s.partial[:0], data...)

	return len(p), nil
}

// flush inspects a trailing line that had no newline.
func (s *stderrSink) flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.partial) > 0 {
		s.inspect(string(s.partial))
		s.partial = s.partial[:0]
	}
}

func (s *stderrSink) inspect(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if s.logger != nil {
		s.logger.Debug("extractor stderr", "line", line)
	}

	lower := strings.ToLower(line)
	for _, sig := range fatalSignatures {
		if s.seen[sig.name] || !containsAny(lower, sig.needles) {
			continue
		}
		s.seen[sig.name] = true
		if s.logger != nil {
			s.logger.Warn(sig.warning, "signature", sig.name, "line", line)
		}
	}
	if !s.seen["rate_limited"] && containsAny(lower, rateLimitNeedles) {
		s.seen["rate_limited"] = true
	}
}

// String returns the captured stderr tail.
func (s *stderrSink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strings.TrimSpace(string(s.tail))
}

// Saw reports whether the named signature appeared.
func (s *stderrSink) Saw(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[name]
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
