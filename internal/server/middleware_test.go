package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/desertthunder/tuneflow/internal/shared"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
}

func TestLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := shared.NewLogger(&buf)

	var seen string
	h := Logging(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LoggerFrom(r.Context()).Info("inside handler")
		seen = w.Header().Get("X-Request-ID")
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/search?query=x", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "req-123" {
		t.Errorf("X-Request-ID = %q, want req-123", seen)
	}
	out := buf.String()
	for _, want := range []string{"request_id=req-123", "inside handler", "status=418", "path=/search"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestCORS(t *testing.T) {
	t.Run("wildcard", func(t *testing.T) {
		h := CORS([]string{"*"})(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://app.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
			t.Errorf("Allow-Origin = %q, want *", got)
		}
		if !strings.Contains(rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition") {
			t.Error("expected Content-Disposition to be exposed")
		}
	})

	t.Run("allow list", func(t *testing.T) {
		h := CORS([]string{"https://ok.example"})(okHandler())

		tests := []struct {
			origin string
			want   string
		}{
			{"https://ok.example", "https://ok.example"},
			{"https://evil.example", ""},
			{"", ""},
		}
		for _, tt := range tests {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("origin %q: Allow-Origin = %q, want %q", tt.origin, got, tt.want)
			}
		}
	})

	t.Run("preflight", func(t *testing.T) {
		called := false
		h := CORS([]string{"*"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

		req := httptest.NewRequest(http.MethodOptions, "/search", nil)
		req.Header.Set("Origin", "https://app.example")
		req.Header.Set("Access-Control-Request-Method", "GET")
		req.Header.Set("Access-Control-Request-Headers", "Range")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if called {
			t.Error("preflight should not reach the handler")
		}
		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Range" {
			t.Errorf("Allow-Headers = %q, want Range", got)
		}
	})
}

func TestRateLimit(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		h := RateLimit(0, 0)(okHandler())
		for range 50 {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
		}
	})

	t.Run("rejects beyond burst", func(t *testing.T) {
		h := RateLimit(0.001, 2)(okHandler())

		codes := make([]int, 3)
		for i := range codes {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			codes[i] = rec.Code

			if i == 2 {
				if !strings.Contains(rec.Body.String(), `"error":"RateLimited"`) {
					t.Errorf("body = %s", rec.Body.String())
				}
				if rec.Header().Get("Retry-After") == "" {
					t.Error("expected Retry-After header")
				}
			}
		}

		want := []int{200, 200, 429}
		for i := range want {
			if codes[i] != want[i] {
				t.Errorf("request %d status = %d, want %d", i, codes[i], want[i])
			}
		}
	})
}

func TestRecoverAfterCommit(t *testing.T) {
	h := Logging(shared.NewLogger(nil))(Recover()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("partial"))
		panic("late failure")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stream/x", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "partial" {
		t.Errorf("body = %q, want only the committed bytes", rec.Body.String())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		category string
	}{
		{shared.ErrInvalidInput, 400, "InvalidInput"},
		{shared.ErrRateLimited, 429, "RateLimited"},
		{shared.ErrNoResults, 404, "NoResults"},
		{shared.ErrNoValidResults, 404, "NoValidResults"},
		{shared.ErrNoSuitableFormat, 404, "NoSuitableFormat"},
		{shared.ErrStreamingFailed, 500, "StreamingFailed"},
		{shared.ErrDownloadFailed, 500, "DownloadFailed"},
		{shared.ErrAPIRequest, 500, "InternalError"},
	}

	for _, tt := range tests {
		t.Run(tt.category, func(t *testing.T) {
			status, category := Classify(tt.err)
			if status != tt.status || category != tt.category {
				t.Errorf("Classify(%v) = %d %s, want %d %s", tt.err, status, category, tt.status, tt.category)
			}
		})
	}
}

func TestBasicRouter(t *testing.T) {
	r := NewBasicRouter()
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, req)
			})
		}
	}
	r.Use(mark("first"), mark("second"))
	r.Handle("get", "/", okHandler())
	r.NotFound(http.HandlerFunc(notFound))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want ok", rec.Body.String())
	}
	if strings.Join(order, ",") != "first,second" {
		t.Errorf("middleware order = %v", order)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for unmatched path", rec.Code)
	}
}
