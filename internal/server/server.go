// package server contains the router, middleware & handlers for the media retrieval gateway
package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tuneflow/internal/services"
	"github.com/desertthunder/tuneflow/internal/shared"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
// Common middleware includes logging, panic recovery, CORS, rate limiting, etc.
type Middleware func(http.Handler) http.Handler

// Handler defines the interface for HTTP request handlers in the gateway.
// Implementations handle specific endpoints (health, search, stream, download).
type Handler interface {
	http.Handler      // ServeHTTP handles the HTTP request and writes the response
	Routes() []string // Routes returns the method-qualified patterns this handler serves
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers a custom Handler implementation
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Deps are the collaborators the gateway routes delegate to.
type Deps struct {
	Searcher   services.Searcher
	Streamer   Streamer
	Downloader Downloader
	Logger     *log.Logger
}

// New builds the gateway router with the full middleware stack.
func New(cfg shared.ServerConfig, deps Deps) *BasicRouter {
	if deps.Logger == nil {
		deps.Logger = shared.NewLogger(nil)
	}

	r := NewBasicRouter()
	r.Use(
		Logging(deps.Logger),
		Recover(),
		CORS(cfg.AllowedOrigins),
		RateLimit(cfg.RequestsPerSecond, cfg.Burst),
	)

	r.Handler(&HealthHandler{})
	r.Handler(&SearchHandler{searcher: deps.Searcher})
	r.Handler(&StreamHandler{streamer: deps.Streamer})
	r.Handler(&DownloadHandler{downloader: deps.Downloader})
	r.NotFound(http.HandlerFunc(notFound))

	return r
}

// NewHTTPServer returns an [http.Server] for handler.
//
// No write timeout is set: streams and large downloads may run for minutes.
func NewHTTPServer(addr string, handler http.Handler, logger *log.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		ErrorLog:          logger.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel}),
	}
}
