// Package server provides HTTP routing, middleware, and the route handlers of the media retrieval gateway.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] implements it on top of
// [http.ServeMux] with method-qualified patterns; [BasicRouter.NotFound] installs the catch-all that answers
// unmatched routes with a JSON 404.
//
// # Middleware
//
//   - [Logging] tags every request with an id and a child logger, and writes an access log line.
//   - [Recover] converts handler panics into a 500 InternalError body when the response is still uncommitted.
//   - [CORS] answers preflight requests and sets Access-Control headers for allowed origins.
//   - [RateLimit] applies a token bucket in front of every route.
//
// # Routes
//
//	GET /                       health
//	GET /search?query=          track search
//	GET /stream/{mediaId}       live audio stream
//	GET /download/{mediaId}     audio file attachment, ?title= names the file
//
// Failures are reported as {"error": <category>, "details": <message>} via [Classify]. Once a stream has
// sent its first byte, later failures are logged and the response is cut short.
package server
