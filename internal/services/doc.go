// Package services defines the [Searcher] interface for upstream search providers and implements it for the YouTube Data API.
//
// # YouTube Implementation
//
// [YouTubeService] calls GET /search with part=snippet, type=video and maxResults=10, authenticated by an API key
// taken from the gateway configuration.
//
// Each call runs through a [retry.Policy]: HTTP 429, or a 403 whose reason is rateLimitExceeded or
// userRateLimitExceeded, is wrapped in [shared.ErrRateLimited] and retried with exponential backoff.
// Any other failure is returned on the first attempt.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrInvalidInput] : empty or whitespace-only query, no request made
//   - [shared.ErrRateLimited] : upstream throttled every attempt
//   - [shared.ErrAPIRequest] : transport failure or non-2xx status
//   - [shared.ErrNoResults] : upstream returned zero items
//   - [shared.ErrNoValidResults] : items came back but none had a video id and snippet
//
// # API Mappings
//
// Search items map to [models.Track]: title to name, channelTitle to artist, and the medium thumbnail (or default)
// to image. Upstream ordering is kept.
package services
