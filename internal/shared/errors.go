package shared

import "fmt"

var (
	// Configuration errors
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// API and service errors
	ErrAPIRequest     = fmt.Errorf("API request failed")
	ErrRateLimited    = fmt.Errorf("rate limit exceeded")
	ErrNoResults      = fmt.Errorf("no results found")
	ErrNoValidResults = fmt.Errorf("no valid results")

	// Extraction errors
	ErrNoSuitableFormat = fmt.Errorf("no suitable audio format found")
	ErrStreamingFailed  = fmt.Errorf("streaming failed")
	ErrDownloadFailed   = fmt.Errorf("download failed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
