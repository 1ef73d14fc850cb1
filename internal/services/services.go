// package services defines interface Searcher for resolving free-text queries against upstream APIs
//
// YouTube Data API
package services

import (
	"context"

	"github.com/desertthunder/tuneflow/internal/models"
)

// Searcher resolves a query into an ordered list of playable tracks.
type Searcher interface {
	// Search returns up to MaxResults tracks in upstream relevance order.
	Search(ctx context.Context, query string) ([]models.Track, error)

	// Name returns the name of the service (e.g., "YouTube")
	Name() string
}
