package interfaces

import (
	"context"
	"sync"

	"market-pulse/src/models"
)

// -----------------------------------------------------------------------------
// IFeedPoller is the type-erased view of one scheduled feed.
// -----------------------------------------------------------------------------

type IFeedPoller interface {
	Name() string

	// -----------------------------------------------------------------------------

	// Start runs the poll loop until ctx is cancelled.
	Start(ctx context.Context, wg *sync.WaitGroup)

	// -----------------------------------------------------------------------------

	// FetchNow performs one fetch cycle, sharing an in-flight one if present,
	// and returns the delta size.
	FetchNow(ctx context.Context) (int, error)

	// -----------------------------------------------------------------------------

	// Read returns the cached items and resets the new-item counter. When
	// refresh is set and the cache is stale, it fetches first.
	Read(ctx context.Context, refresh bool) models.MFeedView

	// -----------------------------------------------------------------------------

	Health() models.MFeedHealth
}
