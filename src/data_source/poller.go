package datasource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"market-pulse/src/helpers"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"

	"golang.org/x/sync/singleflight"
)

// fetchRetryDelay is the base delay between attempts of a feed with Retries set.
const fetchRetryDelay = time.Second

// FetchFunc returns one newest-first snapshot of a feed.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// Sink persists the result of a successful fetch. It receives the delta and
// the full snapshot.
type Sink[T any] func(ctx context.Context, delta, snapshot []T) error

// Observer is told about every completed fetch.
type Observer interface {
	FeedSucceeded(name string)
	FeedFailed(name string, err error)
}

// -----------------------------------------------------------------------------

// Poller fetches one feed on a timer, dedups it into a Cache and broadcasts
// the new items.
type Poller[T any] struct {
	feed        models.MFeedConfig
	fetch       FetchFunc[T]
	cache       *Cache[T]
	gate        Gate
	broadcaster interfaces.IBroadcaster
	sink        Sink[T]
	observer    Observer
	logger      *logger.Logger

	group singleflight.Group

	mu      sync.Mutex
	lastErr string

	// now is replaceable in tests.
	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewPoller[T any](feed models.MFeedConfig, fetch FetchFunc[T], key func(T) string, gate Gate, broadcaster interfaces.IBroadcaster, log *logger.Logger) *Poller[T] {
	if gate == nil {
		gate = AlwaysGate()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Poller[T]{
		feed:        feed,
		fetch:       fetch,
		cache:       NewCache(key, feed.MaxItems),
		gate:        gate,
		broadcaster: broadcaster,
		logger:      log,
		now:         time.Now,
	}
}

// WithSink sets the persistence hook and returns p.
func (p *Poller[T]) WithSink(sink Sink[T]) *Poller[T] {
	p.sink = sink
	return p
}

// WithObserver sets the fetch observer and returns p.
func (p *Poller[T]) WithObserver(o Observer) *Poller[T] {
	p.observer = o
	return p
}

// -----------------------------------------------------------------------------

func (p *Poller[T]) Name() string { return p.feed.Name }

func (p *Poller[T]) Cache() *Cache[T] { return p.cache }

// -----------------------------------------------------------------------------

// Start polls immediately (gate permitting) and then every interval until ctx
// is done.
func (p *Poller[T]) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		p.logger.Info("Feed %s started (interval %v, gate %s)", p.feed.Name, p.interval(), p.feed.Gate)
		p.tick(ctx)

		ticker := time.NewTicker(p.interval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Info("Feed %s stopped", p.feed.Name)
				return
			case <-ticker.C:
				p.tick(ctx)
			}
		}
	}()
}

// -----------------------------------------------------------------------------

func (p *Poller[T]) tick(ctx context.Context) {
	allowed, err := p.gate.Allow(ctx)
	if err != nil {
		p.logger.Warning("Feed %s gate check failed, skipping: %v", p.feed.Name, err)
		return
	}
	if !allowed {
		p.logger.Debug("Feed %s gated, skipping tick", p.feed.Name)
		return
	}

	if _, err := p.FetchNow(ctx); err != nil && ctx.Err() == nil {
		p.logger.Error("Feed %s fetch failed: %v", p.feed.Name, err)
	}
}

// -----------------------------------------------------------------------------

// FetchNow runs one fetch cycle and returns the delta size. Concurrent calls
// share the in-flight cycle. The cycle runs under its own timeout and is not
// aborted when ctx is cancelled; only the wait is.
func (p *Poller[T]) FetchNow(ctx context.Context) (int, error) {
	ch := p.group.DoChan(p.feed.Name, func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout())
		defer cancel()
		return p.cycle(fctx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(int), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// -----------------------------------------------------------------------------

func (p *Poller[T]) cycle(ctx context.Context) (int, error) {
	var snapshot []T
	err := helpers.SafeCall(func() error {
		var ferr error
		snapshot, ferr = helpers.RetryWithBackoff[[]T](ctx, p.logger, "fetch "+p.feed.Name, p.feed.Retries, fetchRetryDelay, p.fetch)
		return ferr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = helpers.NewNetworkError(fmt.Sprintf("%s: fetch timed out after %v", p.feed.Name, p.timeout()), err)
		}
		p.setLastError(err)
		if p.observer != nil {
			p.observer.FeedFailed(p.feed.Name, err)
		}
		return 0, err
	}

	delta := p.cache.Apply(snapshot, p.now())
	p.setLastError(nil)
	if p.observer != nil {
		p.observer.FeedSucceeded(p.feed.Name)
	}

	if p.sink != nil && len(snapshot) > 0 {
		p.persist(delta, snapshot)
	}

	if len(delta) > 0 {
		p.logger.Info("Feed %s: %d new item(s)", p.feed.Name, len(delta))
		p.broadcast(delta)
	} else {
		p.logger.Debug("Feed %s: no new items", p.feed.Name)
	}
	return len(delta), nil
}

// -----------------------------------------------------------------------------

func (p *Poller[T]) persist(delta, snapshot []T) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout())
	defer cancel()

	err := helpers.SafeCall(func() error {
		return p.sink(ctx, delta, snapshot)
	})
	if err != nil {
		p.logger.Error("Feed %s: persisting failed: %v", p.feed.Name, err)
	}
}

// -----------------------------------------------------------------------------

func (p *Poller[T]) broadcast(delta []T) {
	if p.broadcaster == nil || p.feed.BroadcastType == "" {
		return
	}

	msg := models.MBroadcastMessage{
		Type: p.feed.BroadcastType,
		Data: models.MFeedUpdate{
			Count:      len(delta),
			Items:      delta,
			UpdateTime: p.now().Format(time.RFC3339),
		},
	}
	sent := p.broadcaster.Broadcast(msg)
	p.logger.Debug("Feed %s: broadcast %s to %d client(s)", p.feed.Name, p.feed.BroadcastType, sent)
}

// -----------------------------------------------------------------------------

// Read returns the cached items and the size of the last delta, then resets
// that counter. With refresh set, a cache older than the stale window is
// refetched first; a failed refetch still serves the old items.
func (p *Poller[T]) Read(ctx context.Context, refresh bool) models.MFeedView {
	if refresh && p.isStale() {
		if _, err := p.FetchNow(ctx); err != nil {
			p.logger.Warning("Feed %s: refresh on read failed: %v", p.feed.Name, err)
		}
	}

	items, count, last := p.cache.Read()
	if items == nil {
		items = []T{}
	}
	view := models.MFeedView{Items: items, Count: count}
	if !last.IsZero() {
		view.LastUpdate = &last
	}
	return view
}

// Snapshot returns the typed cached items without resetting the counter.
func (p *Poller[T]) Snapshot() []T {
	return p.cache.Items()
}

func (p *Poller[T]) isStale() bool {
	last := p.cache.LastFetch()
	return last.IsZero() || p.now().Sub(last) > p.feed.StaleAfter()
}

// -----------------------------------------------------------------------------

func (p *Poller[T]) Health() models.MFeedHealth {
	p.mu.Lock()
	lastErr := p.lastErr
	p.mu.Unlock()

	h := models.MFeedHealth{Name: p.feed.Name, LastError: lastErr, Items: p.cache.Len()}
	if last := p.cache.LastFetch(); !last.IsZero() {
		h.LastFetchTime = &last
	}
	return h
}

func (p *Poller[T]) interval() time.Duration {
	if d := p.feed.Interval(); d > 0 {
		return d
	}
	return time.Minute
}

func (p *Poller[T]) timeout() time.Duration {
	if d := p.feed.Timeout(); d > 0 {
		return d
	}
	return 30 * time.Second
}

func (p *Poller[T]) setLastError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		p.lastErr = ""
		return
	}
	p.lastErr = err.Error()
}
