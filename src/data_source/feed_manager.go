package datasource

import (
	"context"
	"fmt"
	"sync"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

// FeedManager owns the feed pollers and their lifecycles.
type FeedManager struct {
	Feeds  map[string]interfaces.IFeedPoller
	Logger *logger.Logger

	mu         sync.RWMutex
	order      []string
	cancels    map[string]context.CancelFunc
	ctx        context.Context    // lifecycle context (derived)
	cancelFunc context.CancelFunc // stops all feeds
	wg         *sync.WaitGroup    // shared WaitGroup (ptr)
}

// -----------------------------------------------------------------------------

func NewFeedManager(feeds []interfaces.IFeedPoller, log *logger.Logger) *FeedManager {
	if log == nil {
		log = logger.NewNop()
	}
	m := &FeedManager{
		Feeds:   make(map[string]interfaces.IFeedPoller),
		Logger:  log,
		cancels: make(map[string]context.CancelFunc),
	}

	for _, f := range feeds {
		if _, exists := m.Feeds[f.Name()]; exists {
			continue
		}
		m.Feeds[f.Name()] = f
		m.order = append(m.order, f.Name())
	}

	return m
}

// -----------------------------------------------------------------------------

// AddFeed registers a poller and starts it if the manager is running.
func (m *FeedManager) AddFeed(feed interfaces.IFeedPoller) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := feed.Name()
	if _, exists := m.Feeds[name]; exists {
		return fmt.Errorf("feed %s already exists", name)
	}

	m.Feeds[name] = feed
	m.order = append(m.order, name)
	m.Logger.Info("Added feed: %s", name)

	if m.ctx != nil {
		m.startLocked(feed)
		m.Logger.Info("Started feed: %s", name)
	}
	return nil
}

// -----------------------------------------------------------------------------

// RemoveFeed stops and removes a poller.
func (m *FeedManager) RemoveFeed(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.Feeds[name]; !exists {
		return fmt.Errorf("feed %s not found", name)
	}

	if cancel, ok := m.cancels[name]; ok {
		cancel()
		delete(m.cancels, name)
	}

	delete(m.Feeds, name)
	for i, n := range m.order {
		if n == name {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.Logger.Info("Removed feed: %s", name)
	return nil
}

// -----------------------------------------------------------------------------

// GetFeed retrieves a poller by name.
func (m *FeedManager) GetFeed(name string) (interfaces.IFeedPoller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	feed, exists := m.Feeds[name]
	if !exists {
		return nil, fmt.Errorf("feed %s not found", name)
	}
	return feed, nil
}

// -----------------------------------------------------------------------------

// GetAllFeeds returns the pollers in registration order.
func (m *FeedManager) GetAllFeeds() []interfaces.IFeedPoller {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]interfaces.IFeedPoller, 0, len(m.order))
	for _, name := range m.order {
		list = append(list, m.Feeds[name])
	}
	return list
}

// -----------------------------------------------------------------------------

// Start starts every registered poller.
func (m *FeedManager) Start(parentCtx context.Context, wg *sync.WaitGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		return fmt.Errorf("FeedManager is already running")
	}

	ctx, cancel := context.WithCancel(parentCtx)
	m.ctx = ctx
	m.cancelFunc = cancel
	m.wg = wg

	for _, name := range m.order {
		m.startLocked(m.Feeds[name])
	}
	m.Logger.Info("FeedManager started %d feed(s)", len(m.order))
	return nil
}

func (m *FeedManager) startLocked(feed interfaces.IFeedPoller) {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancels[feed.Name()] = cancel
	feed.Start(ctx, m.wg)
}

// -----------------------------------------------------------------------------

// Stop cancels every poller. Callers wait on the shared WaitGroup.
func (m *FeedManager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx == nil {
		return nil
	}

	m.Logger.Info("Stopping FeedManager...")
	if m.cancelFunc != nil {
		m.cancelFunc()
	}

	m.cancelFunc = nil
	m.ctx = nil
	m.cancels = make(map[string]context.CancelFunc)
	return nil
}

// -----------------------------------------------------------------------------

// FetchAll fans out one FetchNow per feed and returns the delta sizes of
// those that succeeded.
func (m *FeedManager) FetchAll(ctx context.Context) map[string]int {
	results := make(map[string]int)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, feed := range m.GetAllFeeds() {
		wg.Add(1)
		go func(f interfaces.IFeedPoller) {
			defer wg.Done()
			n, err := f.FetchNow(ctx)
			if err != nil {
				m.Logger.Error("Feed %s failed manual fetch: %v", f.Name(), err)
				return
			}
			mu.Lock()
			results[f.Name()] = n
			mu.Unlock()
		}(feed)
	}
	wg.Wait()
	return results
}

// -----------------------------------------------------------------------------

// Health returns the fetch state of every feed.
func (m *FeedManager) Health() []models.MFeedHealth {
	feeds := m.GetAllFeeds()
	out := make([]models.MFeedHealth, 0, len(feeds))
	for _, f := range feeds {
		out = append(out, f.Health())
	}
	return out
}
