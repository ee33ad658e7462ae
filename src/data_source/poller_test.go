package datasource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"market-pulse/src/helpers"
	"market-pulse/src/models"
	"market-pulse/src/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []models.MBroadcastMessage
}

func (b *recordingBroadcaster) Broadcast(message interface{}) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, message.(models.MBroadcastMessage))
	return 1
}

func (b *recordingBroadcaster) all() []models.MBroadcastMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.MBroadcastMessage(nil), b.messages...)
}

type recordingObserver struct {
	mu        sync.Mutex
	succeeded int
	failed    int
}

func (o *recordingObserver) FeedSucceeded(string) {
	o.mu.Lock()
	o.succeeded++
	o.mu.Unlock()
}

func (o *recordingObserver) FeedFailed(string, error) {
	o.mu.Lock()
	o.failed++
	o.mu.Unlock()
}

// scriptedFetch returns the queued snapshots in order and repeats the last.
type scriptedFetch struct {
	mu    sync.Mutex
	steps [][]string
	errs  []error
	calls int32
}

func (s *scriptedFetch) fetch(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := int(atomic.AddInt32(&s.calls, 1)) - 1
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return s.steps[i], err
}

func testFeed() models.MFeedConfig {
	return models.MFeedConfig{
		Name:              "news",
		Kind:              models.FeedRss,
		Gate:              models.GateAlways,
		IntervalSeconds:   3600,
		TimeoutSeconds:    5,
		StaleAfterSeconds: 60,
		BroadcastType:     "news_update",
	}
}

func TestFetchNowBroadcastsDelta(t *testing.T) {
	src := &scriptedFetch{steps: [][]string{{"b", "a"}, {"c", "b", "a"}, {"c", "b", "a"}}}
	bc := &recordingBroadcaster{}
	p := NewPoller(testFeed(), src.fetch, ident, nil, bc, nil)

	n, err := p.FetchNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = p.FetchNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = p.FetchNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	msgs := bc.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, "news_update", msgs[1].Type)
	update := msgs[1].Data.(models.MFeedUpdate)
	assert.Equal(t, 1, update.Count)
	assert.Equal(t, []string{"c"}, update.Items)
	assert.NotEmpty(t, update.UpdateTime)
}

func TestFetchFailureLeavesCacheUntouched(t *testing.T) {
	boom := helpers.NewNetworkError("provider down", nil)
	src := &scriptedFetch{
		steps: [][]string{{"b", "a"}, nil},
		errs:  []error{nil, boom},
	}
	bc := &recordingBroadcaster{}
	obs := &recordingObserver{}
	p := NewPoller(testFeed(), src.fetch, ident, nil, bc, nil).WithObserver(obs)

	_, err := p.FetchNow(context.Background())
	require.NoError(t, err)

	_, err = p.FetchNow(context.Background())
	require.Error(t, err)
	var netErr *helpers.NetworkError
	assert.True(t, errors.As(err, &netErr))

	assert.Equal(t, []string{"b", "a"}, p.Snapshot())
	assert.Len(t, bc.all(), 1)
	assert.Equal(t, 1, obs.succeeded)
	assert.Equal(t, 1, obs.failed)
	assert.Contains(t, p.Health().LastError, "provider down")
}

func TestFetchPanicBecomesError(t *testing.T) {
	fetch := func(context.Context) ([]string, error) { panic("bad payload") }
	p := NewPoller(testFeed(), fetch, ident, nil, nil, nil)

	_, err := p.FetchNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad payload")
}

func TestFetchNowIsSingleFlight(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	fetch := func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []string{"a"}, nil
	}
	p := NewPoller(testFeed(), fetch, ident, nil, nil, nil)

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := p.FetchNow(context.Background())
			assert.NoError(t, err)
			results[i] = n
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, n := range results {
		assert.Equal(t, 1, n)
	}
}

func TestFetchTimeoutIsNetworkError(t *testing.T) {
	feed := testFeed()
	feed.TimeoutSeconds = 1
	fetch := func(ctx context.Context) ([]string, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p := NewPoller(feed, fetch, ident, nil, nil, nil)

	_, err := p.FetchNow(context.Background())
	var netErr *helpers.NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSinkFailureKeepsCache(t *testing.T) {
	src := &scriptedFetch{steps: [][]string{{"b", "a"}}}
	var gotDelta, gotSnap []string
	p := NewPoller(testFeed(), src.fetch, ident, nil, nil, nil).
		WithSink(func(_ context.Context, delta, snapshot []string) error {
			gotDelta, gotSnap = delta, snapshot
			return errors.New("disk full")
		})

	n, err := p.FetchNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"b", "a"}, gotDelta)
	assert.Equal(t, []string{"b", "a"}, gotSnap)
	assert.Equal(t, []string{"b", "a"}, p.Snapshot())
}

func TestReadResetsCountAndRefreshesWhenStale(t *testing.T) {
	src := &scriptedFetch{steps: [][]string{{"a"}, {"b", "a"}}}
	p := NewPoller(testFeed(), src.fetch, ident, nil, nil, nil)

	view := p.Read(context.Background(), true)
	assert.Equal(t, []string{"a"}, view.Items)
	assert.Equal(t, 1, view.Count)
	require.NotNil(t, view.LastUpdate)

	// Fresh cache: no refetch, counter already reset.
	view = p.Read(context.Background(), true)
	assert.Equal(t, 0, view.Count)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	// Age the cache past the stale window.
	p.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	view = p.Read(context.Background(), true)
	assert.Equal(t, []string{"b", "a"}, view.Items)
	assert.Equal(t, 1, view.Count)
}

func TestReadWithoutRefreshNeverFetches(t *testing.T) {
	src := &scriptedFetch{steps: [][]string{{"a"}}}
	p := NewPoller(testFeed(), src.fetch, ident, nil, nil, nil)

	view := p.Read(context.Background(), false)
	assert.Equal(t, []string{}, view.Items)
	assert.Nil(t, view.LastUpdate)
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.calls))
}

func TestTradingGateSkipsTicks(t *testing.T) {
	src := &scriptedFetch{steps: [][]string{{"a"}}}
	store := session.NewStore()
	p := NewPoller(testFeed(), src.fetch, ident, TradingGate(store), nil, nil)

	p.tick(context.Background())
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.calls))

	store.Swap(session.Trading)
	p.tick(context.Background())
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}

func TestStaleGateErrorSkipsTick(t *testing.T) {
	src := &scriptedFetch{steps: [][]string{{"a"}}}
	gate := StaleGate(func(context.Context) (bool, error) { return true, errors.New("db locked") })
	p := NewPoller(testFeed(), src.fetch, ident, gate, nil, nil)

	p.tick(context.Background())
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.calls))
}

func TestStartPollsImmediatelyAndStops(t *testing.T) {
	src := &scriptedFetch{steps: [][]string{{"a"}}}
	p := NewPoller(testFeed(), src.fetch, ident, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	p.Start(ctx, &wg)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&src.calls) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	wg.Wait()
}

func TestFetchRetriesWhenConfigured(t *testing.T) {
	feed := testFeed()
	feed.Retries = 2
	src := &scriptedFetch{
		steps: [][]string{nil, {"a"}},
		errs:  []error{errors.New("flaky")},
	}
	p := NewPoller(feed, src.fetch, ident, nil, nil, nil)

	n, err := p.FetchNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.calls))
}
