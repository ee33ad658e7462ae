package messaging

import (
	"context"
	"fmt"
	"time"

	"market-pulse/src/data_source/akshare"
	"market-pulse/src/eventbus"
	"market-pulse/src/helpers"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

// QuotesSnapshotType is the broadcast type of a getQuotes reply.
const QuotesSnapshotType = "quotes_snapshot"

// FeedLookup finds a poller by feed name.
type FeedLookup interface {
	GetFeed(name string) (interfaces.IFeedPoller, error)
}

// QuoteSource exposes the cached quote snapshots, newest first.
type QuoteSource interface {
	Snapshot() []models.MQuoteSnapshot
}

// -----------------------------------------------------------------------------

// ActionHandlers serve the client requests that trigger work: reference feed
// refreshes and quote snapshots. Refreshes run in their own goroutine so the
// publishing read loop never waits on I/O.
type ActionHandlers struct {
	ctx         context.Context
	feeds       FeedLookup
	quotes      QuoteSource
	broadcaster interfaces.IBroadcaster
	logger      *logger.Logger

	// done, when set, receives the feed name after each triggered refresh.
	done chan<- string
}

// NewActionHandlers binds the handlers. ctx bounds the triggered refreshes.
func NewActionHandlers(ctx context.Context, feeds FeedLookup, quotes QuoteSource, broadcaster interfaces.IBroadcaster, log *logger.Logger) *ActionHandlers {
	if log == nil {
		log = logger.NewNop()
	}
	return &ActionHandlers{ctx: ctx, feeds: feeds, quotes: quotes, broadcaster: broadcaster, logger: log}
}

// -----------------------------------------------------------------------------

// Register subscribes every handler and returns one func that removes them.
func (h *ActionHandlers) Register(bus *eventbus.EventBus) func() {
	unsubs := []func(){
		bus.Subscribe(models.EventTradeCalendarUpdate, h.onTradeCalendarUpdate),
		bus.Subscribe(models.EventStockInfoUpdate, h.onStockInfoUpdate),
	}
	if h.quotes != nil {
		unsubs = append(unsubs, bus.Subscribe(models.EventGetQuotes, h.onGetQuotes))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// -----------------------------------------------------------------------------

func (h *ActionHandlers) onTradeCalendarUpdate(any) error {
	return h.refresh(models.FeedTradeCalendar)
}

func (h *ActionHandlers) onStockInfoUpdate(any) error {
	return h.refresh(models.FeedStockInfo)
}

// refresh starts a FetchNow of the named feed in the background.
func (h *ActionHandlers) refresh(name string) error {
	feed, err := h.feeds.GetFeed(name)
	if err != nil {
		return helpers.NewHandlerError(fmt.Sprintf("refresh %s", name), err)
	}

	h.logger.Info("Refresh of %s requested", name)
	helpers.Go(h.logger, "refresh-"+name, func() {
		defer h.signal(name)

		n, err := feed.FetchNow(h.ctx)
		if err != nil {
			h.logger.Error("Refresh of %s failed: %v", name, err)
			return
		}
		h.logger.Info("Refresh of %s done: %d new item(s)", name, n)
	})
	return nil
}

func (h *ActionHandlers) signal(name string) {
	if h.done != nil {
		h.done <- name
	}
}

// -----------------------------------------------------------------------------

// onGetQuotes broadcasts the newest cached quote table, narrowed to the
// requested codes.
func (h *ActionHandlers) onGetQuotes(payload any) error {
	req, _ := payload.(models.MQuotesRequest)

	update := models.MFeedUpdate{Items: []models.MQuote{}}
	if snaps := h.quotes.Snapshot(); len(snaps) > 0 {
		quotes := akshare.FilterQuotes(snaps[0].Quotes, req.Codes)
		update = models.MFeedUpdate{
			Count:      len(quotes),
			Items:      quotes,
			UpdateTime: snaps[0].FetchedAt.Format(time.RFC3339),
		}
	}

	sent := h.broadcaster.Broadcast(models.MBroadcastMessage{Type: QuotesSnapshotType, Data: update})
	h.logger.Debug("Quotes snapshot (%d rows) sent to %d client(s)", update.Count, sent)
	return nil
}
