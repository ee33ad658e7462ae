package datasource

import (
	"context"
	"fmt"
	"time"

	"market-pulse/src/config"
	"market-pulse/src/data_source/akshare"
	"market-pulse/src/data_source/rss"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
	"market-pulse/src/session"
	"market-pulse/src/utils"
)

// calendarHorizon is how far ahead the stored trade calendar must reach
// before it counts as fresh.
const calendarHorizon = 30 * 24 * time.Hour

// Deps are the collaborators shared by every feed.
type Deps struct {
	Config      *config.Config
	Network     interfaces.INetworkManager
	DB          interfaces.IDatabase
	Calendar    *utils.StoreCalendar
	Session     *session.Store
	Broadcaster interfaces.IBroadcaster
	Observer    Observer
	Location    *time.Location
	Logger      *logger.Logger
}

// Feeds is the built set of pollers. Typed handles are kept for the feeds
// other components read directly.
type Feeds struct {
	*FeedManager
	Quotes *Poller[models.MQuoteSnapshot]
}

// -----------------------------------------------------------------------------

// Build creates one poller per enabled feed in the configuration.
func Build(d Deps) (*Feeds, error) {
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	if d.Session == nil {
		d.Session = session.NewStore()
	}

	client := akshare.NewClient(d.Config.Provider.BaseURL, d.Network, d.Location, d.Logger.Named("akshare"))
	out := &Feeds{FeedManager: NewFeedManager(nil, d.Logger.Named("feeds"))}

	for _, feed := range d.Config.Feeds {
		if feed.Disabled {
			d.Logger.Info("Feed %s disabled", feed.Name)
			continue
		}

		var p interfaces.IFeedPoller
		switch feed.Kind {
		case models.FeedClsNews:
			p = newFeed(d, feed, func(ctx context.Context) ([]models.MClsNews, error) {
				return client.FetchClsNews(ctx, feed)
			}, akshare.ClsNewsKey, nil)

		case models.FeedSinaNews:
			p = newFeed(d, feed, func(ctx context.Context) ([]models.MSinaNews, error) {
				return client.FetchSinaNews(ctx, feed)
			}, akshare.SinaNewsKey, nil)

		case models.FeedMarketActivity:
			p = newFeed(d, feed, func(ctx context.Context) ([]models.MMarketActivity, error) {
				return client.FetchMarketActivity(ctx, feed)
			}, akshare.MarketActivityKey, nil).WithSink(d.saveMarketActivity)

		case models.FeedMarketEffect:
			p = newFeed(d, feed, func(ctx context.Context) ([]models.MMarketEffect, error) {
				return client.FetchMarketEffect(ctx, feed)
			}, akshare.MarketEffectKey, nil).WithSink(d.saveMarketEffect)

		case models.FeedQuotes:
			out.Quotes = newFeed(d, feed, func(ctx context.Context) ([]models.MQuoteSnapshot, error) {
				return client.FetchQuotes(ctx, feed)
			}, akshare.QuoteSnapshotKey, nil)
			p = out.Quotes

		case models.FeedTradeCalendar:
			p = newFeed(d, feed, func(ctx context.Context) ([]models.MTradeDay, error) {
				return client.FetchTradeCalendar(ctx, feed)
			}, akshare.TradeDayKey, d.calendarStale).WithSink(d.saveTradeCalendar)

		case models.FeedStockInfo:
			p = newFeed(d, feed, func(ctx context.Context) ([]models.MStockInfo, error) {
				return client.FetchStockInfo(ctx, feed)
			}, akshare.StockInfoKey, d.stockInfoStale).WithSink(d.saveStockInfo)

		case models.FeedRss:
			src := rss.NewSource(feed.URL, d.Network)
			p = newFeed(d, feed, src.Fetch, rss.ItemKey, nil)

		default:
			return nil, fmt.Errorf("feed %s: unknown kind %s", feed.Name, feed.Kind)
		}
		if err := out.AddFeed(p); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// -----------------------------------------------------------------------------

// newFeed builds a poller with the gate the feed config asks for. stale is
// only used by the "stale" gate; without one the feed always polls.
func newFeed[T any](d Deps, feed models.MFeedConfig, fetch FetchFunc[T], key func(T) string, stale func(ctx context.Context) (bool, error)) *Poller[T] {
	var gate Gate
	switch feed.Gate {
	case models.GateTrading:
		gate = TradingGate(d.Session)
	case models.GateStale:
		if stale != nil {
			gate = StaleGate(stale)
		} else {
			gate = AlwaysGate()
		}
	default:
		gate = AlwaysGate()
	}

	p := NewPoller(feed, fetch, key, gate, d.Broadcaster, d.Logger.Named(feed.Name))
	if d.Observer != nil {
		p.WithObserver(d.Observer)
	}
	return p
}

// -----------------------------------------------------------------------------
// Sinks
// -----------------------------------------------------------------------------

func (d Deps) saveMarketActivity(ctx context.Context, _, snapshot []models.MMarketActivity) error {
	if d.DB == nil {
		return nil
	}
	saved, dup, err := d.DB.SaveMarketActivities(ctx, snapshot)
	if err != nil {
		return err
	}
	d.Logger.Info("Market activity saved: %d new, %d duplicate", saved, dup)
	return nil
}

func (d Deps) saveMarketEffect(ctx context.Context, delta, _ []models.MMarketEffect) error {
	if d.DB == nil {
		return nil
	}
	for _, e := range delta {
		if err := d.DB.SaveMarketEffect(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (d Deps) saveTradeCalendar(ctx context.Context, _, snapshot []models.MTradeDay) error {
	if d.DB == nil {
		return nil
	}
	if err := d.DB.SaveTradeCalendar(ctx, snapshot); err != nil {
		return err
	}
	d.Logger.Info("Trade calendar saved: %d days", len(snapshot))
	if d.Calendar != nil {
		return d.Calendar.Reload(ctx)
	}
	return nil
}

func (d Deps) saveStockInfo(ctx context.Context, _, snapshot []models.MStockInfo) error {
	if d.DB == nil {
		return nil
	}
	n, err := d.DB.SaveStockInfo(ctx, snapshot)
	if err != nil {
		return err
	}
	d.Logger.Info("Stock info saved: %d rows", n)
	return nil
}

// -----------------------------------------------------------------------------
// Staleness checks
// -----------------------------------------------------------------------------

// calendarStale reports whether the stored calendar is empty or ends less
// than calendarHorizon from today.
func (d Deps) calendarStale(ctx context.Context) (bool, error) {
	latest := ""
	if d.Calendar != nil {
		latest = d.Calendar.Latest()
	} else if d.DB != nil {
		days, err := d.DB.LoadTradeDays(ctx)
		if err != nil {
			return false, err
		}
		for _, day := range days {
			if day > latest {
				latest = day
			}
		}
	}
	if latest == "" {
		return true, nil
	}

	horizon := time.Now().In(d.Location).Add(calendarHorizon).Format("2006-01-02")
	return latest < horizon, nil
}

// stockInfoStale reports whether no stock info has been stored yet.
func (d Deps) stockInfoStale(ctx context.Context) (bool, error) {
	if d.DB == nil {
		return true, nil
	}
	n, err := d.DB.CountStockInfo(ctx)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
