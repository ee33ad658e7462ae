package config

import "market-pulse/src/models"

// Default values for optional configuration fields.
const (
	DefaultName           = "market-pulse"
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 3000
	DefaultLogLevel       = "INFO"
	DefaultTimezone       = "Asia/Shanghai"
	DefaultDBType         = "sqlite"
	DefaultDBPath         = "market_pulse.db"
	DefaultRequestTimeout = 30
	DefaultRetryDelayMs   = 1000
	DefaultUserAgent      = "market-pulse/1.0"
	DefaultProviderURL    = "http://127.0.0.1:8080/api/public"
	DefaultTickMillis     = 1000
	DefaultCalendar       = "store"
	DefaultExchangeMIC    = "xshg"
)

// DefaultActivitySectors are the unusual-move boards polled by market_activity.
var DefaultActivitySectors = []string{
	"火箭发射", "快速反弹", "大笔买入", "60日新高", "封涨停板",
	"高台跳水", "加速下跌", "大笔卖出", "60日新低", "封跌停板",
}

// DefaultExcludedTitles drops promotional CLS items.
var DefaultExcludedTitles = []string{"盘中宝", "电报解读", "掘金行业龙头"}

var knownKinds = map[string]bool{
	models.FeedClsNews:        true,
	models.FeedSinaNews:       true,
	models.FeedMarketActivity: true,
	models.FeedMarketEffect:   true,
	models.FeedQuotes:         true,
	models.FeedTradeCalendar:  true,
	models.FeedStockInfo:      true,
	models.FeedRss:            true,
}

// DefaultFeeds returns the stock feed table.
func DefaultFeeds() []models.MFeedConfig {
	return []models.MFeedConfig{
		{
			Name: models.FeedClsNews, Kind: models.FeedClsNews, Gate: models.GateAlways,
			IntervalSeconds: 120, TimeoutSeconds: 10, StaleAfterSeconds: 300,
			BroadcastType: "cls_news_update", Path: "stock_info_global_cls",
			Params: map[string]string{"symbol": "全部"},
		},
		{
			Name: models.FeedSinaNews, Kind: models.FeedSinaNews, Gate: models.GateAlways,
			IntervalSeconds: 120, TimeoutSeconds: 10, StaleAfterSeconds: 300,
			BroadcastType: "sina_news_update", Path: "stock_info_global_sina",
		},
		{
			Name: models.FeedMarketActivity, Kind: models.FeedMarketActivity, Gate: models.GateTrading,
			IntervalSeconds: 30, TimeoutSeconds: 10, MaxItems: 2000,
			BroadcastType: "market_activity_update", Path: "stock_changes_em",
		},
		{
			Name: models.FeedMarketEffect, Kind: models.FeedMarketEffect, Gate: models.GateTrading,
			IntervalSeconds: 180, TimeoutSeconds: 10, MaxItems: 50,
			BroadcastType: "market_effect_update", Path: "stock_market_activity_legu",
		},
		{
			Name: models.FeedQuotes, Kind: models.FeedQuotes, Gate: models.GateTrading,
			IntervalSeconds: 60, TimeoutSeconds: 30, MaxItems: 1,
			BroadcastType: "quotes_update", Path: "stock_zh_a_spot_em",
		},
		{
			Name: models.FeedTradeCalendar, Kind: models.FeedTradeCalendar, Gate: models.GateStale,
			IntervalSeconds: 3600, TimeoutSeconds: 30,
			Path: "tool_trade_date_hist_sina",
		},
		{
			Name: models.FeedStockInfo, Kind: models.FeedStockInfo, Gate: models.GateStale,
			IntervalSeconds: 21600, TimeoutSeconds: 180, Retries: 3,
			Path: "stock_zh_a_spot_em",
		},
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{MConfig: &models.MConfig{}}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}

	// Storage defaults
	if c.Storage.DBType == "" {
		c.Storage.DBType = DefaultDBType
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		c.Storage.DBPath = DefaultDBPath
	}

	// Network defaults
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = DefaultRequestTimeout
	}
	if c.Network.RetryDelayMs == 0 {
		c.Network.RetryDelayMs = DefaultRetryDelayMs
	}
	if c.Network.UserAgent == "" {
		c.Network.UserAgent = DefaultUserAgent
	}
	if c.Provider.BaseURL == "" {
		c.Provider.BaseURL = DefaultProviderURL
	}

	// Session defaults
	if c.Session.TickMillis == 0 {
		c.Session.TickMillis = DefaultTickMillis
	}
	if c.Session.Calendar == "" {
		c.Session.Calendar = DefaultCalendar
	}
	if c.Session.ExchangeMIC == "" {
		c.Session.ExchangeMIC = DefaultExchangeMIC
	}

	// Feeds: none configured means the full default table
	if len(c.Feeds) == 0 {
		c.Feeds = DefaultFeeds()
	}
	for i := range c.Feeds {
		applyFeedDefaults(&c.Feeds[i])
	}
}

func applyFeedDefaults(f *models.MFeedConfig) {
	if f.Kind == "" {
		f.Kind = f.Name
	}
	if f.Gate == "" {
		f.Gate = models.GateTrading
	}
	if f.IntervalSeconds == 0 {
		f.IntervalSeconds = 60
	}
	if f.TimeoutSeconds == 0 {
		f.TimeoutSeconds = 10
	}
	if f.StaleAfterSeconds == 0 {
		f.StaleAfterSeconds = 5 * 60
	}
	switch f.Kind {
	case models.FeedMarketActivity:
		if len(f.Symbols) == 0 {
			f.Symbols = append([]string(nil), DefaultActivitySectors...)
		}
	case models.FeedClsNews:
		if f.ExcludedTitles == nil {
			f.ExcludedTitles = append([]string(nil), DefaultExcludedTitles...)
		}
	case models.FeedRss:
		if f.BroadcastType == "" {
			f.BroadcastType = "rss_news_update"
		}
	}
}
