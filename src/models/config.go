package models

import "time"

// MConfig Structure
type MConfig struct {
	Name     string          `yaml:"name"`
	Host     string          `yaml:"host"`
	Port     int             `yaml:"port"`
	LogLevel string          `yaml:"log_level"`
	GrpcHost string          `yaml:"grpc_host"`
	GrpcPort int             `yaml:"grpc_port"`
	Timezone string          `yaml:"timezone"`
	Storage  MStorageConfig  `yaml:"storage"`
	Network  MNetworkConfig  `yaml:"network"`
	Provider MProviderConfig `yaml:"provider"`
	Session  MSessionConfig  `yaml:"session"`
	Feeds    []MFeedConfig   `yaml:"feeds"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

type MNetworkConfig struct {
	Enabled        bool     `yaml:"enabled"` // route provider calls through Proxies
	Proxies        []string `yaml:"proxies"`
	RequestTimeout int      `yaml:"timeout"`
	MaxRetries     int      `yaml:"retries"`
	RetryDelayMs   int      `yaml:"retry_delay_ms"`
	UserAgent      string   `yaml:"user_agent"`
}

type MProviderConfig struct {
	BaseURL string `yaml:"base_url"`
}

type MSessionConfig struct {
	TickMillis  int    `yaml:"tick_ms"`
	Calendar    string `yaml:"calendar"` // "store" or "exchange"
	ExchangeMIC string `yaml:"exchange_mic"`
}

// MFeedConfig describes one polled feed.
type MFeedConfig struct {
	Name              string            `yaml:"name"`
	Kind              string            `yaml:"kind"`
	Disabled          bool              `yaml:"disabled"`
	Gate              string            `yaml:"gate"` // "trading", "always" or "stale"
	IntervalSeconds   int               `yaml:"interval_seconds"`
	TimeoutSeconds    int               `yaml:"timeout_seconds"`
	StaleAfterSeconds int               `yaml:"stale_after_seconds"`
	MaxItems          int               `yaml:"max_items"`
	Retries           int               `yaml:"retries"`
	BroadcastType     string            `yaml:"broadcast_type"`
	Path              string            `yaml:"path"`
	Params            map[string]string `yaml:"params"`
	Symbols           []string          `yaml:"symbols"`
	ExcludedTitles    []string          `yaml:"excluded_titles"`
	URL               string            `yaml:"url"`
}

func (f MFeedConfig) Interval() time.Duration {
	return time.Duration(f.IntervalSeconds) * time.Second
}

func (f MFeedConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

func (f MFeedConfig) StaleAfter() time.Duration {
	return time.Duration(f.StaleAfterSeconds) * time.Second
}

// Feed kinds.
const (
	FeedClsNews        = "cls_news"
	FeedSinaNews       = "sina_news"
	FeedMarketActivity = "market_activity"
	FeedMarketEffect   = "market_effect"
	FeedQuotes         = "quotes"
	FeedTradeCalendar  = "trade_calendar"
	FeedStockInfo      = "stock_info"
	FeedRss            = "rss"
)

// Feed gates.
const (
	GateTrading = "trading"
	GateAlways  = "always"
	GateStale   = "stale"
)
