package models

import "time"

// -----------------------------------------------------------------------------
// Feed items, one per provider endpoint. JSON tags keep the provider's field
// names where clients already consume them.
// -----------------------------------------------------------------------------

// MClsNews is one CLS telegraph item after normalization.
type MClsNews struct {
	Title       string `json:"标题"`
	Content     string `json:"内容"`
	PublishDate string `json:"发布日期"`
	PublishTime int64  `json:"发布时间"` // unix millis, exchange timezone
}

type MSinaNews struct {
	Time    string `json:"时间"`
	Content string `json:"内容"`
}

// MMarketActivity is one intraday unusual-move record.
type MMarketActivity struct {
	Time        string `json:"time"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Sector      string `json:"sector"`
	RelatedInfo string `json:"relatedInfo"`
	DataDate    string `json:"dataDate"`
}

type MMarketEffect struct {
	Rise           float64   `json:"rise"`
	LimitUp        float64   `json:"limitUp"`
	RealLimitUp    float64   `json:"realLimitUp"`
	StLimitUp      float64   `json:"stLimitUp"`
	Fall           float64   `json:"fall"`
	LimitDown      float64   `json:"limitDown"`
	RealLimitDown  float64   `json:"realLimitDown"`
	StLimitDown    float64   `json:"stLimitDown"`
	Flat           float64   `json:"flat"`
	Suspended      float64   `json:"suspended"`
	Activity       string    `json:"activity"`
	StatisticsDate string    `json:"statisticsDate"`
	CreatedAt      time.Time `json:"createdAt"`
}

// MQuote is one row of the A-share spot table.
type MQuote struct {
	Code        string    `json:"代码"`
	Name        string    `json:"名称"`
	Latest      FlexFloat `json:"最新价"`
	ChangePct   FlexFloat `json:"涨跌幅"`
	Change      FlexFloat `json:"涨跌额"`
	Volume      FlexFloat `json:"成交量"`
	Turnover    FlexFloat `json:"成交额"`
	Amplitude   FlexFloat `json:"振幅"`
	High        FlexFloat `json:"最高"`
	Low         FlexFloat `json:"最低"`
	Open        FlexFloat `json:"今开"`
	PrevClose   FlexFloat `json:"昨收"`
	VolumeRatio FlexFloat `json:"量比"`
}

// MQuoteSnapshot is a whole spot table keyed by a content digest, so an
// unchanged table produces no delta.
type MQuoteSnapshot struct {
	Digest    string    `json:"digest"`
	FetchedAt time.Time `json:"fetchedAt"`
	Quotes    []MQuote  `json:"quotes"`
}

type MTradeDay struct {
	TradeDate string `json:"trade_date"` // YYYY-MM-DD
}

type MStockInfo struct {
	Symbol                 string    `json:"symbol"`
	Name                   string    `json:"name"`
	TotalMarketValue       float64   `json:"totalMarketValue"`
	CirculationMarketValue float64   `json:"circulationMarketValue"`
	YtdChange              float64   `json:"ytdChange"`
	Prefix                 string    `json:"prefix"`
	UpdateTime             time.Time `json:"updateTime"`
}

type MRssItem struct {
	GUID      string     `json:"guid"`
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Summary   string     `json:"summary"`
	Published *time.Time `json:"published,omitempty"`
}
