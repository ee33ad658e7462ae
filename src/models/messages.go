package models

import "time"

// MBroadcastMessage is the outbound frame shape.
type MBroadcastMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MFeedUpdate is the data of a feed delta broadcast.
type MFeedUpdate struct {
	Count      int         `json:"count"`
	Items      interface{} `json:"items"`
	UpdateTime string      `json:"updateTime"`
}

// MFeedView is what a read endpoint returns for a feed.
type MFeedView struct {
	Items      interface{} `json:"data"`
	Count      int         `json:"count"`
	LastUpdate *time.Time  `json:"lastUpdate"`
}

type MTradeStatus struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	Timestamp  int64  `json:"timestamp"`
	Datetime   string `json:"datetime"`
}

type MTradeStatusError struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
}

type MPagination struct {
	Page        int  `json:"page"`
	Limit       int  `json:"limit"`
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	HasNextPage bool `json:"hasNextPage"`
	HasPrevPage bool `json:"hasPrevPage"`
}

// MFeedHealth reports the last fetch outcome of one feed.
type MFeedHealth struct {
	Name          string     `json:"name"`
	LastFetchTime *time.Time `json:"lastFetchTime"`
	LastError     string     `json:"lastError,omitempty"`
	Items         int        `json:"items"`
}

// -----------------------------------------------------------------------------
// Inbound client requests, keyed by event type.
// -----------------------------------------------------------------------------

const (
	EventGetStatus           = "getStatus"
	EventTradeCalendarUpdate = "tradeCalendarUpdate"
	EventStockInfoUpdate     = "stockInfoUpdate"
	EventGetQuotes           = "getQuotes"

	StatusTypeTradeStatus = "tradeStatus"
)

// MStatusRequest asks for the current session state. Type selects the reply,
// currently only "tradeStatus".
type MStatusRequest struct {
	Type string `json:"type"`
}

// MUpdateRequest triggers a refresh of a reference feed.
type MUpdateRequest struct {
	Force bool `json:"force,omitempty"`
}

// MQuotesRequest asks for the cached quote table, optionally narrowed to codes.
type MQuotesRequest struct {
	Codes []string `json:"codes,omitempty"`
}
