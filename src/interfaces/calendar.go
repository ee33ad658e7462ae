package interfaces

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// ICalendar answers whether a date is a trading day.
// -----------------------------------------------------------------------------

type ICalendar interface {
	// IsTradingDay reports whether the exchange-local date of t is a session day.
	IsTradingDay(t time.Time) (bool, error)
}

// -----------------------------------------------------------------------------
// ITradeDayStore is the persisted side of the calendar.
// -----------------------------------------------------------------------------

type ITradeDayStore interface {
	LoadTradeDays(ctx context.Context) ([]string, error)
}
