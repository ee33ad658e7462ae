package utils

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"

	"github.com/scmhub/calendar"
)

// ErrCalendarNotLoaded is returned by StoreCalendar before any rows exist.
var ErrCalendarNotLoaded = errors.New("trade calendar not loaded")

const dateLayout = "2006-01-02"

// -----------------------------------------------------------------------------

// ExchangeCalendar answers trading-day queries from the scmhub/calendar
// holiday tables.
type ExchangeCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

// NewExchangeCalendar loads the calendar for a MIC code (e.g. "xshg"). When the
// MIC is unknown it degrades to a Monday-Friday calendar in loc.
func NewExchangeCalendar(mic string, loc *time.Location, log *logger.Logger) *ExchangeCalendar {
	cal := calendar.GetCalendar(strings.ToLower(mic))
	if cal == nil {
		if log != nil {
			log.Warning("No exchange calendar for MIC '%s'. Using weekday fallback.", mic)
		}
		if loc == nil {
			loc = time.UTC
		}
		return &ExchangeCalendar{Fallback: true, Timezone: loc}
	}

	tz := cal.Loc
	if tz == nil {
		tz = loc
	}
	return &ExchangeCalendar{Calendar: cal, Timezone: tz}
}

// -----------------------------------------------------------------------------

func (ec *ExchangeCalendar) IsTradingDay(date time.Time) (bool, error) {
	if ec.Timezone != nil {
		date = date.In(ec.Timezone)
	}

	if ec.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday, nil
	}
	return ec.Calendar.IsBusinessDay(date), nil
}

// -----------------------------------------------------------------------------

// StoreCalendar answers trading-day queries from the persisted trade calendar.
// The rows are held in memory and refreshed with Reload after each calendar
// fetch. Before the first successful load it defers to Fallback, or fails
// when there is none.
type StoreCalendar struct {
	mu       sync.RWMutex
	days     map[string]struct{}
	latest   string
	loaded   bool
	source   interfaces.ITradeDayStore
	location *time.Location
	Fallback interfaces.ICalendar
	logger   *logger.Logger
}

// -----------------------------------------------------------------------------

func NewStoreCalendar(source interfaces.ITradeDayStore, loc *time.Location, log *logger.Logger) *StoreCalendar {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &StoreCalendar{
		days:     make(map[string]struct{}),
		source:   source,
		location: loc,
		logger:   log,
	}
}

// -----------------------------------------------------------------------------

// Reload replaces the in-memory set with the store's rows.
func (sc *StoreCalendar) Reload(ctx context.Context) error {
	dates, err := sc.source.LoadTradeDays(ctx)
	if err != nil {
		return err
	}
	sc.Set(dates)
	sc.logger.Info("Trade calendar loaded: %d days", len(dates))
	return nil
}

// -----------------------------------------------------------------------------

// Set replaces the in-memory set. An empty list leaves the calendar unloaded.
func (sc *StoreCalendar) Set(dates []string) {
	days := make(map[string]struct{}, len(dates))
	latest := ""
	for _, d := range dates {
		d = normalizeDate(d)
		days[d] = struct{}{}
		if d > latest {
			latest = d
		}
	}

	sc.mu.Lock()
	sc.days = days
	sc.latest = latest
	sc.loaded = len(days) > 0
	sc.mu.Unlock()
}

// -----------------------------------------------------------------------------

// IsTradingDay matches the local date of t in the exchange timezone.
func (sc *StoreCalendar) IsTradingDay(t time.Time) (bool, error) {
	sc.mu.RLock()
	loaded := sc.loaded
	_, ok := sc.days[t.In(sc.location).Format(dateLayout)]
	sc.mu.RUnlock()

	if !loaded {
		if sc.Fallback != nil {
			return sc.Fallback.IsTradingDay(t)
		}
		return false, ErrCalendarNotLoaded
	}
	return ok, nil
}

// -----------------------------------------------------------------------------

// Latest returns the newest known trade date, or "" when unloaded.
func (sc *StoreCalendar) Latest() string {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.latest
}

// -----------------------------------------------------------------------------

func normalizeDate(d string) string {
	if i := strings.IndexByte(d, 'T'); i > 0 {
		d = d[:i]
	}
	return strings.TrimSpace(d)
}
