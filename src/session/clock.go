package session

import (
	"context"
	"sync"
	"time"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

// Publisher is the slice of the event bus the clock needs.
type Publisher interface {
	Publish(eventType string, payload any)
}

// -----------------------------------------------------------------------------

// Clock recomputes the session state on a fixed tick and announces changes
// with a bare "getStatus" event. Subscribers re-query the state.
type Clock struct {
	calendar interfaces.ICalendar
	bus      Publisher
	store    *Store
	location *time.Location
	tick     time.Duration
	logger   *logger.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// -----------------------------------------------------------------------------

func NewClock(cal interfaces.ICalendar, bus Publisher, store *Store, loc *time.Location, tick time.Duration, log *logger.Logger) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	if tick <= 0 {
		tick = time.Second
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Clock{
		calendar: cal,
		bus:      bus,
		store:    store,
		location: loc,
		tick:     tick,
		logger:   log,
		now:      time.Now,
	}
}

// -----------------------------------------------------------------------------

// Evaluate computes the state for t without touching the store. A calendar
// failure is returned together with ClosedHoliday.
func (c *Clock) Evaluate(t time.Time) (State, error) {
	local := t.In(c.location)
	trading, err := c.calendar.IsTradingDay(local)
	if err != nil {
		return ClosedHoliday, err
	}
	return Classify(local, trading), nil
}

// -----------------------------------------------------------------------------

// Current evaluates the state at the clock's current time.
func (c *Clock) Current() (State, time.Time, error) {
	now := c.now()
	s, err := c.Evaluate(now)
	return s, now, err
}

// -----------------------------------------------------------------------------

// Tick recomputes the state once, stores it and publishes on change. It
// reports whether the state changed.
func (c *Clock) Tick() bool {
	next, err := c.Evaluate(c.now())
	if err != nil {
		c.logger.Error("Calendar lookup failed, treating today as non-trading: %v", err)
	}

	prev := c.store.Swap(next)
	if prev == next {
		return false
	}

	c.logger.Info("Session state %s -> %s", prev, next)
	c.bus.Publish(models.EventGetStatus, models.MStatusRequest{Type: models.StatusTypeTradeStatus})
	return true
}

// -----------------------------------------------------------------------------

// Start evaluates immediately and then on every tick until ctx is done.
func (c *Clock) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		c.Tick()
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Session clock stopped")
				return
			case <-ticker.C:
				c.Tick()
			}
		}
	}()
}

// -----------------------------------------------------------------------------

func (c *Clock) Store() *Store { return c.store }

func (c *Clock) Location() *time.Location { return c.location }
