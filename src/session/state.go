package session

import (
	"sync"
	"time"

	"market-pulse/src/models"
)

// State is the trading-session phase.
type State int

const (
	ClosedHoliday    State = 0
	Trading          State = 1
	ClosedAfterHours State = 2
	PreOpen          State = 3
	LunchBreak       State = 4
)

var stateLabels = map[State]string{
	ClosedHoliday:    "休市",
	Trading:          "正在交易",
	ClosedAfterHours: "已收盘",
	PreOpen:          "未开盘",
	LunchBreak:       "午间休市",
}

// Label returns the human-readable status text.
func (s State) Label() string {
	if l, ok := stateLabels[s]; ok {
		return l
	}
	return "未知状态"
}

func (s State) String() string {
	switch s {
	case ClosedHoliday:
		return "CLOSED_HOLIDAY"
	case Trading:
		return "TRADING"
	case ClosedAfterHours:
		return "CLOSED_AFTER_HOURS"
	case PreOpen:
		return "PRE_OPEN"
	case LunchBreak:
		return "LUNCH_BREAK"
	default:
		return "UNKNOWN"
	}
}

// Status renders the state observed at t as the wire payload.
func (s State) Status(t time.Time) models.MTradeStatus {
	return models.MTradeStatus{
		Status:     int(s),
		StatusText: s.Label(),
		Timestamp:  t.UnixMilli(),
		Datetime:   t.Format("2006/1/2 15:04:05"),
	}
}

// -----------------------------------------------------------------------------

// Session windows as minutes since local midnight. Each window includes its
// start and excludes its end.
const (
	morningOpen    = 9*60 + 30
	morningClose   = 11*60 + 30
	afternoonOpen  = 13 * 60
	afternoonClose = 15 * 60
)

// Classify maps a wall-clock instant, already in exchange-local time, to a
// session state.
func Classify(now time.Time, isTradingDay bool) State {
	if !isTradingDay {
		return ClosedHoliday
	}

	// Sub-minute precision matters only at the boundaries, where the start
	// is inclusive, so whole minutes are enough.
	minutes := now.Hour()*60 + now.Minute()
	switch {
	case minutes < morningOpen:
		return PreOpen
	case minutes < morningClose:
		return Trading
	case minutes < afternoonOpen:
		return LunchBreak
	case minutes < afternoonClose:
		return Trading
	default:
		return ClosedAfterHours
	}
}

// -----------------------------------------------------------------------------

// Store holds the process-wide session state. The clock is its only writer.
type Store struct {
	mu    sync.RWMutex
	state State
}

func NewStore() *Store {
	return &Store{state: ClosedHoliday}
}

func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Swap stores next and returns the previous state.
func (s *Store) Swap(next State) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state = next
	return prev
}
