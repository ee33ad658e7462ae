package datasource

import (
	"context"

	"market-pulse/src/session"
)

// Gate decides whether a scheduled tick should fetch.
type Gate interface {
	Allow(ctx context.Context) (bool, error)
}

// -----------------------------------------------------------------------------

// GateFunc adapts a plain function to Gate.
type GateFunc func(ctx context.Context) (bool, error)

func (f GateFunc) Allow(ctx context.Context) (bool, error) { return f(ctx) }

// -----------------------------------------------------------------------------

// AlwaysGate lets every tick through.
func AlwaysGate() Gate {
	return GateFunc(func(context.Context) (bool, error) { return true, nil })
}

// TradingGate lets a tick through only while the session is TRADING.
func TradingGate(store *session.Store) Gate {
	return GateFunc(func(context.Context) (bool, error) {
		return store.Get() == session.Trading, nil
	})
}

// StaleGate lets a tick through when isStale reports true. The poller treats
// an error as "not stale".
func StaleGate(isStale func(ctx context.Context) (bool, error)) Gate {
	return GateFunc(isStale)
}
