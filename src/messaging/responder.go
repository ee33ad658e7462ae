package messaging

import (
	"time"

	"market-pulse/src/eventbus"
	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
	"market-pulse/src/session"
)

const statusFailedText = "获取交易状态失败"

// StatusSource recomputes the session state on demand.
type StatusSource interface {
	Current() (session.State, time.Time, error)
}

// -----------------------------------------------------------------------------

// SessionStatusResponder answers "getStatus" events by broadcasting the
// freshly computed session state.
type SessionStatusResponder struct {
	source      StatusSource
	broadcaster interfaces.IBroadcaster
	logger      *logger.Logger

	// now is replaceable in tests.
	now func() time.Time
}

func NewSessionStatusResponder(source StatusSource, broadcaster interfaces.IBroadcaster, log *logger.Logger) *SessionStatusResponder {
	if log == nil {
		log = logger.NewNop()
	}
	return &SessionStatusResponder{source: source, broadcaster: broadcaster, logger: log, now: time.Now}
}

// -----------------------------------------------------------------------------

// Register subscribes the responder and returns the unsubscribe func.
func (r *SessionStatusResponder) Register(bus *eventbus.EventBus) func() {
	return bus.Subscribe(models.EventGetStatus, r.Handle)
}

// -----------------------------------------------------------------------------

// Handle acts on status requests whose type is "tradeStatus" and ignores the
// rest.
func (r *SessionStatusResponder) Handle(payload any) error {
	var req models.MStatusRequest
	switch p := payload.(type) {
	case models.MStatusRequest:
		req = p
	case *models.MStatusRequest:
		if p != nil {
			req = *p
		}
	}
	if req.Type != models.StatusTypeTradeStatus {
		r.logger.Debug("Ignoring status request of type '%s'", req.Type)
		return nil
	}

	r.Respond()
	return nil
}

// -----------------------------------------------------------------------------

// Respond broadcasts the current state, or an error payload when it cannot
// be computed.
func (r *SessionStatusResponder) Respond() {
	state, at, err := r.source.Current()
	if err != nil {
		r.logger.Error("Trade status lookup failed: %v", err)
		r.broadcaster.Broadcast(models.MBroadcastMessage{
			Type: models.StatusTypeTradeStatus,
			Data: models.MTradeStatusError{Error: statusFailedText, Timestamp: r.now().UnixMilli()},
		})
		return
	}

	status := state.Status(at)
	sent := r.broadcaster.Broadcast(models.MBroadcastMessage{Type: models.StatusTypeTradeStatus, Data: status})
	r.logger.Info("Trade status sent to %d client(s): %s (%d)", sent, status.StatusText, status.Status)
}
