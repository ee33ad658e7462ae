package messaging

import (
	"bytes"
	"encoding/json"
	"fmt"

	"market-pulse/src/interfaces"
	"market-pulse/src/logger"
	"market-pulse/src/models"
)

// pingFrame is the literal keep-alive frame. It is echoed back and never
// published.
const pingFrame = "ping"

// Bus is the slice of the event bus the router needs.
type Bus interface {
	Publish(eventType string, payload any)
	SubscriberCount(eventType string) int
}

// -----------------------------------------------------------------------------

// Message is a decoded client frame. Payload holds the typed request for
// known types and the raw JSON data otherwise.
type Message struct {
	Type    string
	Payload any
}

// Opaque is a frame that could not be decoded into a Message.
type Opaque struct {
	Frame string
	Err   error
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// decoders maps a message type to the decoder of its data field.
var decoders = map[string]func(json.RawMessage) (any, error){
	models.EventGetStatus:           decodeInto[models.MStatusRequest],
	models.EventTradeCalendarUpdate: decodeInto[models.MUpdateRequest],
	models.EventStockInfoUpdate:     decodeInto[models.MUpdateRequest],
	models.EventGetQuotes:           decodeInto[models.MQuotesRequest],
}

func decodeInto[T any](data json.RawMessage) (any, error) {
	var v T
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// -----------------------------------------------------------------------------

// Decode parses a `{type, data}` frame.
func Decode(frame []byte) (Message, *Opaque) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Message{}, &Opaque{Frame: string(frame), Err: err}
	}
	if env.Type == "" {
		return Message{}, &Opaque{Frame: string(frame), Err: fmt.Errorf("missing type")}
	}

	decode, known := decoders[env.Type]
	if !known {
		return Message{Type: env.Type, Payload: env.Data}, nil
	}
	payload, err := decode(env.Data)
	if err != nil {
		return Message{}, &Opaque{Frame: string(frame), Err: fmt.Errorf("%s data: %w", env.Type, err)}
	}
	return Message{Type: env.Type, Payload: payload}, nil
}

// -----------------------------------------------------------------------------

// Router turns inbound client frames into bus events.
type Router struct {
	bus    Bus
	logger *logger.Logger
}

func NewRouter(bus Bus, log *logger.Logger) *Router {
	if log == nil {
		log = logger.NewNop()
	}
	return &Router{bus: bus, logger: log}
}

// -----------------------------------------------------------------------------

// HandleFrame answers the keep-alive frame and publishes everything else.
// Only the exact literal counts as a ping.
func (r *Router) HandleFrame(conn interfaces.IConnection, frame []byte) {
	if string(frame) == pingFrame {
		if err := conn.Send([]byte(pingFrame)); err != nil {
			r.logger.Debug("Ping reply to %s failed: %v", conn.ID(), err)
		}
		return
	}

	msg, opaque := Decode(frame)
	if opaque != nil {
		r.logger.Warning("Unknown message from %s, not routed: %q (%v)", conn.ID(), opaque.Frame, opaque.Err)
		return
	}

	r.logger.Info("Received message type: %s", msg.Type)
	if r.bus.SubscriberCount(msg.Type) == 0 {
		r.logger.Warning("Unrecognized message type: %s", msg.Type)
		return
	}
	r.bus.Publish(msg.Type, msg.Payload)
}
