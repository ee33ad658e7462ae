package interfaces

// -----------------------------------------------------------------------------
// IConnection is one live client channel.
// -----------------------------------------------------------------------------

type IConnection interface {
	ID() string

	// -----------------------------------------------------------------------------

	// IsOpen reports whether the transport can still accept frames.
	IsOpen() bool

	// -----------------------------------------------------------------------------

	// Send queues one text frame. It fails once the connection is closed.
	Send(frame []byte) error
}

// -----------------------------------------------------------------------------
// IFrameHandler receives every inbound text frame.
// -----------------------------------------------------------------------------

type IFrameHandler interface {
	HandleFrame(conn IConnection, frame []byte)
}
