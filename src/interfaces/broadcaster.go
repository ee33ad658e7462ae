package interfaces

// -----------------------------------------------------------------------------
// IBroadcaster pushes one message to every live client.
// -----------------------------------------------------------------------------

type IBroadcaster interface {
	// Broadcast serializes message once and returns how many connections
	// accepted it.
	Broadcast(message interface{}) int
}
