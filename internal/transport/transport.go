package transport

// Transport defines a generic interface for dispatching analysis results
// or events. Implementations must be safe for use from the audio callback:
// Send never blocks for longer than a local lock and never panics.
type Transport interface {
	Send(data any) error
	Close() error
}
