package wall

// Conn identifies the realtime channel a post originated from, so the hub
// can suppress self-notification without this package knowing about
// websockets. A nil origin means the post came from a channel-less surface
// (the REST API) and nothing is suppressed.
type Conn interface {
	ConnID() string
}

// Broadcaster pushes a posted message to the recipient's live channels.
// Implementations must not block and must not return delivery failures to
// the caller; drops are an observability concern only.
type Broadcaster interface {
	PushMessage(recipient, writer, content string, origin Conn)
}

// NopBroadcaster discards all pushes. Used in tests and when the realtime
// hub is not wired.
type NopBroadcaster struct{}

func (NopBroadcaster) PushMessage(recipient, writer, content string, origin Conn) {}
