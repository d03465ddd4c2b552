package client

// Module is a pluggable game-state component fed by the dispatcher.
type Module interface {
	// Name returns a unique key for this module (e.g. "session").
	Name() string
	// Init is called once when the module is registered on a client.
	// Store the *Client reference for later use.
	Init(c *Client)
	// HandleMessage is called for every decoded inbound message, in the
	// order the transport delivered them, always from the read loop.
	HandleMessage(msg *ServerMessage)
	// Reset is called when the owner is done with the client for good.
	// It is NOT called on reconnect; server state is re-requested instead.
	Reset()
}

// ConnectHandler is optionally implemented by modules that need to act as
// soon as the transport opens (e.g. re-request the authoritative snapshot).
type ConnectHandler interface {
	OnConnect()
}

// DisconnectHandler is optionally implemented by modules that track
// connection health. err is nil for a caller-requested close, non-nil for an
// abnormal loss, and wraps ErrUnreachable once the reconnect ceiling is hit.
type DisconnectHandler interface {
	OnDisconnect(err error)
}

// Handler is a lightweight message callback for one-off matching.
type Handler func(c *Client, msg *ServerMessage)
