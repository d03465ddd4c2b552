package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ConnState is the transport connection's lifecycle status.
type ConnState int

const (
	StateIdle ConnState = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	writeWait = 10 * time.Second
	// pongWait is the transport idle-timeout: a connection that delivers
	// nothing for this long is treated as dead.
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

var (
	// ErrNotConnected is returned by the outbound path when the transport is
	// not open. Nothing is queued; the caller re-issues once reconnected.
	ErrNotConnected = errors.New("not connected")
	// ErrUnreachable wraps the terminal error surfaced once the reconnect
	// attempt ceiling is reached.
	ErrUnreachable = errors.New("server unreachable")
	// ErrTooManyRequests is returned when the intent rate limit is exceeded.
	ErrTooManyRequests = errors.New("too many requests")
)

// Client keeps a websocket connection to an UNO server alive, decodes inbound
// frames and routes them to registered modules. It never interprets game
// semantics itself; that is the session module's job.
type Client struct {
	URL        string
	PlayerID   string
	PlayerName string

	// MaxReconnectAttempts bounds consecutive failed dials before the client
	// gives up and reports ErrUnreachable.
	MaxReconnectAttempts int
	// ReconnectDelay is the backoff base; the delay before attempt n+1 is
	// ReconnectDelay * (n+1).
	ReconnectDelay time.Duration

	Logger zerolog.Logger

	limiter *rate.Limiter

	mu         sync.Mutex
	conn       *websocket.Conn
	state      ConnState
	generation int // bumped on Open and Close; stale async results are discarded
	attempts   int
	lastErr    error
	closing    bool
	retryTimer *time.Timer
	pingStop   chan struct{}

	writeMu sync.Mutex

	modules       []Module
	modulesByName map[string]Module
	handlers      []Handler
	onState       []func(state ConnState, err error)
}

// New creates a client for the given websocket URL. The local player gets a
// generated id; set PlayerID before Open to override it.
func New(url, playerName string) *Client {
	return &Client{
		URL:                  url,
		PlayerID:             uuid.NewString(),
		PlayerName:           playerName,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       3 * time.Second,
		Logger:               zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger(),
		limiter:              rate.NewLimiter(rate.Limit(4), 8),
		modulesByName:        make(map[string]Module),
	}
}

// Register adds a module to the client. Panics on duplicate name.
func (c *Client) Register(m Module) {
	if _, exists := c.modulesByName[m.Name()]; exists {
		panic("module already registered: " + m.Name())
	}
	c.modules = append(c.modules, m)
	c.modulesByName[m.Name()] = m
	m.Init(c)
}

// Module returns a registered module by name, or nil.
func (c *Client) Module(name string) Module {
	return c.modulesByName[name]
}

// RegisterHandler appends a lightweight message callback (escape hatch).
func (c *Client) RegisterHandler(h Handler) {
	c.handlers = append(c.handlers, h)
}

// OnConnState registers a callback fired on every connection status change.
// Callbacks run outside the client lock and may call back into the client.
func (c *Client) OnConnState(cb func(state ConnState, err error)) {
	c.mu.Lock()
	c.onState = append(c.onState, cb)
	c.mu.Unlock()
}

// State returns the current connection status.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastErr returns the most recent transport error, if any.
func (c *Client) LastErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Attempts returns the consecutive failed dial count. Zero while open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Open starts a connection attempt. A second call while connecting or open is
// a no-op. Failures are reported through OnConnState and module
// DisconnectHandlers, never returned from here.
func (c *Client) Open() {
	c.mu.Lock()
	if c.state == StateConnecting || c.state == StateOpen {
		c.mu.Unlock()
		return
	}
	c.closing = false
	c.attempts = 0
	c.lastErr = nil
	c.generation++
	gen := c.generation
	notify := c.setStateLocked(StateConnecting, nil)
	c.mu.Unlock()

	notify()
	go c.dial(gen)
}

// Close shuts the connection down for good: no reconnect is attempted and all
// pending timers are cancelled.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == StateIdle || c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.closing = true
	c.generation++
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	conn := c.conn
	c.conn = nil
	notify := c.setStateLocked(StateClosed, nil)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
			time.Now().Add(writeWait))
		conn.Close()
	}
	notify()
	c.notifyDisconnect(nil)
	return nil
}

// Send marshals v and writes it to the transport. It fails fast with
// ErrNotConnected when the transport is not open; nothing is buffered.
func (c *Client) Send(v any) error {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()
	if !open || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// sendIntent is the user-intent path: same as Send, but rate limited so a
// misbehaving caller cannot flood the server. Keep-alives bypass this.
func (c *Client) sendIntent(v any) error {
	if !c.limiter.Allow() {
		return ErrTooManyRequests
	}
	return c.Send(v)
}

func (c *Client) dial(gen int) {
	c.Logger.Debug().Str("url", c.URL).Msg("dialing")
	conn, _, err := websocket.DefaultDialer.Dial(c.URL, nil)

	c.mu.Lock()
	if gen != c.generation || c.closing {
		// A Close or a fresh Open superseded this attempt.
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		c.attempts++
		c.lastErr = err
		if c.attempts >= c.MaxReconnectAttempts {
			termErr := fmt.Errorf("%w after %d attempts: %v", ErrUnreachable, c.attempts, err)
			c.lastErr = termErr
			notify := c.setStateLocked(StateClosed, termErr)
			c.mu.Unlock()

			c.Logger.Error().Err(err).Int("attempts", c.MaxReconnectAttempts).Msg("giving up on server")
			notify()
			c.notifyDisconnect(termErr)
			return
		}
		delay := c.backoff(c.attempts)
		c.retryTimer = time.AfterFunc(delay, func() { c.dial(gen) })
		c.mu.Unlock()

		c.Logger.Warn().Err(err).Int("attempt", c.attempts).Dur("retry_in", delay).Msg("connect failed")
		return
	}

	c.conn = conn
	c.attempts = 0
	c.lastErr = nil
	c.pingStop = make(chan struct{})
	stop := c.pingStop
	notify := c.setStateLocked(StateOpen, nil)
	c.mu.Unlock()

	c.Logger.Info().Str("url", c.URL).Msg("connected")
	notify()
	for _, m := range c.modules {
		if h, ok := m.(ConnectHandler); ok {
			h.OnConnect()
		}
	}

	go c.keepAlive(conn, stop)
	go c.readLoop(conn, gen)
}

// readLoop is the single execution context for all inbound handling: messages
// are decoded and applied one at a time, in delivery order.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.connLost(gen, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.Logger.Warn().Err(err).Msg("dropping malformed frame")
			continue
		}
		if msg.Type == "" {
			c.Logger.Warn().Msg("dropping frame without type")
			continue
		}

		for _, m := range c.modules {
			m.HandleMessage(&msg)
		}
		for _, h := range c.handlers {
			h(c, &msg)
		}
	}
}

// keepAlive sends the application-level ping plus a transport ping every
// interval while the connection is open.
func (c *Client) keepAlive(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.Send(pingRequest{Action: ActionPing}); err != nil {
				return
			}
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (c *Client) connLost(gen int, err error) {
	c.mu.Lock()
	if gen != c.generation {
		// The loss belongs to a superseded connection.
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	if c.pingStop != nil {
		close(c.pingStop)
		c.pingStop = nil
	}
	if c.closing {
		notify := c.setStateLocked(StateClosed, nil)
		c.mu.Unlock()
		notify()
		return
	}

	c.lastErr = err
	delay := c.backoff(c.attempts)
	c.retryTimer = time.AfterFunc(delay, func() { c.dial(gen) })
	notify := c.setStateLocked(StateConnecting, err)
	c.mu.Unlock()

	c.Logger.Warn().Err(err).Dur("retry_in", delay).Msg("connection lost")
	notify()
	c.notifyDisconnect(err)
}

func (c *Client) backoff(attempts int) time.Duration {
	return time.Duration(attempts+1) * c.ReconnectDelay
}

// setStateLocked records the new state and returns the callback batch to run
// after the lock is released; callbacks may re-enter the client.
func (c *Client) setStateLocked(s ConnState, err error) func() {
	c.state = s
	cbs := slices.Clone(c.onState)
	return func() {
		for _, cb := range cbs {
			cb(s, err)
		}
	}
}

func (c *Client) notifyDisconnect(err error) {
	for _, m := range c.modules {
		if h, ok := m.(DisconnectHandler); ok {
			h.OnDisconnect(err)
		}
	}
}
