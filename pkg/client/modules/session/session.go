// Package session tracks the local player's game session: which room they are
// in, the authoritative game snapshot, whose turn it is and whether a wild
// color choice is pending. All inbound handling runs on the client's read
// loop; intent methods may be called from any goroutine.
package session

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/go-uno/client/pkg/client"
	"github.com/go-uno/client/pkg/uno"
)

const ModuleName = "session"

// DefaultMaxPlayers is the room size requested when the caller does not care.
const DefaultMaxPlayers = 3

// Phase is the session's lifecycle position. Exactly one phase is active at a
// time; every transition goes through setPhaseLocked so observers see a
// consistent sequence.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnectedIdle
	PhaseAwaitingRoom
	PhaseWaitingForPlayers
	PhaseInProgress
	PhaseAwaitingColorChoice
	PhaseEnded
)

func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseConnecting:
		return "connecting"
	case PhaseConnectedIdle:
		return "idle"
	case PhaseAwaitingRoom:
		return "awaiting room"
	case PhaseWaitingForPlayers:
		return "waiting for players"
	case PhaseInProgress:
		return "in progress"
	case PhaseAwaitingColorChoice:
		return "choose a color"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Player is one seat at the table as the last snapshot described it.
type Player struct {
	ID        string
	Name      string
	HandSize  int
	Connected bool
}

// Context is the session-scoped view derived from server snapshots. It is
// replaced wholesale on every snapshot; nothing from a previous game leaks
// into the next one.
type Context struct {
	SessionID     string
	Players       []Player
	Hand          []uno.Card
	TopCard       *uno.Card
	DrawPileSize  int
	CurrentPlayer string
	MyTurn        bool
	// ColorChoicePlayer is the id of whoever the server is waiting on for a
	// wild color, empty when nobody is.
	ColorChoicePlayer string
	ChoiceRequired    bool
	WinnerID          string
	WinnerName        string
	// Interrupted is set while the session exists but the transport is down.
	Interrupted bool
}

// Stats are server-wide counters carried on pong frames.
type Stats struct {
	ActiveGames      int
	ConnectedPlayers int
}

// pendingChoice is an unanswered wild color decision. serverRequired
// distinguishes a server-mandated standalone choice from a local wild play
// that has not been sent yet.
type pendingChoice struct {
	cardIndex      int
	card           uno.Card
	serverRequired bool
}

// sender is the outbound surface the module needs; *client.Client satisfies
// it, tests swap in a recorder.
type sender interface {
	SendCreateGame(roomName string, maxPlayers int) error
	SendJoinGame(gameID string) error
	SendStartGame(gameID string) error
	SendGameStateRequest() error
	SendPlayCard(cardIndex int, chosenColor *uno.Color) error
	SendChooseColor(color uno.Color) error
	SendDrawCard() error
}

// Module implements the session state machine.
type Module struct {
	mu      sync.RWMutex
	out     sender
	log     zerolog.Logger
	localID string

	connected bool
	phase     Phase
	ctx       Context
	pending   *pendingChoice
	stats     Stats

	// gaveUp makes the terminal unreachable notice fire exactly once.
	gaveUp bool

	onPhase  []func(from, to Phase)
	onNotice []func(text string)
	onUpdate []func(ctx Context)
	onEnded  []func(winnerID, winnerName string)
}

// New creates the session module.
func New() *Module {
	return &Module{log: zerolog.Nop()}
}

// From fetches the session module registered on c, or nil.
func From(c *client.Client) *Module {
	m, _ := c.Module(ModuleName).(*Module)
	return m
}

func (m *Module) Name() string { return ModuleName }

func (m *Module) Init(c *client.Client) {
	m.out = c
	m.localID = c.PlayerID
	m.log = c.Logger.With().Str("module", ModuleName).Logger()
	c.OnConnState(func(s client.ConnState, err error) {
		if s == client.StateConnecting {
			m.connecting()
		}
	})
}

// Reset clears everything back to the disconnected baseline.
func (m *Module) Reset() {
	m.mu.Lock()
	m.ctx = Context{}
	m.pending = nil
	m.gaveUp = false
	var fire []func()
	if m.connected {
		fire = m.setPhaseLocked(PhaseConnectedIdle)
	} else {
		fire = m.setPhaseLocked(PhaseDisconnected)
	}
	m.mu.Unlock()
	run(fire)
}

// OnPhaseChange registers a callback fired on every phase transition.
// Callbacks run outside the module lock and may call back into the module.
func (m *Module) OnPhaseChange(cb func(from, to Phase)) {
	m.mu.Lock()
	m.onPhase = append(m.onPhase, cb)
	m.mu.Unlock()
}

// OnNotice registers a callback for human-readable one-line events: table
// activity, rejected intents, connection trouble.
func (m *Module) OnNotice(cb func(text string)) {
	m.mu.Lock()
	m.onNotice = append(m.onNotice, cb)
	m.mu.Unlock()
}

// OnUpdate registers a callback fired after every applied snapshot with a
// copy of the fresh context.
func (m *Module) OnUpdate(cb func(ctx Context)) {
	m.mu.Lock()
	m.onUpdate = append(m.onUpdate, cb)
	m.mu.Unlock()
}

// OnGameEnded registers a callback fired once when the game finishes.
func (m *Module) OnGameEnded(cb func(winnerID, winnerName string)) {
	m.mu.Lock()
	m.onEnded = append(m.onEnded, cb)
	m.mu.Unlock()
}

// Phase returns the current session phase.
func (m *Module) Phase() Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// Context returns a copy of the current session context.
func (m *Module) Context() Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotCtxLocked()
}

// Stats returns the latest server-wide counters seen on a pong.
func (m *Module) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// PendingChoice reports whether a wild color decision is outstanding, and if
// so whether the server mandated it and which hand position triggered it
// (-1 for server-mandated choices).
func (m *Module) PendingChoice() (pending, serverRequired bool, cardIndex int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pending == nil {
		return false, false, -1
	}
	if m.pending.serverRequired {
		return true, true, -1
	}
	return true, false, m.pending.cardIndex
}

// PendingCard returns the wild card held back by a local color decision.
func (m *Module) PendingCard() (uno.Card, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.pending == nil || m.pending.serverRequired {
		return uno.Card{}, false
	}
	return m.pending.card, true
}

// snapshotCtxLocked deep-copies the slices so callers cannot alias internals.
func (m *Module) snapshotCtxLocked() Context {
	out := m.ctx
	out.Players = append([]Player(nil), m.ctx.Players...)
	out.Hand = append([]uno.Card(nil), m.ctx.Hand...)
	if m.ctx.TopCard != nil {
		top := *m.ctx.TopCard
		out.TopCard = &top
	}
	return out
}

func run(fire []func()) {
	for _, f := range fire {
		f()
	}
}

func (m *Module) setPhaseLocked(to Phase) []func() {
	from := m.phase
	if from == to {
		return nil
	}
	m.phase = to
	cbs := append(([]func(from, to Phase))(nil), m.onPhase...)
	return []func(){func() {
		for _, cb := range cbs {
			cb(from, to)
		}
	}}
}

func (m *Module) noticeLocked(text string) []func() {
	cbs := append(([]func(string))(nil), m.onNotice...)
	return []func(){func() {
		for _, cb := range cbs {
			cb(text)
		}
	}}
}

func (m *Module) updateLocked() []func() {
	ctx := m.snapshotCtxLocked()
	cbs := append(([]func(Context))(nil), m.onUpdate...)
	return []func(){func() {
		for _, cb := range cbs {
			cb(ctx)
		}
	}}
}

func (m *Module) inSessionLocked() bool {
	return m.ctx.SessionID != ""
}

// connecting mirrors the transport's dial phase while no session exists. A
// live session keeps its phase; Interrupted already marks the outage.
func (m *Module) connecting() {
	m.mu.Lock()
	m.gaveUp = false
	var fire []func()
	if !m.inSessionLocked() && (m.phase == PhaseDisconnected || m.phase == PhaseConnectedIdle) {
		fire = m.setPhaseLocked(PhaseConnecting)
	}
	m.mu.Unlock()
	run(fire)
}

// OnConnect implements client.ConnectHandler. On a fresh connection the
// session becomes idle; after an outage mid-game the authoritative snapshot
// is re-requested so play resumes from server truth.
func (m *Module) OnConnect() {
	m.mu.Lock()
	m.connected = true
	m.gaveUp = false
	var fire []func()
	refetch := false
	if m.inSessionLocked() {
		if m.ctx.Interrupted {
			m.ctx.Interrupted = false
			refetch = true
			fire = append(fire, m.noticeLocked("reconnected, syncing game state")...)
			fire = append(fire, m.updateLocked()...)
		}
	} else {
		fire = m.setPhaseLocked(PhaseConnectedIdle)
	}
	m.mu.Unlock()
	run(fire)

	if refetch {
		if err := m.out.SendGameStateRequest(); err != nil {
			m.log.Warn().Err(err).Msg("state refetch failed")
		}
	}
}

// OnDisconnect implements client.DisconnectHandler. A session in flight is
// kept and marked interrupted; outside a session the phase simply follows the
// transport down.
func (m *Module) OnDisconnect(err error) {
	m.mu.Lock()
	var fire []func()
	m.connected = false
	terminal := err != nil && errors.Is(err, client.ErrUnreachable)
	if terminal && !m.gaveUp {
		m.gaveUp = true
		fire = append(fire, m.noticeLocked("cannot reach server, giving up")...)
	}
	if m.inSessionLocked() {
		if !m.ctx.Interrupted {
			m.ctx.Interrupted = true
			if !terminal && err != nil {
				fire = append(fire, m.noticeLocked("connection lost, reconnecting")...)
			}
			fire = append(fire, m.updateLocked()...)
		}
	} else if terminal || err == nil {
		fire = append(fire, m.setPhaseLocked(PhaseDisconnected)...)
	} else {
		fire = append(fire, m.setPhaseLocked(PhaseConnecting)...)
	}
	m.mu.Unlock()
	run(fire)
}

// HandleMessage implements client.Module. It runs on the read loop, so every
// message is applied in delivery order with no interleaving.
func (m *Module) HandleMessage(msg *client.ServerMessage) {
	if msg.IsFailure() {
		m.handleFailure(msg)
		return
	}

	switch msg.Type {
	case client.MsgConnection:
		// Greeting frame; nothing session-level to do.
	case client.MsgGameCreated:
		m.handleGameCreated(msg)
	case client.MsgPlayerJoined:
		m.handlePlayerJoined(msg)
	case client.MsgGameStarted:
		m.handleGameStarted(msg)
	case client.MsgGameState, client.MsgGameStateUpdate:
		m.handleSnapshot(msg)
	case client.MsgGameEnded:
		m.handleGameEnded(msg)
	case client.MsgCardPlayed, client.MsgCardDrawn, client.MsgColorChosen,
		client.MsgPlayerJoinedGame, client.MsgPlayerDisconnected:
		m.handleTableNotice(msg)
	case client.MsgPong:
		m.mu.Lock()
		m.stats = Stats{ActiveGames: msg.ActiveGames, ConnectedPlayers: msg.ConnectedPlayers}
		m.mu.Unlock()
	default:
		m.log.Debug().Str("type", msg.Type).Msg("unhandled message")
	}
}

// handleFailure surfaces server rejections as notices. A rejection never
// moves the phase; the next snapshot is authoritative either way.
func (m *Module) handleFailure(msg *client.ServerMessage) {
	text := msg.Message
	if text == "" {
		text = msg.Type
	}
	m.log.Warn().Str("type", msg.Type).Str("message", msg.Message).Msg("server rejected request")

	m.mu.Lock()
	var fire []func()
	fire = append(fire, m.noticeLocked(text)...)
	// A failed room request falls back to idle so the caller can retry.
	if m.phase == PhaseAwaitingRoom && !m.inSessionLocked() {
		fire = append(fire, m.setPhaseLocked(PhaseConnectedIdle)...)
	}
	m.mu.Unlock()
	run(fire)
}

// handleGameCreated binds the new room and immediately joins it: the server
// associates this connection with the game only on join, and every other
// event is filtered by that association.
func (m *Module) handleGameCreated(msg *client.ServerMessage) {
	if msg.GameID == "" {
		m.log.Warn().Msg("game_created without gameId")
		return
	}

	m.mu.Lock()
	m.ctx = Context{SessionID: msg.GameID}
	m.pending = nil
	fire := m.setPhaseLocked(PhaseWaitingForPlayers)
	fire = append(fire, m.noticeLocked("room created: "+msg.GameID)...)
	fire = append(fire, m.updateLocked()...)
	m.mu.Unlock()
	run(fire)

	if err := m.out.SendJoinGame(msg.GameID); err != nil {
		m.log.Warn().Err(err).Str("game", msg.GameID).Msg("auto join failed")
	}
}

func (m *Module) handlePlayerJoined(msg *client.ServerMessage) {
	j, err := msg.Join()
	if err != nil {
		m.log.Warn().Err(err).Msg("bad player_joined payload")
		return
	}
	gameID := j.GameID
	if gameID == "" {
		gameID = msg.GameID
	}

	m.mu.Lock()
	if m.inSessionLocked() && m.ctx.SessionID != gameID {
		m.mu.Unlock()
		m.log.Warn().Str("game", gameID).Msg("join confirmation for another game")
		return
	}
	m.ctx.SessionID = gameID
	var fire []func()
	if m.phase == PhaseConnectedIdle || m.phase == PhaseAwaitingRoom {
		fire = m.setPhaseLocked(PhaseWaitingForPlayers)
	}
	fire = append(fire, m.updateLocked()...)
	m.mu.Unlock()
	run(fire)

	if err := m.out.SendGameStateRequest(); err != nil {
		m.log.Warn().Err(err).Msg("state request failed")
	}
}

func (m *Module) handleGameStarted(msg *client.ServerMessage) {
	m.mu.Lock()
	if !m.inSessionLocked() || (msg.GameID != "" && msg.GameID != m.ctx.SessionID) {
		m.mu.Unlock()
		return
	}
	fire := m.setPhaseLocked(PhaseInProgress)
	fire = append(fire, m.noticeLocked("game started")...)
	m.mu.Unlock()
	run(fire)

	if err := m.out.SendGameStateRequest(); err != nil {
		m.log.Warn().Err(err).Msg("state request failed")
	}
}

// handleSnapshot replaces the session context with the server's authoritative
// view. Local state never survives a snapshot; only an unsent local wild
// choice does, because the server has not heard about that card yet.
func (m *Module) handleSnapshot(msg *client.ServerMessage) {
	s, err := msg.Snapshot()
	if err != nil {
		m.log.Warn().Err(err).Msg("dropping bad snapshot")
		return
	}

	m.mu.Lock()
	if m.inSessionLocked() && s.GameID != m.ctx.SessionID {
		m.mu.Unlock()
		m.log.Warn().Str("game", s.GameID).Msg("snapshot for another game")
		return
	}

	next := Context{
		SessionID:         s.GameID,
		DrawPileSize:      s.DrawPileSize,
		CurrentPlayer:     s.CurrentPlayer,
		MyTurn:            s.IsMyTurn,
		ColorChoicePlayer: s.ColorChoicePlayer,
		ChoiceRequired:    s.ShouldChooseColor,
		WinnerID:          s.Winner,
		WinnerName:        s.WinnerName,
	}
	if s.TopCard != nil {
		if card, err := uno.Parse(*s.TopCard); err == nil {
			next.TopCard = &card
		} else {
			m.log.Warn().Err(err).Str("token", *s.TopCard).Msg("bad top card")
		}
	}
	for _, p := range s.Players {
		next.Players = append(next.Players, Player{
			ID:        p.ID,
			Name:      p.Name,
			HandSize:  p.HandSize,
			Connected: p.IsConnected,
		})
		if p.ID == m.localID {
			for _, token := range p.Hand {
				card, err := uno.Parse(token)
				if err != nil {
					m.log.Warn().Err(err).Str("token", token).Msg("bad hand card")
					continue
				}
				next.Hand = append(next.Hand, card)
			}
		}
	}
	m.ctx = next

	// Reconcile the color coordinator with server truth. A server-mandated
	// pending is dropped once the server stops asking; a local one stays
	// until answered or cancelled.
	if m.pending != nil && m.pending.serverRequired && !s.ShouldChooseColor {
		m.pending = nil
	}
	if s.ShouldChooseColor && m.pending == nil {
		m.pending = &pendingChoice{cardIndex: -1, serverRequired: true}
	}

	var fire []func()
	switch s.GameState {
	case client.GameWaitingForPlayers:
		m.pending = nil
		fire = m.setPhaseLocked(PhaseWaitingForPlayers)
	case client.GameInProgress:
		if m.pending != nil {
			fire = m.setPhaseLocked(PhaseAwaitingColorChoice)
		} else {
			fire = m.setPhaseLocked(PhaseInProgress)
		}
	case client.GameFinished:
		m.pending = nil
		fire = m.setPhaseLocked(PhaseEnded)
		if s.Winner != "" {
			cbs := append(([]func(string, string))(nil), m.onEnded...)
			winnerID, winnerName := s.Winner, s.WinnerName
			fire = append(fire, func() {
				for _, cb := range cbs {
					cb(winnerID, winnerName)
				}
			})
		}
	}
	fire = append(fire, m.updateLocked()...)
	m.mu.Unlock()
	run(fire)
}

func (m *Module) handleGameEnded(msg *client.ServerMessage) {
	winnerID, err := msg.DataString()
	if err != nil {
		m.log.Warn().Err(err).Msg("bad game_ended payload")
	}

	m.mu.Lock()
	if !m.inSessionLocked() || (msg.GameID != "" && msg.GameID != m.ctx.SessionID) {
		m.mu.Unlock()
		return
	}
	if winnerID != "" {
		m.ctx.WinnerID = winnerID
		for _, p := range m.ctx.Players {
			if p.ID == winnerID {
				m.ctx.WinnerName = p.Name
				break
			}
		}
	}
	m.pending = nil
	fire := m.setPhaseLocked(PhaseEnded)
	if m.ctx.WinnerName != "" {
		fire = append(fire, m.noticeLocked(m.ctx.WinnerName+" wins")...)
	}
	cbs := append(([]func(string, string))(nil), m.onEnded...)
	wID, wName := m.ctx.WinnerID, m.ctx.WinnerName
	fire = append(fire, func() {
		for _, cb := range cbs {
			cb(wID, wName)
		}
	})
	fire = append(fire, m.updateLocked()...)
	m.mu.Unlock()
	run(fire)
}

// handleTableNotice surfaces other players' moves and refreshes the snapshot,
// since these events carry no card detail of their own.
func (m *Module) handleTableNotice(msg *client.ServerMessage) {
	m.mu.Lock()
	if !m.inSessionLocked() {
		m.mu.Unlock()
		return
	}
	text := msg.Message
	if text == "" {
		text = msg.Type
	}
	fire := m.noticeLocked(text)
	m.mu.Unlock()
	run(fire)

	if err := m.out.SendGameStateRequest(); err != nil {
		m.log.Debug().Err(err).Msg("state refresh failed")
	}
}
