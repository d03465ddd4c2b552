package session

import (
	"errors"

	"github.com/go-uno/client/pkg/uno"
)

// Intent rejections. Rejections are local and cheap; anything that passes
// these checks is still subject to the server's own validation.
var (
	ErrWrongPhase      = errors.New("not available right now")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrBadCardIndex    = errors.New("no card at that position")
	ErrChoicePending   = errors.New("finish the color choice first")
	ErrNoChoicePending = errors.New("no color choice pending")
	ErrChoiceMandatory = errors.New("the server requires a color choice")
	ErrBadColor        = errors.New("pick red, blue, green or yellow")
	ErrNotInGame       = errors.New("not in a game")
	ErrNoGameID        = errors.New("missing game id")
)

// rejectLocked emits the rejection as a notice, releases the lock and returns
// the error. Callers must hold the lock.
func (m *Module) rejectLocked(err error) error {
	fire := m.noticeLocked(err.Error())
	m.mu.Unlock()
	run(fire)
	return err
}

// CreateGame asks the server for a new room with the local player as host.
// maxPlayers <= 0 selects the default room size.
func (m *Module) CreateGame(roomName string, maxPlayers int) error {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	m.mu.Lock()
	if m.phase != PhaseConnectedIdle {
		return m.rejectLocked(ErrWrongPhase)
	}
	fire := m.setPhaseLocked(PhaseAwaitingRoom)
	m.mu.Unlock()
	run(fire)

	if err := m.out.SendCreateGame(roomName, maxPlayers); err != nil {
		m.revertRoomRequest(err)
		return err
	}
	return nil
}

// JoinGame asks to join an existing room by id.
func (m *Module) JoinGame(gameID string) error {
	if gameID == "" {
		return ErrNoGameID
	}
	m.mu.Lock()
	if m.phase != PhaseConnectedIdle {
		return m.rejectLocked(ErrWrongPhase)
	}
	fire := m.setPhaseLocked(PhaseAwaitingRoom)
	m.mu.Unlock()
	run(fire)

	if err := m.out.SendJoinGame(gameID); err != nil {
		m.revertRoomRequest(err)
		return err
	}
	return nil
}

func (m *Module) revertRoomRequest(err error) {
	m.mu.Lock()
	var fire []func()
	if m.phase == PhaseAwaitingRoom {
		fire = m.setPhaseLocked(PhaseConnectedIdle)
	}
	fire = append(fire, m.noticeLocked(err.Error())...)
	m.mu.Unlock()
	run(fire)
}

// StartGame asks the server to deal and begin play. Only meaningful in the
// lobby; the server additionally checks that the caller is the host.
func (m *Module) StartGame() error {
	m.mu.Lock()
	if m.phase != PhaseWaitingForPlayers {
		return m.rejectLocked(ErrWrongPhase)
	}
	gameID := m.ctx.SessionID
	m.mu.Unlock()
	return m.out.SendStartGame(gameID)
}

// PlayCard plays the card at the given hand position. A wild card does not go
// to the server yet; it opens a local color choice that ChooseColor completes
// as a single play_card request.
func (m *Module) PlayCard(index int) error {
	m.mu.Lock()
	switch {
	case m.phase == PhaseAwaitingColorChoice:
		return m.rejectLocked(ErrChoicePending)
	case m.phase != PhaseInProgress:
		return m.rejectLocked(ErrWrongPhase)
	case !m.ctx.MyTurn:
		return m.rejectLocked(ErrNotYourTurn)
	case index < 0 || index >= len(m.ctx.Hand):
		return m.rejectLocked(ErrBadCardIndex)
	}

	card := m.ctx.Hand[index]
	if card.IsWild() {
		m.pending = &pendingChoice{cardIndex: index, card: card}
		fire := m.setPhaseLocked(PhaseAwaitingColorChoice)
		m.mu.Unlock()
		run(fire)
		return nil
	}
	m.mu.Unlock()
	return m.out.SendPlayCard(index, nil)
}

// ChooseColor resolves the pending wild decision. For a local wild play this
// sends the deferred play_card with the color attached; for a server-mandated
// choice it sends a standalone choose_color.
func (m *Module) ChooseColor(color uno.Color) error {
	m.mu.Lock()
	if m.pending == nil || m.phase != PhaseAwaitingColorChoice {
		return m.rejectLocked(ErrNoChoicePending)
	}
	if !color.Choosable() {
		return m.rejectLocked(ErrBadColor)
	}
	p := *m.pending
	m.pending = nil
	m.mu.Unlock()

	var err error
	if p.serverRequired {
		err = m.out.SendChooseColor(color)
	} else {
		err = m.out.SendPlayCard(p.cardIndex, &color)
	}
	if err != nil {
		// Keep the decision open so it can be retried once reconnected.
		m.mu.Lock()
		if m.pending == nil {
			m.pending = &p
		}
		m.mu.Unlock()
	}
	return err
}

// CancelColorChoice abandons a local wild play without sending anything. A
// server-mandated choice cannot be cancelled.
func (m *Module) CancelColorChoice() error {
	m.mu.Lock()
	if m.pending == nil {
		return m.rejectLocked(ErrNoChoicePending)
	}
	if m.pending.serverRequired {
		return m.rejectLocked(ErrChoiceMandatory)
	}
	m.pending = nil
	fire := m.setPhaseLocked(PhaseInProgress)
	m.mu.Unlock()
	run(fire)
	return nil
}

// DrawCard draws one card from the pile, which also ends the turn.
func (m *Module) DrawCard() error {
	m.mu.Lock()
	switch {
	case m.phase == PhaseAwaitingColorChoice:
		return m.rejectLocked(ErrChoicePending)
	case m.phase != PhaseInProgress:
		return m.rejectLocked(ErrWrongPhase)
	case !m.ctx.MyTurn:
		return m.rejectLocked(ErrNotYourTurn)
	}
	m.mu.Unlock()
	return m.out.SendDrawCard()
}

// RequestState asks for a fresh authoritative snapshot of the current game.
func (m *Module) RequestState() error {
	m.mu.Lock()
	if !m.inSessionLocked() {
		return m.rejectLocked(ErrNotInGame)
	}
	m.mu.Unlock()
	return m.out.SendGameStateRequest()
}

// Leave abandons the current session locally and returns to the idle phase.
// The server notices the departure through its own disconnect tracking; there
// is no leave request on the wire.
func (m *Module) Leave() error {
	m.mu.Lock()
	if !m.inSessionLocked() {
		return m.rejectLocked(ErrNotInGame)
	}
	m.ctx = Context{}
	m.pending = nil
	var fire []func()
	if m.connected {
		fire = m.setPhaseLocked(PhaseConnectedIdle)
	} else {
		fire = m.setPhaseLocked(PhaseDisconnected)
	}
	fire = append(fire, m.noticeLocked("left the game")...)
	fire = append(fire, m.updateLocked()...)
	m.mu.Unlock()
	run(fire)
	return nil
}
