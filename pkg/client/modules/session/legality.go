package session

import "github.com/go-uno/client/pkg/uno"

// PlayableHand reports, per hand position, whether playing that card now
// would plausibly be accepted. The answer is a UI hint; the server remains
// the referee. Outside the local player's turn, or while a color choice is
// open, every position is false.
func (m *Module) PlayableHand() []bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]bool, len(m.ctx.Hand))
	if m.phase != PhaseInProgress || !m.ctx.MyTurn || m.pending != nil {
		return out
	}
	return uno.Playable(m.ctx.Hand, m.ctx.TopCard)
}

// CanPlay is the single-position form of PlayableHand.
func (m *Module) CanPlay(index int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.phase != PhaseInProgress || !m.ctx.MyTurn || m.pending != nil {
		return false
	}
	if index < 0 || index >= len(m.ctx.Hand) {
		return false
	}
	if m.ctx.TopCard == nil {
		return true
	}
	return m.ctx.Hand[index].CanPlayOn(*m.ctx.TopCard)
}
