package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-uno/client/pkg/client"
	"github.com/go-uno/client/pkg/uno"
)

type sentCall struct {
	method string
	gameID string
	index  int
	color  *uno.Color
}

// fakeSender records outbound requests instead of writing to a socket.
type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall
	fail  error
}

func (f *fakeSender) record(c sentCall) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.calls = append(f.calls, c)
	return nil
}

func (f *fakeSender) SendCreateGame(roomName string, maxPlayers int) error {
	return f.record(sentCall{method: "create_game", gameID: roomName, index: maxPlayers})
}

func (f *fakeSender) SendJoinGame(gameID string) error {
	return f.record(sentCall{method: "join_game", gameID: gameID})
}

func (f *fakeSender) SendStartGame(gameID string) error {
	return f.record(sentCall{method: "start_game", gameID: gameID})
}

func (f *fakeSender) SendGameStateRequest() error {
	return f.record(sentCall{method: "get_game_state"})
}

func (f *fakeSender) SendPlayCard(cardIndex int, chosenColor *uno.Color) error {
	return f.record(sentCall{method: "play_card", index: cardIndex, color: chosenColor})
}

func (f *fakeSender) SendChooseColor(color uno.Color) error {
	return f.record(sentCall{method: "choose_color", color: &color})
}

func (f *fakeSender) SendDrawCard() error {
	return f.record(sentCall{method: "draw_card"})
}

func (f *fakeSender) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method
	}
	return out
}

func (f *fakeSender) last() (sentCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return sentCall{}, false
	}
	return f.calls[len(f.calls)-1], true
}

func (f *fakeSender) clear() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// newTestModule builds a connected, idle module wired to a fake sender.
func newTestModule() (*Module, *fakeSender) {
	m := New()
	out := &fakeSender{}
	m.out = out
	m.localID = "p1"
	m.connected = true
	m.phase = PhaseConnectedIdle
	return m, out
}

func snapshotMsg(t *testing.T, msgType string, s client.GameSnapshot) *client.ServerMessage {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return &client.ServerMessage{Type: msgType, Success: true, GameID: s.GameID, Data: data}
}

func strPtr(s string) *string { return &s }

func TestCreateFlowBindsRoomAndAutoJoins(t *testing.T) {
	m, out := newTestModule()

	require.NoError(t, m.CreateGame("friday-table", 0))
	assert.Equal(t, PhaseAwaitingRoom, m.Phase())
	call, ok := out.last()
	require.True(t, ok)
	assert.Equal(t, "create_game", call.method)
	assert.Equal(t, DefaultMaxPlayers, call.index)
	out.clear()

	m.HandleMessage(&client.ServerMessage{Type: client.MsgGameCreated, Success: true, GameID: "G1"})

	assert.Equal(t, PhaseWaitingForPlayers, m.Phase())
	assert.Equal(t, "G1", m.Context().SessionID)
	call, ok = out.last()
	require.True(t, ok)
	assert.Equal(t, "join_game", call.method)
	assert.Equal(t, "G1", call.gameID)
}

func TestJoinConfirmationRequestsState(t *testing.T) {
	m, out := newTestModule()

	require.NoError(t, m.JoinGame("G2"))
	assert.Equal(t, PhaseAwaitingRoom, m.Phase())
	out.clear()

	data, _ := json.Marshal(client.JoinInfo{GameID: "G2", PlayerID: "p1", PlayerCount: 2})
	m.HandleMessage(&client.ServerMessage{Type: client.MsgPlayerJoined, Success: true, Data: data})

	assert.Equal(t, PhaseWaitingForPlayers, m.Phase())
	assert.Equal(t, "G2", m.Context().SessionID)
	assert.Equal(t, []string{"get_game_state"}, out.methods())
}

func TestGameStartedFiltersByGameID(t *testing.T) {
	m, out := newTestModule()
	m.HandleMessage(&client.ServerMessage{Type: client.MsgGameCreated, Success: true, GameID: "G1"})
	out.clear()

	m.HandleMessage(&client.ServerMessage{Type: client.MsgGameStarted, Success: true, GameID: "OTHER"})
	assert.Equal(t, PhaseWaitingForPlayers, m.Phase())
	assert.Empty(t, out.methods())

	m.HandleMessage(&client.ServerMessage{Type: client.MsgGameStarted, Success: true, GameID: "G1"})
	assert.Equal(t, PhaseInProgress, m.Phase())
	assert.Equal(t, []string{"get_game_state"}, out.methods())
}

func TestSnapshotReplacesWholesale(t *testing.T) {
	m, _ := newTestModule()

	m.HandleMessage(snapshotMsg(t, client.MsgGameState, client.GameSnapshot{
		GameID:        "G1",
		GameState:     client.GameInProgress,
		DrawPileSize:  40,
		TopCard:       strPtr("RED_FIVE"),
		CurrentPlayer: "p1",
		IsMyTurn:      true,
		Players: []client.PlayerInfo{
			{ID: "p1", Name: "ada", HandSize: 3, Hand: []string{"RED_SEVEN", "BLUE_FIVE", "WILD_WILD"}, IsConnected: true},
			{ID: "p2", Name: "bob", HandSize: 7, IsConnected: true},
		},
	}))

	ctx := m.Context()
	require.Len(t, ctx.Hand, 3)
	assert.True(t, ctx.MyTurn)
	assert.Equal(t, 40, ctx.DrawPileSize)

	m.HandleMessage(snapshotMsg(t, client.MsgGameStateUpdate, client.GameSnapshot{
		GameID:        "G1",
		GameState:     client.GameInProgress,
		DrawPileSize:  39,
		TopCard:       strPtr("BLUE_FIVE"),
		CurrentPlayer: "p2",
		IsMyTurn:      false,
		Players: []client.PlayerInfo{
			{ID: "p1", Name: "ada", HandSize: 2, Hand: []string{"RED_SEVEN", "WILD_WILD"}, IsConnected: true},
			{ID: "p2", Name: "bob", HandSize: 7, IsConnected: false},
		},
	}))

	ctx = m.Context()
	assert.Equal(t, []uno.Card{
		{Color: uno.Red, Rank: uno.Seven},
		{Color: uno.Wild, Rank: uno.RankWild},
	}, ctx.Hand)
	assert.False(t, ctx.MyTurn)
	assert.Equal(t, "p2", ctx.CurrentPlayer)
	assert.Equal(t, 39, ctx.DrawPileSize)
	require.NotNil(t, ctx.TopCard)
	assert.Equal(t, "BLUE_FIVE", ctx.TopCard.String())
	require.Len(t, ctx.Players, 2)
	assert.False(t, ctx.Players[1].Connected)
}

func TestSnapshotForAnotherGameIgnored(t *testing.T) {
	m, _ := newTestModule()
	m.HandleMessage(&client.ServerMessage{Type: client.MsgGameCreated, Success: true, GameID: "G1"})

	m.HandleMessage(snapshotMsg(t, client.MsgGameStateUpdate, client.GameSnapshot{
		GameID:    "OTHER",
		GameState: client.GameInProgress,
	}))

	assert.Equal(t, "G1", m.Context().SessionID)
	assert.Equal(t, PhaseWaitingForPlayers, m.Phase())
}

func TestServerRejectionKeepsPhase(t *testing.T) {
	m, _ := newTestModule()
	m.HandleMessage(snapshotMsg(t, client.MsgGameState, client.GameSnapshot{
		GameID:    "G1",
		GameState: client.GameInProgress,
		IsMyTurn:  true,
	}))
	require.Equal(t, PhaseInProgress, m.Phase())

	var notices []string
	m.OnNotice(func(text string) { notices = append(notices, text) })

	m.HandleMessage(&client.ServerMessage{Type: "play_card_failed", Message: "You can't play that card"})

	assert.Equal(t, PhaseInProgress, m.Phase())
	assert.True(t, m.Context().MyTurn)
	require.Len(t, notices, 1)
	assert.Equal(t, "You can't play that card", notices[0])
}

func TestFailedRoomRequestFallsBackToIdle(t *testing.T) {
	m, _ := newTestModule()
	require.NoError(t, m.JoinGame("NOPE"))
	require.Equal(t, PhaseAwaitingRoom, m.Phase())

	m.HandleMessage(&client.ServerMessage{Type: "join_game_failed", Message: "Game not found"})

	assert.Equal(t, PhaseConnectedIdle, m.Phase())
	assert.Empty(t, m.Context().SessionID)
}

func TestGameEndedResolvesWinnerName(t *testing.T) {
	m, _ := newTestModule()
	m.HandleMessage(snapshotMsg(t, client.MsgGameState, client.GameSnapshot{
		GameID:    "G1",
		GameState: client.GameInProgress,
		Players: []client.PlayerInfo{
			{ID: "p1", Name: "ada", IsConnected: true},
			{ID: "p2", Name: "bob", IsConnected: true},
		},
	}))

	var gotID, gotName string
	m.OnGameEnded(func(winnerID, winnerName string) { gotID, gotName = winnerID, winnerName })

	data, _ := json.Marshal("p2")
	m.HandleMessage(&client.ServerMessage{Type: client.MsgGameEnded, Success: true, GameID: "G1", Data: data})

	assert.Equal(t, PhaseEnded, m.Phase())
	assert.Equal(t, "p2", gotID)
	assert.Equal(t, "bob", gotName)
}

func TestTableNoticeRefreshesState(t *testing.T) {
	m, out := newTestModule()
	m.HandleMessage(&client.ServerMessage{Type: client.MsgGameCreated, Success: true, GameID: "G1"})
	out.clear()

	var notices []string
	m.OnNotice(func(text string) { notices = append(notices, text) })

	m.HandleMessage(&client.ServerMessage{Type: client.MsgCardPlayed, Success: true, Message: "bob played BLUE_FIVE"})

	assert.Equal(t, []string{"get_game_state"}, out.methods())
	require.Len(t, notices, 1)
	assert.Equal(t, "bob played BLUE_FIVE", notices[0])
}

func TestTableNoticeOutsideSessionIgnored(t *testing.T) {
	m, out := newTestModule()
	m.HandleMessage(&client.ServerMessage{Type: client.MsgCardDrawn, Success: true, Message: "bob drew a card"})
	assert.Empty(t, out.methods())
}

func TestDisconnectMidGameInterrupts(t *testing.T) {
	m, out := newTestModule()
	m.HandleMessage(snapshotMsg(t, client.MsgGameState, client.GameSnapshot{
		GameID:    "G1",
		GameState: client.GameInProgress,
	}))
	out.clear()

	m.OnDisconnect(errors.New("read tcp: connection reset"))
	assert.Equal(t, PhaseInProgress, m.Phase())
	assert.True(t, m.Context().Interrupted)

	m.OnConnect()
	assert.False(t, m.Context().Interrupted)
	assert.Equal(t, []string{"get_game_state"}, out.methods())
}

func TestDisconnectOutsideSessionGoesConnecting(t *testing.T) {
	m, _ := newTestModule()
	m.OnDisconnect(errors.New("read tcp: connection reset"))
	assert.Equal(t, PhaseConnecting, m.Phase())

	m.OnConnect()
	assert.Equal(t, PhaseConnectedIdle, m.Phase())
}

func TestGiveUpMidGameKeepsContext(t *testing.T) {
	m, _ := newTestModule()
	m.HandleMessage(snapshotMsg(t, client.MsgGameState, client.GameSnapshot{
		GameID:    "G1",
		GameState: client.GameInProgress,
		TopCard:   strPtr("RED_FIVE"),
		Players: []client.PlayerInfo{
			{ID: "p1", Name: "ada", HandSize: 2, Hand: []string{"RED_SEVEN", "BLUE_FIVE"}, IsConnected: true},
		},
	}))

	m.OnDisconnect(fmt.Errorf("%w after 5 attempts", client.ErrUnreachable))

	// The terminal failure does not wipe the session; the hand and room
	// survive for a later explicit retry.
	ctx := m.Context()
	assert.Equal(t, "G1", ctx.SessionID)
	assert.Len(t, ctx.Hand, 2)
	assert.True(t, ctx.Interrupted)
	assert.Equal(t, PhaseInProgress, m.Phase())
}

func TestGiveUpNoticeFiresOnce(t *testing.T) {
	m, _ := newTestModule()
	var notices []string
	m.OnNotice(func(text string) { notices = append(notices, text) })

	termErr := fmt.Errorf("%w after 5 attempts", client.ErrUnreachable)
	m.OnDisconnect(termErr)
	m.OnDisconnect(termErr)

	count := 0
	for _, n := range notices {
		if n == "cannot reach server, giving up" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Equal(t, PhaseDisconnected, m.Phase())
}

func TestPongUpdatesStats(t *testing.T) {
	m, _ := newTestModule()
	m.HandleMessage(&client.ServerMessage{Type: client.MsgPong, Success: true, ActiveGames: 4, ConnectedPlayers: 11})
	assert.Equal(t, Stats{ActiveGames: 4, ConnectedPlayers: 11}, m.Stats())
}

func TestPhaseCallbackSeesTransition(t *testing.T) {
	m, _ := newTestModule()
	var froms, tos []Phase
	m.OnPhaseChange(func(from, to Phase) {
		froms = append(froms, from)
		tos = append(tos, to)
	})

	m.HandleMessage(&client.ServerMessage{Type: client.MsgGameCreated, Success: true, GameID: "G1"})

	require.Len(t, froms, 1)
	assert.Equal(t, PhaseConnectedIdle, froms[0])
	assert.Equal(t, PhaseWaitingForPlayers, tos[0])
}
