package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Inbound message types the dispatcher recognizes. Anything else is logged
// and ignored.
const (
	MsgConnection         = "connection"
	MsgGameCreated        = "game_created"
	MsgPlayerJoined       = "player_joined"
	MsgGameState          = "game_state"
	MsgGameStateUpdate    = "game_state_update"
	MsgGameStarted        = "game_started"
	MsgGameEnded          = "game_ended"
	MsgCardPlayed         = "card_played"
	MsgCardDrawn          = "card_drawn"
	MsgColorChosen        = "color_chosen"
	MsgPlayerJoinedGame   = "player_joined_game"
	MsgPlayerDisconnected = "player_disconnected"
	MsgPong               = "pong"
	MsgError              = "error"
)

// Game phase labels as the server reports them inside a snapshot.
const (
	GameWaitingForPlayers = "WAITING_FOR_PLAYERS"
	GameInProgress        = "IN_PROGRESS"
	GameFinished          = "FINISHED"
)

// ServerMessage is the envelope of every inbound frame. Data is kept raw; its
// shape depends on Type and is validated by the typed decode helpers before
// anything trusts it.
type ServerMessage struct {
	Type      string          `json:"type"`
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	GameID    string          `json:"gameId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`

	// pong carries server stats at the top level.
	ActiveGames      int `json:"activeGames,omitempty"`
	ConnectedPlayers int `json:"connectedPlayers,omitempty"`
}

// IsFailure reports whether the message is a server-side rejection: the
// generic "error" type or any of the per-action "*_failed" variants.
func (m *ServerMessage) IsFailure() bool {
	return m.Type == MsgError || strings.HasSuffix(m.Type, "_failed")
}

// PlayerInfo is one entry of a snapshot's player list. Hand is present only
// for the receiving player.
type PlayerInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	HandSize    int      `json:"handSize"`
	Hand        []string `json:"hand,omitempty"`
	IsConnected bool     `json:"isConnected"`
}

// GameSnapshot is the full authoritative game description carried by
// game_state and game_state_update messages. It replaces the client's prior
// view wholesale; nothing is merged.
type GameSnapshot struct {
	GameID                string       `json:"gameId"`
	GameState             string       `json:"gameState"`
	DrawPileSize          int          `json:"drawPileSize"`
	TopCard               *string      `json:"topCard"`
	Players               []PlayerInfo `json:"players"`
	CurrentPlayer         string       `json:"currentPlayer"`
	IsMyTurn              bool         `json:"isMyTurn"`
	WaitingForColorChoice bool         `json:"waitingForColorChoice"`
	ColorChoicePlayer     string       `json:"colorChoicePlayer,omitempty"`
	ShouldChooseColor     bool         `json:"shouldChooseColor"`
	Winner                string       `json:"winner,omitempty"`
	WinnerName            string       `json:"winnerName,omitempty"`
}

// Snapshot decodes and validates the Data payload of a game_state or
// game_state_update message.
func (m *ServerMessage) Snapshot() (*GameSnapshot, error) {
	if len(m.Data) == 0 {
		return nil, fmt.Errorf("%s: missing data payload", m.Type)
	}
	var s GameSnapshot
	if err := json.Unmarshal(m.Data, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Type, err)
	}
	if s.GameID == "" {
		return nil, fmt.Errorf("%s: snapshot without gameId", m.Type)
	}
	switch s.GameState {
	case GameWaitingForPlayers, GameInProgress, GameFinished:
	default:
		return nil, fmt.Errorf("%s: unknown game state %q", m.Type, s.GameState)
	}
	return &s, nil
}

// JoinInfo is the data payload of a player_joined confirmation.
type JoinInfo struct {
	GameID      string `json:"gameId"`
	PlayerID    string `json:"playerId"`
	PlayerCount int    `json:"playerCount"`
}

// Join decodes the Data payload of a player_joined message.
func (m *ServerMessage) Join() (*JoinInfo, error) {
	if len(m.Data) == 0 {
		return nil, fmt.Errorf("%s: missing data payload", m.Type)
	}
	var j JoinInfo
	if err := json.Unmarshal(m.Data, &j); err != nil {
		return nil, fmt.Errorf("%s: %w", m.Type, err)
	}
	return &j, nil
}

// DataString decodes a Data payload that is a bare JSON string, as carried by
// game_ended (winner id), color_chosen (color) and the player_* notices.
func (m *ServerMessage) DataString() (string, error) {
	if len(m.Data) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(m.Data, &s); err != nil {
		return "", fmt.Errorf("%s: %w", m.Type, err)
	}
	return s, nil
}
