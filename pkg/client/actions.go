package client

import "github.com/go-uno/client/pkg/uno"

// Outbound action names.
const (
	ActionCreateGame   = "create_game"
	ActionJoinGame     = "join_game"
	ActionStartGame    = "start_game"
	ActionGetGameState = "get_game_state"
	ActionPlayCard     = "play_card"
	ActionChooseColor  = "choose_color"
	ActionDrawCard     = "draw_card"
	ActionPing         = "ping"
)

type createGameRequest struct {
	Action         string `json:"action"`
	RoomName       string `json:"roomName,omitempty"`
	HostPlayerID   string `json:"hostPlayerId,omitempty"`
	HostPlayerName string `json:"hostPlayerName,omitempty"`
	MaxPlayers     int    `json:"maxPlayers,omitempty"`
}

type joinGameRequest struct {
	Action     string `json:"action"`
	GameID     string `json:"gameId"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type startGameRequest struct {
	Action   string `json:"action"`
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

type getGameStateRequest struct {
	Action   string `json:"action"`
	PlayerID string `json:"playerId"`
}

type playCardRequest struct {
	Action    string `json:"action"`
	PlayerID  string `json:"playerId"`
	CardIndex int    `json:"cardIndex"`
	// ChosenColor is null for non-wild plays; the server expects the key
	// present either way.
	ChosenColor *uno.Color `json:"chosenColor"`
}

type chooseColorRequest struct {
	Action   string    `json:"action"`
	PlayerID string    `json:"playerId"`
	Color    uno.Color `json:"color"`
}

type drawCardRequest struct {
	Action   string `json:"action"`
	PlayerID string `json:"playerId"`
}

type pingRequest struct {
	Action string `json:"action"`
}

// SendCreateGame asks the server for a new room hosted by the local player.
func (c *Client) SendCreateGame(roomName string, maxPlayers int) error {
	return c.sendIntent(createGameRequest{
		Action:         ActionCreateGame,
		RoomName:       roomName,
		HostPlayerID:   c.PlayerID,
		HostPlayerName: c.PlayerName,
		MaxPlayers:     maxPlayers,
	})
}

// SendJoinGame joins the given room as the local player.
func (c *Client) SendJoinGame(gameID string) error {
	return c.sendIntent(joinGameRequest{
		Action:     ActionJoinGame,
		GameID:     gameID,
		PlayerID:   c.PlayerID,
		PlayerName: c.PlayerName,
	})
}

// SendStartGame asks the server to deal and begin play in the given room.
func (c *Client) SendStartGame(gameID string) error {
	return c.sendIntent(startGameRequest{
		Action:   ActionStartGame,
		GameID:   gameID,
		PlayerID: c.PlayerID,
	})
}

// SendGameStateRequest asks for a fresh authoritative snapshot.
func (c *Client) SendGameStateRequest() error {
	return c.sendIntent(getGameStateRequest{
		Action:   ActionGetGameState,
		PlayerID: c.PlayerID,
	})
}

// SendPlayCard plays the card at the given hand position. chosenColor must be
// set for wild cards and nil otherwise.
func (c *Client) SendPlayCard(cardIndex int, chosenColor *uno.Color) error {
	return c.sendIntent(playCardRequest{
		Action:      ActionPlayCard,
		PlayerID:    c.PlayerID,
		CardIndex:   cardIndex,
		ChosenColor: chosenColor,
	})
}

// SendChooseColor answers a standalone server-mandated color choice.
func (c *Client) SendChooseColor(color uno.Color) error {
	return c.sendIntent(chooseColorRequest{
		Action:   ActionChooseColor,
		PlayerID: c.PlayerID,
		Color:    color,
	})
}

// SendDrawCard draws one card from the pile, ending the local player's turn.
func (c *Client) SendDrawCard() error {
	return c.sendIntent(drawCardRequest{
		Action:   ActionDrawCard,
		PlayerID: c.PlayerID,
	})
}

// SendPing sends an application-level keep-alive probe. Not rate limited.
func (c *Client) SendPing() error {
	return c.Send(pingRequest{Action: ActionPing})
}
