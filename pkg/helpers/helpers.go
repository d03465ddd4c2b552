package helpers

import (
	"flag"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/go-uno/client/pkg/client"
	"github.com/go-uno/client/pkg/client/modules/session"
	"github.com/go-uno/client/pkg/uno"
)

// DefaultServerURL is used when neither the flag nor the environment name a
// server.
const DefaultServerURL = "ws://localhost:8080/game"

// Flags holds common CLI flags for example programs.
type Flags struct {
	URL        string
	Name       string
	Verbose    bool
	Reconnects int
}

// RegisterFlags registers the standard CLI flags on the default flag set.
func RegisterFlags(f *Flags) {
	flag.StringVar(&f.URL, "s", "", "server websocket url (default $UNO_SERVER_URL or "+DefaultServerURL+")")
	flag.StringVar(&f.Name, "u", "", "player name (default $UNO_PLAYER_NAME or \"guest\")")
	flag.BoolVar(&f.Verbose, "v", false, "verbose logging")
	flag.IntVar(&f.Reconnects, "reconnects", 5, "max reconnect attempts before giving up")
}

// ServerURL resolves the server address from the flag, a .env file or the
// environment, falling back to the local default.
func ServerURL(f Flags) string {
	if f.URL != "" {
		return f.URL
	}
	_ = godotenv.Load()
	if url := os.Getenv("UNO_SERVER_URL"); url != "" {
		return url
	}
	return DefaultServerURL
}

func playerName(f Flags) string {
	if f.Name != "" {
		return f.Name
	}
	if name := os.Getenv("UNO_PLAYER_NAME"); name != "" {
		return name
	}
	return "guest"
}

// NewClient creates a client from parsed flags with the session module
// registered. Log output goes to logOut, or stderr when nil.
func NewClient(f Flags, logOut io.Writer) *client.Client {
	if logOut == nil {
		logOut = os.Stderr
	}
	level := zerolog.InfoLevel
	if f.Verbose {
		level = zerolog.DebugLevel
	}

	c := client.New(ServerURL(f), playerName(f))
	c.MaxReconnectAttempts = f.Reconnects
	c.Logger = zerolog.New(zerolog.ConsoleWriter{Out: logOut}).
		With().Timestamp().Logger().Level(level)

	c.Register(session.New())
	return c
}

// Game bundles a client with its session module behind the intent surface
// the TUI and bots drive.
type Game struct {
	C *client.Client
	S *session.Module
}

// NewGame creates a client via NewClient and wraps it with its session
// module.
func NewGame(f Flags, logOut io.Writer) *Game {
	c := NewClient(f, logOut)
	return &Game{C: c, S: session.From(c)}
}

func (g *Game) PlayerName() string { return g.C.PlayerName }

func (g *Game) ServerURL() string { return g.C.URL }

func (g *Game) Phase() session.Phase { return g.S.Phase() }

func (g *Game) Context() session.Context { return g.S.Context() }

func (g *Game) PlayableHand() []bool { return g.S.PlayableHand() }

func (g *Game) PendingCard() (uno.Card, bool) { return g.S.PendingCard() }

func (g *Game) CreateGame(roomName string, maxPlayers int) error {
	return g.S.CreateGame(roomName, maxPlayers)
}

func (g *Game) JoinGame(gameID string) error { return g.S.JoinGame(gameID) }

func (g *Game) StartGame() error { return g.S.StartGame() }

func (g *Game) PlayCard(index int) error { return g.S.PlayCard(index) }

func (g *Game) DrawCard() error { return g.S.DrawCard() }

func (g *Game) ChooseColor(color uno.Color) error { return g.S.ChooseColor(color) }

func (g *Game) CancelColorChoice() error { return g.S.CancelColorChoice() }

func (g *Game) Leave() error { return g.S.Leave() }

func (g *Game) RequestState() error { return g.S.RequestState() }

func (g *Game) Quit() error { return g.C.Close() }
