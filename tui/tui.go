// Package tui is the interactive terminal front end: a scrolling event log, a
// status header describing the table and a command prompt for game intents.
package tui

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-uno/client/pkg/client/modules/session"
	"github.com/go-uno/client/pkg/uno"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	playableStyle = lipgloss.NewStyle().Bold(true)

	cardStyles = map[uno.Color]lipgloss.Style{
		uno.Red:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		uno.Blue:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		uno.Green:  lipgloss.NewStyle().Foreground(lipgloss.Color("40")),
		uno.Yellow: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		uno.Wild:   lipgloss.NewStyle().Foreground(lipgloss.Color("201")),
	}
)

// Game defines what the TUI needs from the underlying client and its session
// module.
type Game interface {
	PlayerName() string
	ServerURL() string
	Phase() session.Phase
	Context() session.Context
	PlayableHand() []bool
	PendingCard() (uno.Card, bool)
	CreateGame(roomName string, maxPlayers int) error
	JoinGame(gameID string) error
	StartGame() error
	PlayCard(index int) error
	DrawCard() error
	ChooseColor(color uno.Color) error
	CancelColorChoice() error
	Leave() error
	RequestState() error
	Quit() error
}

const maxLogLines = 500

// TUI is the bubbletea model for the interactive client.
type TUI struct {
	game      Game
	viewport  viewport.Model
	textInput textinput.Model
	logs      []string
	logMutex  sync.Mutex
	ready     bool
	width     int
	height    int
}

// New creates a new TUI instance.
func New(game Game) *TUI {
	ti := textinput.New()
	ti.Placeholder = "/new, /join <id>, /play <n>, /draw, /color red..."
	ti.Focus()
	ti.CharLimit = 128
	ti.Width = 50

	return &TUI{
		game:      game,
		textInput: ti,
		logs:      []string{},
	}
}

// Init initializes the TUI.
func (t *TUI) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles TUI updates.
func (t *TUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			t.game.Quit()
			return t, tea.Quit

		case tea.KeyEnter:
			input := strings.TrimSpace(t.textInput.Value())
			if input != "" {
				cmd := t.handleCommand(input)
				t.textInput.SetValue("")
				t.refreshViewport()
				return t, cmd
			}
			return t, nil
		}

	case tea.WindowSizeMsg:
		headerLines := strings.Count(t.header(), "\n") + 1
		if !t.ready {
			t.viewport = viewport.New(msg.Width, msg.Height-headerLines-3)
			t.viewport.SetContent(t.renderLogs())
			t.ready = true
		} else {
			t.viewport.Width = msg.Width
			t.viewport.Height = msg.Height - headerLines - 3
		}
		t.width = msg.Width
		t.height = msg.Height
		t.textInput.Width = msg.Width - 2

	case LogMsg:
		t.AddLog(string(msg))
		t.refreshViewport()
		return t, nil

	case RefreshMsg:
		// Header re-renders from the session context on View.
		return t, nil
	}

	if t.ready {
		t.viewport, cmd = t.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	t.textInput, cmd = t.textInput.Update(msg)
	cmds = append(cmds, cmd)

	return t, tea.Batch(cmds...)
}

func (t *TUI) refreshViewport() {
	if !t.ready {
		return
	}
	// do not scroll if not at bottom, to prevent flickering
	wasAtBottom := t.viewport.AtBottom()
	t.viewport.SetContent(t.renderLogs())
	if wasAtBottom {
		t.viewport.GotoBottom()
	}
}

func (t *TUI) handleCommand(input string) tea.Cmd {
	if !strings.HasPrefix(input, "/") {
		t.AddLog("commands start with /, try /help")
		return nil
	}
	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "/help":
		t.AddLog("/new [name] [size] • /join <id> • /start • /play <n> • /draw • /color <red|blue|green|yellow> • /cancel • /leave • /state • /quit")
	case "/new":
		room := ""
		size := 0
		if len(args) > 0 {
			room = args[0]
		}
		if len(args) > 1 {
			size, _ = strconv.Atoi(args[1])
		}
		err = t.game.CreateGame(room, size)
	case "/join":
		if len(args) != 1 {
			t.AddLog("usage: /join <game-id>")
			return nil
		}
		err = t.game.JoinGame(args[0])
	case "/start":
		err = t.game.StartGame()
	case "/play":
		if len(args) != 1 {
			t.AddLog("usage: /play <hand-position>")
			return nil
		}
		var n int
		if n, err = strconv.Atoi(args[0]); err != nil {
			t.AddLog("usage: /play <hand-position>")
			return nil
		}
		err = t.game.PlayCard(n)
	case "/draw":
		err = t.game.DrawCard()
	case "/color":
		if len(args) != 1 {
			t.AddLog("usage: /color <red|blue|green|yellow>")
			return nil
		}
		err = t.game.ChooseColor(uno.Color(strings.ToUpper(args[0])))
	case "/cancel":
		err = t.game.CancelColorChoice()
	case "/leave":
		err = t.game.Leave()
	case "/state":
		err = t.game.RequestState()
	case "/quit":
		t.game.Quit()
		return tea.Quit
	default:
		t.AddLog("unknown command, try /help")
	}
	if err != nil {
		t.AddLog(fmt.Sprintf("error: %v", err))
	}
	return nil
}

func renderCard(c uno.Card) string {
	if style, ok := cardStyles[c.Color]; ok {
		return style.Render(c.String())
	}
	return c.String()
}

func (t *TUI) header() string {
	ctx := t.game.Context()
	phase := t.game.Phase()

	title := titleStyle.Render(fmt.Sprintf("UNO - %s@%s", t.game.PlayerName(), t.game.ServerURL()))

	status := "phase: " + phase.String()
	if ctx.SessionID != "" {
		status += " | game: " + ctx.SessionID
	}
	if ctx.Interrupted {
		status += " | RECONNECTING"
	}
	if ctx.TopCard != nil {
		status += " | top: " + renderCard(*ctx.TopCard)
	}
	if phase == session.PhaseInProgress || phase == session.PhaseAwaitingColorChoice {
		if ctx.MyTurn {
			status += " | your turn"
		} else {
			for _, p := range ctx.Players {
				if p.ID == ctx.CurrentPlayer {
					status += " | turn: " + p.Name
					break
				}
			}
		}
		status += fmt.Sprintf(" | pile: %d", ctx.DrawPileSize)
	}
	if phase == session.PhaseAwaitingColorChoice {
		if card, ok := t.game.PendingCard(); ok {
			status += " | pick a color for " + renderCard(card)
		} else {
			status += " | pick a color with /color"
		}
	}
	if phase == session.PhaseEnded && ctx.WinnerName != "" {
		status += " | winner: " + ctx.WinnerName
	}

	var seats []string
	for _, p := range ctx.Players {
		seat := fmt.Sprintf("%s(%d)", p.Name, p.HandSize)
		if !p.Connected {
			seat += "!"
		}
		seats = append(seats, seat)
	}

	playable := t.game.PlayableHand()
	var hand []string
	for i, c := range ctx.Hand {
		entry := fmt.Sprintf("%d:%s", i, renderCard(c))
		if i < len(playable) && playable[i] {
			entry = playableStyle.Render(entry + "*")
		}
		hand = append(hand, entry)
	}

	lines := []string{title, status}
	if len(seats) > 0 {
		lines = append(lines, "seats: "+strings.Join(seats, "  "))
	}
	if len(hand) > 0 {
		lines = append(lines, "hand:  "+strings.Join(hand, "  "))
	}
	return strings.Join(lines, "\n")
}

// View renders the TUI.
func (t *TUI) View() string {
	if !t.ready {
		return "Initializing..."
	}

	help := helpStyle.Render("Enter: run command • /help: commands • Ctrl+C/Esc: quit")

	return fmt.Sprintf(
		"%s\n%s\n%s\n%s",
		t.header(),
		t.viewport.View(),
		inputStyle.Render("> "+t.textInput.View()),
		help,
	)
}

// AddLog adds a line to the event log.
func (t *TUI) AddLog(msg string) {
	t.logMutex.Lock()
	defer t.logMutex.Unlock()
	t.logs = append(t.logs, msg)

	if len(t.logs) > maxLogLines {
		t.logs = t.logs[len(t.logs)-maxLogLines:]
	}
}

func (t *TUI) renderLogs() string {
	t.logMutex.Lock()
	defer t.logMutex.Unlock()
	return strings.Join(t.logs, "\n")
}

// LogMsg appends a line to the event log.
type LogMsg string

// RefreshMsg forces a header re-render after the session context changed.
type RefreshMsg struct{}

// Writer is an io.Writer that relays output into a TUI program. It can be
// created before the program exists so loggers can target it from the start;
// anything written before Attach is dropped.
type Writer struct {
	mu      sync.Mutex
	program *tea.Program
}

// NewWriter creates a new TUI Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Attach points the writer at a running program.
func (w *Writer) Attach(p *tea.Program) {
	w.mu.Lock()
	w.program = p
	w.mu.Unlock()
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	program := w.program
	w.mu.Unlock()
	if program == nil {
		return len(p), nil
	}
	msg := strings.TrimSuffix(string(p), "\n")
	if msg != "" {
		program.Send(LogMsg(msg))
	}
	return len(p), nil
}

// Start creates a new TUI program for game and attaches the writer, which may
// be nil. The caller runs the returned program.
func Start(game Game, w *Writer) *tea.Program {
	t := New(game)
	p := tea.NewProgram(t, tea.WithAltScreen())
	if w != nil {
		w.Attach(p)
	}
	return p
}

// Refresh asks the given program to re-render its header.
func Refresh(program *tea.Program) {
	if program != nil {
		program.Send(RefreshMsg{})
	}
}
