package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/Ruqii/LLMPuzzle/internal/protocol"
)

type styles struct {
	header lipgloss.Style
	me     lipgloss.Style
	notice lipgloss.Style
	own    lipgloss.Style
	result lipgloss.Style
	status lipgloss.Style
	errors lipgloss.Style
}

func newStyles() styles {
	pink := lipgloss.Color("#ff71ce")
	blue := lipgloss.Color("#01cdfe")
	mint := lipgloss.Color("#05ffa1")
	muted := lipgloss.Color("#9ca3d8")

	return styles{
		header: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		me:     lipgloss.NewStyle().Foreground(mint).Bold(true),
		notice: lipgloss.NewStyle().Foreground(muted).Italic(true),
		own:    lipgloss.NewStyle().Foreground(mint),
		result: lipgloss.NewStyle().Foreground(pink).Bold(true),
		status: lipgloss.NewStyle().Foreground(muted),
		errors: lipgloss.NewStyle().Foreground(pink),
	}
}

type model struct {
	conn    sender
	inbound <-chan tea.Msg

	input    textinput.Model
	timeline viewport.Model
	styles   styles

	lines   []string
	me      string
	players []string
	voted   bool
	seconds int
	result  string
	status  string
	ready   bool
}

func newModel(conn sender, inbound <-chan tea.Msg) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 500
	input.Placeholder = "Chat, or /vote <name>, /quit"
	input.Focus()

	return model{
		conn:     conn,
		inbound:  inbound,
		input:    input,
		timeline: viewport.New(0, 0),
		styles:   newStyles(),
		status:   "connected",
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitFrame(m.inbound))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.timeline.Width = msg.Width
		m.timeline.Height = max(msg.Height-6, 3)
		m.input.Width = max(msg.Width-4, 10)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			_ = m.conn.Close()
			return m, tea.Quit
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			return m.submit(text)
		}

	case frameMsg:
		m.handleFrame(string(msg))
		return m, waitFrame(m.inbound)

	case disconnectedMsg:
		m.status = "disconnected"
		if msg.err != nil && !websocket.IsCloseError(msg.err, websocket.CloseNormalClosure) {
			m.status = "disconnected: " + msg.err.Error()
		}
		m.input.Blur()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.timeline, cmd = m.timeline.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// submit handles one line typed by the player.
func (m model) submit(text string) (tea.Model, tea.Cmd) {
	switch {
	case text == "":
		return m, nil
	case text == "/quit":
		_ = m.conn.Close()
		return m, tea.Quit
	case text == "/vote" || strings.HasPrefix(text, "/vote "):
		m.vote(strings.TrimSpace(strings.TrimPrefix(text, "/vote")))
		return m, nil
	case strings.HasPrefix(text, "/"):
		m.status = fmt.Sprintf("unknown command %q", text)
		return m, nil
	}

	if m.result != "" {
		m.status = "the round is over"
		return m, nil
	}
	if err := m.conn.SendText(text); err != nil {
		m.status = "send failed: " + err.Error()
	}
	return m, nil
}

func (m *model) vote(name string) {
	switch {
	case m.voted:
		m.status = "you already voted"
		return
	case name == "":
		m.status = "usage: /vote <name>; players: " + strings.Join(m.players, ", ")
		return
	case name == m.me:
		m.status = "you can't vote for yourself"
		return
	}
	if err := m.conn.SendVote(name); err != nil {
		m.status = "vote failed: " + err.Error()
		return
	}
	m.voted = true
	m.status = fmt.Sprintf("you voted for %s, waiting for the others", name)
}

// handleFrame applies a JSON envelope or appends a plain chat line.
func (m *model) handleFrame(data string) {
	var base protocol.BaseMessage
	if strings.HasPrefix(data, "{") && json.Unmarshal([]byte(data), &base) == nil && base.Type != "" {
		if m.applyEnvelope(base.Type, []byte(data)) {
			return
		}
	}
	m.lines = append(m.lines, data)
	m.refresh()
}

func (m *model) applyEnvelope(typ string, data []byte) bool {
	switch typ {
	case protocol.TypeAssignID:
		var msg protocol.AssignIDMessage
		if json.Unmarshal(data, &msg) == nil {
			m.me = msg.ChatID
		}
	case protocol.TypeUpdatePlayers:
		var msg protocol.UpdatePlayersMessage
		if json.Unmarshal(data, &msg) == nil {
			m.players = msg.Players
		}
	case protocol.TypeVotingStart:
		var msg protocol.VotingStartMessage
		if json.Unmarshal(data, &msg) == nil {
			m.players = msg.Players
			m.seconds = msg.Seconds
			m.status = fmt.Sprintf("chat for %ds, then /vote for the bot", msg.Seconds)
		}
	case protocol.TypeVotingResult:
		var msg protocol.VotingResultMessage
		if json.Unmarshal(data, &msg) == nil {
			m.result = fmt.Sprintf("🎭 The AI was %s. 🏆 %s win!", msg.AINickname, msg.Winner)
			m.input.Blur()
		}
	case protocol.TypeError:
		var msg protocol.ErrorMessage
		if json.Unmarshal(data, &msg) == nil {
			m.status = "error: " + msg.Message
			if msg.Code == protocol.ErrorCodeInvalidVote {
				m.voted = false
			}
		}
	default:
		return false
	}
	return true
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	rendered := make([]string, 0, len(m.lines))
	for _, line := range m.lines {
		rendered = append(rendered, m.styleLine(line))
	}
	m.timeline.SetContent(strings.Join(rendered, "\n"))
	m.timeline.GotoBottom()
}

func (m model) styleLine(line string) string {
	switch {
	case m.me != "" && strings.HasPrefix(line, m.me+": "):
		return m.styles.own.Render(line)
	case strings.HasPrefix(line, "🟢"), strings.HasPrefix(line, "🔴"), strings.HasPrefix(line, "📢"):
		return m.styles.notice.Render(line)
	}
	return line
}

func (m model) View() string {
	if !m.ready {
		return "connecting..."
	}
	me := m.me
	if me == "" {
		me = "?"
	}
	header := m.styles.header.Render(
		"🤖 Bot or Not  " + m.styles.me.Render("You are: "+me) + "  Players: " + strings.Join(m.players, ", "))

	footer := m.styles.status.Render(m.status)
	if m.result != "" {
		footer = m.styles.result.Render(m.result)
	} else if strings.HasPrefix(m.status, "error") || strings.HasPrefix(m.status, "disconnected") {
		footer = m.styles.errors.Render(m.status)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, m.timeline.View(), m.input.View(), footer)
}
