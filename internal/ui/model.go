// Package ui implements the terminal chat interface using bubbletea.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"Feedlytic/internal/backend"
	"Feedlytic/internal/conversation"
	"Feedlytic/internal/session"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const (
	headerHeight = 3
	inputHeight  = 3
	helpHeight   = 1
	loaderHeight = 6
)

// Chatter is the remote chat service as seen by the UI
type Chatter interface {
	FetchHistory(ctx context.Context, sessionID string) ([]session.Message, error)
	ResetSession(ctx context.Context, sessionID string) (json.RawMessage, error)
	StreamChat(ctx context.Context, sessionID, query string) *backend.Stream
}

// Options tune the presentation of the chat
type Options struct {
	Hints        []string
	HintInterval time.Duration
	Markdown     bool
}

// Messages for tea updates
type (
	historyMsg struct {
		sessionID string
		messages  []session.Message
		err       error
	}
	streamEventMsg struct {
		seq   int
		event backend.Event
	}
	resetMsg struct {
		sessionID string
		err       error
	}
)

// Model is the bubbletea model for the chat screen
type Model struct {
	ctx    context.Context
	client Chatter
	store  session.Store
	logger *slog.Logger

	// State
	view      *conversation.View
	sessionID string
	stream    *backend.Stream
	streamSeq int
	hintSeq   int
	resetting bool
	turnStart time.Time

	// UI Components
	textinput textinput.Model
	viewport  viewport.Model
	loader    Loader
	styles    Styles
	renderer  *glamour.TermRenderer
	markdown  bool

	width       int
	height      int
	ready       bool
	dirty       bool
	renderedRev uint64
}

// New creates the chat model for sessionID; history is fetched by Init
func New(ctx context.Context, client Chatter, store session.Store, sessionID string, opts Options, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Ask about today's headlines..."
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.Focus()

	view := conversation.New()
	view.BeginHistory()

	return Model{
		ctx:       ctx,
		client:    client,
		store:     store,
		logger:    logger,
		view:      view,
		sessionID: sessionID,
		textinput: ti,
		viewport:  viewport.New(80, 20),
		loader:    NewLoader(opts.Hints, opts.HintInterval, styles),
		styles:    styles,
		markdown:  opts.Markdown,
	}
}

// SessionID returns the identifier the conversation is currently bound to
func (m Model) SessionID() string {
	return m.sessionID
}

// Conversation exposes the underlying conversation state
func (m Model) Conversation() *conversation.View {
	return m.view
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.loadHistory())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.closeStream()
			return m, tea.Quit

		case tea.KeyCtrlR:
			cmds = append(cmds, m.handleReset())

		case tea.KeyEnter:
			cmds = append(cmds, m.handleSubmit())

		default:
			// The input is disabled while a reply is loading
			if !m.view.Loading() {
				var cmd tea.Cmd
				m.textinput, cmd = m.textinput.Update(msg)
				m.view.SetInput(m.textinput.Value())
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textinput.Width = max(msg.Width-6, 10)
		if m.markdown {
			m.renderer = newRenderer(msg.Width - 8)
		}
		m.ready = true
		m.dirty = true

	case historyMsg:
		if m.resetting || msg.sessionID != m.sessionID {
			return m, nil
		}
		if msg.err != nil {
			m.logger.Warn("could not load history for this session", "session_id", msg.sessionID, "error", msg.err)
		}
		m.view.LoadHistory(msg.messages, msg.err)

	case streamEventMsg:
		if m.stream == nil || msg.seq != m.streamSeq {
			return m, nil
		}
		switch msg.event.Type {
		case backend.EventIncrement:
			if m.view.Phase() == conversation.PhaseAwaitingFirstByte {
				m.logger.Debug("first increment received", "session_id", m.sessionID, "latency", time.Since(m.turnStart))
			}
			m.view.Increment(msg.event.Text)
			cmds = append(cmds, waitForStreamEvent(m.stream, m.streamSeq))
		case backend.EventDone:
			m.finishTurn(nil)
		case backend.EventError:
			m.logger.Error("streaming error", "session_id", m.sessionID, "error", msg.event.Err)
			m.finishTurn(msg.event.Err)
		}

	case resetMsg:
		m.resetting = false
		if msg.err != nil {
			m.logger.Error("failed to rotate session id", "error", msg.err)
			break
		}
		m.logger.Info("session reset", "old_session_id", m.sessionID, "session_id", msg.sessionID)
		m.sessionID = msg.sessionID

	case hintTickMsg:
		if msg.seq != m.hintSeq || !m.view.Loading() {
			return m, nil
		}
		if m.view.ShowLoader() {
			m.loader = m.loader.Next()
		}
		cmds = append(cmds, m.loader.tick(m.hintSeq))

	case spinner.TickMsg:
		if m.view.Loading() {
			var cmd tea.Cmd
			m.loader.spinner, cmd = m.loader.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.layout()
	return m, tea.Batch(cmds...)
}

func (m *Model) handleSubmit() tea.Cmd {
	if m.resetting {
		return nil
	}
	m.view.SetInput(m.textinput.Value())
	query, ok := m.view.Submit()
	if !ok {
		return nil
	}
	m.textinput.Reset()
	m.textinput.Blur()

	m.turnStart = time.Now()
	m.streamSeq++
	m.stream = m.client.StreamChat(m.ctx, m.sessionID, query)

	m.hintSeq++
	m.loader = m.loader.Restart()

	return tea.Batch(
		waitForStreamEvent(m.stream, m.streamSeq),
		m.loader.spinner.Tick,
		m.loader.tick(m.hintSeq),
	)
}

// handleReset clears the conversation and rotates the session id
// whether or not the server accepts the reset
func (m *Model) handleReset() tea.Cmd {
	if m.resetting {
		return nil
	}
	m.resetting = true
	m.closeStream()
	m.view.Reset()
	m.textinput.Focus()

	old := m.sessionID
	client, store, logger, ctx := m.client, m.store, m.logger, m.ctx
	return func() tea.Msg {
		if _, err := client.ResetSession(ctx, old); err != nil {
			logger.Error("failed to reset session", "session_id", old, "error", err)
		}
		id, err := store.Reset(ctx)
		return resetMsg{sessionID: id, err: err}
	}
}

func (m *Model) finishTurn(err error) {
	m.closeStream()
	m.view.Settle(err)
	m.textinput.Focus()
}

func (m *Model) closeStream() {
	if m.stream == nil {
		return
	}
	m.stream.Close()
	m.stream = nil
	m.streamSeq++
}

func (m Model) loadHistory() tea.Cmd {
	id := m.sessionID
	client, ctx := m.client, m.ctx
	return func() tea.Msg {
		messages, err := client.FetchHistory(ctx, id)
		return historyMsg{sessionID: id, messages: messages, err: err}
	}
}

func waitForStreamEvent(s *backend.Stream, seq int) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-s.Events()
		if !ok {
			ev = backend.Event{Type: backend.EventError, Err: errors.New("chat stream closed")}
		}
		return streamEventMsg{seq: seq, event: ev}
	}
}

// layout sizes the viewport around the loader and refreshes its content
// when the message sequence changed, scrolling to the newest message
func (m *Model) layout() {
	if !m.ready {
		return
	}
	height := m.height - headerHeight - inputHeight - helpHeight
	if m.view.ShowLoader() {
		height -= loaderHeight
	}
	m.viewport.Width = max(m.width, 1)
	m.viewport.Height = max(height, 1)

	if rev := m.view.Revision(); m.dirty || rev != m.renderedRev {
		m.viewport.SetContent(m.renderMessages())
		m.viewport.GotoBottom()
		m.renderedRev = rev
		m.dirty = false
	}
}

func (m Model) renderMessages() string {
	width := max(m.width-4, 10)
	var b strings.Builder
	for _, msg := range m.view.Visible() {
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(m.styles.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(m.styles.UserBubble.Width(width).Render(msg.Text))
		default:
			b.WriteString(m.styles.AssistantLabel.Render("Feedlytic"))
			b.WriteString("\n")
			b.WriteString(m.styles.AssistantBubble.Width(width).Render(m.renderMarkdown(msg.Text)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderMarkdown(text string) string {
	if m.renderer == nil {
		return text
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimSpace(out)
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.styles.Header.Width(max(m.width-2, 1)).Render(
		m.styles.Title.Render("Feedlytic") + "  " + m.styles.Subtitle.Render("Piping the World into Your Feed"),
	)

	sections := []string{header, m.viewport.View()}
	if m.view.ShowLoader() {
		sections = append(sections, m.loader.View(m.styles, m.width-4))
	}
	help := "ctrl+r reset session • esc quit"
	if m.view.CanSubmit() {
		help = "enter send • " + help
	}
	sections = append(sections,
		m.styles.Input.Width(max(m.width-2, 1)).Render(m.textinput.View()),
		m.styles.Help.Render(help),
	)
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func newRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(max(width, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}
