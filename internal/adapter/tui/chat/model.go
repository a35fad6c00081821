package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"agentdesk/internal/domain"
	usecasechat "agentdesk/internal/usecase/chat"
)

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Padding(0, 1)
)

// ModelDeps are the dependencies injected into the chat model.
type ModelDeps struct {
	Sender    Sender
	Agg       *usecasechat.Aggregator
	AgentName string
	Logger    *slog.Logger
}

// Model is the root Bubble Tea model: viewport over the conversation, a
// textarea for input, and a status line with streaming progress.
type Model struct {
	deps ModelDeps

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	width    int
	height   int
	ready    bool
	waiting  bool
	quitting bool

	streamStatus string
	lastErr      error

	// gen is bumped on every submit; RunDoneMsg with an older gen belongs to
	// a superseded send and is ignored.
	gen      uint64
	cancelFn context.CancelFunc
}

// NewModel creates the chat model.
func NewModel(deps ModelDeps) Model {
	ta := textarea.New()
	ta.Placeholder = "Message the agent (/clear, /quit)"
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot

	return Model{
		deps:    deps,
		input:   ta,
		spinner: s,
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 1
		footerHeight := m.input.Height() + 2
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.input.SetWidth(msg.Width - 2)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			m.quitting = true
			m.deps.Sender.Stop()
			return m, tea.Quit
		case tea.KeyEnter:
			return m.handleSubmit()
		}

	case ChatChangedMsg:
		m.refresh()
		return m, nil

	case StreamStatusMsg:
		m.streamStatus = msg.Status
		return m, nil

	case RunDoneMsg:
		if msg.Gen != m.gen {
			return m, nil
		}
		m.waiting = false
		m.input.Focus()
		if msg.Err != nil && msg.Err != context.Canceled {
			m.lastErr = msg.Err
		}
		m.refresh()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) handleSubmit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	switch text {
	case "/quit":
		m.quitting = true
		m.deps.Sender.Stop()
		return m, tea.Quit
	case "/clear":
		m.deps.Agg.ClearCurrent()
		m.input.Reset()
		m.lastErr = nil
		m.refresh()
		return m, nil
	}

	if m.waiting {
		// One active run at a time from the UI; a new submit supersedes it.
		if m.cancelFn != nil {
			m.cancelFn()
		}
	}

	m.input.Reset()
	m.waiting = true
	m.lastErr = nil
	m.gen++

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel
	return m, sendCmd(ctx, m.deps.Sender, text, m.gen)
}

// refresh re-renders the conversation into the viewport and scrolls to the
// bottom.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderConversation())
	m.viewport.GotoBottom()
}

func (m *Model) renderConversation() string {
	var b strings.Builder

	for _, msg := range m.deps.Agg.Messages() {
		switch msg.Role {
		case domain.RoleUser:
			b.WriteString(userStyle.Render("You") + "\n" + msg.Content + "\n\n")
		case domain.RoleAssistant:
			b.WriteString(assistantStyle.Render(m.agentLabel()) + "\n" + msg.Content + "\n\n")
		}
	}

	if m.deps.Agg.IsStreaming() {
		b.WriteString(m.renderLiveRun())
	}
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render("error: "+m.lastErr.Error()) + "\n")
	}
	return b.String()
}

// renderLiveRun shows the in-flight run: step progress, current steps, and
// the answer as soon as the delivering tool call arrives.
func (m *Model) renderLiveRun() string {
	var b strings.Builder

	for _, step := range m.deps.Agg.Steps() {
		marker := "·"
		switch step.Status {
		case domain.StepCompleted:
			marker = "✓"
		case domain.StepError:
			marker = "✗"
		case domain.StepRunning:
			marker = m.spinner.View()
		}
		title := step.Title
		if title == "" {
			title = step.ID
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s %s", marker, title)) + "\n")
	}

	if answer, ok := m.deps.Agg.DisplayedResponse(); ok {
		b.WriteString("\n" + assistantStyle.Render(m.agentLabel()) + "\n" + answer + "\n")
	} else if thinking := m.deps.Agg.Thinking(); thinking != "" {
		b.WriteString("\n" + dimStyle.Render(thinking) + "\n")
	}
	return b.String()
}

func (m *Model) agentLabel() string {
	if m.deps.AgentName != "" {
		return m.deps.AgentName
	}
	return "Agent"
}

// View renders status line, conversation viewport, and input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}
	return m.statusLine() + "\n" + m.viewport.View() + "\n" + m.input.View()
}

func (m Model) statusLine() string {
	var parts []string
	if m.deps.Agg.IsStreaming() {
		completed, total := m.deps.Agg.MainStepProgress()
		if total > 0 {
			parts = append(parts, fmt.Sprintf("%s steps %d/%d", m.spinner.View(), completed, total))
		} else {
			parts = append(parts, m.spinner.View()+" working")
		}
	}
	if m.streamStatus != "" {
		parts = append(parts, "stream: "+m.streamStatus)
	}
	if len(parts) == 0 {
		parts = append(parts, "ready")
	}
	return statusStyle.Render(strings.Join(parts, "  |  "))
}
