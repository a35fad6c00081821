package chat

import (
	"context"
	"encoding/json"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"agentdesk/internal/domain"
)

// UI owns the Bubble Tea program and the bus subscriptions that push
// aggregator changes into its update loop.
type UI struct {
	deps    ModelDeps
	bus     domain.EventBus
	program *tea.Program
	logger  *slog.Logger
}

// NewUI creates the chat UI.
func NewUI(deps ModelDeps, bus domain.EventBus) *UI {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &UI{deps: deps, bus: bus, logger: logger}
}

// Start creates the program, bridges bus events into it, and blocks until
// the user quits or ctx is cancelled.
func (u *UI) Start(ctx context.Context) error {
	u.program = tea.NewProgram(NewModel(u.deps), tea.WithAltScreen())

	// The bridge: state-change notifications become Bubble Tea messages.
	// Handlers run on bus goroutines; program.Send is safe from any of them.
	unsubs := []func(){
		u.bus.Subscribe(domain.EventChatChanged, func(context.Context, domain.Event) {
			u.program.Send(ChatChangedMsg{})
		}),
		u.bus.Subscribe(domain.EventRunFinalized, func(context.Context, domain.Event) {
			u.program.Send(ChatChangedMsg{})
		}),
		u.bus.Subscribe(domain.EventStreamStatus, func(_ context.Context, ev domain.Event) {
			var p struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(ev.Payload, &p); err != nil {
				return
			}
			u.program.Send(StreamStatusMsg{Status: p.Status})
		}),
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	go func() {
		<-ctx.Done()
		if u.program != nil {
			u.program.Send(QuitMsg{})
		}
	}()

	_, err := u.program.Run()
	return err
}

// Stop signals the program to quit.
func (u *UI) Stop() {
	if u.program != nil {
		u.program.Send(QuitMsg{})
	}
}
