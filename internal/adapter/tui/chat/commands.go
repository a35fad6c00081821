package chat

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender is the blocking send operation the TUI drives. Satisfied by
// *chat.Runner from the usecase layer.
type Sender interface {
	Send(ctx context.Context, text string) error
	Stop()
}

// sendCmd runs one send in a background goroutine. gen identifies the
// request so the completion of a superseded send can be discarded.
func sendCmd(ctx context.Context, sender Sender, text string, gen uint64) tea.Cmd {
	return func() tea.Msg {
		err := sender.Send(ctx, text)
		return RunDoneMsg{Err: err, Gen: gen}
	}
}
