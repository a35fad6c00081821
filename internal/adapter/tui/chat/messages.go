// Package chat implements the Bubble Tea chat surface over the aggregator.
package chat

// ChatChangedMsg signals that the aggregator state changed and the view
// should re-render.
type ChatChangedMsg struct{}

// StreamStatusMsg carries a transport connection-state change.
type StreamStatusMsg struct {
	Status string
}

// RunDoneMsg signals that the send goroutine finished. Gen identifies the
// request so stale completions can be discarded.
type RunDoneMsg struct {
	Err error
	Gen uint64
}

// QuitMsg signals the program to exit.
type QuitMsg struct{}
