// Package conversation holds the message list shown to the user and the
// state of the turn currently in flight.
package conversation

import (
	"slices"
	"strings"

	"Feedlytic/internal/session"
)

// FallbackMessage is appended when a chat request fails
const FallbackMessage = "Sorry — something went wrong."

// Phase is the state of the current turn
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingFirstByte
	PhaseStreaming
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingFirstByte:
		return "awaiting-first-byte"
	case PhaseStreaming:
		return "streaming"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// View is the conversation state.
// The message slice is never modified in place: every change installs a new slice,
// so slices returned by Messages stay valid.
type View struct {
	messages []session.Message
	input    string
	loading  bool
	phase    Phase
	revision uint64
}

func New() *View {
	return &View{}
}

// Messages returns the full message sequence, including hidden placeholders
func (v *View) Messages() []session.Message {
	return v.messages
}

func (v *View) Input() string {
	return v.input
}

func (v *View) SetInput(s string) {
	v.input = s
}

func (v *View) Loading() bool {
	return v.loading
}

func (v *View) Phase() Phase {
	return v.phase
}

// Revision changes whenever the message sequence changes
func (v *View) Revision() uint64 {
	return v.revision
}

// CanSubmit reports whether the send control is enabled
func (v *View) CanSubmit() bool {
	return !v.loading && strings.TrimSpace(v.input) != ""
}

// Submit starts a turn: it appends the user message and an empty assistant
// placeholder, clears the input and raises the loading flag.
// It returns the query to send, or false if submission is not allowed.
func (v *View) Submit() (string, bool) {
	if !v.CanSubmit() {
		return "", false
	}
	query := v.input
	v.input = ""
	v.loading = true
	v.phase = PhaseAwaitingFirstByte
	v.replace(append(slices.Clip(v.messages),
		session.Message{Role: session.RoleUser, Text: query},
		session.Message{Role: session.RoleAssistant},
	))
	return query, true
}

// Increment appends text to the trailing assistant message.
// It is ignored when the last message is not from the assistant.
func (v *View) Increment(text string) {
	n := len(v.messages)
	if n == 0 || v.messages[n-1].Role != session.RoleAssistant {
		return
	}
	next := slices.Clone(v.messages)
	next[n-1] = session.Message{Role: session.RoleAssistant, Text: next[n-1].Text + text}
	v.replace(next)
	if v.phase == PhaseAwaitingFirstByte {
		v.phase = PhaseStreaming
	}
}

// Settle ends the current turn; a non-nil err adds the fallback reply
func (v *View) Settle(err error) {
	v.loading = false
	v.phase = PhaseSettled
	if err != nil {
		v.replace(append(slices.Clip(v.messages),
			session.Message{Role: session.RoleAssistant, Text: FallbackMessage},
		))
	}
}

// BeginHistory raises the loading flag while prior messages are fetched
func (v *View) BeginHistory() {
	v.loading = true
}

// LoadHistory installs fetched messages; on error the conversation starts empty
func (v *View) LoadHistory(messages []session.Message, err error) {
	v.loading = false
	if err != nil {
		messages = nil
	}
	v.replace(slices.Clone(messages))
}

// Reset clears the conversation
func (v *View) Reset() {
	v.loading = false
	v.phase = PhaseIdle
	v.replace(nil)
}

// Visible returns the messages to render: blank assistant messages are never shown
func (v *View) Visible() []session.Message {
	visible := make([]session.Message, 0, len(v.messages))
	for _, msg := range v.messages {
		if msg.Role == session.RoleAssistant && msg.IsBlank() {
			continue
		}
		visible = append(visible, msg)
	}
	return visible
}

// ShowLoader reports whether the loading indicator replaces the empty placeholder
func (v *View) ShowLoader() bool {
	n := len(v.messages)
	if !v.loading || n == 0 {
		return false
	}
	last := v.messages[n-1]
	return last.Role == session.RoleAssistant && last.Text == ""
}

func (v *View) replace(messages []session.Message) {
	v.messages = messages
	v.revision++
}
