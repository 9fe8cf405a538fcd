package ui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// hintTickMsg advances the loader hint; seq ties it to one loading period
type hintTickMsg struct {
	seq int
}

// Loader is the typing indicator shown in place of an empty assistant reply.
// It rotates through hints on a fixed interval and draws a skeleton of the reply.
type Loader struct {
	hints    []string
	index    int
	interval time.Duration
	spinner  spinner.Model
}

func NewLoader(hints []string, interval time.Duration, styles Styles) Loader {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Loader{
		hints:    hints,
		interval: interval,
		spinner:  sp,
	}
}

// Hint returns the hint currently shown
func (l Loader) Hint() string {
	if len(l.hints) == 0 {
		return ""
	}
	return l.hints[l.index]
}

// Next moves to the following hint, wrapping around
func (l Loader) Next() Loader {
	if len(l.hints) > 0 {
		l.index = (l.index + 1) % len(l.hints)
	}
	return l
}

// Restart shows the first hint again
func (l Loader) Restart() Loader {
	l.index = 0
	return l
}

func (l Loader) tick(seq int) tea.Cmd {
	return tea.Tick(l.interval, func(time.Time) tea.Msg {
		return hintTickMsg{seq: seq}
	})
}

func (l Loader) View(styles Styles, width int) string {
	short, long, medium := width/3, width*4/5, width/2
	if width <= 0 {
		short, long, medium = 12, 32, 20
	}

	var b strings.Builder
	b.WriteString(styles.AssistantLabel.Render("Feedlytic"))
	b.WriteString(" ")
	b.WriteString(l.spinner.View())
	b.WriteString("\n")
	b.WriteString(styles.Hint.Render(l.Hint()))
	b.WriteString("\n")
	for _, n := range []int{short, long, medium} {
		b.WriteString(styles.Skeleton.Render(strings.Repeat("░", max(n, 1))))
		b.WriteString("\n")
	}
	return b.String()
}
