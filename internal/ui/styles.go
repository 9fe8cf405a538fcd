package ui

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used by the chat view
type Styles struct {
	Title           lipgloss.Style
	Subtitle        lipgloss.Style
	Header          lipgloss.Style
	UserLabel       lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantLabel  lipgloss.Style
	AssistantBubble lipgloss.Style
	Spinner         lipgloss.Style
	Hint            lipgloss.Style
	Skeleton        lipgloss.Style
	Input           lipgloss.Style
	Help            lipgloss.Style
}

func DefaultStyles() Styles {
	accent := lipgloss.Color("63")
	muted := lipgloss.Color("241")

	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		Subtitle: lipgloss.NewStyle().Foreground(muted).Italic(true),
		Header: lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(muted).
			Padding(0, 1),
		UserLabel: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		UserBubble: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1),
		AssistantLabel: lipgloss.NewStyle().Bold(true).Foreground(accent),
		AssistantBubble: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
		Spinner:  lipgloss.NewStyle().Foreground(accent).Bold(true),
		Hint:     lipgloss.NewStyle().Foreground(muted).Italic(true),
		Skeleton: lipgloss.NewStyle().Foreground(lipgloss.Color("237")),
		Input: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),
		Help: lipgloss.NewStyle().Foreground(muted),
	}
}
