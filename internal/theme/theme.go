package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for list names and section titles.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// TaskStyle is the base style for a task line.
var TaskStyle = lipgloss.NewStyle().PaddingLeft(2)

// SubtaskStyle indents subtasks under their task.
var SubtaskStyle = lipgloss.NewStyle().PaddingLeft(6)

// HelpStyle is used for hints and secondary text such as ids.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for summary panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1)

// Task states used by StateStyle.
const (
	StateOpen    = "open"
	StateDone    = "done"
	StateOverdue = "overdue"
	StatePending = "pending"
)

// StateStyle returns a color-coded style for an item state.
func StateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch state {
	case StateOpen:
		return base.Foreground(ColorBlue)
	case StateDone:
		return base.Foreground(ColorGreen).Strikethrough(true)
	case StateOverdue:
		return base.Foreground(ColorRed)
	case StatePending:
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}

// ResultStyle colors a sync outcome line.
func ResultStyle(success bool) lipgloss.Style {
	if success {
		return lipgloss.NewStyle().Foreground(ColorGreen)
	}
	return lipgloss.NewStyle().Foreground(ColorRed).Bold(true)
}
