// Package styles contains Lip Gloss style definitions.
package styles

import "github.com/charmbracelet/lipgloss"

// Color tokens for the studio monitor. Adaptive pairs pick the light or
// dark variant from the terminal background.
var (
	TextPrimaryColor     = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#CCCCCC"}
	TextDescriptionColor = lipgloss.AdaptiveColor{Light: "#5F5F5F", Dark: "#999999"}
	TextMutedColor       = lipgloss.AdaptiveColor{Light: "#9E9E9E", Dark: "#666666"}

	BorderDefaultColor = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#444444"}
	BorderFocusedColor = lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#54A0FF"}

	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF8787"}
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#008700", Dark: "#73F59F"}

	SelectionColor = lipgloss.AdaptiveColor{Light: "#0087D7", Dark: "#54A0FF"}
	SpinnerColor   = lipgloss.AdaptiveColor{Light: "#8700D7", Dark: "#C792EA"}
)
