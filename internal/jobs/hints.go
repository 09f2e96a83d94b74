package jobs

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/suqaba/suqaba-cli/internal/models"
)

// Palette
var (
	ColorMuted  = lipgloss.Color("#828997")
	ColorYellow = lipgloss.Color("#E5C07B")
	ColorBlue   = lipgloss.Color("#61AFEF")
	ColorGreen  = lipgloss.Color("#98C379")
	ColorRed    = lipgloss.Color("#E06C75")
	ColorOrange = lipgloss.Color("#D19A66")
)

// Hint is how a status is presented to the user.
type Hint struct {
	Label  string
	Color  lipgloss.Color
	Symbol string
}

var hints = map[models.Status]Hint{
	models.StatusDraft:      {Label: "Draft", Color: ColorMuted, Symbol: "○"},
	models.StatusQueued:     {Label: "Queued", Color: ColorYellow, Symbol: "◷"},
	models.StatusProcessing: {Label: "Processing", Color: ColorBlue, Symbol: "◐"},
	models.StatusCompleted:  {Label: "Completed", Color: ColorGreen, Symbol: "✓"},
	models.StatusFailed:     {Label: "Failed", Color: ColorRed, Symbol: "✗"},
	models.StatusCancelled:  {Label: "Cancelled", Color: ColorOrange, Symbol: "⊘"},
}

// HintFor returns the presentation hint for s. Statuses the client does not
// know get a neutral hint labelled with the raw value.
func HintFor(s models.Status) Hint {
	if h, ok := hints[s]; ok {
		return h
	}
	label := string(s)
	if label == "" {
		label = "Unknown"
	}
	return Hint{Label: label, Color: ColorMuted, Symbol: "?"}
}

// Render returns "<symbol> <label>" in the hint's color.
func (h Hint) Render() string {
	return lipgloss.NewStyle().Foreground(h.Color).Render(h.Symbol + " " + h.Label)
}
