package styles

import "github.com/charmbracelet/lipgloss"

// Theme is the palette the views draw from.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	BgSurface  lipgloss.Color
	BgElevated lipgloss.Color

	TextPrimary   lipgloss.Color
	TextSecondary lipgloss.Color
	TextMuted     lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	Border lipgloss.Color

	// Voice indicators
	Recording lipgloss.Color
	Speaking  lipgloss.Color
}

var DarkTheme = Theme{
	Primary:   lipgloss.Color("#818CF8"),
	Secondary: lipgloss.Color("#22D3EE"),
	Accent:    lipgloss.Color("#F472B6"),

	BgSurface:  lipgloss.Color("#141419"),
	BgElevated: lipgloss.Color("#1E1E2A"),

	TextPrimary:   lipgloss.Color("#F1F5F9"),
	TextSecondary: lipgloss.Color("#94A3B8"),
	TextMuted:     lipgloss.Color("#64748B"),

	Success: lipgloss.Color("#34D399"),
	Warning: lipgloss.Color("#FBBF24"),
	Error:   lipgloss.Color("#FB7185"),

	Border: lipgloss.Color("#27272A"),

	Recording: lipgloss.Color("#EF4444"),
	Speaking:  lipgloss.Color("#818CF8"),
}

var LightTheme = Theme{
	Primary:   lipgloss.Color("#4F46E5"),
	Secondary: lipgloss.Color("#0891B2"),
	Accent:    lipgloss.Color("#DB2777"),

	BgSurface:  lipgloss.Color("#FFFFFF"),
	BgElevated: lipgloss.Color("#F4F4F5"),

	TextPrimary:   lipgloss.Color("#18181B"),
	TextSecondary: lipgloss.Color("#52525B"),
	TextMuted:     lipgloss.Color("#A1A1AA"),

	Success: lipgloss.Color("#10B981"),
	Warning: lipgloss.Color("#F59E0B"),
	Error:   lipgloss.Color("#EF4444"),

	Border: lipgloss.Color("#E4E4E7"),

	Recording: lipgloss.Color("#DC2626"),
	Speaking:  lipgloss.Color("#4F46E5"),
}

// CurrentTheme is chosen at startup from the terminal background.
var CurrentTheme = DarkTheme

// InitTheme picks the palette matching the terminal and rebuilds the styles.
func InitTheme() {
	if lipgloss.HasDarkBackground() {
		CurrentTheme = DarkTheme
	} else {
		CurrentTheme = LightTheme
	}
	build(CurrentTheme)
}
