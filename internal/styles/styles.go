package styles

import "github.com/charmbracelet/lipgloss"

var (
	ContentWidth = 54
	SidebarWidth = 30
)

var (
	TitleStyle lipgloss.Style
	InfoStyle  lipgloss.Style
	HintStyle  lipgloss.Style

	UserLabelStyle      lipgloss.Style
	UserMsgStyle        lipgloss.Style
	AssistantLabelStyle lipgloss.Style
	AssistantMsgStyle   lipgloss.Style
	AudioMarkerStyle    lipgloss.Style

	ErrorStyle   lipgloss.Style
	WarningStyle lipgloss.Style
	SuccessStyle lipgloss.Style

	InputBoxStyle lipgloss.Style

	SidebarStyle         lipgloss.Style
	SidebarHeaderStyle   lipgloss.Style
	SidebarItemStyle     lipgloss.Style
	SidebarActiveStyle   lipgloss.Style
	SidebarSelectedStyle lipgloss.Style

	ModalStyle         lipgloss.Style
	ModalTitleStyle    lipgloss.Style
	ModalItemStyle     lipgloss.Style
	ModalSelectedStyle lipgloss.Style
	LabelStyle         lipgloss.Style

	RecordingStyle lipgloss.Style
	SpeakingStyle  lipgloss.Style

	WelcomeArtStyle      lipgloss.Style
	WelcomeSubtitleStyle lipgloss.Style
)

func init() {
	build(CurrentTheme)
}

func build(t Theme) {
	text := lipgloss.AdaptiveColor{Light: string(LightTheme.TextPrimary), Dark: string(DarkTheme.TextPrimary)}

	TitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Padding(0, 1)
	InfoStyle = lipgloss.NewStyle().Foreground(t.TextSecondary)
	HintStyle = lipgloss.NewStyle().Foreground(t.TextMuted)

	UserLabelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(t.Secondary).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)
	UserMsgStyle = lipgloss.NewStyle().
		Foreground(text).
		PaddingLeft(2).
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(t.Secondary)
	AssistantLabelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(t.Primary).
		Bold(true).
		Padding(0, 1).
		MarginRight(1)
	AssistantMsgStyle = lipgloss.NewStyle().
		Foreground(text).
		BorderLeft(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(t.Primary)
	AudioMarkerStyle = lipgloss.NewStyle().Foreground(t.Accent).PaddingLeft(2)

	ErrorStyle = lipgloss.NewStyle().Foreground(t.Error).Bold(true)
	WarningStyle = lipgloss.NewStyle().Foreground(t.Warning).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(t.Success)

	InputBoxStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(0, 1)

	SidebarStyle = lipgloss.NewStyle().
		Width(SidebarWidth).
		BorderRight(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.Border).
		PaddingRight(1)
	SidebarHeaderStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.TextSecondary).
		PaddingLeft(1).
		MarginTop(1)
	SidebarItemStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(text)
	SidebarActiveStyle = lipgloss.NewStyle().Padding(0, 1).Foreground(t.Primary).Bold(true)
	SidebarSelectedStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Background(lipgloss.Color("#5C5C7A")).
		Foreground(lipgloss.Color("#FFFFFF"))

	ModalStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Primary).
		Padding(1, 2)
	ModalTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Primary).
		Width(ContentWidth).
		MarginBottom(1)
	ModalItemStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Width(ContentWidth)
	ModalSelectedStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Width(ContentWidth).
		Background(lipgloss.Color("#5C5C7A")).
		Foreground(lipgloss.Color("#FFFFFF"))
	LabelStyle = lipgloss.NewStyle().Foreground(t.TextSecondary).Bold(true)

	RecordingStyle = lipgloss.NewStyle().Foreground(t.Recording).Bold(true)
	SpeakingStyle = lipgloss.NewStyle().Foreground(t.Speaking).Bold(true)

	WelcomeArtStyle = lipgloss.NewStyle().Foreground(t.Primary).Bold(true)
	WelcomeSubtitleStyle = lipgloss.NewStyle().Foreground(t.TextMuted).Italic(true)
}
