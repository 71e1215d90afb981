package ui

import (
	"fmt"
	"strings"
	"time"

	"agentchat/internal/models"
	"agentchat/internal/store"
	"agentchat/internal/styles"

	"github.com/charmbracelet/lipgloss"
)

func (m *Model) renderMarkdown(key, content string) string {
	if m.Renderer == nil {
		return content
	}
	if key != "" {
		if out, ok := m.rendered[key]; ok {
			return out
		}
	}
	out, err := m.Renderer.Render(content)
	if err != nil {
		return content
	}
	out = strings.TrimSpace(out)
	if key != "" {
		m.rendered[key] = out
	}
	return out
}

func (m *Model) renderMessage(msg models.Message, name string) string {
	if msg.Role == models.RoleUser {
		content := msg.Content
		if content == "" && msg.IsVoice() {
			content = "(voice message)"
		}
		return FormatUserMessage(content, m.Viewport.Width, msg.IsVoice())
	}

	audio := ""
	if url, ok := msg.TTS(); ok {
		audio = "🔊 ctrl+p"
		if m.player.CurrentURL == url {
			if m.player.Playing {
				audio = "▶ playing"
			} else {
				audio = "⏸ paused"
			}
		}
	}
	return FormatAssistantMessage(name, m.renderMarkdown(msg.ID, msg.Content), audio)
}

// UpdateViewport rebuilds the transcript from the current state.
func (m *Model) UpdateViewport() {
	st := m.state
	if st.Sessions.SelectedID == "" {
		m.Viewport.SetContent(m.welcome())
		m.Viewport.GotoTop()
		return
	}

	msgs := st.Messages
	name := agentName(st)
	var parts []string

	if msgs.HasMore {
		hint := fmt.Sprintf("↑ %d older messages, ctrl+u to load", msgs.TotalCount-len(msgs.Items))
		if msgs.TotalCount <= len(msgs.Items) {
			hint = "↑ ctrl+u to load older messages"
		}
		parts = append(parts, styles.HintStyle.Render(hint))
	}
	if msgs.Loading {
		parts = append(parts, m.Spinner.View()+" Loading messages...")
	}
	for _, msg := range msgs.Items {
		parts = append(parts, m.renderMessage(msg, name))
	}
	if msgs.Streaming {
		body := m.Spinner.View() + " Thinking..."
		if msgs.StreamingContent != "" {
			body = m.renderMarkdown("", msgs.StreamingContent) + "\n" + m.Spinner.View()
		}
		parts = append(parts, FormatAssistantMessage(name, body, ""))
	}
	if st.Voice.IsProcessing {
		parts = append(parts, m.Spinner.View()+" Processing voice message...")
	}
	if msgs.Error != "" {
		parts = append(parts, styles.ErrorStyle.Render("Error: "+msgs.Error))
	}
	if len(msgs.Items) == 0 && !msgs.Loading && !msgs.Streaming {
		parts = append(parts, styles.HintStyle.Render("No messages yet. Say hello!"))
	}

	m.Viewport.SetContent(strings.Join(parts, "\n\n"))
	if m.follow {
		m.Viewport.GotoBottom()
	}
}

func agentName(st store.State) string {
	if a, ok := st.SelectedAgent(); ok && a.Name != "" {
		return a.Name
	}
	return "Assistant"
}

func (m *Model) welcome() string {
	art := strings.Join([]string{
		"╭─────────────────────╮",
		"│   A G E N T C H A T │",
		"╰─────────────────────╯",
	}, "\n")
	var hint string
	switch {
	case m.state.Agents.Loading:
		hint = m.Spinner.View() + " Loading agents..."
	case m.state.Agents.Error != "":
		hint = styles.ErrorStyle.Render(m.state.Agents.Error)
	case len(m.state.Agents.Items) == 0:
		hint = "Create your first agent with ctrl+a"
	case m.state.Agents.SelectedID == "":
		hint = "Pick an agent from the sidebar (tab) to start"
	case m.state.Sessions.Error != "":
		hint = styles.ErrorStyle.Render(m.state.Sessions.Error)
	default:
		hint = "Open a session from the sidebar or start one with ctrl+n"
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		styles.WelcomeArtStyle.Render(art),
		"",
		styles.WelcomeSubtitleStyle.Render(hint),
	)
	return lipgloss.Place(m.Viewport.Width, m.Viewport.Height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) RenderSidebar() string {
	width := styles.SidebarWidth - 2
	var lines []string
	lines = append(lines, styles.SidebarHeaderStyle.Render("AGENTS"))
	if m.state.Agents.Loading && len(m.state.Agents.Items) == 0 {
		lines = append(lines, styles.SidebarItemStyle.Render(m.Spinner.View()+" loading"))
	}

	rows := m.sidebarRows()
	headerDone := false
	for i, row := range rows {
		if row.kind == "session" && !headerDone {
			headerDone = true
			lines = append(lines, styles.SidebarHeaderStyle.Render("SESSIONS"))
		}
		label := TruncateRunes(Preview(row.label), width-2)
		prefix := "  "
		if row.active {
			prefix = "● "
		}
		style := styles.SidebarItemStyle
		switch {
		case m.focus == FocusSidebar && i == m.cursor:
			style = styles.SidebarSelectedStyle
		case row.active:
			style = styles.SidebarActiveStyle
		}
		lines = append(lines, style.Width(width).Render(prefix+label))
	}
	if m.state.Agents.SelectedID != "" && !headerDone {
		lines = append(lines, styles.SidebarHeaderStyle.Render("SESSIONS"))
		if m.state.Sessions.Loading {
			lines = append(lines, styles.SidebarItemStyle.Render(m.Spinner.View()+" loading"))
		} else {
			lines = append(lines, styles.SidebarItemStyle.Foreground(styles.CurrentTheme.TextMuted).Render("ctrl+n to start"))
		}
	}

	height := m.WindowHeight - 3
	if height < 1 {
		height = 1
	}
	return styles.SidebarStyle.Height(height).Render(strings.Join(lines, "\n"))
}

func (m *Model) header() string {
	title := "AGENT CHAT"
	if a, ok := m.state.SelectedAgent(); ok {
		title = a.Name
		if s, ok := m.state.SelectedSession(); ok {
			title += " › " + s.DisplayTitle()
		}
	}
	return styles.TitleStyle.Render(TruncateRunes(title, m.chatWidth()-4))
}

func (m *Model) statusLine() string {
	v := m.state.Voice
	switch {
	case v.IsRecording:
		d := FormatDuration(v.RecordingDuration)
		limit := ""
		if m.deps.Recorder != nil {
			limit = " / " + FormatDuration(int(m.deps.Recorder.MaxDuration()/time.Second))
		}
		style := styles.RecordingStyle
		if m.deps.Recorder != nil && m.deps.Recorder.Warning(v.RecordingDuration) {
			style = styles.WarningStyle
		}
		return style.Render(fmt.Sprintf("● Recording %s%s", d, limit)) + styles.HintStyle.Render("  ctrl+r send • esc cancel")
	case v.Error != "":
		return styles.ErrorStyle.Render(v.Error)
	case m.notice != "" && m.noticeErr:
		return styles.ErrorStyle.Render(m.notice)
	case m.notice != "":
		return styles.SuccessStyle.Render(m.notice)
	}
	return ""
}

func (m *Model) RenderBottomBar() string {
	mode := "CHAT"
	modeColor := styles.CurrentTheme.Secondary
	if m.focus == FocusSidebar {
		mode = "BROWSE"
		modeColor = styles.CurrentTheme.Accent
	}
	badge := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(modeColor).
		Padding(0, 1).
		Render(mode)

	var left []string
	left = append(left, badge)
	if a, ok := m.state.SelectedAgent(); ok {
		left = append(left, styles.InfoStyle.Render(TruncateRunes(a.Name, 24)))
	}
	if m.state.Messages.TotalCount > 0 {
		left = append(left, styles.HintStyle.Render(fmt.Sprintf("%d/%d msgs", len(m.state.Messages.Items), m.state.Messages.TotalCount)))
	}

	var right []string
	if m.player.Playing {
		right = append(right, styles.SpeakingStyle.Render("▶ audio"))
	}
	if m.state.Messages.Streaming {
		right = append(right, styles.InfoStyle.Render("streaming"))
	}
	right = append(right, styles.HintStyle.Render("Help: ^S"))

	leftSide := strings.Join(left, "  ")
	rightSide := strings.Join(right, "  ")
	space := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if space < 1 {
		space = 1
	}
	bar := leftSide + strings.Repeat(" ", space) + rightSide

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.CurrentTheme.Border).
		Padding(0, 1).
		Render(bar)
}

func (m *Model) RenderShortcutsModal() string {
	title := styles.ModalTitleStyle.Width(styles.ContentWidth).Render("Keyboard Shortcuts")

	shortcuts := []struct {
		key  string
		desc string
	}{
		{"Enter", "Send message"},
		{"Tab", "Browse agents and sessions"},
		{"Ctrl+N", "New session"},
		{"Ctrl+A", "New agent"},
		{"Ctrl+E", "Edit agent"},
		{"Ctrl+D", "Delete session or agent"},
		{"Ctrl+K", "Knowledge documents"},
		{"Ctrl+V", "Voice mode"},
		{"Ctrl+R", "Record / send voice message"},
		{"Ctrl+P", "Play / pause latest audio"},
		{"Ctrl+U", "Load older messages"},
		{"Ctrl+H", "Recent locations"},
		{"Ctrl+B", "Toggle sidebar"},
		{"Ctrl+C", "Quit"},
	}

	keyStyle := lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.Warning).
		Bold(true).
		Width(12)

	var items []string
	for _, s := range shortcuts {
		line := fmt.Sprintf("%s %s", keyStyle.Render(s.key), s.desc)
		items = append(items, styles.ModalItemStyle.Width(styles.ContentWidth).Render(line))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		lipgloss.JoinVertical(lipgloss.Left, items...),
		m.modalHint("Esc/Enter: close"),
	)
}

func (m *Model) RenderHistory() string {
	h := m.history
	title := styles.ModalTitleStyle.Width(styles.ContentWidth).
		Render(fmt.Sprintf("Recent Locations (%d) - Page %d/%d", h.count, h.page+1, h.pages()))

	var body string
	start, end := h.pageBounds()
	switch {
	case h.err != "":
		body = styles.ErrorStyle.Render("Error: " + h.err)
	case end == start:
		body = styles.ModalItemStyle.Render(styles.HintStyle.Render("Nothing visited yet"))
	default:
		items := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			v := h.visits[i]
			cursor := "  "
			if i == h.idx {
				cursor = "> "
			}
			label := v.AgentName
			if v.SessionTitle != "" {
				label += " › " + v.SessionTitle
			}
			if label == "" {
				label = v.Path
			}
			when := RelativeTime(time.Unix(v.VisitedUnix, 0))
			label = TruncateRunes(label, styles.ContentWidth-4-len(when)-1)
			line := fmt.Sprintf("%s%s %s", cursor, label, styles.HintStyle.Render(when))
			if i == h.idx {
				items = append(items, styles.ModalSelectedStyle.Width(styles.ContentWidth).Render(line))
			} else {
				items = append(items, styles.ModalItemStyle.Width(styles.ContentWidth).Render(line))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, body,
		m.modalHint("↑/↓: navigate • ←/→: page • Enter: open • Esc: close"))
}

func (m *Model) RenderKnowledge() string {
	k := m.knowledge
	title := styles.ModalTitleStyle.Width(styles.ContentWidth).Render("Knowledge Base")

	var rows []string
	switch {
	case k.loading:
		rows = append(rows, m.Spinner.View()+" Loading documents...")
	case len(k.docs) == 0:
		rows = append(rows, styles.HintStyle.Render("No documents uploaded yet"))
	default:
		for i, d := range k.docs {
			meta := fmt.Sprintf("%s • %d chunks", FormatSize(d.FileSize), d.ChunkCount)
			if t, ok := parseTimestamp(d.CreatedAt); ok {
				meta += " • " + RelativeTime(t)
			}
			name := TruncateRunes(d.Filename, styles.ContentWidth-len(meta)-4)
			line := fmt.Sprintf("%s %s", name, styles.HintStyle.Render(meta))
			if i == k.idx {
				rows = append(rows, styles.ModalSelectedStyle.Width(styles.ContentWidth).Render(line))
			} else {
				rows = append(rows, styles.ModalItemStyle.Width(styles.ContentWidth).Render(line))
			}
		}
	}

	upload := styles.LabelStyle.Render("Upload (.pdf .txt .md, max 10MB)") + "\n" + k.path.View()
	if k.uploading {
		upload += "\n" + m.Spinner.View() + " Uploading..."
	}
	parts := []string{title, lipgloss.JoinVertical(lipgloss.Left, rows...), "", upload}
	if k.err != "" {
		parts = append(parts, styles.ErrorStyle.Render(k.err))
	}
	parts = append(parts, m.modalHint("Enter: upload • ↑/↓: select • Ctrl+D: delete • Esc: close"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) RenderAgentForm() string {
	f := m.form
	heading := "Create Agent"
	if m.state.UI.Modal == store.ModalAgentEdit {
		heading = "Edit Agent"
	}
	parts := []string{styles.ModalTitleStyle.Width(styles.ContentWidth).Render(heading)}
	if f.err != "" {
		parts = append(parts, styles.ErrorStyle.Render(f.err), "")
	}
	refine := styles.LabelStyle.Render("Quick Generate")
	if f.refining {
		refine += " " + m.Spinner.View()
	}
	parts = append(parts,
		styles.LabelStyle.Render("Name"), f.name.View(), "",
		refine, f.description.View(), "",
		styles.LabelStyle.Render("System Prompt"), f.prompt.View(),
	)
	status := "Tab: next field • Ctrl+R: generate prompt • Ctrl+S: save • Esc: cancel"
	if f.saving {
		status = m.Spinner.View() + " Saving..."
	}
	parts = append(parts, m.modalHint(status))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) RenderConfirm() string {
	item := m.state.UI.DeletingItem
	if item == nil {
		return ""
	}
	title := styles.ModalTitleStyle.Width(styles.ContentWidth).Render("Delete " + item.Type)
	body := fmt.Sprintf("Delete %q? This cannot be undone.", item.Name)
	if item.Type == "agent" {
		body = fmt.Sprintf("Delete %q and all of its sessions? This cannot be undone.", item.Name)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		lipgloss.NewStyle().Width(styles.ContentWidth).Render(body),
		m.modalHint("y/Enter: delete • n/Esc: cancel"),
	)
}

func (m *Model) RenderVoiceMode() string {
	v := m.state.Voice
	var visual, action, status string
	switch {
	case m.player.Playing:
		visual = styles.SpeakingStyle.Render("▁▃▅▇▅▃▁  ▁▃▅▇▅▃▁")
		action = "Space: interrupt"
		status = "Agent is speaking..."
	case v.IsRecording:
		visual = styles.RecordingStyle.Render("● " + FormatDuration(v.RecordingDuration))
		action = "Space: send"
		status = "Listening..."
	case v.IsProcessing:
		visual = m.Spinner.View()
		action = ""
		status = "Thinking..."
	default:
		visual = styles.HintStyle.Render("○")
		action = "Space: speak"
		status = "Ready"
	}

	parts := []string{
		styles.ModalTitleStyle.Width(styles.ContentWidth).Render("Voice Mode · " + agentName(m.state)),
		lipgloss.PlaceHorizontal(styles.ContentWidth, lipgloss.Center, visual),
		"",
		lipgloss.PlaceHorizontal(styles.ContentWidth, lipgloss.Center, styles.InfoStyle.Render(status)),
	}
	if v.Error != "" {
		parts = append(parts, "", styles.ErrorStyle.Render(v.Error))
	}
	hint := "Esc: leave voice mode"
	if action != "" {
		hint = action + " • " + hint
	}
	parts = append(parts, m.modalHint(hint))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) modalHint(text string) string {
	return lipgloss.NewStyle().
		Foreground(styles.CurrentTheme.TextMuted).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render(text)
}

func (m *Model) placeModal(body string) string {
	width := styles.ContentWidth + 6
	modal := styles.ModalStyle.Width(width).Render(body)
	return lipgloss.Place(m.WindowWidth, m.WindowHeight, lipgloss.Center, lipgloss.Center, modal)
}

func (m *Model) View() string {
	if m.WindowWidth == 0 {
		return ""
	}

	switch {
	case m.state.Voice.IsVoiceMode:
		return m.placeModal(m.RenderVoiceMode())
	case m.state.UI.Modal == store.ModalAgentCreate || m.state.UI.Modal == store.ModalAgentEdit:
		return m.placeModal(m.RenderAgentForm())
	case m.state.UI.Modal == store.ModalDeleteAgent || m.state.UI.Modal == store.ModalDeleteSession:
		return m.placeModal(m.RenderConfirm())
	case m.overlay == OverlayShortcuts:
		return m.placeModal(m.RenderShortcutsModal())
	case m.overlay == OverlayHistory:
		return m.placeModal(m.RenderHistory())
	case m.overlay == OverlayKnowledge:
		return m.placeModal(m.RenderKnowledge())
	}

	width := m.chatWidth()
	inputBox := styles.InputBoxStyle.Width(width - 2).Render(m.TextInput.View())
	chatColumn := lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		m.Viewport.View(),
		m.statusLine(),
		inputBox,
	)
	chatColumn = lipgloss.NewStyle().Width(width).Render(chatColumn)

	body := chatColumn
	if m.showSidebar() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.RenderSidebar(), " ", chatColumn)
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.RenderBottomBar())
}
