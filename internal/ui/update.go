package ui

import (
	"errors"
	"strings"

	"agentchat/internal/api"
	"agentchat/internal/chat"
	"agentchat/internal/models"
	"agentchat/internal/route"
	"agentchat/internal/store"
	"agentchat/internal/styles"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		var spCmd tea.Cmd
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.busy() {
			m.UpdateViewport()
		}
		return m, spCmd

	case StateMsg:
		m.applyState(msg.State)
		return m, nil

	case PlayerMsg:
		m.player = msg.State
		m.UpdateViewport()
		return m, nil

	case resultMsg:
		if msg.err != nil {
			m.log.Debug("operation failed", zap.String("op", msg.op), zap.Error(msg.err))
			m.setNotice(describeError(msg.op, msg.err), true)
			if strings.HasPrefix(msg.op, "open /") && notFound(msg.err) && m.deps.History != nil {
				_ = m.deps.History.Forget(m.ctx, strings.TrimPrefix(msg.op, "open "))
			}
		}
		return m, nil

	case sessionCreatedMsg:
		if msg.err != nil {
			m.setNotice(describeError("new session", msg.err), true)
			return m, nil
		}
		return m, m.selectSessionCmd(msg.session.ID)

	case agentSavedMsg:
		m.form.saving = false
		if msg.err != nil {
			m.form.err = "Failed to save agent. Please try again."
			var reqErr *api.RequestError
			if errors.As(msg.err, &reqErr) && reqErr.Detail != "" {
				m.form.err = reqErr.Detail
			}
			return m, nil
		}
		m.dispatch(store.CloseModal{})
		m.TextInput.Focus()
		if msg.created {
			m.setNotice("Created "+msg.agent.Name, false)
			return m, m.selectAgentCmd(msg.agent.ID)
		}
		m.setNotice("Saved "+msg.agent.Name, false)
		return m, nil

	case refinedMsg:
		m.form.refining = false
		if msg.err != nil {
			m.form.err = "Failed to generate prompt"
			return m, nil
		}
		m.form.prompt.SetValue(msg.prompt)
		m.form.err = ""
		return m, nil

	case documentsMsg:
		if msg.agentID != m.knowledge.agentID {
			return m, nil
		}
		m.knowledge.loading = false
		if msg.err != nil {
			m.knowledge.err = "Failed to load documents"
			return m, nil
		}
		m.knowledge.docs = msg.docs
		m.knowledge.idx = clamp(m.knowledge.idx, len(msg.docs))
		return m, nil

	case uploadedMsg:
		m.knowledge.uploading = false
		if msg.err != nil {
			m.knowledge.err = uploadError(msg.err)
			return m, nil
		}
		m.knowledge.err = ""
		m.knowledge.docs = append([]models.Document{*msg.doc}, m.knowledge.docs...)
		m.knowledge.path.Reset()
		m.setNotice(`"`+msg.doc.Filename+`" uploaded successfully!`, false)
		return m, nil

	case visitsMsg:
		m.history.err = ""
		if msg.err != nil {
			m.history.err = msg.err.Error()
			return m, nil
		}
		m.history.count = msg.count
		m.history.visits = msg.visits
		m.history.idx = 0
		m.history.page = 0
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.Viewport, vpCmd = m.Viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m *Model) applyState(st store.State) {
	prev := m.state
	m.state = st

	if prev.Sessions.SelectedID != st.Sessions.SelectedID {
		m.follow = true
		if m.deps.Turns != nil && prev.Sessions.SelectedID != "" {
			m.deps.Turns.Reset()
		}
	}
	if prev.Agents.SelectedID != st.Agents.SelectedID && m.overlay == OverlayKnowledge {
		m.overlay = OverlayNone
	}
	if prev.UI.Modal != st.UI.Modal {
		m.openModal(st.UI)
	}
	if m.deps.Turns != nil {
		m.deps.Turns.Observe(st)
	}
	m.cursor = clamp(m.cursor, len(m.sidebarRows()))
	m.updateInputLayout()
	m.UpdateViewport()
}

// dispatch applies a UI action and refreshes the local snapshot at once.
func (m *Model) dispatch(a store.Action) {
	if m.deps.Store == nil {
		return
	}
	m.deps.Store.Dispatch(a)
	m.applyState(m.deps.Store.State())
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.state.Voice.IsVoiceMode {
		return m.handleVoiceModeKey(msg)
	}

	switch m.state.UI.Modal {
	case store.ModalAgentCreate, store.ModalAgentEdit:
		return m.handleFormKey(msg)
	case store.ModalDeleteAgent, store.ModalDeleteSession:
		return m.handleConfirmKey(msg)
	}

	switch m.overlay {
	case OverlayShortcuts:
		switch msg.String() {
		case "esc", "enter", "?", "ctrl+s":
			m.overlay = OverlayNone
		}
		return m, nil
	case OverlayHistory:
		return m.handleHistoryKey(msg)
	case OverlayKnowledge:
		return m.handleKnowledgeKey(msg)
	}

	if m.focus == FocusSidebar {
		if cmd, handled := m.handleSidebarKey(msg); handled {
			return m, cmd
		}
	}

	if isNewlineShortcut(msg) {
		m.TextInput.InsertString("\n")
		m.updateInputLayout()
		return m, nil
	}

	sessionID := m.state.Sessions.SelectedID
	agentID := m.state.Agents.SelectedID

	switch msg.String() {
	case "esc":
		m.notice = ""
		if m.state.Voice.IsRecording && m.deps.Recorder != nil {
			m.deps.Recorder.Cancel()
		}
		return m, nil

	case "tab":
		m.setFocus(FocusSidebar)
		return m, nil

	case "ctrl+b":
		m.dispatch(store.ToggleSidebar{})
		m.resize(m.WindowWidth, m.WindowHeight)
		return m, nil

	case "ctrl+s":
		m.overlay = OverlayShortcuts
		return m, nil

	case "ctrl+h":
		m.overlay = OverlayHistory
		m.history = historyPanel{}
		return m, m.visitsCmd()

	case "ctrl+n":
		if agentID == "" {
			m.setNotice("Select an agent first", true)
			return m, nil
		}
		return m, m.createSessionCmd(agentID)

	case "ctrl+a":
		m.dispatch(store.OpenModal{Type: store.ModalAgentCreate})
		return m, nil

	case "ctrl+e":
		a, ok := m.state.SelectedAgent()
		if !ok {
			m.setNotice("Select an agent first", true)
			return m, nil
		}
		m.dispatch(store.OpenModal{Type: store.ModalAgentEdit, Agent: &a})
		return m, nil

	case "ctrl+d":
		if s, ok := m.state.SelectedSession(); ok {
			m.dispatch(store.OpenModal{Type: store.ModalDeleteSession, DeletingItem: &store.DeletingItem{Type: "session", ID: s.ID, Name: s.DisplayTitle()}})
			return m, nil
		}
		if a, ok := m.state.SelectedAgent(); ok {
			m.dispatch(store.OpenModal{Type: store.ModalDeleteAgent, DeletingItem: &store.DeletingItem{Type: "agent", ID: a.ID, Name: a.Name}})
		}
		return m, nil

	case "ctrl+k":
		if agentID == "" {
			m.setNotice("Select an agent first", true)
			return m, nil
		}
		m.overlay = OverlayKnowledge
		m.knowledge = knowledgePanel{agentID: agentID, path: m.knowledge.path, loading: true}
		m.knowledge.path.Reset()
		m.knowledge.path.Focus()
		return m, m.documentsCmd(agentID)

	case "ctrl+v":
		if m.deps.Turns == nil {
			m.setNotice("Voice recording is not supported on this system", true)
			return m, nil
		}
		if sessionID == "" {
			m.setNotice("Open a session first", true)
			return m, nil
		}
		m.deps.Turns.EnterVoiceMode()
		return m, nil

	case "ctrl+r":
		if m.deps.Turns == nil {
			m.setNotice("Voice recording is not supported on this system", true)
			return m, nil
		}
		if sessionID == "" || m.state.Messages.Streaming || m.state.Voice.IsProcessing {
			return m, nil
		}
		return m, m.recordCmd(sessionID)

	case "ctrl+p":
		if m.deps.Player == nil {
			return m, nil
		}
		if url, ok := latestAudio(m.state.Messages.Items); ok {
			if err := m.deps.Player.Toggle(url); err != nil {
				m.setNotice(describeError("play", err), true)
			}
		}
		return m, nil

	case "ctrl+u":
		if sessionID == "" {
			return m, nil
		}
		m.follow = false
		return m, m.loadMoreCmd(sessionID)

	case "pgup", "pgdown", "up", "down":
		if msg.String() == "up" || msg.String() == "down" {
			if strings.Contains(m.TextInput.Value(), "\n") {
				break
			}
		}
		var vpCmd tea.Cmd
		m.Viewport, vpCmd = m.Viewport.Update(msg)
		m.follow = m.Viewport.AtBottom()
		return m, vpCmd

	case "enter":
		return m, m.submit()
	}

	var tiCmd tea.Cmd
	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Terminal background and cursor position replies sometimes leak into the input.
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}
	return m, tiCmd
}

func (m *Model) submit() tea.Cmd {
	content := strings.TrimSpace(m.TextInput.Value())
	if content == "" {
		return nil
	}
	sessionID := m.state.Sessions.SelectedID
	if sessionID == "" {
		m.setNotice("Open a session first (ctrl+n creates one)", true)
		return nil
	}
	if m.inputDisabled() {
		return nil
	}
	m.TextInput.Reset()
	m.updateInputLayout()
	m.follow = true
	m.notice = ""
	return tea.Batch(m.sendCmd(sessionID, content), m.Spinner.Tick)
}

func (m *Model) inputDisabled() bool {
	v := m.state.Voice
	return m.state.Messages.Streaming || v.IsProcessing || v.IsRecording
}

func (m *Model) handleVoiceModeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+v":
		if m.deps.Turns != nil {
			m.deps.Turns.ExitVoiceMode()
		}
		return m, nil
	case " ", "enter":
		if m.deps.Turns == nil || m.state.Voice.IsProcessing {
			return m, nil
		}
		return m, tea.Batch(m.interactCmd(m.state.Sessions.SelectedID), m.Spinner.Tick)
	}
	return m, nil
}

func (m *Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		item := m.state.UI.DeletingItem
		m.dispatch(store.CloseModal{})
		if item == nil {
			return m, nil
		}
		return m, m.deleteCmd(*item)
	case "n", "esc":
		m.dispatch(store.CloseModal{})
	}
	return m, nil
}

func (m *Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	h := &m.history
	start, end := h.pageBounds()
	switch msg.String() {
	case "esc", "ctrl+h":
		m.overlay = OverlayNone
	case "up", "k":
		if end > start {
			h.idx--
			if h.idx < start {
				h.idx = end - 1
			}
		}
	case "down", "j":
		if end > start {
			h.idx++
			if h.idx >= end {
				h.idx = start
			}
		}
	case "left", "h":
		if h.page > 0 {
			h.page--
			h.idx = h.page * HistoryPageSize
		}
	case "right", "l":
		if h.page < h.pages()-1 {
			h.page++
			h.idx = h.page * HistoryPageSize
		}
	case "enter":
		if h.idx >= len(h.visits) {
			return m, nil
		}
		loc, err := route.Parse(h.visits[h.idx].Path)
		if err != nil {
			h.err = err.Error()
			return m, nil
		}
		m.overlay = OverlayNone
		return m, m.navigateCmd(loc)
	}
	return m, nil
}

func (h historyPanel) pages() int {
	n := (len(h.visits) + HistoryPageSize - 1) / HistoryPageSize
	if n < 1 {
		return 1
	}
	return n
}

func (h historyPanel) pageBounds() (int, int) {
	start := h.page * HistoryPageSize
	end := start + HistoryPageSize
	if end > len(h.visits) {
		end = len(h.visits)
	}
	if start > end {
		start = end
	}
	return start, end
}

func (m *Model) handleKnowledgeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := &m.knowledge
	switch msg.String() {
	case "esc", "ctrl+k":
		m.overlay = OverlayNone
		m.TextInput.Focus()
		return m, nil
	case "up":
		if len(k.docs) > 0 {
			k.idx = (k.idx - 1 + len(k.docs)) % len(k.docs)
		}
		return m, nil
	case "down":
		if len(k.docs) > 0 {
			k.idx = (k.idx + 1) % len(k.docs)
		}
		return m, nil
	case "ctrl+d":
		if k.idx < len(k.docs) {
			return m, m.deleteDocumentCmd(k.agentID, k.docs[k.idx].ID)
		}
		return m, nil
	case "enter":
		path := strings.TrimSpace(k.path.Value())
		if path == "" || k.uploading {
			return m, nil
		}
		k.uploading = true
		k.err = ""
		return m, tea.Batch(m.uploadCmd(k.agentID, expandHome(path)), m.Spinner.Tick)
	}
	var cmd tea.Cmd
	k.path, cmd = k.path.Update(msg)
	return m, cmd
}

func uploadError(err error) string {
	var reqErr *api.RequestError
	switch {
	case errors.Is(err, chat.ErrUnsupportedFile):
		return "Unsupported file type. Allowed: pdf, txt, md"
	case errors.Is(err, chat.ErrFileTooLarge):
		return "File too large. Maximum size: 10MB"
	case errors.As(err, &reqErr) && reqErr.Detail != "":
		return reqErr.Detail
	default:
		return "Failed to upload document"
	}
}

func (m *Model) setFocus(f Focus) {
	m.focus = f
	if f == FocusSidebar {
		m.TextInput.Blur()
		return
	}
	m.TextInput.Focus()
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m *Model) busy() bool {
	v := m.state.Voice
	return m.state.Messages.Streaming || v.IsProcessing || v.IsRecording ||
		m.form.refining || m.knowledge.uploading || m.player.Playing
}

func (m *Model) resize(width, height int) {
	if width == 0 || height == 0 {
		return
	}
	m.WindowWidth = width
	m.WindowHeight = height

	modalWidth := width - 10
	if modalWidth > ModalWidthMax {
		modalWidth = ModalWidthMax
	}
	if modalWidth < ModalWidthMin {
		modalWidth = ModalWidthMin
	}
	styles.ContentWidth = modalWidth - 6
	m.form.prompt.SetWidth(styles.ContentWidth)
	m.form.name.Width = styles.ContentWidth
	m.form.description.Width = styles.ContentWidth
	m.knowledge.path.Width = styles.ContentWidth

	m.Viewport.Width = m.chatWidth() - 2
	m.updateInputLayout()

	glamourStyle := "dark"
	if !lipgloss.HasDarkBackground() {
		glamourStyle = "light"
	}
	m.Renderer, _ = glamour.NewTermRenderer(
		glamour.WithStylePath(glamourStyle),
		glamour.WithWordWrap(m.Viewport.Width-4),
	)
	m.rendered = make(map[string]string)
	m.UpdateViewport()
}

func (m *Model) showSidebar() bool {
	return !m.state.UI.SidebarCollapsed && m.WindowWidth >= CompactWidth
}

func (m *Model) chatWidth() int {
	w := m.WindowWidth - 2
	if m.showSidebar() {
		w -= styles.SidebarWidth + 2
	}
	if w < 20 {
		w = 20
	}
	return w
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.chatWidth() - 4
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxInputHeight {
		lineCount = maxInputHeight
	}

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 7
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
