package ui

import (
	"os"
	"path/filepath"
	"strings"

	"agentchat/internal/models"
	"agentchat/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	fieldName = iota
	fieldDescription
	fieldPrompt
	fieldCount
)

// openModal prepares local widgets for the modal the store just opened.
func (m *Model) openModal(ui store.UIState) {
	switch ui.Modal {
	case store.ModalAgentCreate, store.ModalAgentEdit:
		m.form = newAgentForm()
		if ui.Modal == store.ModalAgentEdit && ui.EditingAgent != nil {
			m.form.name.SetValue(ui.EditingAgent.Name)
			m.form.prompt.SetValue(ui.EditingAgent.SystemPrompt)
		}
		m.form.setFocus(fieldName)
		m.TextInput.Blur()
	case store.ModalNone:
		if m.focus == FocusInput {
			m.TextInput.Focus()
		}
	}
}

func (f *agentForm) setFocus(i int) {
	f.focus = (i + fieldCount) % fieldCount
	f.name.Blur()
	f.description.Blur()
	f.prompt.Blur()
	switch f.focus {
	case fieldName:
		f.name.Focus()
	case fieldDescription:
		f.description.Focus()
	case fieldPrompt:
		f.prompt.Focus()
	}
}

func (m *Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.form
	switch msg.String() {
	case "esc":
		m.dispatch(store.CloseModal{})
		return m, nil
	case "tab":
		f.setFocus(f.focus + 1)
		return m, nil
	case "shift+tab":
		f.setFocus(f.focus - 1)
		return m, nil
	case "ctrl+r":
		desc := strings.TrimSpace(f.description.Value())
		if desc == "" || f.refining {
			return m, nil
		}
		f.refining = true
		f.err = ""
		return m, tea.Batch(m.refineCmd(desc), m.Spinner.Tick)
	case "ctrl+s":
		return m, m.saveForm()
	case "enter":
		if f.focus != fieldPrompt {
			return m, m.saveForm()
		}
	}

	var cmd tea.Cmd
	switch f.focus {
	case fieldName:
		f.name, cmd = f.name.Update(msg)
	case fieldDescription:
		f.description, cmd = f.description.Update(msg)
	case fieldPrompt:
		f.prompt, cmd = f.prompt.Update(msg)
	}
	return m, cmd
}

func (m *Model) saveForm() tea.Cmd {
	f := &m.form
	if f.saving || f.refining {
		return nil
	}
	name := strings.TrimSpace(f.name.Value())
	prompt := strings.TrimSpace(f.prompt.Value())
	if name == "" {
		f.err = "Name is required"
		return nil
	}
	if prompt == "" {
		f.err = "System prompt is required"
		return nil
	}
	f.saving = true
	f.err = ""
	var editing *models.Agent
	if m.state.UI.Modal == store.ModalAgentEdit {
		editing = m.state.UI.EditingAgent
	}
	return m.saveAgentCmd(editing, name, prompt)
}

type sidebarRow struct {
	kind   string // "agent" or "session"
	id     string
	label  string
	active bool
}

func (m *Model) sidebarRows() []sidebarRow {
	st := m.state
	rows := make([]sidebarRow, 0, len(st.Agents.Items)+len(st.Sessions.Items))
	for _, a := range st.Agents.Items {
		rows = append(rows, sidebarRow{kind: "agent", id: a.ID, label: a.Name, active: a.ID == st.Agents.SelectedID})
	}
	if st.Agents.SelectedID == "" {
		return rows
	}
	for _, s := range st.Sessions.Items {
		rows = append(rows, sidebarRow{kind: "session", id: s.ID, label: s.DisplayTitle(), active: s.ID == st.Sessions.SelectedID})
	}
	return rows
}

func (m *Model) handleSidebarKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	rows := m.sidebarRows()
	switch msg.String() {
	case "tab", "esc":
		m.setFocus(FocusInput)
		return nil, true
	case "up", "k":
		if len(rows) > 0 {
			m.cursor = (m.cursor - 1 + len(rows)) % len(rows)
		}
		return nil, true
	case "down", "j":
		if len(rows) > 0 {
			m.cursor = (m.cursor + 1) % len(rows)
		}
		return nil, true
	case "enter":
		if m.cursor >= len(rows) {
			return nil, true
		}
		row := rows[m.cursor]
		if row.kind == "agent" {
			if row.active {
				return nil, true
			}
			return m.selectAgentCmd(row.id), true
		}
		m.setFocus(FocusInput)
		if row.active {
			return nil, true
		}
		return m.selectSessionCmd(row.id), true
	}
	return nil, false
}

// latestAudio returns the newest playable clip in the transcript.
func latestAudio(items []models.Message) (string, bool) {
	for i := len(items) - 1; i >= 0; i-- {
		if url, ok := items[i].TTS(); ok {
			return url, true
		}
		if items[i].AudioURL != nil && *items[i].AudioURL != "" {
			return *items[i].AudioURL, true
		}
	}
	return "", false
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
