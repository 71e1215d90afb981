package ui

import (
	"context"
	"errors"

	"agentchat/internal/api"
	"agentchat/internal/chat"
	"agentchat/internal/models"
	"agentchat/internal/route"
	"agentchat/internal/store"

	tea "github.com/charmbracelet/bubbletea"
)

func (m *Model) navigateCmd(loc route.Location) tea.Cmd {
	if m.deps.Chat == nil {
		return nil
	}
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		return resultMsg{op: "open " + loc.String(), err: svc.Navigate(ctx, loc)}
	}
}

func (m *Model) healthCmd() tea.Cmd {
	if m.deps.Chat == nil {
		return nil
	}
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		return resultMsg{op: "reach backend", err: svc.CheckHealth(ctx)}
	}
}

func (m *Model) sendCmd(sessionID, content string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		return resultMsg{op: "send", err: svc.SendMessage(ctx, sessionID, content)}
	}
}

func (m *Model) loadMoreCmd(sessionID string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		return resultMsg{op: "load older messages", err: svc.LoadMoreMessages(ctx, sessionID)}
	}
}

func (m *Model) selectAgentCmd(id string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		return resultMsg{op: "select agent", err: svc.SelectAgent(ctx, id)}
	}
}

func (m *Model) selectSessionCmd(id string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		return resultMsg{op: "open session", err: svc.SelectSession(ctx, id)}
	}
}

func (m *Model) createSessionCmd(agentID string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		s, err := svc.CreateSession(ctx, agentID)
		return sessionCreatedMsg{session: s, err: err}
	}
}

func (m *Model) saveAgentCmd(editing *models.Agent, name, prompt string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		if editing != nil {
			a, err := svc.UpdateAgent(ctx, editing.ID, models.AgentUpdate{
				Name:         models.StringPtr(name),
				SystemPrompt: models.StringPtr(prompt),
			})
			return agentSavedMsg{agent: a, err: err}
		}
		a, err := svc.CreateAgent(ctx, models.AgentCreate{Name: name, SystemPrompt: prompt})
		return agentSavedMsg{agent: a, created: true, err: err}
	}
}

func (m *Model) refineCmd(description string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		p, err := svc.RefinePrompt(ctx, description)
		return refinedMsg{prompt: p, err: err}
	}
}

func (m *Model) deleteCmd(item store.DeletingItem) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	history := m.deps.History
	return func() tea.Msg {
		var err error
		var path string
		switch item.Type {
		case "agent":
			err = svc.DeleteAgent(ctx, item.ID)
			path = route.Agent(item.ID).String()
		default:
			loc := svc.Location()
			err = svc.DeleteSession(ctx, item.ID)
			path = route.Session(loc.AgentID, item.ID).String()
		}
		if err == nil && history != nil {
			_ = history.Forget(ctx, path)
		}
		return resultMsg{op: "delete " + item.Type, err: err}
	}
}

func (m *Model) documentsCmd(agentID string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		docs, err := svc.ListDocuments(ctx, agentID)
		return documentsMsg{agentID: agentID, docs: docs, err: err}
	}
}

func (m *Model) uploadCmd(agentID, path string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		doc, err := svc.UploadDocument(ctx, agentID, path)
		return uploadedMsg{doc: doc, err: err}
	}
}

func (m *Model) deleteDocumentCmd(agentID, id string) tea.Cmd {
	svc, ctx := m.deps.Chat, m.ctx
	return func() tea.Msg {
		if err := svc.DeleteDocument(ctx, id); err != nil {
			return documentsMsg{agentID: agentID, err: err}
		}
		docs, err := svc.ListDocuments(ctx, agentID)
		return documentsMsg{agentID: agentID, docs: docs, err: err}
	}
}

func (m *Model) visitsCmd() tea.Cmd {
	h, ctx := m.deps.History, m.ctx
	if h == nil {
		return func() tea.Msg { return visitsMsg{err: errors.New("history is unavailable")} }
	}
	return func() tea.Msg {
		count, visits, err := h.RecentVisits(ctx, HistoryLimit)
		return visitsMsg{count: count, visits: visits, err: err}
	}
}

func (m *Model) recordCmd(sessionID string) tea.Cmd {
	turns, ctx := m.deps.Turns, m.ctx
	return func() tea.Msg {
		return resultMsg{op: "record", err: turns.ToggleRecording(ctx, sessionID)}
	}
}

func (m *Model) interactCmd(sessionID string) tea.Cmd {
	turns, ctx := m.deps.Turns, m.ctx
	return func() tea.Msg {
		return resultMsg{op: "voice", err: turns.Interact(ctx, sessionID)}
	}
}

// notFound reports whether err is the backend saying the resource is gone.
func notFound(err error) bool {
	var reqErr *api.RequestError
	return errors.As(err, &reqErr) && reqErr.NotFound()
}

// describeError turns an operation failure into a short status line.
func describeError(op string, err error) string {
	var reqErr *api.RequestError
	switch {
	case errors.Is(err, chat.ErrStreamInFlight):
		return "A response is still streaming"
	case errors.Is(err, chat.ErrVoiceInFlight):
		return "A voice message is still processing"
	case errors.Is(err, context.Canceled):
		return ""
	case errors.As(err, &reqErr) && reqErr.Detail != "":
		return op + ": " + reqErr.Detail
	default:
		return op + ": " + err.Error()
	}
}
