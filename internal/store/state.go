// Package store holds the client's single state tree and the pure transition
// function that evolves it.
package store

import "agentchat/internal/models"

type AgentsState struct {
	Items      []models.Agent
	Loading    bool
	Error      string
	SelectedID string
}

type SessionsState struct {
	Items      []models.Session
	Loading    bool
	Error      string
	SelectedID string
}

type MessagesState struct {
	Items            []models.Message
	Loading          bool
	Error            string
	HasMore          bool
	TotalCount       int
	Streaming        bool
	StreamingContent string
}

type VoiceState struct {
	IsRecording       bool
	IsProcessing      bool
	RecordingDuration int // seconds
	Error             string
	IsVoiceMode       bool
}

type ModalType string

const (
	ModalNone          ModalType = ""
	ModalAgentCreate   ModalType = "agent-create"
	ModalAgentEdit     ModalType = "agent-edit"
	ModalDeleteAgent   ModalType = "delete-agent"
	ModalDeleteSession ModalType = "delete-session"
)

type DeletingItem struct {
	Type string // "agent" or "session"
	ID   string
	Name string
}

type UIState struct {
	SidebarCollapsed bool
	Modal            ModalType
	EditingAgent     *models.Agent
	DeletingItem     *DeletingItem
}

type State struct {
	Agents   AgentsState
	Sessions SessionsState
	Messages MessagesState
	Voice    VoiceState
	UI       UIState
}

// Initial returns the empty application state.
func Initial() State {
	return State{}
}

// SelectedAgent returns the agent whose id is selected, if it is loaded.
func (s State) SelectedAgent() (models.Agent, bool) {
	for _, a := range s.Agents.Items {
		if a.ID == s.Agents.SelectedID && a.ID != "" {
			return a, true
		}
	}
	return models.Agent{}, false
}

// SelectedSession returns the session whose id is selected, if it is loaded.
func (s State) SelectedSession() (models.Session, bool) {
	for _, sess := range s.Sessions.Items {
		if sess.ID == s.Sessions.SelectedID && sess.ID != "" {
			return sess, true
		}
	}
	return models.Session{}, false
}

// LastMessage returns the newest loaded message.
func (s State) LastMessage() (models.Message, bool) {
	n := len(s.Messages.Items)
	if n == 0 {
		return models.Message{}, false
	}
	return s.Messages.Items[n-1], true
}
