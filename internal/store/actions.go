package store

import "agentchat/internal/models"

// Action is a state transition request handled by Reduce.
type Action interface {
	action()
}

// Agents
type (
	SetAgentsLoading struct{}
	SetAgents        struct{ Agents []models.Agent }
	SetAgentsError   struct{ Error string }
	SelectAgent      struct{ ID string } // empty ID clears the selection
	AddAgent         struct{ Agent models.Agent }
	UpdateAgent      struct{ Agent models.Agent }
	RemoveAgent      struct{ ID string }
)

// Sessions
type (
	SetSessionsLoading struct{}
	SetSessions        struct{ Sessions []models.Session }
	SetSessionsError   struct{ Error string }
	SelectSession      struct{ ID string }
	AddSession         struct{ Session models.Session }
	UpdateSession      struct{ Session models.Session }
	RemoveSession      struct{ ID string }
)

// Messages
type (
	SetMessagesLoading struct{}
	SetMessages        struct {
		Messages   []models.Message
		HasMore    bool
		TotalCount int
	}
	PrependMessages struct {
		Messages []models.Message
		HasMore  bool
	}
	SetMessagesError struct{ Error string }
	AddMessage       struct{ Message models.Message }
	ClearMessages    struct{}
)

// Streaming
type (
	StartStreaming  struct{}
	AppendStreaming struct{ Token string }
	FinishStreaming struct{ Message models.Message }
	StreamingError  struct{ Error string }
)

// Voice
type (
	StartRecording          struct{}
	UpdateRecordingDuration struct{ Seconds int }
	StopRecording           struct{}
	StartVoiceProcessing    struct{}
	FinishVoiceProcessing   struct{}
	VoiceError              struct{ Error string }
	SetVoiceMode            struct{ Enabled bool }
)

// UI
type (
	ToggleSidebar struct{}
	OpenModal     struct {
		Type         ModalType
		Agent        *models.Agent
		DeletingItem *DeletingItem
	}
	CloseModal struct{}
)

func (SetAgentsLoading) action() {}
func (SetAgents) action()        {}
func (SetAgentsError) action()   {}
func (SelectAgent) action()      {}
func (AddAgent) action()         {}
func (UpdateAgent) action()      {}
func (RemoveAgent) action()      {}

func (SetSessionsLoading) action() {}
func (SetSessions) action()        {}
func (SetSessionsError) action()   {}
func (SelectSession) action()      {}
func (AddSession) action()         {}
func (UpdateSession) action()      {}
func (RemoveSession) action()      {}

func (SetMessagesLoading) action() {}
func (SetMessages) action()        {}
func (PrependMessages) action()    {}
func (SetMessagesError) action()   {}
func (AddMessage) action()         {}
func (ClearMessages) action()      {}

func (StartStreaming) action()  {}
func (AppendStreaming) action() {}
func (FinishStreaming) action() {}
func (StreamingError) action()  {}

func (StartRecording) action()          {}
func (UpdateRecordingDuration) action() {}
func (StopRecording) action()           {}
func (StartVoiceProcessing) action()    {}
func (FinishVoiceProcessing) action()   {}
func (VoiceError) action()              {}
func (SetVoiceMode) action()            {}

func (ToggleSidebar) action() {}
func (OpenModal) action()     {}
func (CloseModal) action()    {}
