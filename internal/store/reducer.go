package store

import "agentchat/internal/models"

// Reduce returns the state that results from applying a to s. It never
// modifies s or the slices it references; unknown actions return s unchanged.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	// Agents
	case SetAgentsLoading:
		s.Agents.Loading = true
		s.Agents.Error = ""
	case SetAgents:
		s.Agents.Items = clone(a.Agents)
		s.Agents.Loading = false
	case SetAgentsError:
		s.Agents.Error = a.Error
		s.Agents.Loading = false
	case SelectAgent:
		// A new agent never inherits the previous agent's sessions or conversation.
		s.Agents.SelectedID = a.ID
		s.Sessions.Items = nil
		s.Sessions.SelectedID = ""
		s.Messages.Items = nil
		s.Messages.HasMore = false
		s.Messages.TotalCount = 0
	case AddAgent:
		s.Agents.Items = prepend(a.Agent, s.Agents.Items)
	case UpdateAgent:
		s.Agents.Items = replaceByID(s.Agents.Items, a.Agent, func(x models.Agent) string { return x.ID })
	case RemoveAgent:
		s.Agents.Items = removeByID(s.Agents.Items, a.ID, func(x models.Agent) string { return x.ID })
		if s.Agents.SelectedID == a.ID {
			s.Agents.SelectedID = ""
		}

	// Sessions
	case SetSessionsLoading:
		s.Sessions.Loading = true
		s.Sessions.Error = ""
	case SetSessions:
		s.Sessions.Items = clone(a.Sessions)
		s.Sessions.Loading = false
	case SetSessionsError:
		s.Sessions.Error = a.Error
		s.Sessions.Loading = false
	case SelectSession:
		// Switching sessions must never show the previous session's stream.
		s.Sessions.SelectedID = a.ID
		s.Messages.Items = nil
		s.Messages.HasMore = false
		s.Messages.TotalCount = 0
		s.Messages.Streaming = false
		s.Messages.StreamingContent = ""
	case AddSession:
		s.Sessions.Items = prepend(a.Session, s.Sessions.Items)
	case UpdateSession:
		s.Sessions.Items = replaceByID(s.Sessions.Items, a.Session, func(x models.Session) string { return x.ID })
	case RemoveSession:
		s.Sessions.Items = removeByID(s.Sessions.Items, a.ID, func(x models.Session) string { return x.ID })
		if s.Sessions.SelectedID == a.ID {
			s.Sessions.SelectedID = ""
		}

	// Messages
	case SetMessagesLoading:
		s.Messages.Loading = true
		s.Messages.Error = ""
	case SetMessages:
		s.Messages.Items = clone(a.Messages)
		s.Messages.HasMore = a.HasMore
		s.Messages.TotalCount = a.TotalCount
		s.Messages.Loading = false
	case PrependMessages:
		items := make([]models.Message, 0, len(a.Messages)+len(s.Messages.Items))
		items = append(items, a.Messages...)
		items = append(items, s.Messages.Items...)
		s.Messages.Items = items
		s.Messages.HasMore = a.HasMore
		s.Messages.Loading = false
	case SetMessagesError:
		s.Messages.Error = a.Error
		s.Messages.Loading = false
	case AddMessage:
		s.Messages.Items = appendOne(s.Messages.Items, a.Message)
	case ClearMessages:
		s.Messages.Items = nil
		s.Messages.HasMore = false
		s.Messages.TotalCount = 0

	// Streaming
	case StartStreaming:
		s.Messages.Streaming = true
		s.Messages.StreamingContent = ""
	case AppendStreaming:
		s.Messages.StreamingContent += a.Token
	case FinishStreaming:
		s.Messages.Streaming = false
		s.Messages.StreamingContent = ""
		s.Messages.Items = appendOne(s.Messages.Items, a.Message)
	case StreamingError:
		s.Messages.Streaming = false
		s.Messages.StreamingContent = ""
		s.Messages.Error = a.Error

	// Voice
	case StartRecording:
		s.Voice.IsRecording = true
		s.Voice.RecordingDuration = 0
		s.Voice.Error = ""
	case UpdateRecordingDuration:
		s.Voice.RecordingDuration = a.Seconds
	case StopRecording:
		s.Voice.IsRecording = false
	case StartVoiceProcessing:
		s.Voice.IsProcessing = true
		s.Voice.Error = ""
	case FinishVoiceProcessing:
		s.Voice.IsProcessing = false
	case VoiceError:
		s.Voice.IsProcessing = false
		s.Voice.Error = a.Error
	case SetVoiceMode:
		s.Voice.IsVoiceMode = a.Enabled

	// UI
	case ToggleSidebar:
		s.UI.SidebarCollapsed = !s.UI.SidebarCollapsed
	case OpenModal:
		s.UI.Modal = a.Type
		s.UI.EditingAgent = a.Agent
		s.UI.DeletingItem = a.DeletingItem
	case CloseModal:
		s.UI.Modal = ModalNone
		s.UI.EditingAgent = nil
		s.UI.DeletingItem = nil
	}
	return s
}

func clone[T any](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func prepend[T any](item T, items []T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}

func appendOne[T any](items []T, item T) []T {
	out := make([]T, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

func replaceByID[T any](items []T, item T, id func(T) string) []T {
	out := make([]T, len(items))
	for i, x := range items {
		if id(x) == id(item) {
			out[i] = item
		} else {
			out[i] = x
		}
	}
	return out
}

func removeByID[T any](items []T, target string, id func(T) string) []T {
	out := make([]T, 0, len(items))
	for _, x := range items {
		if id(x) != target {
			out = append(out, x)
		}
	}
	return out
}
