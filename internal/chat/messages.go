package chat

import (
	"context"
	"fmt"
	"strings"

	"agentchat/internal/metrics"
	"agentchat/internal/models"
	"agentchat/internal/sse"
	"agentchat/internal/store"

	"go.uber.org/zap"
)

// SendMessage adds content to the transcript optimistically and streams the
// assistant's answer into the store. Tokens are appended in arrival order.
// An error event from the backend completes the turn with its fallback text;
// a failed request records "Failed to send message".
//
// The optimistic message keeps its temp- id; it is replaced only when the
// session is reloaded.
func (s *Service) SendMessage(ctx context.Context, sessionID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if s.stream != nil {
		s.mu.Unlock()
		return ErrStreamInFlight
	}
	ctx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel}
	s.stream = f
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.stream == f {
			s.stream = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	if f.abandoned.Load() {
		return nil
	}
	s.store.Dispatch(store.AddMessage{Message: models.Message{
		ID:          "temp-" + s.newID(),
		SessionID:   sessionID,
		Role:        models.RoleUser,
		Content:     content,
		MessageType: models.TypeText,
		CreatedAt:   s.timestamp(),
	}})
	s.store.Dispatch(store.StartStreaming{})

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	log := s.log.With(zap.String("session_id", sessionID))
	completed := false
	assistant := func(id, text string) models.Message {
		return models.Message{
			ID:          id,
			SessionID:   sessionID,
			Role:        models.RoleAssistant,
			Content:     text,
			MessageType: models.TypeText,
			CreatedAt:   s.timestamp(),
		}
	}

	handler := sse.Funcs{
		Token: func(token string) {
			if f.abandoned.Load() {
				return
			}
			s.store.Dispatch(store.AppendStreaming{Token: token})
		},
		Done: func(messageID, fullContent string) {
			completed = true
			if f.abandoned.Load() {
				return
			}
			s.store.Dispatch(store.FinishStreaming{Message: assistant(messageID, fullContent)})
		},
		Error: func(errMsg, fallback string) {
			completed = true
			log.Warn("assistant reported an error", zap.String("error", errMsg))
			if f.abandoned.Load() {
				return
			}
			s.store.Dispatch(store.FinishStreaming{Message: assistant("error-"+s.newID(), fallback)})
		},
	}

	err := s.api.StreamMessage(ctx, sessionID, content, handler)
	if f.abandoned.Load() {
		return nil
	}
	if err != nil {
		log.Error("send message failed", zap.Error(err))
		s.store.Dispatch(store.StreamingError{Error: msgSendFailed})
		return fmt.Errorf("send message: %w", err)
	}
	if !completed {
		log.Warn("stream ended without a terminal event")
		s.store.Dispatch(store.StreamingError{Error: msgIncomplete})
		return ErrIncompleteStream
	}
	return nil
}

// SendVoiceMessage uploads a recording and adds the transcribed user message
// and the assistant's reply to the transcript.
func (s *Service) SendVoiceMessage(ctx context.Context, sessionID string, audio []byte) (*models.VoiceMessageResponse, error) {
	s.mu.Lock()
	if s.voiceBusy {
		s.mu.Unlock()
		return nil, ErrVoiceInFlight
	}
	s.voiceBusy = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.voiceBusy = false
		s.mu.Unlock()
	}()

	s.store.Dispatch(store.StartVoiceProcessing{})

	resp, err := s.api.SendVoice(ctx, sessionID, audio)
	if err != nil {
		s.log.Error("voice message failed", zap.String("session_id", sessionID), zap.Int("bytes", len(audio)), zap.Error(err))
		s.store.Dispatch(store.VoiceError{Error: msgVoiceFailed})
		return nil, fmt.Errorf("send voice message: %w", err)
	}

	if s.selectedSessionID() == sessionID {
		s.store.Dispatch(store.AddMessage{Message: resp.UserMessage})
		s.store.Dispatch(store.AddMessage{Message: resp.AssistantMessage})
	}
	s.store.Dispatch(store.FinishVoiceProcessing{})
	return resp, nil
}

// LoadMoreMessages prepends the page preceding the oldest loaded message. It
// does nothing when there is no older page, a load is running, or nothing is
// loaded yet.
func (s *Service) LoadMoreMessages(ctx context.Context, sessionID string) error {
	msgs := s.store.State().Messages
	if !msgs.HasMore || msgs.Loading || len(msgs.Items) == 0 {
		return nil
	}
	before := msgs.Items[0].ID

	s.store.Dispatch(store.SetMessagesLoading{})
	resp, err := s.api.ListMessages(ctx, sessionID, s.pageSize, before)
	if err != nil {
		s.log.Error("load more messages failed", zap.String("session_id", sessionID), zap.Error(err))
		if s.selectedSessionID() != sessionID {
			return nil
		}
		s.store.Dispatch(store.SetMessagesError{Error: msgLoadMoreMessages})
		return fmt.Errorf("load more messages: %w", err)
	}
	if s.selectedSessionID() != sessionID {
		return nil
	}
	s.store.Dispatch(store.PrependMessages{Messages: resp.Messages, HasMore: resp.HasMore})
	return nil
}

// SyncMessages loads the first page of the selected session unless that
// session is already loaded.
func (s *Service) SyncMessages(ctx context.Context) error {
	st := s.store.State()
	sessionID := st.Sessions.SelectedID
	if sessionID == "" {
		return nil
	}

	s.mu.Lock()
	loaded := s.loadedSessionID == sessionID
	s.mu.Unlock()
	if loaded && len(st.Messages.Items) > 0 {
		return nil
	}
	return s.loadMessages(ctx, sessionID)
}

func (s *Service) loadMessages(ctx context.Context, sessionID string) error {
	s.store.Dispatch(store.SetMessagesLoading{})
	s.mu.Lock()
	s.loadedSessionID = sessionID
	s.mu.Unlock()

	resp, err := s.api.ListMessages(ctx, sessionID, s.pageSize, "")
	if err != nil {
		s.log.Error("load messages failed", zap.String("session_id", sessionID), zap.Error(err))
		s.mu.Lock()
		if s.loadedSessionID == sessionID {
			s.loadedSessionID = ""
		}
		s.mu.Unlock()
		if s.selectedSessionID() != sessionID {
			return nil
		}
		s.store.Dispatch(store.SetMessagesError{Error: msgLoadMessages})
		return fmt.Errorf("load messages: %w", err)
	}
	if s.selectedSessionID() != sessionID {
		s.log.Debug("dropping messages for deselected session", zap.String("session_id", sessionID))
		return nil
	}
	s.store.Dispatch(store.SetMessages{
		Messages:   resp.Messages,
		HasMore:    resp.HasMore,
		TotalCount: resp.TotalCount,
	})
	return nil
}
