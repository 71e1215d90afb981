package chat

import (
	"context"
	"fmt"

	"agentchat/internal/models"
	"agentchat/internal/route"
	"agentchat/internal/store"

	"go.uber.org/zap"
)

func (s *Service) FetchSessions(ctx context.Context, agentID string) error {
	s.store.Dispatch(store.SetSessionsLoading{})
	resp, err := s.api.ListSessions(ctx, agentID)
	if err != nil {
		s.log.Error("list sessions failed", zap.String("agent_id", agentID), zap.Error(err))
		s.store.Dispatch(store.SetSessionsError{Error: msgLoadSessions})
		return fmt.Errorf("list sessions: %w", err)
	}
	if s.store.State().Agents.SelectedID != agentID {
		return nil
	}
	s.store.Dispatch(store.SetSessions{Sessions: resp.Sessions})
	return nil
}

// SelectSession opens sessionID and loads its latest page of messages. Any
// in-flight response is abandoned so the new transcript never shows it.
func (s *Service) SelectSession(ctx context.Context, sessionID string) error {
	s.CancelStream()
	s.store.Dispatch(store.SelectSession{ID: sessionID})

	agentID := s.store.State().Agents.SelectedID
	if sessionID == "" {
		s.mu.Lock()
		s.loadedSessionID = ""
		s.mu.Unlock()
		s.recordVisit(ctx, route.Agent(agentID))
		return nil
	}
	s.recordVisit(ctx, route.Session(agentID, sessionID))
	return s.loadMessages(ctx, sessionID)
}

// CreateSession starts an untitled session for agentID. The caller decides
// whether to open it.
func (s *Service) CreateSession(ctx context.Context, agentID string) (*models.Session, error) {
	session, err := s.api.CreateSession(ctx, agentID, models.SessionCreate{})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.store.Dispatch(store.AddSession{Session: *session})
	return session, nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if err := s.api.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	wasSelected := s.selectedSessionID() == id
	if wasSelected {
		s.CancelStream()
	}
	s.store.Dispatch(store.RemoveSession{ID: id})
	if wasSelected {
		s.mu.Lock()
		s.loadedSessionID = ""
		s.mu.Unlock()
		s.store.Dispatch(store.ClearMessages{})
	}
	return nil
}
