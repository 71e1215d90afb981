package chat

import (
	"context"
	"fmt"

	"agentchat/internal/models"
	"agentchat/internal/route"
	"agentchat/internal/store"

	"go.uber.org/zap"
)

func (s *Service) FetchAgents(ctx context.Context) error {
	s.store.Dispatch(store.SetAgentsLoading{})
	resp, err := s.api.ListAgents(ctx)
	if err != nil {
		s.log.Error("list agents failed", zap.Error(err))
		s.store.Dispatch(store.SetAgentsError{Error: msgLoadAgents})
		return fmt.Errorf("list agents: %w", err)
	}
	s.store.Dispatch(store.SetAgents{Agents: resp.Agents})
	return nil
}

// SelectAgent switches the chat screen to agentID and loads its sessions.
// Any in-flight response is abandoned. An empty id clears the selection.
func (s *Service) SelectAgent(ctx context.Context, agentID string) error {
	s.CancelStream()
	s.mu.Lock()
	s.loadedSessionID = ""
	s.mu.Unlock()

	s.store.Dispatch(store.SelectAgent{ID: agentID})
	if agentID == "" {
		s.recordVisit(ctx, route.Location{})
		return nil
	}
	s.recordVisit(ctx, route.Agent(agentID))
	return s.FetchSessions(ctx, agentID)
}

func (s *Service) CreateAgent(ctx context.Context, in models.AgentCreate) (*models.Agent, error) {
	agent, err := s.api.CreateAgent(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	s.store.Dispatch(store.AddAgent{Agent: *agent})
	s.log.Info("agent created", zap.String("agent_id", agent.ID))
	return agent, nil
}

func (s *Service) UpdateAgent(ctx context.Context, id string, in models.AgentUpdate) (*models.Agent, error) {
	agent, err := s.api.UpdateAgent(ctx, id, in)
	if err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}
	s.store.Dispatch(store.UpdateAgent{Agent: *agent})
	return agent, nil
}

// DeleteAgent removes the agent. When it was selected the chat screen falls
// back to the empty location.
func (s *Service) DeleteAgent(ctx context.Context, id string) error {
	if err := s.api.DeleteAgent(ctx, id); err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	wasSelected := s.store.State().Agents.SelectedID == id
	s.store.Dispatch(store.RemoveAgent{ID: id})
	if wasSelected {
		return s.SelectAgent(ctx, "")
	}
	return nil
}

// RefinePrompt turns a short description into a full system prompt.
func (s *Service) RefinePrompt(ctx context.Context, description string) (string, error) {
	prompt, err := s.api.RefinePrompt(ctx, description)
	if err != nil {
		return "", fmt.Errorf("refine prompt: %w", err)
	}
	return prompt, nil
}
