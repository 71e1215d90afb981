package chat

import (
	"context"

	"agentchat/internal/route"
	"agentchat/internal/store"
)

// Navigate hydrates the state tree from a location: it loads agents when
// none are loaded, selects the agent, loads that agent's sessions and opens
// the session. Steps already satisfied by the current state are skipped.
func (s *Service) Navigate(ctx context.Context, loc route.Location) error {
	st := s.store.State()

	if loc.AgentID == "" {
		if len(st.Agents.Items) == 0 && !st.Agents.Loading {
			if err := s.FetchAgents(ctx); err != nil {
				return err
			}
		}
		if st.Agents.SelectedID != "" {
			return s.SelectAgent(ctx, "")
		}
		s.recordVisit(ctx, loc)
		return nil
	}

	if len(st.Agents.Items) == 0 && !st.Agents.Loading {
		if err := s.FetchAgents(ctx); err != nil {
			return err
		}
	}
	if st.Agents.SelectedID != loc.AgentID {
		if err := s.SelectAgent(ctx, loc.AgentID); err != nil {
			return err
		}
	} else if len(st.Sessions.Items) == 0 && !st.Sessions.Loading {
		if err := s.FetchSessions(ctx, loc.AgentID); err != nil {
			return err
		}
	}

	if loc.SessionID == "" {
		if s.selectedSessionID() != "" {
			return s.SelectSession(ctx, "")
		}
		return nil
	}
	if s.selectedSessionID() != loc.SessionID {
		return s.SelectSession(ctx, loc.SessionID)
	}
	return s.SyncMessages(ctx)
}

// Location reports where the chat screen currently is.
func (s *Service) Location() route.Location {
	return locationOf(s.store.State())
}

func locationOf(st store.State) route.Location {
	return route.Location{AgentID: st.Agents.SelectedID, SessionID: st.Sessions.SelectedID}
}
