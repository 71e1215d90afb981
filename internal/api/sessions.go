package api

import (
	"context"
	"net/http"
	"net/url"

	"agentchat/internal/models"
)

func (c *Client) ListSessions(ctx context.Context, agentID string) (*models.SessionListResponse, error) {
	var out models.SessionListResponse
	path := "/agents/" + url.PathEscape(agentID) + "/sessions"
	if err := c.doJSON(ctx, "sessions.list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession returns the session with its full message history and agent.
func (c *Client) GetSession(ctx context.Context, id string) (*models.SessionDetail, error) {
	var out models.SessionDetail
	if err := c.doJSON(ctx, "sessions.get", http.MethodGet, "/sessions/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSession(ctx context.Context, agentID string, in models.SessionCreate) (*models.Session, error) {
	var out models.Session
	path := "/agents/" + url.PathEscape(agentID) + "/sessions"
	if err := c.doJSON(ctx, "sessions.create", http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSession(ctx context.Context, id string) error {
	return c.doJSON(ctx, "sessions.delete", http.MethodDelete, "/sessions/"+url.PathEscape(id), nil, nil)
}
