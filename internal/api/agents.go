package api

import (
	"context"
	"net/http"
	"net/url"

	"agentchat/internal/models"
)

func (c *Client) ListAgents(ctx context.Context) (*models.AgentListResponse, error) {
	var out models.AgentListResponse
	if err := c.doJSON(ctx, "agents.list", http.MethodGet, "/agents", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	var out models.Agent
	if err := c.doJSON(ctx, "agents.get", http.MethodGet, "/agents/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateAgent(ctx context.Context, in models.AgentCreate) (*models.Agent, error) {
	var out models.Agent
	if err := c.doJSON(ctx, "agents.create", http.MethodPost, "/agents", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateAgent sends only the fields set in in.
func (c *Client) UpdateAgent(ctx context.Context, id string, in models.AgentUpdate) (*models.Agent, error) {
	var out models.Agent
	if err := c.doJSON(ctx, "agents.update", http.MethodPut, "/agents/"+url.PathEscape(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAgent removes the agent along with its sessions and documents.
func (c *Client) DeleteAgent(ctx context.Context, id string) error {
	return c.doJSON(ctx, "agents.delete", http.MethodDelete, "/agents/"+url.PathEscape(id), nil, nil)
}

// RefinePrompt asks the backend to turn a short description into a system prompt.
func (c *Client) RefinePrompt(ctx context.Context, description string) (string, error) {
	var out models.RefineResponse
	err := c.doJSON(ctx, "agents.refine", http.MethodPost, "/agents/refine",
		models.RefineRequest{Description: description}, &out)
	if err != nil {
		return "", err
	}
	return out.SystemPrompt, nil
}
