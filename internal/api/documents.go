package api

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"agentchat/internal/models"
)

func (c *Client) ListDocuments(ctx context.Context, agentID string) (*models.DocumentListResponse, error) {
	var out models.DocumentListResponse
	path := "/agents/" + url.PathEscape(agentID) + "/documents"
	if err := c.doJSON(ctx, "documents.list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDocument sends r as the multipart "file" field. The backend chunks
// and indexes it into the agent's knowledge base before answering.
func (c *Client) UploadDocument(ctx context.Context, agentID, filename string, r io.Reader) (*models.DocumentUploadResponse, error) {
	var out models.DocumentUploadResponse
	path := "/agents/" + url.PathEscape(agentID) + "/documents"
	if err := c.doMultipart(ctx, "documents.upload", path, "file", filename, r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	return c.doJSON(ctx, "documents.delete", http.MethodDelete, "/documents/"+url.PathEscape(id), nil, nil)
}
