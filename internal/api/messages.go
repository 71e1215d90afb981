package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"agentchat/internal/models"
	"agentchat/internal/sse"
)

// ListMessages returns up to limit messages of a session, oldest first.
// When before is set only messages older than that message are returned.
func (c *Client) ListMessages(ctx context.Context, sessionID string, limit int, before string) (*models.MessageListResponse, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if before != "" {
		q.Set("before", before)
	}
	path := "/sessions/" + url.PathEscape(sessionID) + "/messages?" + q.Encode()

	var out models.MessageListResponse
	if err := c.doJSON(ctx, "messages.list", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StreamMessage posts content to a session and feeds the event-stream answer
// to h until a terminal event, the end of the body, or ctx cancellation.
// A non-2xx answer is returned as a *RequestError before any event is
// delivered.
func (c *Client) StreamMessage(ctx context.Context, sessionID, content string, h sse.Handler) error {
	payload, err := json.Marshal(models.MessageCreate{Content: content})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	path := "/sessions/" + url.PathEscape(sessionID) + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(path), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.send("messages.stream", req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := sse.Parse(ctx, resp.Body, h, c.log); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Op: "read stream", URL: req.URL.String(), Err: err}
	}
	return nil
}
