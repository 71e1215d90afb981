package api

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"agentchat/internal/models"
)

const recordingFilename = "recording.webm"

// SendVoice uploads a recorded clip. The backend transcribes it, answers,
// synthesizes speech and returns both resulting messages.
func (c *Client) SendVoice(ctx context.Context, sessionID string, audio []byte) (*models.VoiceMessageResponse, error) {
	var out models.VoiceMessageResponse
	path := "/sessions/" + url.PathEscape(sessionID) + "/voice"
	if err := c.doMultipart(ctx, "voice.send", path, "audio", recordingFilename, bytes.NewReader(audio), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AudioURL resolves an audio path returned by the backend into a fetchable
// URL. Backend paths are origin-relative (/api/audio/...), so they are joined
// to the API base with its /api suffix removed.
func (c *Client) AudioURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(c.baseURL, "/api") + path
}
