package models

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	TypeText  = "text"
	TypeVoice = "voice"
)

type Agent struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
	SessionCount int    `json:"session_count"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

type AgentCreate struct {
	Name         string `json:"name"`
	SystemPrompt string `json:"system_prompt"`
}

// AgentUpdate carries only the fields being changed.
type AgentUpdate struct {
	Name         *string `json:"name,omitempty"`
	SystemPrompt *string `json:"system_prompt,omitempty"`
}

type AgentListResponse struct {
	Agents []Agent `json:"agents"`
	Total  int     `json:"total"`
}

type RefineRequest struct {
	Description string `json:"description"`
}

type RefineResponse struct {
	SystemPrompt string `json:"system_prompt"`
}

type Session struct {
	ID           string  `json:"id"`
	AgentID      string  `json:"agent_id"`
	Title        *string `json:"title"`
	MessageCount int     `json:"message_count"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

// DisplayTitle returns the server title or a placeholder for untitled sessions.
func (s Session) DisplayTitle() string {
	if s.Title == nil || *s.Title == "" {
		return "New conversation"
	}
	return *s.Title
}

type SessionCreate struct {
	Title *string `json:"title,omitempty"`
}

type SessionDetail struct {
	Session
	Messages []Message `json:"messages"`
	Agent    Agent     `json:"agent"`
}

type SessionListResponse struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
}

type Message struct {
	ID          string  `json:"id"`
	SessionID   string  `json:"session_id"`
	Role        string  `json:"role"`
	Content     string  `json:"content"`
	MessageType string  `json:"message_type"`
	AudioURL    *string `json:"audio_url"`
	TTSAudioURL *string `json:"tts_audio_url"`
	CreatedAt   string  `json:"created_at"`
}

// IsVoice reports whether the message was spoken rather than typed.
func (m Message) IsVoice() bool {
	return m.MessageType == TypeVoice || (m.AudioURL != nil && *m.AudioURL != "")
}

// TTS returns the synthesized speech location, if any.
func (m Message) TTS() (string, bool) {
	if m.TTSAudioURL == nil || *m.TTSAudioURL == "" {
		return "", false
	}
	return *m.TTSAudioURL, true
}

type MessageCreate struct {
	Content string `json:"content"`
}

type MessageListResponse struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"has_more"`
	TotalCount int       `json:"total_count"`
}

type VoiceMessageResponse struct {
	UserMessage      Message `json:"user_message"`
	AssistantMessage Message `json:"assistant_message"`
}

type Document struct {
	ID         string `json:"id"`
	AgentID    string `json:"agent_id"`
	Filename   string `json:"filename"`
	FileType   string `json:"file_type"`
	FileSize   int64  `json:"file_size"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

type DocumentListResponse struct {
	Documents []Document `json:"documents"`
	Total     int        `json:"total"`
}

type DocumentUploadResponse struct {
	Message  string   `json:"message"`
	Document Document `json:"document"`
}

// SSE event payloads

type TokenEvent struct {
	Content string `json:"content"`
}

type DoneEvent struct {
	MessageID   string `json:"message_id"`
	FullContent string `json:"full_content"`
}

type ErrorEvent struct {
	Error           string `json:"error"`
	FallbackMessage string `json:"fallback_message"`
}

type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
	OpenAI   string `json:"openai"`
}

// Visit is one entry of the locally persisted navigation history.
type Visit struct {
	ID           int64
	Path         string
	AgentName    string
	SessionTitle string
	VisitedUnix  int64
}

// StringPtr is a small helper for optional payload fields.
func StringPtr(s string) *string {
	return &s
}
