// Package apitest provides an in-memory agent platform backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"agentchat/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Failure makes the next matching request answer with Status and Body.
type Failure struct {
	Status int
	Body   string
}

// Backend serves the REST routes under /api from in-memory data.
type Backend struct {
	mu        sync.Mutex
	agents    []models.Agent
	sessions  map[string][]models.Session
	messages  map[string][]models.Message
	documents map[string][]models.Document
	failures  map[string]Failure
	calls     []string

	// StreamBody, when set, produces the raw event-stream body for a sent
	// message instead of the default echo reply.
	StreamBody func(sessionID, content string) []string

	lastUpload Upload

	server *httptest.Server
}

// Upload describes a received multipart file.
type Upload struct {
	Field    string
	Filename string
	Size     int
}

// New starts a backend that is shut down when t finishes.
func New(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		sessions:  make(map[string][]models.Session),
		messages:  make(map[string][]models.Message),
		documents: make(map[string][]models.Document),
		failures:  make(map[string]Failure),
	}
	b.server = httptest.NewServer(b.routes())
	t.Cleanup(b.server.Close)
	return b
}

// URL is the API base URL, including the /api prefix.
func (b *Backend) URL() string {
	return b.server.URL + "/api"
}

// Close stops the server early, turning every later request into a
// transport failure.
func (b *Backend) Close() {
	b.server.Close()
}

// Fail registers a one-shot failure for route, written as
// "METHOD /pattern", for example "POST /sessions/{sessionID}/messages".
func (b *Backend) Fail(route string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[route] = Failure{Status: status, Body: body}
}

// Calls returns the routes hit so far, in order.
func (b *Backend) Calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

// CallCount returns how many times route was hit.
func (b *Backend) CallCount(route string) int {
	n := 0
	for _, c := range b.Calls() {
		if c == route {
			n++
		}
	}
	return n
}

func (b *Backend) AddAgent(a models.Agent) models.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	b.agents = append(b.agents, a)
	return a
}

func (b *Backend) AddSession(s models.Session) models.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	b.sessions[s.AgentID] = append(b.sessions[s.AgentID], s)
	return s
}

// AddMessages appends msgs to a session's history, oldest first.
func (b *Backend) AddMessages(sessionID string, msgs ...models.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range msgs {
		m.SessionID = sessionID
		b.messages[sessionID] = append(b.messages[sessionID], m)
	}
}

func (b *Backend) AddDocument(d models.Document) models.Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	b.documents[d.AgentID] = append(b.documents[d.AgentID], d)
	return d
}

func (b *Backend) Messages(sessionID string) []models.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Message(nil), b.messages[sessionID]...)
}

func (b *Backend) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", b.handle(b.health))

		r.Get("/agents", b.handle(b.listAgents))
		r.Post("/agents", b.handle(b.createAgent))
		r.Post("/agents/refine", b.handle(b.refine))
		r.Get("/agents/{agentID}", b.handle(b.getAgent))
		r.Put("/agents/{agentID}", b.handle(b.updateAgent))
		r.Delete("/agents/{agentID}", b.handle(b.deleteAgent))

		r.Get("/agents/{agentID}/sessions", b.handle(b.listSessions))
		r.Post("/agents/{agentID}/sessions", b.handle(b.createSession))
		r.Get("/sessions/{sessionID}", b.handle(b.getSession))
		r.Delete("/sessions/{sessionID}", b.handle(b.deleteSession))

		r.Get("/sessions/{sessionID}/messages", b.handle(b.listMessages))
		r.Post("/sessions/{sessionID}/messages", b.handle(b.streamMessage))
		r.Post("/sessions/{sessionID}/voice", b.handle(b.voice))

		r.Get("/agents/{agentID}/documents", b.handle(b.listDocuments))
		r.Post("/agents/{agentID}/documents", b.handle(b.uploadDocument))
		r.Delete("/documents/{documentID}", b.handle(b.deleteDocument))
	})
	return r
}

// handle records the call and applies any registered failure.
func (b *Backend) handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pattern := strings.TrimPrefix(chi.RouteContext(r.Context()).RoutePattern(), "/api")
		route := r.Method + " " + pattern

		b.mu.Lock()
		b.calls = append(b.calls, route)
		f, failing := b.failures[route]
		delete(b.failures, route)
		b.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.Status)
			_, _ = io.WriteString(w, f.Body)
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (b *Backend) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Health{Status: "healthy", Version: "1.0.0", Database: "healthy", OpenAI: "configured"})
}

func (b *Backend) listAgents(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	agents := append([]models.Agent{}, b.agents...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, models.AgentListResponse{Agents: agents, Total: len(agents)})
}

func (b *Backend) findAgent(id string) (int, bool) {
	for i, a := range b.agents {
		if a.ID == id {
			return i, true
		}
	}
	return -1, false
}

func (b *Backend) getAgent(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findAgent(chi.URLParam(r, "agentID"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Agent not found")
		return
	}
	writeJSON(w, http.StatusOK, b.agents[i])
}

func (b *Backend) createAgent(w http.ResponseWriter, r *http.Request) {
	var in models.AgentCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "Field required"}},
		})
		return
	}
	a := models.Agent{ID: uuid.NewString(), Name: in.Name, SystemPrompt: in.SystemPrompt, CreatedAt: now(), UpdatedAt: now()}
	b.mu.Lock()
	b.agents = append(b.agents, a)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, a)
}

func (b *Backend) updateAgent(w http.ResponseWriter, r *http.Request) {
	var in models.AgentUpdate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findAgent(chi.URLParam(r, "agentID"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Agent not found")
		return
	}
	if in.Name != nil {
		b.agents[i].Name = *in.Name
	}
	if in.SystemPrompt != nil {
		b.agents[i].SystemPrompt = *in.SystemPrompt
	}
	b.agents[i].UpdatedAt = now()
	writeJSON(w, http.StatusOK, b.agents[i])
}

func (b *Backend) deleteAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "agentID")
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.findAgent(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Agent not found")
		return
	}
	b.agents = append(b.agents[:i], b.agents[i+1:]...)
	delete(b.sessions, id)
	delete(b.documents, id)
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) refine(w http.ResponseWriter, r *http.Request) {
	var in models.RefineRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Description == "" {
		writeDetail(w, http.StatusBadRequest, "Description is required")
		return
	}
	writeJSON(w, http.StatusOK, models.RefineResponse{SystemPrompt: "You are " + in.Description + "."})
}

func (b *Backend) listSessions(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	sessions := append([]models.Session{}, b.sessions[chi.URLParam(r, "agentID")]...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, models.SessionListResponse{Sessions: sessions, Total: len(sessions)})
}

func (b *Backend) createSession(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	var in models.SessionCreate
	_ = json.NewDecoder(r.Body).Decode(&in)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.findAgent(agentID); !ok {
		writeDetail(w, http.StatusNotFound, "Agent not found")
		return
	}
	s := models.Session{ID: uuid.NewString(), AgentID: agentID, Title: in.Title, CreatedAt: now(), UpdatedAt: now()}
	b.sessions[agentID] = append([]models.Session{s}, b.sessions[agentID]...)
	writeJSON(w, http.StatusCreated, s)
}

func (b *Backend) findSession(id string) (string, int, bool) {
	for agentID, list := range b.sessions {
		for i, s := range list {
			if s.ID == id {
				return agentID, i, true
			}
		}
	}
	return "", -1, false
}

func (b *Backend) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	b.mu.Lock()
	defer b.mu.Unlock()
	agentID, i, ok := b.findSession(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	detail := models.SessionDetail{
		Session:  b.sessions[agentID][i],
		Messages: append([]models.Message{}, b.messages[id]...),
	}
	if ai, ok := b.findAgent(agentID); ok {
		detail.Agent = b.agents[ai]
	}
	writeJSON(w, http.StatusOK, detail)
}

func (b *Backend) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	b.mu.Lock()
	defer b.mu.Unlock()
	agentID, i, ok := b.findSession(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}
	list := b.sessions[agentID]
	b.sessions[agentID] = append(list[:i:i], list[i+1:]...)
	delete(b.messages, id)
	w.WriteHeader(http.StatusNoContent)
}

// listMessages pages backwards from before (exclusive), returning the page
// oldest first.
func (b *Backend) listMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 50
	}
	before := r.URL.Query().Get("before")

	b.mu.Lock()
	all := append([]models.Message{}, b.messages[id]...)
	b.mu.Unlock()

	end := len(all)
	if before != "" {
		for i, m := range all {
			if m.ID == before {
				end = i
				break
			}
		}
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	writeJSON(w, http.StatusOK, models.MessageListResponse{
		Messages:   all[start:end],
		HasMore:    start > 0,
		TotalCount: len(all),
	})
}

// Event formats one event-stream frame.
func Event(eventType string, payload any) string {
	data, _ := json.Marshal(payload)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)
}

func (b *Backend) streamMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	var in models.MessageCreate
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Content == "" {
		writeDetail(w, http.StatusBadRequest, "Content is required")
		return
	}

	b.mu.Lock()
	_, _, ok := b.findSession(id)
	custom := b.StreamBody
	b.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Session not found")
		return
	}

	var frames []string
	if custom != nil {
		frames = custom(id, in.Content)
	} else {
		frames = b.echo(id, in.Content)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, f := range frames {
		_, _ = io.WriteString(w, f)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// echo stores both turns and streams the reply "Echo: <content>" word by word.
func (b *Backend) echo(sessionID, content string) []string {
	reply := "Echo: " + content
	user := models.Message{ID: uuid.NewString(), SessionID: sessionID, Role: models.RoleUser, Content: content, MessageType: models.TypeText, CreatedAt: now()}
	assistant := models.Message{ID: uuid.NewString(), SessionID: sessionID, Role: models.RoleAssistant, Content: reply, MessageType: models.TypeText, CreatedAt: now()}

	b.mu.Lock()
	b.messages[sessionID] = append(b.messages[sessionID], user, assistant)
	b.mu.Unlock()

	var frames []string
	words := strings.SplitAfter(reply, " ")
	for _, word := range words {
		frames = append(frames, Event("token", models.TokenEvent{Content: word}))
	}
	frames = append(frames, Event("done", models.DoneEvent{MessageID: assistant.ID, FullContent: reply}))
	return frames
}

func (b *Backend) readUpload(r *http.Request, field string) (Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return Upload{}, err
	}
	defer file.Close()
	n, err := io.Copy(io.Discard, file)
	if err != nil {
		return Upload{}, err
	}
	up := Upload{Field: field, Filename: header.Filename, Size: int(n)}
	b.mu.Lock()
	b.lastUpload = up
	b.mu.Unlock()
	return up, nil
}

// Upload returns the last received multipart file.
func (b *Backend) Upload() Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpload
}

func (b *Backend) voice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	up, err := b.readUpload(r, "audio")
	if err != nil || up.Size == 0 {
		writeDetail(w, http.StatusBadRequest, "Audio file is required")
		return
	}

	userID, assistantID := uuid.NewString(), uuid.NewString()
	user := models.Message{
		ID: userID, SessionID: id, Role: models.RoleUser, Content: "transcribed speech",
		MessageType: models.TypeVoice, AudioURL: models.StringPtr("/api/audio/uploads/" + userID + ".webm"), CreatedAt: now(),
	}
	assistant := models.Message{
		ID: assistantID, SessionID: id, Role: models.RoleAssistant, Content: "spoken answer",
		MessageType: models.TypeText, TTSAudioURL: models.StringPtr("/api/audio/tts/" + assistantID + ".mp3"), CreatedAt: now(),
	}

	b.mu.Lock()
	b.messages[id] = append(b.messages[id], user, assistant)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, models.VoiceMessageResponse{UserMessage: user, AssistantMessage: assistant})
}

func (b *Backend) listDocuments(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	docs := append([]models.Document{}, b.documents[chi.URLParam(r, "agentID")]...)
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, models.DocumentListResponse{Documents: docs, Total: len(docs)})
}

func (b *Backend) uploadDocument(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentID")
	up, err := b.readUpload(r, "file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "File is required")
		return
	}
	doc := models.Document{
		ID:         uuid.NewString(),
		AgentID:    agentID,
		Filename:   up.Filename,
		FileType:   strings.TrimPrefix(filepath.Ext(up.Filename), "."),
		FileSize:   int64(up.Size),
		ChunkCount: 1,
		CreatedAt:  now(),
	}
	b.mu.Lock()
	b.documents[agentID] = append(b.documents[agentID], doc)
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, models.DocumentUploadResponse{Message: "Document uploaded successfully", Document: doc})
}

func (b *Backend) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "documentID")
	b.mu.Lock()
	defer b.mu.Unlock()
	for agentID, docs := range b.documents {
		for i, d := range docs {
			if d.ID == id {
				b.documents[agentID] = append(docs[:i:i], docs[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
	}
	writeDetail(w, http.StatusNotFound, "Document not found")
}
