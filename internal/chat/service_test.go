package chat

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"agentchat/internal/api"
	"agentchat/internal/api/apitest"
	"agentchat/internal/models"
	"agentchat/internal/route"
	"agentchat/internal/store"
)

type fixture struct {
	backend *apitest.Backend
	store   *store.Store
	svc     *Service
	agent   models.Agent
	session models.Session
	visits  *fakeHistory
}

type fakeHistory struct {
	mu     sync.Mutex
	visits []models.Visit
}

func (h *fakeHistory) RecordVisit(_ context.Context, v models.Visit) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visits = append(h.visits, v)
	return nil
}

func (h *fakeHistory) paths() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, v := range h.visits {
		out = append(out, v.Path)
	}
	return out
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	b := apitest.New(t)
	st := store.New(store.Initial(), nil)
	h := &fakeHistory{}
	opts = append([]Option{WithHistory(h)}, opts...)
	f := &fixture{
		backend: b,
		store:   st,
		svc:     NewService(api.NewClient(b.URL()), st, opts...),
		visits:  h,
	}
	f.agent = b.AddAgent(models.Agent{Name: "Tutor"})
	f.session = b.AddSession(models.Session{AgentID: f.agent.ID, Title: models.StringPtr("Algebra")})
	return f
}

// open selects the fixture's agent and session.
func (f *fixture) open(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	if err := f.svc.Navigate(ctx, route.Session(f.agent.ID, f.session.ID)); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
}

func TestSendMessageStreamsIntoStore(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	var snapshots []string
	f.store.Subscribe(func(s store.State) {
		if s.Messages.Streaming {
			snapshots = append(snapshots, s.Messages.StreamingContent)
		}
	})

	if err := f.svc.SendMessage(context.Background(), f.session.ID, "  hello world  "); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	st := f.store.State()
	if st.Messages.Streaming || st.Messages.StreamingContent != "" {
		t.Fatalf("streaming not finished: %+v", st.Messages)
	}
	items := st.Messages.Items
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	if !strings.HasPrefix(items[0].ID, "temp-") || items[0].Content != "hello world" || items[0].Role != models.RoleUser {
		t.Fatalf("optimistic message = %+v", items[0])
	}
	if items[1].Role != models.RoleAssistant || items[1].Content != "Echo: hello world" {
		t.Fatalf("assistant message = %+v", items[1])
	}
	stored := f.backend.Messages(f.session.ID)
	if items[1].ID != stored[len(stored)-1].ID {
		t.Fatalf("assistant id = %q, want server id %q", items[1].ID, stored[len(stored)-1].ID)
	}

	// Each observed streaming snapshot extends the previous one.
	for i := 1; i < len(snapshots); i++ {
		if !strings.HasPrefix(snapshots[i], snapshots[i-1]) {
			t.Fatalf("tokens reordered: %q then %q", snapshots[i-1], snapshots[i])
		}
	}
	if f.svc.Streaming() {
		t.Fatalf("stream guard not released")
	}
}

func TestSendMessageErrorEventUsesFallback(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.backend.StreamBody = func(string, string) []string {
		return []string{
			apitest.Event("token", models.TokenEvent{Content: "Partial"}),
			apitest.Event("error", models.ErrorEvent{Error: "model overloaded", FallbackMessage: "Sorry, try again."}),
		}
	}

	if err := f.svc.SendMessage(context.Background(), f.session.ID, "hi"); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	last, _ := f.store.State().LastMessage()
	if !strings.HasPrefix(last.ID, "error-") || last.Content != "Sorry, try again." || last.Role != models.RoleAssistant {
		t.Fatalf("last = %+v", last)
	}
	if f.store.State().Messages.Error != "" {
		t.Fatalf("error event must not set a messages error")
	}
}

func TestSendMessageRequestFailure(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.backend.Fail("POST /sessions/{sessionID}/messages", http.StatusInternalServerError, `{"detail":"boom"}`)

	err := f.svc.SendMessage(context.Background(), f.session.ID, "hi")
	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want RequestError", err)
	}
	st := f.store.State()
	if st.Messages.Error != "Failed to send message" || st.Messages.Streaming {
		t.Fatalf("messages = %+v", st.Messages)
	}
	if len(st.Messages.Items) != 1 {
		t.Fatalf("only the optimistic message should remain: %+v", st.Messages.Items)
	}
}

func TestSendMessageIncompleteStream(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.backend.StreamBody = func(string, string) []string {
		return []string{apitest.Event("token", models.TokenEvent{Content: "cut"}), "event: done\ndata: {\"mess"}
	}

	err := f.svc.SendMessage(context.Background(), f.session.ID, "hi")
	if !errors.Is(err, ErrIncompleteStream) {
		t.Fatalf("error = %v", err)
	}
	st := f.store.State()
	if st.Messages.Streaming || st.Messages.Error != "Response ended before completion" {
		t.Fatalf("messages = %+v", st.Messages)
	}
}

func TestSendMessageRejectsEmpty(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.SendMessage(context.Background(), f.session.ID, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("error = %v", err)
	}
	if len(f.store.State().Messages.Items) != 0 {
		t.Fatalf("empty message added")
	}
}

// blockStream makes the backend hold the next answer until the returned
// function is called.
func blockStream(t *testing.T, b *apitest.Backend) func() {
	t.Helper()
	release := make(chan struct{})
	var once sync.Once
	b.StreamBody = func(string, string) []string {
		<-release
		return []string{apitest.Event("done", models.DoneEvent{MessageID: "late", FullContent: "late"})}
	}
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)
	return unblock
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSendMessageSingleFlight(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	unblock := blockStream(t, f.backend)

	done := make(chan error, 1)
	go func() { done <- f.svc.SendMessage(context.Background(), f.session.ID, "first") }()
	waitFor(t, func() bool { return f.store.State().Messages.Streaming })

	if err := f.svc.SendMessage(context.Background(), f.session.ID, "second"); !errors.Is(err, ErrStreamInFlight) {
		t.Fatalf("second send error = %v, want ErrStreamInFlight", err)
	}

	unblock()
	if err := <-done; err != nil {
		t.Fatalf("first send error = %v", err)
	}
	if n := f.backend.CallCount("POST /sessions/{sessionID}/messages"); n != 1 {
		t.Fatalf("stream requests = %d, want 1", n)
	}
	if last, _ := f.store.State().LastMessage(); last.ID != "late" {
		t.Fatalf("last = %+v", last)
	}
}

func TestSelectSessionAbandonsStream(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	other := f.backend.AddSession(models.Session{AgentID: f.agent.ID})
	f.backend.AddMessages(other.ID, models.Message{ID: "o1", Role: models.RoleUser, Content: "other"})
	unblock := blockStream(t, f.backend)

	done := make(chan error, 1)
	go func() { done <- f.svc.SendMessage(context.Background(), f.session.ID, "first") }()
	waitFor(t, func() bool { return f.store.State().Messages.Streaming })

	if err := f.svc.SelectSession(context.Background(), other.ID); err != nil {
		t.Fatalf("SelectSession() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("abandoned send error = %v", err)
	}
	unblock()

	st := f.store.State()
	if st.Messages.Streaming || st.Messages.StreamingContent != "" || st.Messages.Error != "" {
		t.Fatalf("stale stream leaked: %+v", st.Messages)
	}
	if len(st.Messages.Items) != 1 || st.Messages.Items[0].ID != "o1" {
		t.Fatalf("items = %+v", st.Messages.Items)
	}
	if f.svc.Streaming() {
		t.Fatalf("stream guard not released")
	}
}

func TestSendVoiceMessage(t *testing.T) {
	f := newFixture(t)
	f.open(t)

	resp, err := f.svc.SendVoiceMessage(context.Background(), f.session.ID, []byte("clip"))
	if err != nil {
		t.Fatalf("SendVoiceMessage() error = %v", err)
	}
	st := f.store.State()
	if st.Voice.IsProcessing || st.Voice.Error != "" {
		t.Fatalf("voice = %+v", st.Voice)
	}
	if len(st.Messages.Items) != 2 || st.Messages.Items[0].ID != resp.UserMessage.ID || st.Messages.Items[1].ID != resp.AssistantMessage.ID {
		t.Fatalf("items = %+v", st.Messages.Items)
	}
}

func TestSendVoiceMessageFailure(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	f.backend.Fail("POST /sessions/{sessionID}/voice", http.StatusBadRequest, `{"detail":"Audio too short"}`)

	_, err := f.svc.SendVoiceMessage(context.Background(), f.session.ID, []byte("clip"))
	var reqErr *api.RequestError
	if !errors.As(err, &reqErr) || reqErr.Detail != "Audio too short" {
		t.Fatalf("error = %v", err)
	}
	st := f.store.State()
	if st.Voice.IsProcessing || st.Voice.Error != "Failed to process voice message" {
		t.Fatalf("voice = %+v", st.Voice)
	}
	if len(st.Messages.Items) != 0 {
		t.Fatalf("no messages expected: %+v", st.Messages.Items)
	}
}

func TestLoadMoreMessages(t *testing.T) {
	f := newFixture(t, WithPageSize(2))
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		f.backend.AddMessages(f.session.ID, models.Message{ID: id, Role: models.RoleUser, Content: id})
	}
	f.open(t)

	ids := func() string {
		var out []string
		for _, m := range f.store.State().Messages.Items {
			out = append(out, m.ID)
		}
		return strings.Join(out, ",")
	}
	if got := ids(); got != "m4,m5" {
		t.Fatalf("first page = %s", got)
	}

	ctx := context.Background()
	if err := f.svc.LoadMoreMessages(ctx, f.session.ID); err != nil {
		t.Fatalf("LoadMoreMessages() error = %v", err)
	}
	if got := ids(); got != "m2,m3,m4,m5" {
		t.Fatalf("after one page = %s", got)
	}
	if err := f.svc.LoadMoreMessages(ctx, f.session.ID); err != nil {
		t.Fatalf("LoadMoreMessages() error = %v", err)
	}
	if got := ids(); got != "m1,m2,m3,m4,m5" || f.store.State().Messages.HasMore {
		t.Fatalf("after two pages = %s hasMore=%v", got, f.store.State().Messages.HasMore)
	}

	before := f.backend.CallCount("GET /sessions/{sessionID}/messages")
	if err := f.svc.LoadMoreMessages(ctx, f.session.ID); err != nil {
		t.Fatalf("LoadMoreMessages() error = %v", err)
	}
	if after := f.backend.CallCount("GET /sessions/{sessionID}/messages"); after != before {
		t.Fatalf("no request expected without more pages")
	}
}

func TestLoadMoreMessagesFailure(t *testing.T) {
	f := newFixture(t, WithPageSize(1))
	f.backend.AddMessages(f.session.ID,
		models.Message{ID: "m1", Role: models.RoleUser},
		models.Message{ID: "m2", Role: models.RoleAssistant},
	)
	f.open(t)
	f.backend.Fail("GET /sessions/{sessionID}/messages", http.StatusServiceUnavailable, "")

	if err := f.svc.LoadMoreMessages(context.Background(), f.session.ID); err == nil {
		t.Fatalf("expected error")
	}
	msgs := f.store.State().Messages
	if msgs.Error != "Failed to load more messages" || msgs.Loading || len(msgs.Items) != 1 {
		t.Fatalf("messages = %+v", msgs)
	}
}

// switchingGateway moves the selection to another session while a message
// page is in flight, then fails the request.
type switchingGateway struct {
	*api.Client
	store *store.Store
	to    string
}

func (g switchingGateway) ListMessages(context.Context, string, int, string) (*models.MessageListResponse, error) {
	g.store.Dispatch(store.SelectSession{ID: g.to})
	return nil, &api.RequestError{Status: http.StatusServiceUnavailable, Method: http.MethodGet, Path: "/sessions/x/messages"}
}

func TestMessageFailuresForDeselectedSessionAreDropped(t *testing.T) {
	f := newFixture(t)
	f.backend.AddMessages(f.session.ID, models.Message{ID: "m1", Role: models.RoleUser})
	f.open(t)
	other := f.backend.AddSession(models.Session{AgentID: f.agent.ID})

	ctx := context.Background()
	gw := switchingGateway{Client: api.NewClient(f.backend.URL()), store: f.store, to: other.ID}

	t.Run("first page", func(t *testing.T) {
		f.store.Dispatch(store.SelectSession{ID: f.session.ID})
		svc := NewService(gw, f.store)
		if err := svc.SyncMessages(ctx); err != nil {
			t.Fatalf("SyncMessages() error = %v", err)
		}
		if e := f.store.State().Messages.Error; e != "" {
			t.Fatalf("stale error shown: %q", e)
		}
	})

	t.Run("older page", func(t *testing.T) {
		f.store.Dispatch(store.SelectSession{ID: f.session.ID})
		f.store.Dispatch(store.SetMessages{Messages: []models.Message{{ID: "m1"}}, HasMore: true, TotalCount: 2})
		svc := NewService(gw, f.store)
		if err := svc.LoadMoreMessages(ctx, f.session.ID); err != nil {
			t.Fatalf("LoadMoreMessages() error = %v", err)
		}
		if e := f.store.State().Messages.Error; e != "" {
			t.Fatalf("stale error shown: %q", e)
		}
	})
}

func TestSyncMessages(t *testing.T) {
	f := newFixture(t)
	f.backend.AddMessages(f.session.ID, models.Message{ID: "m1", Role: models.RoleUser})
	f.open(t)
	ctx := context.Background()
	listRoute := "GET /sessions/{sessionID}/messages"

	loads := f.backend.CallCount(listRoute)
	if err := f.svc.SyncMessages(ctx); err != nil {
		t.Fatalf("SyncMessages() error = %v", err)
	}
	if f.backend.CallCount(listRoute) != loads {
		t.Fatalf("already loaded session reloaded")
	}

	// A failed load clears the guard so the next sync retries.
	f.backend.Fail(listRoute, http.StatusBadGateway, "")
	if err := f.svc.SelectSession(ctx, f.session.ID); err == nil {
		t.Fatalf("expected load failure")
	}
	if f.store.State().Messages.Error != "Failed to load messages" {
		t.Fatalf("messages = %+v", f.store.State().Messages)
	}
	if err := f.svc.SyncMessages(ctx); err != nil {
		t.Fatalf("SyncMessages() error = %v", err)
	}
	if len(f.store.State().Messages.Items) != 1 {
		t.Fatalf("retry did not load messages")
	}
}

func TestNavigateHydratesAndRecordsVisits(t *testing.T) {
	f := newFixture(t)
	f.backend.AddMessages(f.session.ID, models.Message{ID: "m1", Role: models.RoleUser})
	f.open(t)

	st := f.store.State()
	if st.Agents.SelectedID != f.agent.ID || st.Sessions.SelectedID != f.session.ID {
		t.Fatalf("selection = %q/%q", st.Agents.SelectedID, st.Sessions.SelectedID)
	}
	if len(st.Agents.Items) != 1 || len(st.Sessions.Items) != 1 {
		t.Fatalf("not hydrated: %+v %+v", st.Agents, st.Sessions)
	}
	if got := f.svc.Location(); got != route.Session(f.agent.ID, f.session.ID) {
		t.Fatalf("Location() = %+v", got)
	}

	paths := f.visits.paths()
	want := route.Session(f.agent.ID, f.session.ID).String()
	if len(paths) == 0 || paths[len(paths)-1] != want {
		t.Fatalf("visits = %v, want last %q", paths, want)
	}
	last := f.visits.visits[len(f.visits.visits)-1]
	if last.AgentName != "Tutor" || last.SessionTitle != "Algebra" {
		t.Fatalf("visit = %+v", last)
	}

	// Navigating to the same place again does not refetch.
	calls := len(f.backend.Calls())
	f.open(t)
	if len(f.backend.Calls()) != calls {
		t.Fatalf("unexpected requests: %v", f.backend.Calls()[calls:])
	}

	if err := f.svc.Navigate(context.Background(), route.Location{}); err != nil {
		t.Fatalf("Navigate(/chat) error = %v", err)
	}
	if st := f.store.State(); st.Agents.SelectedID != "" || len(st.Sessions.Items) != 0 {
		t.Fatalf("selection not cleared: %+v", st)
	}
}

func TestCheckHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.CheckHealth(ctx); err != nil {
		t.Fatalf("CheckHealth() error = %v", err)
	}

	f.backend.Fail("GET /health", http.StatusOK, `{"status":"degraded"}`)
	if err := f.svc.CheckHealth(ctx); !errors.Is(err, ErrBackendUnhealthy) {
		t.Fatalf("degraded CheckHealth() error = %v", err)
	}

	f.backend.Close()
	var transport *api.TransportError
	if err := f.svc.CheckHealth(ctx); !errors.As(err, &transport) {
		t.Fatalf("unreachable CheckHealth() error = %v", err)
	}
}

func TestNavigateAgentsFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.Fail("GET /agents", http.StatusInternalServerError, "")
	if err := f.svc.Navigate(context.Background(), route.Agent(f.agent.ID)); err == nil {
		t.Fatalf("expected error")
	}
	st := f.store.State()
	if st.Agents.Error != "Failed to load agents" || st.Agents.SelectedID != "" {
		t.Fatalf("agents = %+v", st.Agents)
	}
}

func TestAgentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.svc.FetchAgents(ctx); err != nil {
		t.Fatalf("FetchAgents() error = %v", err)
	}

	created, err := f.svc.CreateAgent(ctx, models.AgentCreate{Name: "Chef", SystemPrompt: "Cook."})
	if err != nil {
		t.Fatalf("CreateAgent() error = %v", err)
	}
	if items := f.store.State().Agents.Items; items[0].ID != created.ID {
		t.Fatalf("new agent not prepended: %+v", items)
	}

	if _, err := f.svc.UpdateAgent(ctx, created.ID, models.AgentUpdate{SystemPrompt: models.StringPtr("Bake.")}); err != nil {
		t.Fatalf("UpdateAgent() error = %v", err)
	}
	if a := f.store.State().Agents.Items[0]; a.SystemPrompt != "Bake." {
		t.Fatalf("agent = %+v", a)
	}

	if err := f.svc.SelectAgent(ctx, created.ID); err != nil {
		t.Fatalf("SelectAgent() error = %v", err)
	}
	if err := f.svc.DeleteAgent(ctx, created.ID); err != nil {
		t.Fatalf("DeleteAgent() error = %v", err)
	}
	st := f.store.State()
	if st.Agents.SelectedID != "" || len(st.Agents.Items) != 1 {
		t.Fatalf("agents = %+v", st.Agents)
	}

	prompt, err := f.svc.RefinePrompt(ctx, "a pastry chef")
	if err != nil || !strings.Contains(prompt, "pastry chef") {
		t.Fatalf("RefinePrompt() = %q, %v", prompt, err)
	}

	if _, err := f.svc.CreateAgent(ctx, models.AgentCreate{}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	f.open(t)
	ctx := context.Background()

	created, err := f.svc.CreateSession(ctx, f.agent.ID)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	if items := f.store.State().Sessions.Items; len(items) != 2 || items[0].ID != created.ID {
		t.Fatalf("sessions = %+v", items)
	}

	if err := f.svc.DeleteSession(ctx, f.session.ID); err != nil {
		t.Fatalf("DeleteSession() error = %v", err)
	}
	st := f.store.State()
	if st.Sessions.SelectedID != "" || len(st.Sessions.Items) != 1 || len(st.Messages.Items) != 0 {
		t.Fatalf("state = %+v", st)
	}

	f.backend.Fail("GET /agents/{agentID}/sessions", http.StatusInternalServerError, "")
	if err := f.svc.FetchSessions(ctx, f.agent.ID); err == nil {
		t.Fatalf("expected error")
	}
	if f.store.State().Sessions.Error != "Failed to load sessions" {
		t.Fatalf("sessions = %+v", f.store.State().Sessions)
	}
}

func TestDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	good := filepath.Join(dir, "Notes.MD")
	if err := os.WriteFile(good, []byte("# Notes"), 0o600); err != nil {
		t.Fatal(err)
	}
	doc, err := f.svc.UploadDocument(ctx, f.agent.ID, good)
	if err != nil {
		t.Fatalf("UploadDocument() error = %v", err)
	}
	if doc.Filename != "Notes.MD" {
		t.Fatalf("doc = %+v", doc)
	}

	docs, err := f.svc.ListDocuments(ctx, f.agent.ID)
	if err != nil || len(docs) != 1 {
		t.Fatalf("ListDocuments() = %+v, %v", docs, err)
	}
	if err := f.svc.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}

	bad := filepath.Join(dir, "slides.pptx")
	if err := os.WriteFile(bad, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UploadDocument(ctx, f.agent.ID, bad); !errors.Is(err, ErrUnsupportedFile) {
		t.Fatalf("error = %v, want ErrUnsupportedFile", err)
	}

	big := filepath.Join(dir, "big.txt")
	fh, err := os.Create(big)
	if err != nil {
		t.Fatal(err)
	}
	if err := fh.Truncate(MaxDocumentSize + 1); err != nil {
		t.Fatal(err)
	}
	fh.Close()
	if _, err := f.svc.UploadDocument(ctx, f.agent.ID, big); !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("error = %v, want ErrFileTooLarge", err)
	}
	if n := f.backend.CallCount("POST /agents/{agentID}/documents"); n != 1 {
		t.Fatalf("uploads = %d, want 1", n)
	}
}
