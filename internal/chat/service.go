// Package chat coordinates the backend gateway and the state store: it runs
// the streaming send flow, voice uploads, pagination, and the agent, session
// and document operations behind the chat screen.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"agentchat/internal/logger"
	"agentchat/internal/models"
	"agentchat/internal/route"
	"agentchat/internal/sse"
	"agentchat/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrStreamInFlight is returned when a message is sent while the previous
	// response is still streaming.
	ErrStreamInFlight = errors.New("chat: a response is already streaming")
	// ErrVoiceInFlight is returned when a recording is submitted while the
	// previous one is still being processed.
	ErrVoiceInFlight = errors.New("chat: a voice message is already processing")
	// ErrIncompleteStream is returned when the stream ends without a done or
	// error event.
	ErrIncompleteStream = errors.New("chat: response ended before completion")
	ErrEmptyMessage     = errors.New("chat: message is empty")
	ErrBackendUnhealthy = errors.New("chat: backend unhealthy")
)

// User-facing failure texts stored in the state tree.
const (
	msgSendFailed       = "Failed to send message"
	msgIncomplete       = "Response ended before completion"
	msgVoiceFailed      = "Failed to process voice message"
	msgLoadMessages     = "Failed to load messages"
	msgLoadMoreMessages = "Failed to load more messages"
	msgLoadAgents       = "Failed to load agents"
	msgLoadSessions     = "Failed to load sessions"
)

const DefaultPageSize = 50

// Gateway is the subset of the backend client the service drives.
type Gateway interface {
	Health(ctx context.Context) (*models.Health, error)

	ListAgents(ctx context.Context) (*models.AgentListResponse, error)
	CreateAgent(ctx context.Context, in models.AgentCreate) (*models.Agent, error)
	UpdateAgent(ctx context.Context, id string, in models.AgentUpdate) (*models.Agent, error)
	DeleteAgent(ctx context.Context, id string) error
	RefinePrompt(ctx context.Context, description string) (string, error)

	ListSessions(ctx context.Context, agentID string) (*models.SessionListResponse, error)
	CreateSession(ctx context.Context, agentID string, in models.SessionCreate) (*models.Session, error)
	DeleteSession(ctx context.Context, id string) error

	ListMessages(ctx context.Context, sessionID string, limit int, before string) (*models.MessageListResponse, error)
	StreamMessage(ctx context.Context, sessionID, content string, h sse.Handler) error
	SendVoice(ctx context.Context, sessionID string, audio []byte) (*models.VoiceMessageResponse, error)

	ListDocuments(ctx context.Context, agentID string) (*models.DocumentListResponse, error)
	UploadDocument(ctx context.Context, agentID, filename string, r io.Reader) (*models.DocumentUploadResponse, error)
	DeleteDocument(ctx context.Context, id string) error
}

// History persists the locations the user visits.
type History interface {
	RecordVisit(ctx context.Context, v models.Visit) error
}

type Service struct {
	api      Gateway
	store    store.Dispatcher
	history  History
	log      *zap.Logger
	pageSize int
	now      func() time.Time
	newID    func() string

	mu              sync.Mutex
	stream          *flight
	voiceBusy       bool
	loadedSessionID string
}

// flight is one streaming episode. Once abandoned its events are dropped.
type flight struct {
	cancel    context.CancelFunc
	abandoned atomic.Bool
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithHistory records every selected location to h.
func WithHistory(h History) Option {
	return func(s *Service) {
		s.history = h
	}
}

// WithClock overrides the timestamp source for locally created messages.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(api Gateway, st store.Dispatcher, opts ...Option) *Service {
	s := &Service{
		api:      api,
		store:    st,
		pageSize: DefaultPageSize,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logger.OrNop(s.log)
	return s
}

// Streaming reports whether a send is in flight.
func (s *Service) Streaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

// CancelStream abandons the in-flight send, if any. Events that arrive
// afterwards are dropped and no error is recorded for it.
func (s *Service) CancelStream() {
	s.mu.Lock()
	f := s.stream
	s.stream = nil
	s.mu.Unlock()

	if f != nil {
		f.abandoned.Store(true)
		f.cancel()
		s.log.Debug("stream abandoned")
	}
}

// CheckHealth asks the backend for its status. A backend that answers but
// reports itself unhealthy is an error too.
func (s *Service) CheckHealth(ctx context.Context) error {
	h, err := s.api.Health(ctx)
	if err != nil {
		return fmt.Errorf("health: %w", err)
	}
	s.log.Info("backend status",
		zap.String("status", h.Status),
		zap.String("version", h.Version),
		zap.String("database", h.Database),
	)
	if h.Status != "healthy" {
		return fmt.Errorf("%w: %s", ErrBackendUnhealthy, h.Status)
	}
	return nil
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(time.RFC3339Nano)
}

func (s *Service) selectedSessionID() string {
	return s.store.State().Sessions.SelectedID
}

func (s *Service) recordVisit(ctx context.Context, loc route.Location) {
	if s.history == nil {
		return
	}
	st := s.store.State()
	v := models.Visit{Path: loc.String(), VisitedUnix: s.now().Unix()}
	if a, ok := st.SelectedAgent(); ok && a.ID == loc.AgentID {
		v.AgentName = a.Name
	}
	if sess, ok := st.SelectedSession(); ok && sess.ID == loc.SessionID {
		v.SessionTitle = sess.DisplayTitle()
	}
	if err := s.history.RecordVisit(ctx, v); err != nil {
		s.log.Warn("failed to record visit", zap.String("path", v.Path), zap.Error(err))
	}
}
