package store

import (
	"fmt"
	"strings"
	"sync"

	"agentchat/internal/logger"

	"go.uber.org/zap"
)

// Dispatcher is the part of Store the orchestration layer depends on.
type Dispatcher interface {
	Dispatch(Action)
	State() State
}

// Store is the application's single state container. It is created once at
// startup and handed to every component that reads or changes state.
type Store struct {
	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
	log    *zap.Logger
}

func New(initial State, log *zap.Logger) *Store {
	return &Store{
		state: initial,
		subs:  make(map[int]func(State)),
		log:   logger.OrNop(log),
	}
}

// Dispatch applies a and notifies subscribers with the resulting state.
// Transitions are applied in the order Dispatch is called.
func (s *Store) Dispatch(a Action) {
	s.mu.Lock()
	s.state = Reduce(s.state, a)
	next := s.state
	subs := make([]func(State), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	if ce := s.log.Check(zap.DebugLevel, "dispatch"); ce != nil {
		ce.Write(zap.String("action", actionName(a)))
	}
	for _, fn := range subs {
		fn(next)
	}
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn to run after every transition. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func actionName(a Action) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", a), "store.")
}
