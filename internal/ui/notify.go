package ui

import "sync"

// latest forwards only the newest value put into it. Writers never block,
// so store dispatches made from inside Update cannot stall the program loop.
type latest[T any] struct {
	mu     sync.Mutex
	value  T
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newLatest[T any]() *latest[T] {
	return &latest[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (l *latest[T]) put(v T) {
	l.mu.Lock()
	l.value = v
	l.mu.Unlock()
	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// run delivers values to send until stop is called.
func (l *latest[T]) run(send func(T)) {
	for {
		select {
		case <-l.done:
			return
		case <-l.signal:
			l.mu.Lock()
			v := l.value
			l.mu.Unlock()
			send(v)
		}
	}
}

func (l *latest[T]) stop() {
	l.once.Do(func() { close(l.done) })
}
