package voice

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"agentchat/internal/models"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	tk := &fakeTicker{ch: make(chan time.Time, 256)}
	c.tickers = append(c.tickers, tk)
	return tk
}

// Advance moves time forward one second at a time, ticking every live ticker.
func (c *fakeClock) Advance(d time.Duration) {
	for ; d > 0; d -= time.Second {
		c.mu.Lock()
		c.now = c.now.Add(time.Second)
		now := c.now
		tickers := append([]*fakeTicker(nil), c.tickers...)
		c.mu.Unlock()
		for _, tk := range tickers {
			tk.fire(now)
		}
	}
}

type fakeTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.ch <- now
	}
}

type fakeMic struct {
	mu      sync.Mutex
	data    []byte
	err     error
	opened  int
	streams []*fakeStream
}

func (m *fakeMic) Open(context.Context) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.opened++
	s := &fakeStream{data: m.data, end: make(chan struct{})}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *fakeMic) stream(i int) *fakeStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams[i]
}

type fakeStream struct {
	data []byte
	sent bool
	end  chan struct{}
	once sync.Once

	mu       sync.Mutex
	finished bool
	closed   bool
}

func (s *fakeStream) Read(p []byte) (int, error) {
	if !s.sent {
		s.sent = true
		return copy(p, s.data), nil
	}
	<-s.end
	return 0, io.EOF
}

func (s *fakeStream) Finish() error {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.end) })
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.once.Do(func() { close(s.end) })
	return nil
}

func (s *fakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeOutput struct {
	mu    sync.Mutex
	urls  []string
	clips []*fakePlayback
	err   error
}

func (o *fakeOutput) Play(_ context.Context, url string) (Playback, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	pb := &fakePlayback{done: make(chan struct{})}
	o.urls = append(o.urls, url)
	o.clips = append(o.clips, pb)
	return pb, nil
}

func (o *fakeOutput) played() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

func (o *fakeOutput) clip(i int) *fakePlayback {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.clips[i]
}

type fakePlayback struct {
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	stopped bool
}

func (p *fakePlayback) Done() <-chan struct{} { return p.done }

func (p *fakePlayback) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.end()
}

func (p *fakePlayback) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// end finishes the clip as if the audio ran out.
func (p *fakePlayback) end() {
	p.once.Do(func() { close(p.done) })
}

type fakeSender struct {
	mu    sync.Mutex
	clips map[string][][]byte
}

func (s *fakeSender) SendVoiceMessage(_ context.Context, sessionID string, audio []byte) (*models.VoiceMessageResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clips == nil {
		s.clips = make(map[string][][]byte)
	}
	s.clips[sessionID] = append(s.clips[sessionID], audio)
	return &models.VoiceMessageResponse{}, nil
}

func (s *fakeSender) sent(sessionID string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clips[sessionID]
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

// gatedMic holds every Open until release is closed.
type gatedMic struct {
	fakeMic
	entered chan struct{}
	release chan struct{}
}

func (m *gatedMic) Open(ctx context.Context) (Stream, error) {
	m.entered <- struct{}{}
	<-m.release
	return m.fakeMic.Open(ctx)
}

// deadStream is a capture whose device went away right after opening.
type deadStream struct {
	mu     sync.Mutex
	closed bool
}

func (s *deadStream) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }
func (s *deadStream) Finish() error            { return nil }

func (s *deadStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *deadStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type deadMic struct{ stream *deadStream }

func (m deadMic) Open(context.Context) (Stream, error) { return m.stream, nil }
