package voice

import (
	"context"
	"sync"

	"agentchat/internal/logger"
	"agentchat/internal/metrics"

	"go.uber.org/zap"
)

// Output starts audio playback on a device.
type Output interface {
	Play(ctx context.Context, url string) (Playback, error)
}

// Playback is one running clip. Done is closed when it ends for any reason.
type Playback interface {
	Done() <-chan struct{}
	Stop()
}

type PlayerState struct {
	Playing    bool
	CurrentURL string
}

// Player plays one clip at a time.
type Player struct {
	out     Output
	resolve func(string) string
	log     *zap.Logger

	mu      sync.Mutex
	gen     uint64
	current Playback
	state   PlayerState
	onState func(PlayerState)
}

type PlayerOption func(*Player)

func WithPlayerLogger(l *zap.Logger) PlayerOption {
	return func(p *Player) { p.log = l }
}

// WithResolver maps message audio paths to playable URLs.
func WithResolver(fn func(string) string) PlayerOption {
	return func(p *Player) { p.resolve = fn }
}

// WithStateHook is called after every playback state change.
func WithStateHook(fn func(PlayerState)) PlayerOption {
	return func(p *Player) { p.onState = fn }
}

// SetStateHook replaces the state change callback.
func (p *Player) SetStateHook(fn func(PlayerState)) {
	p.mu.Lock()
	p.onState = fn
	p.mu.Unlock()
}

func NewPlayer(out Output, opts ...PlayerOption) *Player {
	p := &Player{
		out:     out,
		resolve: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrNop(p.log)
	return p
}

// Play stops whatever is playing and starts url. onEnded runs when this
// clip finishes on its own, never after it was stopped or replaced.
func (p *Player) Play(url string, onEnded func()) error {
	return p.play("manual", url, onEnded)
}

func (p *Player) play(trigger, url string, onEnded func()) error {
	p.mu.Lock()
	prev := p.current
	p.current = nil
	p.gen++
	gen := p.gen
	p.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	pb, err := p.out.Play(context.Background(), p.resolve(url))
	if err != nil {
		p.log.Warn("playback failed", zap.String("url", url), zap.Error(err))
		p.update(gen, PlayerState{})
		return err
	}

	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		pb.Stop()
		return nil
	}
	p.current = pb
	p.mu.Unlock()
	p.update(gen, PlayerState{Playing: true, CurrentURL: url})
	metrics.PlaybacksTotal.WithLabelValues(trigger).Inc()

	go func() {
		<-pb.Done()
		p.mu.Lock()
		if p.gen != gen {
			p.mu.Unlock()
			return
		}
		p.current = nil
		p.mu.Unlock()
		p.update(gen, PlayerState{})
		if onEnded != nil {
			onEnded()
		}
	}()
	return nil
}

// Pause halts playback but keeps the current URL so Toggle can resume it.
func (p *Player) Pause() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.gen++
	gen := p.gen
	url := p.state.CurrentURL
	p.mu.Unlock()
	if pb == nil {
		return
	}
	pb.Stop()
	p.update(gen, PlayerState{CurrentURL: url})
}

func (p *Player) Stop() {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.gen++
	gen := p.gen
	p.mu.Unlock()
	if pb != nil {
		pb.Stop()
	}
	p.update(gen, PlayerState{})
}

// Toggle pauses url when it is playing and plays it otherwise.
func (p *Player) Toggle(url string) error {
	st := p.State()
	if st.Playing && st.CurrentURL == url {
		p.Pause()
		return nil
	}
	return p.Play(url, nil)
}

func (p *Player) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) Close() error {
	p.Stop()
	return nil
}

// update records st when gen is still current.
func (p *Player) update(gen uint64, st PlayerState) {
	p.mu.Lock()
	if p.gen != gen || p.state == st {
		p.mu.Unlock()
		return
	}
	p.state = st
	hook := p.onState
	p.mu.Unlock()
	if hook != nil {
		hook(st)
	}
}
