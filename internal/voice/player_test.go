package voice

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestPlayerPlayAndEnd(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out, WithResolver(func(s string) string { return "http://host" + s }))

	var ended atomic.Int32
	if err := p.Play("/api/audio/tts/a.mp3", func() { ended.Add(1) }); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if got := out.played(); len(got) != 1 || got[0] != "http://host/api/audio/tts/a.mp3" {
		t.Fatalf("played = %v", got)
	}
	if st := p.State(); !st.Playing || st.CurrentURL != "/api/audio/tts/a.mp3" {
		t.Fatalf("state = %+v", st)
	}

	out.clip(0).end()
	waitFor(t, func() bool { return ended.Load() == 1 })
	if st := p.State(); st.Playing || st.CurrentURL != "" {
		t.Fatalf("state after end = %+v", st)
	}
}

func TestPlayerReplaceSkipsOldCallback(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)

	var first, second atomic.Int32
	_ = p.Play("a", func() { first.Add(1) })
	_ = p.Play("b", func() { second.Add(1) })

	if !out.clip(0).Stopped() {
		t.Fatal("first clip still playing")
	}
	out.clip(1).end()
	waitFor(t, func() bool { return second.Load() == 1 })
	if first.Load() != 0 {
		t.Fatal("replaced clip reported its end")
	}
}

func TestPlayerStopSkipsCallback(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)
	var ended atomic.Int32
	_ = p.Play("a", func() { ended.Add(1) })
	p.Stop()
	if !out.clip(0).Stopped() || p.State().Playing {
		t.Fatalf("state = %+v", p.State())
	}
	if ended.Load() != 0 {
		t.Fatal("stopped clip reported its end")
	}
}

func TestPlayerToggle(t *testing.T) {
	out := &fakeOutput{}
	p := NewPlayer(out)

	_ = p.Toggle("a")
	if st := p.State(); !st.Playing || st.CurrentURL != "a" {
		t.Fatalf("state = %+v", st)
	}
	_ = p.Toggle("a")
	if st := p.State(); st.Playing || st.CurrentURL != "a" {
		t.Fatalf("paused state = %+v", st)
	}
	_ = p.Toggle("a")
	if len(out.played()) != 2 || !p.State().Playing {
		t.Fatalf("played = %v", out.played())
	}
	_ = p.Toggle("b")
	if st := p.State(); st.CurrentURL != "b" || !out.clip(1).Stopped() {
		t.Fatalf("state = %+v", st)
	}
}

func TestPlayerOutputFailure(t *testing.T) {
	out := &fakeOutput{err: errors.New("no device")}
	var states []PlayerState
	p := NewPlayer(out, WithStateHook(func(s PlayerState) { states = append(states, s) }))
	if err := p.Play("a", nil); err == nil {
		t.Fatal("Play() succeeded")
	}
	if p.State().Playing {
		t.Fatal("playing after failure")
	}
	if len(states) != 0 {
		t.Fatalf("unexpected state changes %v", states)
	}
}
