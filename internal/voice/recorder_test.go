package voice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"agentchat/internal/store"
)

func newRecorder(t *testing.T, mic Microphone, opts ...RecorderOption) (*Recorder, *store.Store, *fakeClock) {
	t.Helper()
	st := store.New(store.Initial(), nil)
	clock := newFakeClock()
	rec := NewRecorder(mic, st, append([]RecorderOption{WithClock(clock)}, opts...)...)
	t.Cleanup(func() { rec.Close() })
	return rec, st, clock
}

func TestRecorderStartStop(t *testing.T) {
	mic := &fakeMic{data: []byte("opus-frames")}
	rec, st, clock := newRecorder(t, mic)

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !st.State().Voice.IsRecording {
		t.Fatal("store not recording")
	}
	if err := rec.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second Start() error = %v, want ErrAlreadyRecording", err)
	}

	clock.Advance(2 * time.Second)
	waitFor(t, func() bool { return st.State().Voice.RecordingDuration == 2 })

	blob := rec.Stop()
	if string(blob) != "opus-frames" {
		t.Fatalf("Stop() = %q", blob)
	}
	if st.State().Voice.IsRecording || rec.Recording() {
		t.Fatal("still recording after Stop")
	}
	if !mic.stream(0).Closed() {
		t.Fatal("microphone not released")
	}
}

func TestRecorderStopWhenIdle(t *testing.T) {
	rec, st, _ := newRecorder(t, &fakeMic{})
	if blob := rec.Stop(); blob != nil {
		t.Fatalf("Stop() = %q, want nil", blob)
	}
	if st.State().Voice.IsRecording {
		t.Fatal("recording flag set")
	}
}

func TestRecorderCancelDiscards(t *testing.T) {
	mic := &fakeMic{data: []byte("secret")}
	rec, st, _ := newRecorder(t, mic)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec.Cancel()
	if st.State().Voice.IsRecording || rec.Recording() {
		t.Fatal("still recording after Cancel")
	}
	if !mic.stream(0).Closed() {
		t.Fatal("microphone not released")
	}
	if blob := rec.Stop(); blob != nil {
		t.Fatalf("audio survived Cancel: %q", blob)
	}
}

func TestRecorderLimit(t *testing.T) {
	clips := make(chan []byte, 1)
	mic := &fakeMic{data: []byte("long")}
	rec, st, clock := newRecorder(t, mic,
		WithLimits(3*time.Second, 2*time.Second),
		WithOnLimit(func(b []byte) { clips <- b }),
	)
	if err := rec.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	clock.Advance(3 * time.Second)
	select {
	case b := <-clips:
		if string(b) != "long" {
			t.Fatalf("clip = %q", b)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("limit callback not called")
	}
	waitFor(t, func() bool { return !st.State().Voice.IsRecording })
	if rec.Recording() {
		t.Fatal("recorder still active")
	}
	if got := st.State().Voice.RecordingDuration; got != 3 {
		t.Fatalf("duration = %d, want 3", got)
	}
}

func TestRecorderWarning(t *testing.T) {
	rec, _, _ := newRecorder(t, &fakeMic{})
	tests := []struct {
		seconds int
		want    bool
	}{
		{0, false},
		{99, false},
		{100, true},
		{119, true},
	}
	for _, tt := range tests {
		if got := rec.Warning(tt.seconds); got != tt.want {
			t.Errorf("Warning(%d) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
	if rec.MaxDuration() != 120*time.Second {
		t.Errorf("MaxDuration() = %v", rec.MaxDuration())
	}
}

func TestRecorderOpenFailures(t *testing.T) {
	tests := []struct {
		name string
		mic  Microphone
		want string
	}{
		{"no backend", nil, "Voice recording is not supported on this system"},
		{"unsupported", &fakeMic{err: fmt.Errorf("%w: ffmpeg not found", ErrNotSupported)}, "Voice recording is not supported on this system"},
		{"denied", &fakeMic{err: ErrPermission}, "Failed to access microphone"},
		{"other", &fakeMic{err: errors.New("device busy")}, "Failed to access microphone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, st, _ := newRecorder(t, tt.mic)
			if err := rec.Start(context.Background()); err == nil {
				t.Fatal("Start() succeeded")
			}
			v := st.State().Voice
			if v.Error != tt.want || v.IsRecording || rec.Recording() {
				t.Fatalf("voice = %+v", v)
			}
		})
	}
}

func TestRecorderRestartAfterStop(t *testing.T) {
	mic := &fakeMic{data: []byte("a")}
	rec, _, _ := newRecorder(t, mic)
	for i := 0; i < 2; i++ {
		if err := rec.Start(context.Background()); err != nil {
			t.Fatalf("Start() #%d error = %v", i, err)
		}
		if blob := rec.Stop(); string(blob) != "a" {
			t.Fatalf("Stop() #%d = %q", i, blob)
		}
	}
	if mic.opened != 2 {
		t.Fatalf("opened = %d", mic.opened)
	}
}

func TestRecorderConcurrentStartKeepsFirst(t *testing.T) {
	mic := &gatedMic{
		fakeMic: fakeMic{data: []byte("first")},
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	rec, st, _ := newRecorder(t, mic)

	first := make(chan error, 1)
	go func() { first <- rec.Start(context.Background()) }()
	<-mic.entered

	if err := rec.Start(context.Background()); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("Start() while opening = %v, want ErrAlreadyRecording", err)
	}
	close(mic.release)
	if err := <-first; err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	if mic.opened != 1 {
		t.Fatalf("opened = %d, want 1", mic.opened)
	}
	if mic.stream(0).Closed() {
		t.Fatal("first capture was released")
	}
	if !st.State().Voice.IsRecording {
		t.Fatal("store not recording")
	}
	if blob := rec.Stop(); string(blob) != "first" {
		t.Fatalf("Stop() = %q", blob)
	}
}

func TestRecorderOpenFailureFreesSlot(t *testing.T) {
	mic := &fakeMic{err: fmt.Errorf("denied: %w", ErrPermission)}
	rec, _, _ := newRecorder(t, mic)
	if err := rec.Start(context.Background()); err == nil {
		t.Fatal("Start() succeeded")
	}
	if rec.Recording() {
		t.Fatal("slot still held after failed open")
	}
	mic.mu.Lock()
	mic.err = nil
	mic.data = []byte("ok")
	mic.mu.Unlock()
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start() after failure = %v", err)
	}
}

func TestRecorderCaptureEndsUnexpectedly(t *testing.T) {
	stream := &deadStream{}
	rec, st, clock := newRecorder(t, deadMic{stream: stream})

	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, func() bool { return st.State().Voice.Error != "" })
	clock.Advance(5 * time.Second)

	v := st.State().Voice
	if v.IsRecording || v.RecordingDuration != 0 {
		t.Fatalf("voice state after capture died = %+v", v)
	}
	if v.Error != "Failed to access microphone" {
		t.Fatalf("voice error = %q", v.Error)
	}
	if !stream.Closed() {
		t.Fatal("capture not released")
	}
	if blob := rec.Stop(); blob != nil {
		t.Fatalf("Stop() = %q, want nil", blob)
	}
}

func TestMicArgs(t *testing.T) {
	args, err := micArgs("linux", "")
	if err != nil {
		t.Fatal(err)
	}
	if !containsPair(args, "-f", "pulse") || !containsPair(args, "-i", "default") || !containsPair(args, "-f", "webm") {
		t.Fatalf("linux args = %v", args)
	}
	args, _ = micArgs("darwin", ":1")
	if !containsPair(args, "-f", "avfoundation") || !containsPair(args, "-i", ":1") {
		t.Fatalf("darwin args = %v", args)
	}
	if _, err := micArgs("plan9", ""); !errors.Is(err, ErrNotSupported) {
		t.Fatalf("plan9 error = %v", err)
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
