// Package voice captures microphone recordings, plays assistant audio and
// drives the spoken turn-taking loop of voice mode.
package voice

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"agentchat/internal/logger"
	"agentchat/internal/metrics"
	"agentchat/internal/store"

	"go.uber.org/zap"
)

var (
	ErrAlreadyRecording = errors.New("voice: already recording")
	// ErrNotSupported is returned by a Microphone when no capture backend
	// exists on this system.
	ErrNotSupported = errors.New("voice: recording not supported")
	// ErrPermission is returned by a Microphone when the device could not be
	// opened.
	ErrPermission = errors.New("voice: microphone unavailable")
)

const (
	DefaultMaxDuration = 120 * time.Second
	DefaultWarning     = 100 * time.Second

	msgNotSupported = "Voice recording is not supported on this system"
	msgMicFailed    = "Failed to access microphone"

	finishTimeout = 3 * time.Second
)

// Microphone opens capture streams.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is one open capture. Finish asks the device to flush what it has
// and end the stream, after which Read drains to io.EOF. Close releases the
// device immediately.
type Stream interface {
	io.Reader
	Finish() error
	Close() error
}

// Clock supplies time to the recorder.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Recorder records one clip at a time from a Microphone and mirrors its
// progress into the store.
type Recorder struct {
	mic     Microphone
	store   store.Dispatcher
	clock   Clock
	log     *zap.Logger
	max     time.Duration
	warn    time.Duration
	onLimit func([]byte)

	mu       sync.Mutex
	active   *recording
	starting bool // a Start is opening the microphone
}

type recording struct {
	stream  Stream
	ticker  Ticker
	started time.Time
	quit    chan struct{}
	drained chan struct{}

	mu  sync.Mutex
	buf bytes.Buffer
}

func (r *recording) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *recording) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buf.Len() == 0 {
		return nil
	}
	return bytes.Clone(r.buf.Bytes())
}

type RecorderOption func(*Recorder)

func WithRecorderLogger(l *zap.Logger) RecorderOption {
	return func(r *Recorder) { r.log = l }
}

func WithClock(c Clock) RecorderOption {
	return func(r *Recorder) { r.clock = c }
}

// WithLimits sets the automatic stop duration and the warning threshold.
func WithLimits(max, warn time.Duration) RecorderOption {
	return func(r *Recorder) {
		if max > 0 {
			r.max = max
		}
		if warn > 0 {
			r.warn = warn
		}
	}
}

// WithOnLimit receives the clip of a recording stopped by the duration limit.
func WithOnLimit(fn func([]byte)) RecorderOption {
	return func(r *Recorder) { r.onLimit = fn }
}

func NewRecorder(mic Microphone, st store.Dispatcher, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		mic:   mic,
		store: st,
		clock: realClock{},
		max:   DefaultMaxDuration,
		warn:  DefaultWarning,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.OrNop(r.log)
	return r
}

// SetOnLimit replaces the limit callback.
func (r *Recorder) SetOnLimit(fn func([]byte)) {
	r.mu.Lock()
	r.onLimit = fn
	r.mu.Unlock()
}

func (r *Recorder) MaxDuration() time.Duration { return r.max }

// Warning reports whether a recording of the given length is close to the limit.
func (r *Recorder) Warning(seconds int) bool {
	return time.Duration(seconds)*time.Second >= r.warn
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil || r.starting
}

// Start opens the microphone and begins buffering audio. Only one Start can
// hold the microphone; concurrent callers get ErrAlreadyRecording.
func (r *Recorder) Start(ctx context.Context) error {
	if r.mic == nil {
		r.store.Dispatch(store.VoiceError{Error: msgNotSupported})
		return ErrNotSupported
	}

	r.mu.Lock()
	if r.active != nil || r.starting {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.starting = true
	r.mu.Unlock()

	stream, err := r.mic.Open(ctx)
	if err != nil {
		r.mu.Lock()
		r.starting = false
		r.mu.Unlock()
		msg := msgMicFailed
		if errors.Is(err, ErrNotSupported) {
			msg = msgNotSupported
		}
		r.log.Warn("microphone open failed", zap.Error(err))
		r.store.Dispatch(store.VoiceError{Error: msg})
		return err
	}

	rec := &recording{
		stream:  stream,
		ticker:  r.clock.NewTicker(time.Second),
		started: r.clock.Now(),
		quit:    make(chan struct{}),
		drained: make(chan struct{}),
	}

	r.mu.Lock()
	r.starting = false
	r.active = rec
	r.mu.Unlock()

	r.store.Dispatch(store.StartRecording{})
	go r.drain(rec)
	go r.tick(rec)

	r.log.Info("recording started")
	return nil
}

// drain copies the capture into rec. A capture that ends on its own, for
// example when the device refuses access after the process started, stops
// the recording with a microphone error.
func (r *Recorder) drain(rec *recording) {
	_, err := io.Copy(rec, rec.stream)
	close(rec.drained)

	r.mu.Lock()
	died := r.active == rec
	if died {
		r.active = nil
	}
	r.mu.Unlock()
	if !died {
		return
	}

	close(rec.quit)
	rec.ticker.Stop()
	if cerr := rec.stream.Close(); cerr != nil {
		r.log.Debug("close capture", zap.Error(cerr))
	}
	r.log.Warn("capture ended unexpectedly", zap.Error(err))
	r.store.Dispatch(store.StopRecording{})
	r.store.Dispatch(store.VoiceError{Error: msgMicFailed})
}

func (r *Recorder) tick(rec *recording) {
	for {
		select {
		case <-rec.quit:
			return
		case now := <-rec.ticker.C():
			elapsed := now.Sub(rec.started)
			r.store.Dispatch(store.UpdateRecordingDuration{Seconds: int(elapsed / time.Second)})
			if elapsed < r.max {
				continue
			}
			blob, ok := r.finish(rec)
			if !ok {
				return
			}
			r.log.Info("recording reached the duration limit", zap.Duration("max", r.max))
			r.mu.Lock()
			fn := r.onLimit
			r.mu.Unlock()
			if fn != nil {
				fn(blob)
			}
			return
		}
	}
}

// Stop ends the recording and returns the captured clip, or nil when
// nothing was being recorded.
func (r *Recorder) Stop() []byte {
	r.mu.Lock()
	rec := r.active
	r.mu.Unlock()
	if rec == nil {
		r.store.Dispatch(store.StopRecording{})
		return nil
	}
	blob, _ := r.finish(rec)
	return blob
}

// Cancel ends the recording and discards the audio.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()
	if rec != nil {
		r.release(rec)
		r.log.Info("recording cancelled")
	}
	r.store.Dispatch(store.StopRecording{})
}

// Close releases the timer and microphone.
func (r *Recorder) Close() error {
	r.mu.Lock()
	rec := r.active
	r.active = nil
	r.mu.Unlock()
	if rec != nil {
		r.release(rec)
		r.store.Dispatch(store.StopRecording{})
	}
	return nil
}

// finish finalizes rec if it is still the active recording.
func (r *Recorder) finish(rec *recording) ([]byte, bool) {
	r.mu.Lock()
	if r.active != rec {
		r.mu.Unlock()
		return nil, false
	}
	r.active = nil
	r.mu.Unlock()

	close(rec.quit)
	rec.ticker.Stop()
	if err := rec.stream.Finish(); err != nil {
		r.log.Debug("finish capture", zap.Error(err))
	}
	select {
	case <-rec.drained:
	case <-time.After(finishTimeout):
		r.log.Warn("capture did not drain in time")
	}
	if err := rec.stream.Close(); err != nil {
		r.log.Debug("close capture", zap.Error(err))
	}

	elapsed := r.clock.Now().Sub(rec.started)
	metrics.RecordingSeconds.Observe(elapsed.Seconds())
	r.store.Dispatch(store.StopRecording{})

	blob := rec.bytes()
	r.log.Info("recording stopped", zap.Duration("duration", elapsed), zap.Int("bytes", len(blob)))
	return blob, true
}

func (r *Recorder) release(rec *recording) {
	close(rec.quit)
	rec.ticker.Stop()
	if err := rec.stream.Close(); err != nil {
		r.log.Debug("close capture", zap.Error(err))
	}
	<-rec.drained
}
