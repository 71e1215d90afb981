package voice

import (
	"context"
	"sync"

	"agentchat/internal/logger"
	"agentchat/internal/models"
	"agentchat/internal/store"

	"go.uber.org/zap"
)

// Sender submits a finished recording to a session.
type Sender interface {
	SendVoiceMessage(ctx context.Context, sessionID string, audio []byte) (*models.VoiceMessageResponse, error)
}

// Turns decides when assistant audio plays and when the microphone opens.
type Turns struct {
	rec    *Recorder
	player *Player
	sender Sender
	store  store.Dispatcher
	log    *zap.Logger
	ctx    context.Context

	mu             sync.Mutex
	lastAutoPlayed string
	lastVoiceTurn  string
}

// NewTurns wires rec, player and sender together. Recordings cut off by the
// duration limit are sent to the session selected at that moment. ctx bounds
// the work started from callbacks.
func NewTurns(ctx context.Context, rec *Recorder, player *Player, sender Sender, st store.Dispatcher, log *zap.Logger) *Turns {
	t := &Turns{
		rec:    rec,
		player: player,
		sender: sender,
		store:  st,
		log:    logger.OrNop(log),
		ctx:    ctx,
	}
	rec.SetOnLimit(t.sendClip)
	return t
}

// Observe reacts to a new state.
func (t *Turns) Observe(st store.State) {
	last, ok := st.LastMessage()
	if !ok || last.Role != models.RoleAssistant {
		return
	}
	url, ok := last.TTS()
	if !ok {
		return
	}

	if st.Voice.IsVoiceMode {
		t.mu.Lock()
		if last.ID == t.lastVoiceTurn || st.Voice.IsRecording {
			t.mu.Unlock()
			return
		}
		t.lastVoiceTurn = last.ID
		t.mu.Unlock()

		t.log.Debug("voice mode reply", zap.String("message_id", last.ID))
		_ = t.player.play("voice_mode", url, func() {
			if err := t.rec.Start(t.ctx); err != nil {
				t.log.Warn("could not reopen microphone", zap.Error(err))
			}
		})
		return
	}

	if st.Messages.Loading {
		return
	}
	items := st.Messages.Items
	if len(items) < 2 || !items[len(items)-2].IsVoice() {
		return
	}
	t.mu.Lock()
	if last.ID == t.lastAutoPlayed {
		t.mu.Unlock()
		return
	}
	t.lastAutoPlayed = last.ID
	t.mu.Unlock()

	_ = t.player.play("auto", url, nil)
}

func (t *Turns) EnterVoiceMode() {
	t.store.Dispatch(store.SetVoiceMode{Enabled: true})
}

func (t *Turns) ExitVoiceMode() {
	t.rec.Cancel()
	t.player.Stop()
	t.store.Dispatch(store.SetVoiceMode{Enabled: false})
}

// Interact is the single voice-mode control: it interrupts the assistant,
// sends what was recorded, or starts listening.
func (t *Turns) Interact(ctx context.Context, sessionID string) error {
	switch {
	case t.player.State().Playing:
		t.player.Stop()
		return t.rec.Start(ctx)
	case t.rec.Recording():
		return t.send(ctx, sessionID, t.rec.Stop())
	default:
		return t.rec.Start(ctx)
	}
}

// ToggleRecording starts a recording, or stops it and sends the clip.
func (t *Turns) ToggleRecording(ctx context.Context, sessionID string) error {
	if t.rec.Recording() {
		return t.send(ctx, sessionID, t.rec.Stop())
	}
	return t.rec.Start(ctx)
}

// Reset drops any recording and playback, as when the session changes.
func (t *Turns) Reset() {
	if t.rec.Recording() {
		t.rec.Cancel()
	}
	t.player.Stop()
}

func (t *Turns) send(ctx context.Context, sessionID string, clip []byte) error {
	if len(clip) == 0 || sessionID == "" {
		return nil
	}
	_, err := t.sender.SendVoiceMessage(ctx, sessionID, clip)
	return err
}

func (t *Turns) sendClip(clip []byte) {
	sessionID := t.store.State().Sessions.SelectedID
	if err := t.send(t.ctx, sessionID, clip); err != nil {
		t.log.Warn("sending recording at limit failed", zap.Error(err))
	}
}
