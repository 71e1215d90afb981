package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"agentchat/internal/logger"

	"go.uber.org/zap"
)

// FFmpegMicrophone captures from the system input device with ffmpeg and
// encodes it as webm/opus, the format the backend transcribes.
type FFmpegMicrophone struct {
	Binary string
	// Input overrides the platform default device ("default" on pulse,
	// ":0" on avfoundation).
	Input string
	Log   *zap.Logger
}

func (m FFmpegMicrophone) Open(ctx context.Context) (Stream, error) {
	bin := m.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", ErrNotSupported, bin)
	}
	args, err := micArgs(runtime.GOOS, m.Input)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(path, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: open ffmpeg stdout: %v", ErrPermission, err)
	}
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start ffmpeg: %v", ErrPermission, err)
	}
	logger.OrNop(m.Log).Debug("ffmpeg capture started", zap.Int("pid", cmd.Process.Pid), zap.Strings("args", args))
	return &ffmpegStream{cmd: cmd, stdout: stdout}, nil
}

func micArgs(goos, input string) ([]string, error) {
	var format string
	switch goos {
	case "darwin":
		format = "avfoundation"
		if input == "" {
			input = ":0"
		}
	case "linux":
		format = "pulse"
		if input == "" {
			input = "default"
		}
	default:
		return nil, fmt.Errorf("%w: capture is not implemented for %s", ErrNotSupported, goos)
	}
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", format, "-i", input,
		"-ac", "1",
		"-c:a", "libopus",
		"-f", "webm", "-",
	}, nil
}

type ffmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser

	once sync.Once
}

func (s *ffmpegStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

// Finish interrupts ffmpeg so it writes the container trailer and exits.
func (s *ffmpegStream) Finish() error {
	if s.cmd.Process == nil {
		return nil
	}
	return s.cmd.Process.Signal(os.Interrupt)
}

func (s *ffmpegStream) Close() error {
	s.once.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
			_ = s.cmd.Wait()
		}
	})
	return nil
}

// FFplayOutput plays audio URLs with ffplay.
type FFplayOutput struct {
	Binary string
	Log    *zap.Logger
}

func (o FFplayOutput) Play(ctx context.Context, url string) (Playback, error) {
	bin := o.Binary
	if bin == "" {
		bin = "ffplay"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH", ErrNotSupported, bin)
	}

	cmd := exec.CommandContext(ctx, path, "-nodisp", "-autoexit", "-loglevel", "error", url)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}

	pb := &ffplayPlayback{cmd: cmd, done: make(chan struct{})}
	log := logger.OrNop(o.Log)
	go func() {
		defer close(pb.done)
		if err := cmd.Wait(); err != nil {
			var exit *exec.ExitError
			if !errors.As(err, &exit) || exit.ExitCode() != -1 {
				log.Debug("ffplay exited", zap.String("url", url), zap.Error(err))
			}
		}
	}()
	return pb, nil
}

type ffplayPlayback struct {
	cmd  *exec.Cmd
	done chan struct{}
}

func (p *ffplayPlayback) Done() <-chan struct{} { return p.done }

func (p *ffplayPlayback) Stop() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	<-p.done
}
