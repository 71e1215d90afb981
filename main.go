package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agentchat/internal/api"
	"agentchat/internal/chat"
	"agentchat/internal/config"
	"agentchat/internal/db"
	"agentchat/internal/logger"
	"agentchat/internal/route"
	"agentchat/internal/store"
	"agentchat/internal/styles"
	"agentchat/internal/ui"
	"agentchat/internal/voice"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	var (
		log *zap.Logger
		err error
	)
	if cfg.Env == "development" {
		log, err = logger.NewDevelopment(cfg.LogFile)
	} else {
		log, err = logger.New(cfg.LogLevel, cfg.LogFile)
	}
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	styles.InitTheme()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()

	if cfg.MetricsAddr != "" {
		srv := metricsServer(cfg.MetricsAddr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	history, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Warn("history unavailable", zap.String("path", cfg.DBPath), zap.Error(err))
		history = nil
	} else {
		defer history.Close()
	}

	st := store.New(store.Initial(), log)
	client := api.NewClient(cfg.APIURL,
		api.WithLogger(log),
		api.WithResponseHeaderTimeout(cfg.RequestTimeout),
	)

	chatOpts := []chat.Option{chat.WithLogger(log), chat.WithPageSize(cfg.MessagePageSize)}
	if history != nil {
		chatOpts = append(chatOpts, chat.WithHistory(history))
	}
	svc := chat.NewService(client, st, chatOpts...)
	defer svc.CancelStream()

	recorder := voice.NewRecorder(
		voice.FFmpegMicrophone{Binary: cfg.FFmpegPath, Input: cfg.MicInput, Log: log},
		st,
		voice.WithLimits(cfg.MaxRecording, cfg.RecordingWarning),
		voice.WithRecorderLogger(log),
	)
	defer recorder.Close()
	player := voice.NewPlayer(
		voice.FFplayOutput{Binary: cfg.FFplayPath, Log: log},
		voice.WithResolver(client.AudioURL),
		voice.WithPlayerLogger(log),
	)
	defer player.Close()
	turns := voice.NewTurns(ctx, recorder, player, svc, st, log)

	start := startLocation(ctx, history, log)
	log.Info("starting", zap.String("api", client.BaseURL()), zap.String("location", start.String()))

	m := ui.New(ctx, ui.Deps{
		Store:    st,
		Chat:     svc,
		Turns:    turns,
		Player:   player,
		Recorder: recorder,
		History:  history,
		Start:    start,
		Log:      log,
	})
	p, detach := ui.NewProgram(m, tea.WithContext(ctx))
	defer detach()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// startLocation prefers a path given on the command line, then the last
// visited location.
func startLocation(ctx context.Context, history *db.History, log *zap.Logger) route.Location {
	if len(os.Args) > 1 {
		loc, err := route.Parse(os.Args[1])
		if err == nil {
			return loc
		}
		log.Warn("ignoring start location", zap.String("arg", os.Args[1]), zap.Error(err))
	}
	if history == nil {
		return route.Location{}
	}
	v, ok, err := history.LastVisit(ctx)
	if err != nil || !ok {
		return route.Location{}
	}
	loc, err := route.Parse(v.Path)
	if err != nil {
		return route.Location{}
	}
	return loc
}

func metricsServer(addr string) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}
