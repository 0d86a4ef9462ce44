package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/syncinema/server/internal/controller"
	"github.com/syncinema/server/internal/service/playback"
	"github.com/syncinema/server/internal/state"
	"github.com/syncinema/server/pkg/ctxlogger"
)

type AppConfig struct {
	RoomSecret    string        `json:"-"`
	HostSecret    string        `json:"-"`
	Host          string        `json:"host"`
	Port          int           `json:"port"`
	LogLevel      string        `json:"log_level"`
	LogPath       string        `json:"log_path"`
	VideoDir      string        `json:"video_dir"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.RoomSecret == "" {
		return fmt.Errorf("room secret must not be empty")
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535")
	}
	if cfg.SweepInterval < time.Second {
		return fmt.Errorf("sweep interval must be at least 1s")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	var logOut io.Writer = os.Stdout
	if cfg.LogPath != "" {
		f, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(logOut, &slog.HandlerOptions{
			Level: logLevel,
		}),
	}
	logger := slog.New(&h)

	store := state.NewStore(clockwork.NewRealClock())
	playbackService := playback.NewService(store, &playback.Config{
		RoomSecret: cfg.RoomSecret,
		HostSecret: cfg.HostSecret,
	}, logger)
	controller := controller.NewController(playbackService, cfg.VideoDir, logger)

	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: controller.GetMux(),
	}

	serverCtx, serverStopCtx := context.WithCancel(ctx)

	go playbackService.RunSweeper(serverCtx, cfg.SweepInterval)

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server",
		"address", server.Addr,
		"video_dir", cfg.VideoDir,
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}
