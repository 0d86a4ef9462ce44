package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/syncinema/server/internal/service/playback"
	"github.com/syncinema/server/pkg/validator"
)

type iPlaybackService interface {
	Connect(context.Context, *playback.ConnectParams) (playback.ConnectResponse, error)
	Disconnect(ctx context.Context, sessionId string, reason string) playback.DisconnectResponse
	Load(context.Context, *playback.LoadParams) error
	Seek(context.Context, *playback.SeekParams) (playback.SeekResponse, error)
	Play(context.Context, *playback.PlayParams) error
	Pause(context.Context, *playback.PauseParams) error
	Heartbeat(context.Context, *playback.HeartbeatParams) error
	ForceSync(context.Context, *playback.ForceSyncParams) error
	RequestSync(context.Context, *playback.RequestSyncParams)
	CheckTime(context.Context, *playback.CheckTimeParams)
}

type controller struct {
	playbackService iPlaybackService
	upgrader        websocket.Upgrader
	validate        *validator.Validator
	logger          *slog.Logger
	videoDir        string
}

func NewController(playbackService iPlaybackService, videoDir string, logger *slog.Logger) *controller {
	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		playbackService: playbackService,
		validate:        validator.NewValidator(),
		logger:          logger,
		videoDir:        videoDir,
	}
}
