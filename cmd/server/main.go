package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/syncinema/server/internal/app"
)

type configVar[T any] struct {
	envKey       string
	flagKey      string
	defaultValue T
}

var (
	roomSecret = configVar[string]{
		envKey:       "SYNC_PASSWORD",
		flagKey:      "room-secret",
		defaultValue: "default",
	}
	hostSecret = configVar[string]{
		envKey:       "ADMIN_PASSWORD",
		flagKey:      "host-secret",
		defaultValue: "admin_control",
	}
	host = configVar[string]{
		envKey:       "SERVER_HOST",
		flagKey:      "host",
		defaultValue: "0.0.0.0",
	}
	port = configVar[int]{
		envKey:       "SERVER_PORT",
		flagKey:      "port",
		defaultValue: 3001,
	}
	logLevel = configVar[string]{
		envKey:       "SERVER_LOG_LEVEL",
		flagKey:      "log-level",
		defaultValue: "INFO",
	}
	logPath = configVar[string]{
		envKey:       "SERVER_LOG_PATH",
		flagKey:      "log-path",
		defaultValue: "",
	}
	videoDir = configVar[string]{
		envKey:       "VIDEO_DIR",
		flagKey:      "video-dir",
		defaultValue: "./videos",
	}
	sweepInterval = configVar[time.Duration]{
		envKey:       "SERVER_SWEEP_INTERVAL",
		flagKey:      "sweep-interval",
		defaultValue: 30 * time.Second,
	}
)

func loadAppConfig() *app.AppConfig {
	pflag.String(roomSecret.flagKey, roomSecret.defaultValue, "Room secret required to connect")
	pflag.String(hostSecret.flagKey, hostSecret.defaultValue, "Secret granting the host role")
	pflag.String(host.flagKey, host.defaultValue, "Server host")
	pflag.Int(port.flagKey, port.defaultValue, "Server port")
	pflag.String(logLevel.flagKey, logLevel.defaultValue, "Logging level")
	pflag.String(logPath.flagKey, logPath.defaultValue, "Log file path (stdout when empty)")
	pflag.String(videoDir.flagKey, videoDir.defaultValue, "Directory with playable video files")
	pflag.Duration(sweepInterval.flagKey, sweepInterval.defaultValue, "Dead session sweep period")
	pflag.Parse()

	viper.BindPFlags(pflag.CommandLine)

	viper.BindEnv(roomSecret.flagKey, roomSecret.envKey)
	viper.BindEnv(hostSecret.flagKey, hostSecret.envKey)
	viper.BindEnv(host.flagKey, host.envKey)
	viper.BindEnv(port.flagKey, port.envKey)
	viper.BindEnv(logLevel.flagKey, logLevel.envKey)
	viper.BindEnv(logPath.flagKey, logPath.envKey)
	viper.BindEnv(videoDir.flagKey, videoDir.envKey)
	viper.BindEnv(sweepInterval.flagKey, sweepInterval.envKey)

	viper.SetDefault(roomSecret.flagKey, roomSecret.defaultValue)
	viper.SetDefault(hostSecret.flagKey, hostSecret.defaultValue)
	viper.SetDefault(host.flagKey, host.defaultValue)
	viper.SetDefault(port.flagKey, port.defaultValue)
	viper.SetDefault(logLevel.flagKey, logLevel.defaultValue)
	viper.SetDefault(logPath.flagKey, logPath.defaultValue)
	viper.SetDefault(videoDir.flagKey, videoDir.defaultValue)
	viper.SetDefault(sweepInterval.flagKey, sweepInterval.defaultValue)

	return &app.AppConfig{
		RoomSecret:    viper.GetString(roomSecret.flagKey),
		HostSecret:    viper.GetString(hostSecret.flagKey),
		Host:          viper.GetString(host.flagKey),
		Port:          viper.GetInt(port.flagKey),
		LogLevel:      viper.GetString(logLevel.flagKey),
		LogPath:       viper.GetString(logPath.flagKey),
		VideoDir:      viper.GetString(videoDir.flagKey),
		SweepInterval: viper.GetDuration(sweepInterval.flagKey),
	}
}

func main() {
	ctx := context.Background()

	appConfig := loadAppConfig()

	jsonConfig, _ := json.MarshalIndent(appConfig, "", "  ")
	fmt.Printf("starting app with config: %s\n", jsonConfig)

	log.Fatal(app.Run(ctx, appConfig))
}
