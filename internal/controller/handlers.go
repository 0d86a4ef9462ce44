package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syncinema/server/internal/service/playback"
)

// dropUnauthorized swallows ErrPermissionDenied: a non-host sending a
// host-only command gets no reply and no error, so a probing connection
// cannot fingerprint the protocol.
func (c controller) dropUnauthorized(ctx context.Context, err error) error {
	if errors.Is(err, playback.ErrPermissionDenied) {
		c.logger.DebugContext(ctx, "dropped host-only command from non-host")
		return nil
	}

	return err
}

type LoadInput struct {
	File string `json:"file" validate:"required"`
}

func (c controller) handleLoad(ctx context.Context, frame json.RawMessage) error {
	var input LoadInput
	if err := json.Unmarshal(frame, &input); err != nil {
		return fmt.Errorf("failed to unmarshal load input: %w", err)
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("validation error: %v", validationErrors)
	}

	if err := c.playbackService.Load(ctx, &playback.LoadParams{
		SenderId: c.getSessionIdFromCtx(ctx),
		File:     input.File,
	}); err != nil {
		return c.dropUnauthorized(ctx, err)
	}

	return nil
}

type SeekInput struct {
	Time float64 `json:"time" validate:"gte=0"`
}

func (c controller) handleSeek(ctx context.Context, frame json.RawMessage) error {
	var input SeekInput
	if err := json.Unmarshal(frame, &input); err != nil {
		return fmt.Errorf("failed to unmarshal seek input: %w", err)
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("validation error: %v", validationErrors)
	}

	if _, err := c.playbackService.Seek(ctx, &playback.SeekParams{
		SenderId: c.getSessionIdFromCtx(ctx),
		Time:     input.Time,
	}); err != nil {
		return c.dropUnauthorized(ctx, err)
	}

	return nil
}

func (c controller) handlePlay(ctx context.Context, _ json.RawMessage) error {
	if err := c.playbackService.Play(ctx, &playback.PlayParams{
		SenderId: c.getSessionIdFromCtx(ctx),
	}); err != nil {
		return c.dropUnauthorized(ctx, err)
	}

	return nil
}

func (c controller) handlePause(ctx context.Context, _ json.RawMessage) error {
	if err := c.playbackService.Pause(ctx, &playback.PauseParams{
		SenderId: c.getSessionIdFromCtx(ctx),
	}); err != nil {
		return c.dropUnauthorized(ctx, err)
	}

	return nil
}

type HeartbeatInput struct {
	File    string  `json:"file" validate:"required"`
	Time    float64 `json:"time" validate:"gte=0"`
	Playing bool    `json:"playing"`
}

func (c controller) handleHeartbeat(ctx context.Context, frame json.RawMessage) error {
	var input HeartbeatInput
	if err := json.Unmarshal(frame, &input); err != nil {
		return fmt.Errorf("failed to unmarshal heartbeat input: %w", err)
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("validation error: %v", validationErrors)
	}

	if err := c.playbackService.Heartbeat(ctx, &playback.HeartbeatParams{
		SenderId: c.getSessionIdFromCtx(ctx),
		File:     input.File,
		Time:     input.Time,
		Playing:  input.Playing,
	}); err != nil {
		return c.dropUnauthorized(ctx, err)
	}

	return nil
}

type ForceSyncInput struct {
	File    string  `json:"file" validate:"required"`
	Time    float64 `json:"time" validate:"gte=0"`
	Playing bool    `json:"playing"`
}

func (c controller) handleForceSync(ctx context.Context, frame json.RawMessage) error {
	var input ForceSyncInput
	if err := json.Unmarshal(frame, &input); err != nil {
		return fmt.Errorf("failed to unmarshal force sync input: %w", err)
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		return fmt.Errorf("validation error: %v", validationErrors)
	}

	if err := c.playbackService.ForceSync(ctx, &playback.ForceSyncParams{
		SenderId: c.getSessionIdFromCtx(ctx),
		File:     input.File,
		Time:     input.Time,
		Playing:  input.Playing,
	}); err != nil {
		return c.dropUnauthorized(ctx, err)
	}

	return nil
}

func (c controller) handleRequestSync(ctx context.Context, _ json.RawMessage) error {
	c.playbackService.RequestSync(ctx, &playback.RequestSyncParams{
		SenderId: c.getSessionIdFromCtx(ctx),
	})

	return nil
}

type CheckTimeInput struct {
	Time *float64 `json:"time"`
}

func (c controller) handleCheckTime(ctx context.Context, frame json.RawMessage) error {
	var input CheckTimeInput
	if err := json.Unmarshal(frame, &input); err != nil {
		return fmt.Errorf("failed to unmarshal check time input: %w", err)
	}

	c.playbackService.CheckTime(ctx, &playback.CheckTimeParams{
		SenderId: c.getSessionIdFromCtx(ctx),
		Time:     input.Time,
	})

	return nil
}
