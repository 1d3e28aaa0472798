package pipeline

import (
	"context"
	"log/slog"

	"uploadai/internal/models"
	"uploadai/internal/transcoder"
)

// Transcoder is the client-side media transcoding capability. The ffmpeg
// engine implements it; tests substitute a stub.
type Transcoder interface {
	Transcode(ctx context.Context, video models.MediaAsset, cb transcoder.ProgressFunc) (models.MediaAsset, error)
}

// Runner drives one submission through transcode, upload and transcription,
// advancing the state machine at each stage boundary.
type Runner struct {
	logger  *slog.Logger
	engine  Transcoder
	api     *Client
	machine *Machine
}

func NewRunner(logger *slog.Logger, engine Transcoder, api *Client, observer Observer) *Runner {
	return &Runner{
		logger:  logger,
		engine:  engine,
		api:     api,
		machine: NewMachine(observer),
	}
}

// Machine exposes the controller's state cell for callers that poll or reset.
func (r *Runner) Machine() *Machine {
	return r.machine
}

// Run executes the ingestion pipeline for one video and returns the record
// id once the machine reaches Ready. A machine left in Failed by a previous
// run is reset first; a run already in flight is rejected. Cancelling ctx
// abandons in-flight calls; a record created before cancellation is simply
// orphaned server-side.
func (r *Runner) Run(ctx context.Context, video models.MediaAsset, name, keywordPrompt string, progress transcoder.ProgressFunc) (string, error) {
	if r.machine.State() == models.StateFailed {
		if err := r.machine.Reset(); err != nil {
			return "", err
		}
	}
	if err := r.machine.Apply(EventSubmit); err != nil {
		return "", err
	}

	audio, err := r.engine.Transcode(ctx, video, progress)
	if err != nil {
		r.machine.Fail(models.StateConverting, err)
		return "", err
	}
	r.logger.Info("transcode finished", "video", name, "audio_bytes", len(audio.Data))
	if err := r.machine.Apply(EventTranscoded); err != nil {
		return "", err
	}

	videoID, err := r.api.Upload(ctx, audio, name)
	if err != nil {
		r.machine.Fail(models.StateUploading, err)
		return "", err
	}
	r.logger.Info("upload finished", "video", name, "video_id", videoID)
	if err := r.machine.Apply(EventUploaded); err != nil {
		return "", err
	}

	if err := r.api.CreateTranscription(ctx, videoID, keywordPrompt); err != nil {
		r.machine.Fail(models.StateTranscribing, err)
		return "", err
	}
	r.logger.Info("transcription finished", "video_id", videoID)
	if err := r.machine.Apply(EventTranscribed); err != nil {
		return "", err
	}

	return videoID, nil
}
