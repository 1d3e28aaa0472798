// Command uploadai runs the full client pipeline against a running server:
// transcode a video to compact audio, upload it, transcribe it, then stream
// an AI completion for a chosen prompt to stdout.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"uploadai/internal/ai"
	"uploadai/internal/models"
	"uploadai/internal/pipeline"
	"uploadai/internal/transcoder"
)

func main() {
	server := flag.String("server", "http://localhost:3333", "base URL of the upload server")
	videoPath := flag.String("video", "", "path to the input video (required)")
	keywords := flag.String("keywords", "", "comma-separated keyword hint for transcription")
	promptText := flag.String("prompt", "", "generation prompt; may contain {transcription}")
	promptTitle := flag.String("prompt-title", "", "pick a catalog template by title instead of -prompt")
	temperature := flag.Float64("temperature", 0.5, "generation temperature, 0.0 to 1.0")
	listPrompts := flag.Bool("list-prompts", false, "list the prompt catalog and exit")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := pipeline.NewClient(*server)

	if *listPrompts {
		prompts, err := api.ListPrompts(ctx)
		if err != nil {
			fatal(logger, "failed to list prompts", err)
		}
		for _, p := range prompts {
			fmt.Printf("%s\t%s\n", p.ID, p.Title)
		}
		return
	}

	if *videoPath == "" {
		fmt.Fprintln(os.Stderr, "usage: uploadai -video <file> [-prompt <text> | -prompt-title <title>]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := ai.ValidateTemperature(float32(*temperature)); err != nil {
		fatal(logger, "invalid flags", err)
	}

	generation, err := resolveGenerationPrompt(ctx, api, *promptText, *promptTitle)
	if err != nil {
		fatal(logger, "failed to pick prompt", err)
	}

	data, err := os.ReadFile(*videoPath)
	if err != nil {
		fatal(logger, "failed to read video", err)
	}
	video := models.MediaAsset{Data: data, MIME: "video/mp4"}
	audioName := strings.TrimSuffix(filepath.Base(*videoPath), filepath.Ext(*videoPath)) + ".mp3"

	observer := func(from, to models.PipelineState) {
		logger.Info("pipeline state changed", "from", from, "to", to)
	}
	runner := pipeline.NewRunner(logger, transcoder.NewEngine(logger), api, observer)

	videoID, err := runner.Run(ctx, video, audioName, *keywords, func(percent int) {
		fmt.Fprintf(os.Stderr, "\rconverting: %3d%%", percent)
		if percent >= 100 {
			fmt.Fprintln(os.Stderr)
		}
	})
	if err != nil {
		stage, cause := runner.Machine().Failure()
		if cause != nil {
			fatal(logger, fmt.Sprintf("pipeline failed during %s", stage), cause)
		}
		fatal(logger, "pipeline failed", err)
	}
	logger.Info("video ready", "video_id", videoID)

	if generation == "" {
		return
	}

	body, err := api.Complete(ctx, models.CompletionRequest{
		VideoID:     videoID,
		Prompt:      generation,
		Temperature: float32(*temperature),
	})
	if err != nil {
		fatal(logger, "completion failed", err)
	}
	defer body.Close()

	if _, err := io.Copy(os.Stdout, body); err != nil {
		fatal(logger, "completion stream broke", err)
	}
	fmt.Println()
}

// resolveGenerationPrompt returns the prompt text to send, fetching the
// catalog when a template title was requested.
func resolveGenerationPrompt(ctx context.Context, api *pipeline.Client, promptText, promptTitle string) (string, error) {
	if promptTitle == "" {
		return promptText, nil
	}
	prompts, err := api.ListPrompts(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range prompts {
		if strings.EqualFold(p.Title, promptTitle) {
			return p.Template, nil
		}
	}
	return "", fmt.Errorf("no template titled %q in the catalog", promptTitle)
}

func fatal(logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}
