// Package transcoder extracts the audio track of a video into a compact mp3
// suitable for upload and speech-to-text.
package transcoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"uploadai/internal/models"
)

// ProgressFunc receives transcode progress in percent (0-100).
type ProgressFunc func(percent int)

// Engine wraps ffmpeg/ffprobe. The binaries are located on first use and the
// result is cached, so one Engine serves any number of transcodes.
type Engine struct {
	logger *slog.Logger

	once    sync.Once
	ffmpeg  string
	ffprobe string
	initErr error
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{logger: logger}
}

func (e *Engine) init() error {
	e.once.Do(func() {
		ffmpeg, err := exec.LookPath("ffmpeg")
		if err != nil {
			e.initErr = fmt.Errorf("ffmpeg not available: %w", err)
			return
		}
		ffprobe, err := exec.LookPath("ffprobe")
		if err != nil {
			e.initErr = fmt.Errorf("ffprobe not available: %w", err)
			return
		}
		e.ffmpeg = ffmpeg
		e.ffprobe = ffprobe
		e.logger.Info("transcode engine ready", "ffmpeg", ffmpeg)
	})
	return e.initErr
}

// Transcode converts a video asset into an audio asset, staging the bytes
// through a temp dir since ffmpeg operates on files. The input asset is not
// modified.
func (e *Engine) Transcode(ctx context.Context, video models.MediaAsset, cb ProgressFunc) (models.MediaAsset, error) {
	dir, err := os.MkdirTemp("", "transcode-*")
	if err != nil {
		return models.MediaAsset{}, &models.TranscodeError{Err: err}
	}
	defer os.RemoveAll(dir)

	inputPath := filepath.Join(dir, "input.mp4")
	outputPath := filepath.Join(dir, "output.mp3")
	if err := os.WriteFile(inputPath, video.Data, 0o644); err != nil {
		return models.MediaAsset{}, &models.TranscodeError{Err: err}
	}

	if err := e.TranscodeFile(ctx, inputPath, outputPath, cb); err != nil {
		return models.MediaAsset{}, err
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		return models.MediaAsset{}, &models.TranscodeError{Err: err}
	}
	return models.MediaAsset{Data: data, MIME: "audio/mpeg"}, nil
}

// TranscodeFile runs ffmpeg on inputPath and reports progress using cb.
func (e *Engine) TranscodeFile(ctx context.Context, inputPath, outputPath string, cb ProgressFunc) error {
	if err := e.init(); err != nil {
		return &models.TranscodeError{Err: err}
	}

	duration, err := e.probeDuration(ctx, inputPath)
	if err != nil {
		e.logger.Warn("could not probe duration, progress will be coarse", "error", err)
	}

	cmd := exec.CommandContext(ctx, e.ffmpeg, transcodeArgs(inputPath, outputPath)...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &models.TranscodeError{Err: fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &models.TranscodeError{Err: fmt.Errorf("failed to create ffmpeg stderr pipe: %w", err)}
	}

	if cb != nil {
		cb(0)
	}

	if err := cmd.Start(); err != nil {
		return &models.TranscodeError{Err: fmt.Errorf("failed to start ffmpeg: %w", err)}
	}

	var lastErrLine string
	stderrScanner := bufio.NewScanner(stderr)
	go func() {
		for stderrScanner.Scan() {
			line := strings.TrimSpace(stderrScanner.Text())
			if line != "" {
				lastErrLine = line
			}
		}
	}()

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if percent, ok := progressPercent(line, duration); ok && cb != nil {
			cb(percent)
		}
	}
	if err := scanner.Err(); err != nil {
		return &models.TranscodeError{Err: fmt.Errorf("failed while reading ffmpeg output: %w", err)}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if lastErrLine != "" {
			return &models.TranscodeError{Err: fmt.Errorf("ffmpeg failed: %s", lastErrLine)}
		}
		return &models.TranscodeError{Err: fmt.Errorf("ffmpeg failed: %w", err)}
	}

	if cb != nil {
		cb(100)
	}
	return nil
}

func (e *Engine) probeDuration(ctx context.Context, inputPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		inputPath,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe error: %w", err)
	}
	val := strings.TrimSpace(string(out))
	if val == "" {
		return 0, errors.New("empty duration response")
	}
	dur, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration from ffprobe: %w", err)
	}
	return dur, nil
}

// transcodeArgs builds the audio-only extraction: mp3, ~20kbps mono, small
// enough to upload while still intelligible for speech-to-text.
func transcodeArgs(inputPath, outputPath string) []string {
	return []string{
		"-y",
		"-i", inputPath,
		"-vn",
		"-map", "0:a",
		"-acodec", "libmp3lame",
		"-b:a", "20k",
		"-ac", "1",
		"-progress", "pipe:1",
		"-nostats",
		outputPath,
	}
}

// progressPercent interprets one line of ffmpeg -progress output. The second
// return reports whether the line carried a progress update.
func progressPercent(line string, duration float64) (int, bool) {
	if strings.HasPrefix(line, "progress=end") {
		return 100, true
	}
	if !strings.HasPrefix(line, "out_time_ms=") {
		return 0, false
	}
	if duration <= 0 {
		return 0, false
	}
	outMs, err := strconv.ParseFloat(strings.TrimPrefix(line, "out_time_ms="), 64)
	if err != nil {
		return 0, false
	}
	ratio := (outMs / 1_000_000.0) / duration
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return int(ratio * 100), true
}
