// Package ai abstracts the speech-to-text and text-generation providers.
package ai

import (
	"context"
	"fmt"

	"uploadai/internal/models"
)

// Transcriber converts stored audio into text. keywordPrompt is an optional
// hint biasing recognition toward domain vocabulary; it is unrelated to the
// generation prompt.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, keywordPrompt string) (string, error)
}

// Stream is a single-consumer sequence of completion chunks. Recv returns
// io.EOF on normal termination and a GenerationError on provider failure; it
// is not replayable. The consumer owns the lifecycle and must drain it or
// call Close.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Generator produces a streamed completion for a resolved prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float32) (Stream, error)
}

// ValidateTemperature enforces the inclusive [0,1] range before any provider
// call is made.
func ValidateTemperature(temperature float32) error {
	if temperature < 0 || temperature > 1 {
		return &models.InvalidParameterError{
			Name:   "temperature",
			Reason: fmt.Sprintf("must be between 0.0 and 1.0, got %g", temperature),
		}
	}
	return nil
}
