package ai

import (
	"context"
	"io"
	"strings"

	"uploadai/internal/models"
)

// MockTranscriber returns a fixed transcription without calling a provider.
// It is the fallback when no API key is configured.
type MockTranscriber struct {
	Text string
	Err  error
}

func (m MockTranscriber) Transcribe(ctx context.Context, audioPath, keywordPrompt string) (string, error) {
	if m.Err != nil {
		return "", &models.TranscriptionError{Err: m.Err}
	}
	return m.Text, nil
}

// MockGenerator streams the resolved prompt back word by word, which keeps
// the end-to-end flow exercisable without a provider.
type MockGenerator struct {
	Err error
	// FailAfter injects a mid-stream failure after that many chunks when >0.
	FailAfter int
}

func (m MockGenerator) Generate(ctx context.Context, prompt string, temperature float32) (Stream, error) {
	if err := ValidateTemperature(temperature); err != nil {
		return nil, err
	}
	if m.Err != nil && m.FailAfter <= 0 {
		return nil, &models.GenerationError{Err: m.Err}
	}
	chunks := strings.SplitAfter(prompt, " ")
	return &mockStream{chunks: chunks, failAfter: m.FailAfter, err: m.Err}, nil
}

type mockStream struct {
	chunks    []string
	pos       int
	failAfter int
	err       error
	closed    bool
}

func (s *mockStream) Recv() (string, error) {
	if s.closed {
		return "", io.EOF
	}
	if s.err != nil && s.failAfter > 0 && s.pos >= s.failAfter {
		return "", &models.GenerationError{Err: s.err}
	}
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}
