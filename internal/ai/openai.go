package ai

import (
	"context"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"uploadai/internal/models"
)

// OpenAIProvider implements Transcriber and Generator against an
// OpenAI-compatible API.
type OpenAIProvider struct {
	cli       *openai.Client
	chatModel string
	language  string
}

func NewOpenAIProvider(apiKey, baseURL, chatModel, language string) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if chatModel == "" {
		chatModel = openai.GPT3Dot5Turbo16K
	}
	return &OpenAIProvider{
		cli:       openai.NewClientWithConfig(config),
		chatModel: chatModel,
		language:  language,
	}
}

func (p *OpenAIProvider) Transcribe(ctx context.Context, audioPath, keywordPrompt string) (string, error) {
	resp, err := p.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: audioPath,
		Language: p.language,
		Prompt:   keywordPrompt,
	})
	if err != nil {
		return "", &models.TranscriptionError{Err: err}
	}
	// Silence comes back as empty text; that is a valid transcription.
	return strings.TrimSpace(resp.Text), nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, temperature float32) (Stream, error) {
	if err := ValidateTemperature(temperature); err != nil {
		return nil, err
	}
	stream, err := p.cli.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       p.chatModel,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Stream: true,
	})
	if err != nil {
		return nil, &models.GenerationError{Err: err}
	}
	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", &models.GenerationError{Err: err}
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
