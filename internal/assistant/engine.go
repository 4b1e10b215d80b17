package assistant

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/soloassist/soloassist-go/internal/config"
)

// Engine is the transcribe/think/speak pipeline behind the backend.
type Engine interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
	Think(ctx context.Context, prompt string) (string, error)
	Speak(ctx context.Context, text string) ([]byte, error)
}

// llmAPI is the minimal subset of openai.Client the engine uses; it is
// easy to mock in tests.
type llmAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAIEngine implements Engine on an OpenAI-compatible API.
type OpenAIEngine struct {
	api llmAPI
	cfg config.LLMConfig
}

// NewOpenAIEngine creates an engine from the LLM configuration.
func NewOpenAIEngine(cfg config.LLMConfig) *OpenAIEngine {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIEngine{api: openai.NewClientWithConfig(apiCfg), cfg: cfg}
}

// Transcribe turns a recorded input into text.
func (e *OpenAIEngine) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	resp, err := e.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.cfg.TranscribeModel,
		FilePath: filename,
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}

// Think runs one chat completion for the prepared prompt.
func (e *OpenAIEngine) Think(ctx context.Context, prompt string) (string, error) {
	resp, err := e.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion: empty choice list")
	}
	return resp.Choices[0].Message.Content, nil
}

// Speak synthesizes the response as playable audio.
func (e *OpenAIEngine) Speak(ctx context.Context, text string) ([]byte, error) {
	resp, err := e.api.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: openai.SpeechVoice(e.cfg.Voice),
	})
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	defer resp.Close()
	data, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	return data, nil
}
