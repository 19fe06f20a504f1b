package ai

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/sukritx/piyanutai/internal/profile"
)

// Config holds the AI provider configuration.
type Config struct {
	BaseURL            string
	APIKey             string
	ChatModel          string
	TranscriptionModel string
	SpeechModel        string
	SpeechVoice        string
	SpeechSpeed        float64
	Language           string
	Temperature        float32
	MaxTokens          int
	// MaxRetries is the number of attempts per client call. 1 means a
	// single attempt with no retry.
	MaxRetries int
	Timeout    time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:            "https://api.openai.com/v1",
		ChatModel:          openai.GPT3Dot5Turbo,
		TranscriptionModel: openai.Whisper1,
		SpeechModel:        string(openai.TTSModel1),
		SpeechVoice:        string(openai.VoiceNova),
		SpeechSpeed:        1.0,
		Language:           "th",
		Temperature:        0.7,
		MaxTokens:          3000,
		MaxRetries:         1,
		Timeout:            30 * time.Second,
	}
}

// ConfigFromProfile builds a provider config from the server profile.
func ConfigFromProfile(p *profile.Profile) *Config {
	cfg := DefaultConfig()
	cfg.APIKey = p.OpenAIAPIKey
	if p.OpenAIBaseURL != "" {
		cfg.BaseURL = p.OpenAIBaseURL
	}
	if p.ChatModel != "" {
		cfg.ChatModel = p.ChatModel
	}
	if p.TranscriptionModel != "" {
		cfg.TranscriptionModel = p.TranscriptionModel
	}
	if p.SpeechModel != "" {
		cfg.SpeechModel = p.SpeechModel
	}
	if p.SpeechVoice != "" {
		cfg.SpeechVoice = p.SpeechVoice
	}
	if p.SpeechSpeed > 0 {
		cfg.SpeechSpeed = p.SpeechSpeed
	}
	if p.Language != "" {
		cfg.Language = p.Language
	}
	if p.Temperature > 0 {
		cfg.Temperature = p.Temperature
	}
	if p.MaxTokens > 0 {
		cfg.MaxTokens = p.MaxTokens
	}
	return cfg
}

// Message represents a chat message.
type Message struct {
	Role    string
	Content string
}

// Provider provides speech-to-text, chat completion and text-to-speech
// backed by an OpenAI-compatible API.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new AI provider.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT3Dot5Turbo
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = openai.Whisper1
	}
	if cfg.SpeechModel == "" {
		cfg.SpeechModel = string(openai.TTSModel1)
	}
	if cfg.SpeechVoice == "" {
		cfg.SpeechVoice = string(openai.VoiceNova)
	}
	if cfg.SpeechSpeed == 0 {
		cfg.SpeechSpeed = 1.0
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		client: openai.NewClientWithConfig(clientConfig),
		config: cfg,
	}, nil
}

// Transcribe converts the audio file at the given path to text.
func (p *Provider) Transcribe(ctx context.Context, audioPath string) (string, error) {
	var result string
	err := p.doWithRetry(ctx, func() error {
		req := openai.AudioRequest{
			Model:    p.config.TranscriptionModel,
			FilePath: audioPath,
			Language: p.config.Language,
			Format:   openai.AudioResponseFormatText,
		}

		resp, err := p.client.CreateTranscription(ctx, req)
		if err != nil {
			return err
		}
		result = resp.Text
		return nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}

	return result, nil
}

// Complete performs a chat completion over the given messages.
func (p *Provider) Complete(ctx context.Context, messages []Message) (string, error) {
	var result string
	err := p.doWithRetry(ctx, func() error {
		llmMessages := make([]openai.ChatCompletionMessage, len(messages))
		for i, msg := range messages {
			llmMessages[i] = openai.ChatCompletionMessage{
				Role:    msg.Role,
				Content: msg.Content,
			}
		}

		req := openai.ChatCompletionRequest{
			Model:       p.config.ChatModel,
			Messages:    llmMessages,
			Temperature: p.config.Temperature,
			MaxTokens:   p.config.MaxTokens,
		}

		resp, err := p.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("empty chat response")
		}
		result = resp.Choices[0].Message.Content
		return nil
	})

	if err != nil {
		return "", fmt.Errorf("failed to complete chat: %w", err)
	}

	return result, nil
}

// Synthesize converts text to speech and returns the raw audio bytes.
func (p *Provider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var result []byte
	err := p.doWithRetry(ctx, func() error {
		req := openai.CreateSpeechRequest{
			Model: openai.SpeechModel(p.config.SpeechModel),
			Input: text,
			Voice: openai.SpeechVoice(p.config.SpeechVoice),
			Speed: p.config.SpeechSpeed,
		}

		resp, err := p.client.CreateSpeech(ctx, req)
		if err != nil {
			return err
		}
		defer resp.Close()

		data, err := io.ReadAll(resp)
		if err != nil {
			return err
		}
		result = data
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to synthesize speech: %w", err)
	}

	return result, nil
}

// Validate validates the provider configuration.
func (p *Provider) Validate(ctx context.Context) error {
	if p.config.APIKey == "" {
		return fmt.Errorf("API key is required, set PIYANUTAI_OPENAI_API_KEY environment variable")
	}

	slog.Info("AI provider configured",
		"chat_model", p.config.ChatModel,
		"transcription_model", p.config.TranscriptionModel,
		"speech_model", p.config.SpeechModel)

	return nil
}

// doWithRetry executes a function with exponential backoff retry.
func (p *Provider) doWithRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			if attempt < p.config.MaxRetries-1 {
				waitTime := time.Duration(math.Pow(2, float64(attempt))) * time.Second
				slog.Debug("AI request failed, retrying",
					"attempt", attempt+1,
					"wait_time", waitTime,
					"error", err)
				select {
				case <-time.After(waitTime):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
	return lastErr
}
