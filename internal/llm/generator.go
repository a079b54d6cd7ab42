package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
)

// defaultSystemPrompt frames every completion unless the caller overrides it.
const defaultSystemPrompt = "You are a helpful AI assistant."

// maxRetryElapsed bounds the total time spent retrying a failed completion.
const maxRetryElapsed = 20 * time.Second

// Option overrides a model default for a single call.
type Option func(*callSettings)

type callSettings struct {
	maxTokens   *int
	temperature *float32
}

// WithMaxTokens caps the completion length for one call.
func WithMaxTokens(n int) Option {
	return func(s *callSettings) { s.maxTokens = &n }
}

// WithTemperature overrides the sampling temperature for one call.
func WithTemperature(t float32) Option {
	return func(s *callSettings) { s.temperature = &t }
}

// Generator produces a completion for a fully rendered prompt. Persistent
// upstream failure is fatal for the calling turn.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...Option) (string, error)
}

// Config holds the chat-model settings.
type Config struct {
	APIKey      string  `yaml:"-"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	System      string  `yaml:"system_prompt"`
}

// OpenAIGenerator wraps an eino OpenAI-compatible chat model with bounded
// exponential-backoff retries.
type OpenAIGenerator struct {
	model  *openai.ChatModel
	system string
}

// NewOpenAIGenerator creates a chat model from the config.
func NewOpenAIGenerator(ctx context.Context, config Config) (*OpenAIGenerator, error) {
	maxTokens := config.MaxTokens
	temperature := float32(config.Temperature)

	modelConfig := &openai.ChatModelConfig{
		APIKey:      config.APIKey,
		BaseURL:     config.BaseURL,
		Model:       config.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}

	model, err := openai.NewChatModel(ctx, modelConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	system := config.System
	if system == "" {
		system = defaultSystemPrompt
	}

	return &OpenAIGenerator{model: model, system: system}, nil
}

// Generate runs the prompt through the chat model, retrying transient
// failures with exponential backoff until maxRetryElapsed.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(g.system),
		schema.UserMessage(prompt),
	}

	var settings callSettings
	for _, opt := range opts {
		opt(&settings)
	}
	var modelOpts []model.Option
	if settings.maxTokens != nil {
		modelOpts = append(modelOpts, model.WithMaxTokens(*settings.maxTokens))
	}
	if settings.temperature != nil {
		modelOpts = append(modelOpts, model.WithTemperature(*settings.temperature))
	}

	var content string
	operation := func() error {
		start := time.Now()
		out, err := g.model.Generate(ctx, messages, modelOpts...)
		if err != nil {
			log.Warn().Err(err).Msg("chat completion failed, retrying")
			return err
		}
		log.Debug().
			Dur("elapsed", time.Since(start)).
			Int("prompt_chars", len(prompt)).
			Msg("chat completion ok")
		content = out.Content
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = maxRetryElapsed
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("chat completion returned empty content")
	}
	return content, nil
}
