// Package openai generates content through the OpenAI chat completions API
// or any server compatible with it.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spigell/hire-responder/internal/retry"
	"github.com/spigell/hire-responder/internal/utils"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultModel = "gpt-4o-mini"

var sleep = utils.WaitFor

type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req goopenai.ChatCompletionRequest) (goopenai.ChatCompletionResponse, error)
}

type Generator struct {
	client     chatCompleter
	model      string
	maxTokens  int
	maxRetries int
	logger     *zap.Logger
}

// NewGenerator creates a Generator. baseURL is optional and points the client
// at a compatible server instead of api.openai.com.
func NewGenerator(apiKey, baseURL, model string, maxTokens, maxRetries int, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = baseURL
	}

	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	return &Generator{
		client:     goopenai.NewClientWithConfig(cfg),
		model:      model,
		maxTokens:  maxTokens,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

func (g *Generator) GenerateContent(ctx context.Context, system, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	messages := make([]goopenai.ChatCompletionMessage, 0, 2)
	if system = strings.TrimSpace(system); system != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: prompt})

	req := goopenai.ChatCompletionRequest{
		Model:     g.model,
		Messages:  messages,
		MaxTokens: g.maxTokens,
	}

	policy := retry.Default()
	policy.Attempts = g.maxRetries
	policy.Retryable = retryable
	policy.Wait = sleep
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		g.logger.Warn("retrying openai request", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}

	var output string
	err := policy.Do(ctx, func(ctx context.Context) error {
		resp, err := g.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return fmt.Errorf("create chat completion: %w", err)
		}

		if len(resp.Choices) == 0 {
			return errors.New("openai api returned no choices")
		}

		output = strings.TrimSpace(resp.Choices[0].Message.Content)
		if output == "" {
			return errors.New("openai api returned empty response")
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return output, nil
}

func (g *Generator) Model() string {
	return g.model
}

func retryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= http.StatusInternalServerError
	}

	return false
}
