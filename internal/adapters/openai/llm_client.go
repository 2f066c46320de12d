package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// ErrEmptyResponse is returned when OpenAI answers without any choice
var ErrEmptyResponse = errors.New("empty response from OpenAI")

const systemPrompt = "You are a cybersecurity expert detecting phishing emails. Respond only with JSON."

// OpenAIClient is an implementation of the TextGenerator interface using OpenAI
type OpenAIClient struct {
	client    *openai.Client
	modelName string
	sampling  core.SamplingConfig
	logger    *zap.Logger
}

// NewOpenAIClient creates a new OpenAI client.
// An empty baseURL uses the public OpenAI endpoint.
func NewOpenAIClient(
	apiKey string,
	baseURL string,
	modelName string,
	sampling core.SamplingConfig,
	logger *zap.Logger,
) *OpenAIClient {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	if sampling.TopK > 0 {
		logger.Debug("OpenAI does not support top_k sampling, ignoring it", zap.Int32("top_k", sampling.TopK))
	}

	return &OpenAIClient{
		client:    openai.NewClientWithConfig(clientCfg),
		modelName: modelName,
		sampling:  sampling,
		logger:    logger,
	}
}

// ModelName returns the OpenAI model name
func (c *OpenAIClient) ModelName() string {
	return c.modelName
}

// Generate sends the prompt as a chat completion and returns the first choice's content
func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   int(c.sampling.MaxOutputTokens),
		Temperature: c.sampling.Temperature,
		TopP:        c.sampling.TopP,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.logger.Debug("OpenAI completion received",
		zap.String("id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return resp.Choices[0].Message.Content, nil
}
