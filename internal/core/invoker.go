package core

import (
	"context"
	"errors"
	"time"

	"github.com/mikey/llm-phishing-analyzer/internal/metrics"
	"go.uber.org/zap"
)

// SamplingConfig holds the generation parameters sent with every prompt
type SamplingConfig struct {
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
}

// DefaultSamplingConfig returns the near-deterministic sampling used for analysis
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		Temperature:     0.1,
		TopP:            0.95,
		TopK:            40,
		MaxOutputTokens: 1024,
	}
}

// ModelInvoker sends a rendered prompt to a TextGenerator and returns the raw text.
// It does not interpret the output and never retries.
type ModelInvoker struct {
	generator TextGenerator
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewModelInvoker creates a new model invoker
func NewModelInvoker(generator TextGenerator, logger *zap.Logger, m *metrics.Metrics) *ModelInvoker {
	return &ModelInvoker{
		generator: generator,
		logger:    logger,
		metrics:   m,
	}
}

// ModelName returns the name of the underlying model
func (i *ModelInvoker) ModelName() string {
	return i.generator.ModelName()
}

// Invoke performs exactly one call to the model
func (i *ModelInvoker) Invoke(ctx context.Context, prompt string) (string, error) {
	model := i.generator.ModelName()
	start := time.Now()

	text, err := i.generator.Generate(ctx, prompt)
	duration := time.Since(start)
	i.metrics.ObserveModelCall(model, duration, err)

	if err != nil {
		var invErr *ModelInvocationError
		if errors.As(err, &invErr) {
			return "", err
		}
		return "", &ModelInvocationError{Model: model, Err: err}
	}

	i.logger.Debug("Model responded",
		zap.String("model", model),
		zap.Int("prompt_size", len(prompt)),
		zap.Int("response_size", len(text)),
		zap.Duration("duration", duration))

	return text, nil
}
