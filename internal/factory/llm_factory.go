package factory

import (
	"fmt"

	"github.com/mikey/llm-phishing-analyzer/internal/adapters/bedrock"
	"github.com/mikey/llm-phishing-analyzer/internal/adapters/breaker"
	"github.com/mikey/llm-phishing-analyzer/internal/adapters/gemini"
	"github.com/mikey/llm-phishing-analyzer/internal/adapters/openai"
	"github.com/mikey/llm-phishing-analyzer/internal/config"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"go.uber.org/zap"
)

// LLMFactory creates text generators
type LLMFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger) *LLMFactory {
	return &LLMFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextGenerator creates a new text generator based on the configuration,
// wrapped in a circuit breaker when one is enabled
func (f *LLMFactory) CreateTextGenerator() (core.TextGenerator, error) {
	generator, err := f.createProvider()
	if err != nil {
		return nil, err
	}

	breakerCfg, err := f.cfg.GetBreaker()
	if err != nil {
		return nil, err
	}
	if breakerCfg.Enabled {
		f.logger.Info("Circuit breaker enabled for model calls",
			zap.Uint32("max_failures", breakerCfg.MaxFailures),
			zap.Duration("timeout", breakerCfg.Timeout))
		return breaker.NewGenerator(generator, breakerCfg.MaxFailures, breakerCfg.Timeout, f.logger), nil
	}

	return generator, nil
}

func (f *LLMFactory) createProvider() (core.TextGenerator, error) {
	llmConfig := f.cfg.GetLLM()

	f.logger.Debug("Creating text generator", zap.String("provider", llmConfig.Provider))

	switch llmConfig.Provider {
	case "gemini":
		client, err := gemini.NewFactory(f.cfg, f.logger).CreateClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	case "openai":
		client, err := openai.NewFactory(f.cfg, f.logger).CreateClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	case "bedrock":
		client, err := bedrock.NewFactory(f.cfg, f.logger).CreateClient()
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
