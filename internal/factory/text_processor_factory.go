package factory

import (
	"github.com/mikey/llm-phishing-analyzer/internal/config"
	"github.com/mikey/llm-phishing-analyzer/internal/utils"
	"github.com/mikey/llm-phishing-analyzer/internal/whitelist"
	"go.uber.org/zap"
)

// TextProcessorFactory creates the text helpers used while preparing emails
type TextProcessorFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new TextProcessorFactory
func NewTextProcessorFactory(cfg *config.Config, logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateTextProcessor creates a new TextProcessor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}

// CreateWhitelistChecker creates the sender domain allowlist
func (f *TextProcessorFactory) CreateWhitelistChecker() *whitelist.Checker {
	return whitelist.NewChecker(f.cfg.GetAnalysis().WhitelistedDomains, f.logger)
}
