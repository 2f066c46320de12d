package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/llm-phishing-analyzer/internal/metrics"
	"github.com/mikey/llm-phishing-analyzer/internal/utils"
	"github.com/mikey/llm-phishing-analyzer/internal/whitelist"
	"go.uber.org/zap"
)

const maxLoggedResponseSize = 500

// Analysis outcomes reported to metrics
const (
	OutcomeAnalyzed    = "analyzed"
	OutcomeFallback    = "fallback"
	OutcomeWhitelisted = "whitelisted"
	OutcomeInvalid     = "invalid_input"
	OutcomeModelError  = "model_error"
)

// PhishingAnalysisService is the core service for phishing detection
type PhishingAnalysisService struct {
	invoker       *ModelInvoker
	logger        *zap.Logger
	metrics       *metrics.Metrics
	textProcessor *utils.TextProcessor
	whitelist     *whitelist.Checker
	maxBodySize   int
}

// NewPhishingAnalysisService creates a new phishing analysis service
func NewPhishingAnalysisService(
	invoker *ModelInvoker,
	logger *zap.Logger,
	m *metrics.Metrics,
	textProcessor *utils.TextProcessor,
	whitelistChecker *whitelist.Checker,
	maxBodySize int,
) *PhishingAnalysisService {
	return &PhishingAnalysisService{
		invoker:       invoker,
		logger:        logger,
		metrics:       m,
		textProcessor: textProcessor,
		whitelist:     whitelistChecker,
		maxBodySize:   maxBodySize,
	}
}

// AnalyzeEmail runs the full pipeline for a single email.
// It returns either a complete result or an error, never both.
func (s *PhishingAnalysisService) AnalyzeEmail(ctx context.Context, email *EmailInput) (*AnalysisResult, error) {
	analysisID := uuid.NewString()
	logger := s.logger.With(zap.String("analysis_id", analysisID))

	if err := email.Validate(); err != nil {
		s.metrics.ObserveAnalysis(OutcomeInvalid, 0)
		return nil, err
	}

	// Check whitelist first
	if s.whitelist != nil && s.whitelist.IsWhitelisted(email.FromAddress) {
		logger.Info("Skipping phishing check for whitelisted domain",
			zap.String("sender", email.FromAddress),
			zap.String("action", "whitelist_bypass"))
		s.metrics.ObserveAnalysis(OutcomeWhitelisted, 0)

		return &AnalysisResult{
			Score:      0,
			Findings:   []Finding{},
			AnalysisID: analysisID,
			ModelUsed:  "whitelist",
			AnalyzedAt: time.Now(),
		}, nil
	}

	prepared := *email
	if s.textProcessor != nil {
		prepared.Content = s.textProcessor.ProcessText(email.Content, s.maxBodySize)
	}

	prompt, err := BuildPrompt(&prepared)
	if err != nil {
		s.metrics.ObserveAnalysis(OutcomeInvalid, 0)
		return nil, err
	}

	raw, err := s.invoker.Invoke(ctx, prompt)
	if err != nil {
		logger.Error("Model invocation failed",
			zap.String("sender", email.FromAddress),
			zap.Error(err))
		s.metrics.ObserveAnalysis(OutcomeModelError, 0)
		return nil, err
	}

	outcome := OutcomeAnalyzed
	normalized := NormalizeResponse(raw)
	if fallback, ok := normalized.(Fallback); ok {
		outcome = OutcomeFallback
		logger.Warn("Failed to parse model JSON response, using keyword fallback",
			zap.Error(fallback.Cause),
			zap.String("response", truncateForLog(raw)))
		s.metrics.IncFallback()
	}

	result := AggregateFindings(normalized.Assessment())
	result.AnalysisID = analysisID
	result.ModelUsed = s.invoker.ModelName()
	result.AnalyzedAt = time.Now()
	result.Fallback = outcome == OutcomeFallback

	logger.Info("Analyzed email",
		zap.String("sender", email.FromAddress),
		zap.Int("score", result.Score),
		zap.Int("findings", len(result.Findings)),
		zap.String("outcome", outcome),
		zap.String("model", result.ModelUsed))
	s.metrics.ObserveAnalysis(outcome, result.Score)

	return result, nil
}

func truncateForLog(text string) string {
	runes := []rune(text)
	if len(runes) <= maxLoggedResponseSize {
		return text
	}
	return string(runes[:maxLoggedResponseSize]) + "..."
}
