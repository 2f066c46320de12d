package ports

import (
	"context"

	"github.com/mikey/llm-phishing-analyzer/internal/core"
)

// EmailFilter defines the interface for the surfaces that feed emails into the analysis
type EmailFilter interface {
	// ProcessEmail analyzes an email and reports the result through the filter's surface
	ProcessEmail(ctx context.Context, email *core.EmailInput) (*core.AnalysisResult, error)

	// Start starts the email filter service
	Start() error

	// Stop stops the email filter service
	Stop() error
}
