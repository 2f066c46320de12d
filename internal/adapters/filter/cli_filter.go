package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Output formats supported by the CLI filter
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

const bodyPreviewSize = 500

// CliFilter implements a command-line interface for phishing detection
type CliFilter struct {
	service *core.PhishingAnalysisService
	logger  *zap.Logger
	out     io.Writer
	format  string
	verbose bool
}

// NewCliFilter creates a new CLI filter writing results to out
func NewCliFilter(service *core.PhishingAnalysisService, logger *zap.Logger, out io.Writer, format string, verbose bool) (*CliFilter, error) {
	switch format {
	case "":
		format = OutputText
	case OutputText, OutputJSON, OutputYAML:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return &CliFilter{
		service: service,
		logger:  logger,
		out:     out,
		format:  format,
		verbose: verbose,
	}, nil
}

// ProcessEmail analyzes an email and writes the results
func (f *CliFilter) ProcessEmail(ctx context.Context, email *core.EmailInput) (*core.AnalysisResult, error) {
	if email != nil {
		f.logger.Debug("Processing email", zap.String("sender", email.FromAddress))
	}

	startTime := time.Now()
	result, err := f.service.AnalyzeEmail(ctx, email)
	if err != nil {
		f.logger.Error("Failed to analyze email", zap.Error(err))
		return nil, err
	}
	duration := time.Since(startTime)

	switch f.format {
	case OutputJSON:
		enc := json.NewEncoder(f.out)
		enc.SetIndent("", "  ")
		err = enc.Encode(result)
	case OutputYAML:
		enc := yaml.NewEncoder(f.out)
		enc.SetIndent(2)
		if err = enc.Encode(result); err == nil {
			err = enc.Close()
		}
	default:
		err = f.writeText(email, result, duration)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write results: %w", err)
	}

	return result, nil
}

func (f *CliFilter) writeText(email *core.EmailInput, result *core.AnalysisResult, duration time.Duration) error {
	w := &errWriter{w: f.out}

	if f.verbose {
		w.printf("\n=== Email Summary ===\n")
		w.printf("From: %s\n", email.FromAddress)
		w.printf("Subject: %s\n", email.Subject)
		w.printf("Date: %s\n", email.Date)
		w.printf("Body length: %d bytes\n", len(email.Content))

		preview := []rune(email.Content)
		if len(preview) > bodyPreviewSize {
			preview = append(preview[:bodyPreviewSize], []rune("...")...)
		}
		w.printf("\nBody preview:\n%s\n\n", string(preview))
	}

	w.printf("Analysis Results:\n")
	w.printf("Risk Score: %d\n", result.Score)
	w.printf("\nFindings:\n")
	if len(result.Findings) == 0 {
		w.printf("(none)\n")
	}
	for _, finding := range result.Findings {
		w.printf("- [%s] %s\n", finding.Severity, finding.Message)
	}

	if f.verbose {
		w.printf("\nModel used: %s\n", result.ModelUsed)
		w.printf("Keyword fallback: %t\n", result.Fallback)
		w.printf("Processing time: %v\n", duration)
	}

	return w.err
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}

// errWriter keeps the first write error so a block of prints can be checked once
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...interface{}) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
