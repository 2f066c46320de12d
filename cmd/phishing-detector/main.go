package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/llm-phishing-analyzer/internal/adapters/filter"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/mikey/llm-phishing-analyzer/internal/di"
	"github.com/mikey/llm-phishing-analyzer/internal/ports"
)

// Input formats accepted on stdin or --file
const (
	inputRFC822 = "rfc822"
	inputJSON   = "json"
)

// exampleEmail is analyzed when --example is given
var exampleEmail = core.EmailInput{
	FromAddress: "support@paypa1.com",
	Subject:     "Urgent: Verify your account now!",
	Date:        "2025-11-01",
	Content: `Dear Customer,

Your account has been suspended due to unusual activity.
Click here to verify your identity immediately: http://paypa1-verify.com

If you don't verify within 24 hours, your account will be permanently closed.

Thank you,
PayPal Security Team`,
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &di.CLIFlags{}

	cmd := &cobra.Command{
		Use:   "phishing-detector",
		Short: "Analyze a single email for phishing with an LLM",
		Long: "Reads one email from --file or stdin, asks the configured model for a\n" +
			"phishing assessment and prints a risk score with severity-tagged findings.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()

	// LLM provider flags
	f.StringVar(&flags.Provider, "provider", "gemini", "LLM provider (gemini, openai, bedrock)")
	f.IntVar(&flags.MaxTokens, "max-tokens", 1024, "Maximum tokens for LLM response")
	f.Float64Var(&flags.Temperature, "temperature", 0.1, "Temperature for LLM generation")
	f.Float64Var(&flags.TopP, "top-p", 0.95, "Top-p for LLM generation")
	f.IntVar(&flags.TopK, "top-k", 40, "Top-k for LLM generation")
	f.IntVar(&flags.MaxBodySize, "max-body-size", 0, "Maximum email body size to send to LLM (0 for no limit)")

	// Bedrock flags
	f.StringVar(&flags.BedrockRegion, "bedrock-region", "us-east-1", "AWS region for Bedrock")
	f.StringVar(&flags.BedrockModelID, "bedrock-model", "anthropic.claude-3-haiku-20240307-v1:0", "Bedrock model ID")

	// Gemini flags
	f.StringVar(&flags.GeminiAPIKey, "gemini-api-key", os.Getenv("GEMINI_API_KEY"), "API key for Google Gemini")
	f.StringVar(&flags.GeminiModelName, "gemini-model", "gemini-1.5-flash", "Gemini model name")

	// OpenAI flags
	f.StringVar(&flags.OpenAIAPIKey, "openai-api-key", os.Getenv("OPENAI_API_KEY"), "API key for OpenAI")
	f.StringVar(&flags.OpenAIBaseURL, "openai-base-url", "", "Base URL for an OpenAI compatible endpoint")
	f.StringVar(&flags.OpenAIModelName, "openai-model", "gpt-4o-mini", "OpenAI model name")

	f.StringVar(&flags.Whitelist, "whitelist", "", "Comma-separated list of whitelisted domains")

	// Input and output flags
	f.StringVarP(&flags.InputFile, "file", "f", "", "Input email file (use stdin if not specified)")
	f.StringVar(&flags.InputFormat, "input-format", inputRFC822, "Input format (rfc822|json)")
	f.BoolVar(&flags.Example, "example", false, "Analyze a built-in sample phishing email")
	f.StringVarP(&flags.Output, "output", "o", filter.OutputText, "Output format (text|json|yaml)")
	f.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging and output")
	f.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	f.StringVar(&flags.ConfigFile, "config", "", "Path to config file (overrides provider flags)")

	return cmd
}

func run(ctx context.Context, flags *di.CLIFlags, stdin io.Reader, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.BuildCLIContainer(flags, stdout)
	if err != nil {
		return fmt.Errorf("failed to build dependency container: %w", err)
	}

	return container.Invoke(func(logger *zap.Logger, emailFilter ports.EmailFilter, generator core.TextGenerator) error {
		defer logger.Sync()
		defer closeGenerator(logger, generator)

		email, err := loadEmail(flags, stdin, logger)
		if err != nil {
			return err
		}

		if _, err := emailFilter.ProcessEmail(ctx, email); err != nil {
			return fmt.Errorf("failed to analyze email: %w", err)
		}
		return nil
	})
}

// loadEmail picks the analysis input from --example, --file or stdin
func loadEmail(flags *di.CLIFlags, stdin io.Reader, logger *zap.Logger) (*core.EmailInput, error) {
	if flags.Example {
		logger.Info("Analyzing built-in example email")
		email := exampleEmail
		return &email, nil
	}

	reader := stdin
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer file.Close()
		reader = file
		logger.Info("Reading email from file", zap.String("file", flags.InputFile))
	} else {
		logger.Info("Reading email from stdin")
	}

	return readEmail(reader, flags.InputFormat)
}

// readEmail decodes an email in the given input format
func readEmail(r io.Reader, format string) (*core.EmailInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read email: %w", err)
	}

	switch format {
	case "", inputRFC822:
		return filter.ParseRawEmail(data)
	case inputJSON:
		var email core.EmailInput
		if err := json.Unmarshal(data, &email); err != nil {
			return nil, fmt.Errorf("failed to decode email JSON: %w", err)
		}
		return &email, nil
	default:
		return nil, fmt.Errorf("unsupported input format: %s", format)
	}
}

func closeGenerator(logger *zap.Logger, generator core.TextGenerator) {
	if closer, ok := generator.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}
}
