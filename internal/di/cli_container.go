package di

import (
	"io"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-phishing-analyzer/internal/config"
	"github.com/mikey/llm-phishing-analyzer/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	Provider    string
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
	MaxBodySize int

	// Bedrock flags
	BedrockRegion  string
	BedrockModelID string

	// Gemini flags
	GeminiAPIKey    string
	GeminiModelName string

	// OpenAI flags
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModelName string

	// Comma-separated trusted sender domains
	Whitelist string

	// Input and output flags
	InputFile   string
	InputFormat string
	Example     bool
	Output      string
	Verbose     bool
	JSONLog     bool
	ConfigFile  string
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application.
// Reports are written to out.
func BuildCLIContainer(flags *CLIFlags, out io.Writer) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register report writer
	if err := container.Provide(func() io.Writer { return out }); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		if flags.ConfigFile != "" {
			cfg, err := config.NewFromFile(flags.ConfigFile)
			if err != nil {
				return nil, err
			}
			logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
			applyCLISettings(cfg.GetViper(), flags)
			return cfg, nil
		}

		// Create config from command line flags
		return createConfigFromFlags(flags), nil
	}); err != nil {
		return nil, err
	}

	if err := provideAnalysis(container); err != nil {
		return nil, err
	}

	return container, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags(flags *CLIFlags) *config.Config {
	v := config.NewEmptyViper()

	// Set LLM provider
	v.Set("llm.provider", flags.Provider)

	// Set provider-specific configuration
	switch flags.Provider {
	case "bedrock":
		v.Set("bedrock.region", flags.BedrockRegion)
		v.Set("bedrock.model_id", flags.BedrockModelID)
	case "gemini":
		v.Set("gemini.api_key", flags.GeminiAPIKey)
		v.Set("gemini.model_name", flags.GeminiModelName)
	case "openai":
		v.Set("openai.api_key", flags.OpenAIAPIKey)
		v.Set("openai.base_url", flags.OpenAIBaseURL)
		v.Set("openai.model_name", flags.OpenAIModelName)
	}
	v.Set(flags.Provider+".max_tokens", flags.MaxTokens)
	v.Set(flags.Provider+".temperature", flags.Temperature)
	v.Set(flags.Provider+".top_p", flags.TopP)
	v.Set(flags.Provider+".top_k", flags.TopK)

	v.Set("phishing.max_body_size", flags.MaxBodySize)

	applyCLISettings(v, flags)

	return config.NewFromViper(v)
}

// applyCLISettings forces the cli filter and applies the flags that always win over a config file
func applyCLISettings(v *viper.Viper, flags *CLIFlags) {
	v.Set("server.filter_type", "cli")
	v.Set("cli.output", flags.Output)
	v.Set("cli.verbose", flags.Verbose)

	if domains := splitDomains(flags.Whitelist); len(domains) > 0 {
		v.Set("phishing.whitelisted_domains", domains)
	}
}

func splitDomains(list string) []string {
	var domains []string
	for _, domain := range strings.Split(list, ",") {
		if domain = strings.TrimSpace(domain); domain != "" {
			domains = append(domains, domain)
		}
	}
	return domains
}
