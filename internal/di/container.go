package di

import (
	"io"
	"os"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-phishing-analyzer/internal/config"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/mikey/llm-phishing-analyzer/internal/factory"
	"github.com/mikey/llm-phishing-analyzer/internal/logging"
	"github.com/mikey/llm-phishing-analyzer/internal/metrics"
	"github.com/mikey/llm-phishing-analyzer/internal/ports"
	"github.com/mikey/llm-phishing-analyzer/internal/utils"
	"github.com/mikey/llm-phishing-analyzer/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
// for the filter daemon
func BuildContainer(configFile string) (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(func() (*config.Config, error) {
		return config.NewFromFile(configFile)
	}); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Daemon output goes through the logger; stdout only backs a cli filter
	if err := container.Provide(func() io.Writer { return os.Stdout }); err != nil {
		return nil, err
	}

	if err := provideAnalysis(container); err != nil {
		return nil, err
	}

	// Register metrics server
	if err := container.Provide(func(cfg *config.Config, m *metrics.Metrics, logger *zap.Logger) *metrics.Server {
		return metrics.NewServer(m, logger, cfg.GetMetrics().ListenAddress)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideAnalysis registers everything from the model client up to the email filter.
// The container must already provide *config.Config, *zap.Logger and io.Writer.
func provideAnalysis(container *dig.Container) error {
	// Register metrics
	if err := container.Provide(metrics.New); err != nil {
		return err
	}

	// Register factories
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewFilterFactory); err != nil {
		return err
	}

	// Register text generator
	if err := container.Provide(func(f *factory.LLMFactory) (core.TextGenerator, error) {
		return f.CreateTextGenerator()
	}); err != nil {
		return err
	}

	// Register model invoker
	if err := container.Provide(core.NewModelInvoker); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register whitelist checker
	if err := container.Provide(func(f *factory.TextProcessorFactory) *whitelist.Checker {
		return f.CreateWhitelistChecker()
	}); err != nil {
		return err
	}

	// Register phishing analysis service
	if err := container.Provide(func(
		invoker *core.ModelInvoker,
		logger *zap.Logger,
		m *metrics.Metrics,
		textProcessor *utils.TextProcessor,
		whitelistChecker *whitelist.Checker,
		cfg *config.Config,
	) *core.PhishingAnalysisService {
		return core.NewPhishingAnalysisService(
			invoker,
			logger,
			m,
			textProcessor,
			whitelistChecker,
			cfg.GetAnalysis().MaxBodySize,
		)
	}); err != nil {
		return err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter()
	}); err != nil {
		return err
	}

	return nil
}
