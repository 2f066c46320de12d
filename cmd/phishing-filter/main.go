package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/llm-phishing-analyzer/internal/config"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/mikey/llm-phishing-analyzer/internal/di"
	"github.com/mikey/llm-phishing-analyzer/internal/metrics"
	"github.com/mikey/llm-phishing-analyzer/internal/ports"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:          "phishing-filter",
		Short:        "Run the LLM phishing content filter",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Build the dependency injection container
			container, err := di.BuildContainer(configFile)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}

			// Run the application
			return container.Invoke(run)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (default search paths when empty)")

	return cmd
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	emailFilter ports.EmailFilter,
	generator core.TextGenerator,
	metricsServer *metrics.Server,
) error {
	defer logger.Sync()

	logger.Info("Starting phishing filter",
		zap.String("provider", cfg.GetLLM().Provider),
		zap.String("model", generator.ModelName()),
		zap.Int("threshold", cfg.GetAnalysis().Threshold))

	if cfg.GetMetrics().Enabled {
		if err := metricsServer.Start(); err != nil {
			logger.Error("Failed to start metrics server", zap.Error(err))
			return err
		}
	}

	// Start the filter
	if err := emailFilter.Start(); err != nil {
		logger.Error("Failed to start filter", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("Shutting down...", zap.String("signal", sig.String()))

	// Stop the filter
	if err := emailFilter.Stop(); err != nil {
		logger.Error("Failed to stop filter", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Stop(ctx); err != nil {
		logger.Error("Failed to stop metrics server", zap.Error(err))
	}

	// Close any resources that need closing
	if closer, ok := generator.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
