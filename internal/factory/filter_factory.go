package factory

import (
	"fmt"
	"io"

	"github.com/mikey/llm-phishing-analyzer/internal/adapters/filter"
	"github.com/mikey/llm-phishing-analyzer/internal/config"
	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/mikey/llm-phishing-analyzer/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.PhishingAnalysisService
	out     io.Writer
}

// NewFilterFactory creates a new filter factory.
// out receives the CLI filter's report.
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.PhishingAnalysisService, out io.Writer) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
		out:     out,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter() (ports.EmailFilter, error) {
	serverCfg, err := f.cfg.GetServer()
	if err != nil {
		return nil, err
	}

	switch serverCfg.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(f.service, f.logger, filter.PostfixOptions{
			ListenAddr:    serverCfg.ListenAddress,
			Threshold:     f.cfg.GetAnalysis().Threshold,
			BlockPhishing: serverCfg.BlockPhishing,
			Headers: filter.HeaderNames{
				Status:   serverCfg.Headers.Status,
				Score:    serverCfg.Headers.Score,
				Findings: serverCfg.Headers.Findings,
			},
			PostfixAddr:     serverCfg.PostfixAddress,
			PostfixPort:     serverCfg.PostfixPort,
			PostfixEnabled:  serverCfg.PostfixEnabled,
			SubjectPrefix:   serverCfg.SubjectPrefix,
			ModifySubject:   serverCfg.ModifySubject,
			AnalysisTimeout: serverCfg.AnalysisTimeout,
		}), nil
	case "cli":
		cliCfg := f.cfg.GetCLI()
		cliFilter, err := filter.NewCliFilter(f.service, f.logger, f.out, cliCfg.Output, cliCfg.Verbose)
		if err != nil {
			return nil, err
		}
		return cliFilter, nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}
