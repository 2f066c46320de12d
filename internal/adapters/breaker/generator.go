// Package breaker guards a text generator with a circuit breaker so a failing
// backend is not called for every email while it is down.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/mikey/llm-phishing-analyzer/internal/core"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Generator wraps a core.TextGenerator with a circuit breaker
type Generator struct {
	next core.TextGenerator
	cb   *gobreaker.CircuitBreaker
}

// NewGenerator creates a circuit breaking generator.
// The breaker opens after maxFailures consecutive failures and stays open for timeout.
func NewGenerator(next core.TextGenerator, maxFailures uint32, timeout time.Duration, logger *zap.Logger) *Generator {
	if maxFailures == 0 {
		maxFailures = 1
	}

	settings := gobreaker.Settings{
		Name:        "llm-" + next.ModelName(),
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about backend health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &Generator{
		next: next,
		cb:   gobreaker.NewCircuitBreaker(settings),
	}
}

// ModelName returns the wrapped model name
func (g *Generator) ModelName() string {
	return g.next.ModelName()
}

// State returns the current breaker state
func (g *Generator) State() gobreaker.State {
	return g.cb.State()
}

// Generate calls the wrapped generator unless the breaker is open
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

// Close closes the wrapped generator if it holds resources
func (g *Generator) Close() error {
	if closer, ok := g.next.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
