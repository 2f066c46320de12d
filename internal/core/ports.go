package core

import (
	"context"
)

// TextGenerator defines the interface for interacting with text generation backends
type TextGenerator interface {
	// Generate sends a prompt to the model and returns its raw text response
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelName returns the name of the model answering the prompts
	ModelName() string
}
