package ports

import (
	"context"

	"github.com/delta5-hq/d5-sub001/pkg/domain"
)

// GenerateRequest is the input of one provider call.
type GenerateRequest struct {
	QueryType  domain.QueryType
	Prompt     string
	Flags      map[string]string
	UserID     string
	WorkflowID string
}

// Generator produces text for a provider command.
// The result is imported as an indented outline below the executed node.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req GenerateRequest) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	return f(ctx, req)
}

// Classifier answers a question with exactly one of the given options.
type Classifier interface {
	Classify(ctx context.Context, question string, options []string) (string, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, question string, options []string) (string, error)

// Classify calls f.
func (f ClassifierFunc) Classify(ctx context.Context, question string, options []string) (string, error) {
	return f(ctx, question, options)
}
