// Package llm wraps the generative text models used to write interview
// questions and score finished interviews.
package llm

import "context"

type Provider interface {
	// Generate returns the model's full text reply to prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}
