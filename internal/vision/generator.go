package vision

import "context"

// ImageInput is an inline image attached to a model call.
type ImageInput struct {
	Data        []byte
	ContentType string
}

// Generator defines the interface for generative model calls.
// The pipeline issues two kinds of calls through it: a vision call with an
// inline image (ingredient extraction) and a text-only call (health analysis).
type Generator interface {
	// Generate sends a prompt, with an optional inline image, and returns the
	// raw text response.
	Generate(ctx context.Context, prompt string, image *ImageInput) (string, error)
	// Close closes the generator and releases resources
	Close() error
}
