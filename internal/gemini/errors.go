package gemini

import "errors"

// Sentinel errors for model operations.
// These are part of the Client's public API and should be checked
// with errors.Is().
var (
	// ErrEmbedding indicates the embedding service call failed after retries.
	ErrEmbedding = errors.New("embedding service failure")

	// ErrGeneration indicates the generation service call failed after retries.
	ErrGeneration = errors.New("generation service failure")

	// ErrEmptyResponse indicates the model returned no usable text.
	ErrEmptyResponse = errors.New("empty model response")
)
