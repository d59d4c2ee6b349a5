package knowledge

import "errors"

// Sentinel errors for knowledge store operations.
// Check with errors.Is().
var (
	// ErrStoreUnavailable indicates the on-disk vector store could not be
	// opened or written. Distinct from an empty search result: callers must
	// treat it as a request-fatal condition, not as "no relevant documents".
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrDimensionMismatch indicates an embedding whose dimensionality does
	// not match the collection. Mixing embedding models without re-embedding
	// the whole collection corrupts similarity ranking, so this is rejected
	// instead of silently accepted.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbedderMismatch indicates the persisted collection was built with a
	// different embedder model than the one configured.
	ErrEmbedderMismatch = errors.New("embedder model mismatch")
)
