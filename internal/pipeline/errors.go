package pipeline

import "errors"

// ErrInvalidQuery indicates an empty or whitespace-only query.
// Maps to a 400 at the HTTP boundary; never retried.
var ErrInvalidQuery = errors.New("query must not be empty")
