// Package ragerr defines the error taxonomy shared across the retrieval
// engine. Handlers map these types to HTTP status codes; pipelines use them
// to decide what is skippable, what fails a document, and what the caller
// may retry.
package ragerr

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError reports input rejected before any side effect: an unknown
// modality, an unsupported file type, a malformed filter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError for the given field.
func NewValidation(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EmbeddingError reports a failed or dimensionally wrong embedding call.
// BatchIndex is the position of the failing item within a batch call, or -1
// for single-item calls. The owning document is marked failed; the chunk is
// skipped, never retried automatically.
type EmbeddingError struct {
	Modality   string
	BatchIndex int
	WantDim    int
	GotDim     int
	Err        error
}

func (e *EmbeddingError) Error() string {
	if e.WantDim != 0 && e.GotDim != 0 && e.WantDim != e.GotDim {
		return fmt.Sprintf("embedding %s: model returned dimension %d, index requires %d", e.Modality, e.GotDim, e.WantDim)
	}
	if e.BatchIndex >= 0 {
		return fmt.Sprintf("embedding %s: batch item %d: %v", e.Modality, e.BatchIndex, e.Err)
	}
	return fmt.Sprintf("embedding %s: %v", e.Modality, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexInconsistencyError reports a vector index hit whose chunk the
// authoritative store can no longer find. The candidate is dropped and the
// query continues with fewer results.
type IndexInconsistencyError struct {
	ChunkID string
}

func (e *IndexInconsistencyError) Error() string {
	return fmt.Sprintf("index references unknown chunk %s", e.ChunkID)
}

// GenerationTimeoutError reports that the external answer generation call
// exceeded its deadline. The caller may retry; no partial answer exists.
type GenerationTimeoutError struct {
	Timeout time.Duration
}

func (e *GenerationTimeoutError) Error() string {
	return fmt.Sprintf("answer generation exceeded %s", e.Timeout)
}

// ErrWrongDimension marks an attempt to insert a vector whose length does
// not match the index. This is a programming or model-contract error, never
// retryable.
var ErrWrongDimension = errors.New("vector dimension does not match index")

// Retryable reports whether the caller may meaningfully retry the operation
// that produced err.
func Retryable(err error) bool {
	var gt *GenerationTimeoutError
	if errors.As(err, &gt) {
		return true
	}
	var ee *EmbeddingError
	if errors.As(err, &ee) {
		// A dimension mismatch is a contract violation; retrying cannot fix it.
		return !ee.dimensionMismatch()
	}
	return false
}

func (e *EmbeddingError) dimensionMismatch() bool {
	return e.WantDim != 0 && e.GotDim != 0 && e.WantDim != e.GotDim
}
