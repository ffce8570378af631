package translator

import "fmt"

// TranslationError is the only error type crossing the package
// boundary. It wraps the underlying inference failure; for chunked
// requests it records which chunk failed (1-based) out of how many.
type TranslationError struct {
	ChunkIndex int // 0 when the request was not chunked
	ChunkCount int
	Cause      error
}

func (e *TranslationError) Error() string {
	if e.ChunkCount > 0 {
		return fmt.Sprintf("translation failed on chunk %d/%d: %v", e.ChunkIndex, e.ChunkCount, e.Cause)
	}
	return fmt.Sprintf("translation failed: %v", e.Cause)
}

func (e *TranslationError) Unwrap() error {
	return e.Cause
}
