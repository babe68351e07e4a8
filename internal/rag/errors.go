package rag

import (
	"errors"
	"fmt"
)

// DimensionMismatchError reports an embedding whose length disagrees with
// the configured index dimension. It signals index/model misconfiguration
// and is fatal to an indexing run.
type DimensionMismatchError struct {
	// Want is the configured dimension.
	Want int
	// Got is the length of the offending vector.
	Got int
	// Index is the position of the vector within its batch.
	Index int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("rag: embedding dimension mismatch: vector %d has %d dimensions, index expects %d",
		e.Index, e.Got, e.Want)
}

// CheckDimensions returns a *DimensionMismatchError for the first vector
// whose length is not want. want <= 0 disables the check.
func CheckDimensions(vectors [][]float32, want int) error {
	if want <= 0 {
		return nil
	}
	for i, v := range vectors {
		if len(v) != want {
			return &DimensionMismatchError{Want: want, Got: len(v), Index: i}
		}
	}
	return nil
}

// IsDimensionMismatch reports whether err wraps a DimensionMismatchError.
func IsDimensionMismatch(err error) bool {
	var dm *DimensionMismatchError
	return errors.As(err, &dm)
}

// ServiceError wraps a failed call to an external collaborator (embedding
// service, vector store, chat model).
type ServiceError struct {
	// Service names the collaborator, e.g. "qdrant" or "embedder".
	Service string
	// Op is the failed operation, e.g. "upsert".
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Service, e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
