package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers bad or unknown field ids and missing tenant key
	// components. Never retried.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound means no index or document exists for the tenant; the caller
	// is expected to ingest first.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by create-mode ingestion when passages already
	// exist for the file id.
	ErrConflict = errors.New("already exists")
	// ErrNoContent is returned when an ingested document yields no text.
	ErrNoContent = errors.New("no content")
	// ErrProvider marks a failed embedding, rerank, LLM or index call. The
	// engine performs no automatic retry of completions; retry is the caller's
	// cost decision.
	ErrProvider = errors.New("provider failure")
	// ErrTemporary marks failures worth retrying at the caller (circuit open,
	// transient transport errors).
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
