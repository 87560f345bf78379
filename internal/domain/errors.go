package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRetrievalUnavailable signals that every probe search failed and the
// request cannot be answered. It is the only retrieval condition that aborts
// a request; callers should surface it as a retryable error.
var ErrRetrievalUnavailable = errors.New("retrieval unavailable")

// RetrievalUnavailableError carries enough context for the caller to retry:
// the collection that was searched and the probes that were attempted.
type RetrievalUnavailableError struct {
	Collection string
	Probes     []string
	LastErr    error
}

func (e *RetrievalUnavailableError) Error() string {
	return fmt.Sprintf("retrieval unavailable: collection=%q probes=[%s]: %v",
		e.Collection, strings.Join(e.Probes, ", "), e.LastErr)
}

func (e *RetrievalUnavailableError) Unwrap() error { return ErrRetrievalUnavailable }
