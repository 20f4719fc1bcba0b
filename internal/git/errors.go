package git

import (
	"errors"
	"fmt"
)

// UpstreamFetchError reports a network or process failure while pulling raw history
// or auxiliary documents. It is fatal for the ingestion run.
type UpstreamFetchError struct {
	Op  string
	Err error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("upstream fetch failed (%s): %v", e.Op, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error {
	return e.Err
}

// NewUpstreamFetchError wraps err as an UpstreamFetchError for op.
func NewUpstreamFetchError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamFetchError{Op: op, Err: err}
}

// ErrFileNotFound reports that a path or the revision holding it does not exist.
// Sources wrap it so callers can tell a missing document from a read failure.
var ErrFileNotFound = errors.New("file not found")
