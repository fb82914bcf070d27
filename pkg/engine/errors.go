package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCancelled is wrapped by the error of a run stopped by its caller or its run timeout.
var ErrCancelled = errors.New("execution cancelled")

// StalledExecutionError reports blocks left unresolved with nothing running.
// Validation rules this out; seeing it means an engine bug.
type StalledExecutionError struct {
	BlockIDs []string
}

func (e *StalledExecutionError) Error() string {
	return "execution stalled with unresolved blocks: " + strings.Join(e.BlockIDs, ", ")
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
