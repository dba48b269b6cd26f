package transit

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrCancelled is wrapped into the error returned when a load or
// conversion is aborted through its context. Operations observe the
// context at table and document boundaries only, so a cancelled call
// never leaves a partially built result visible to the caller.
var ErrCancelled = errors.New("cancelled")

// Cancelled wraps ctxErr as an ErrCancelled failure.
func Cancelled(ctxErr error) error {
	return fmt.Errorf("%w: %v", ErrCancelled, ctxErr)
}

// FeedFileMissingError reports a feed directory or archive lacking
// required tables, or missing entirely.
type FeedFileMissingError struct {
	Path    string
	Missing []string
}

func (e *FeedFileMissingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("feed at %s missing %s", e.Path, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("feed missing %s", strings.Join(e.Missing, ", "))
}

// ValidationError reports semantic invariant violations found by
// Feed.Validate. Errors are violations proper; warnings flag oddities
// that do not break referential integrity.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("feed validation failed with %d errors, %d warnings", len(e.Errors), len(e.Warnings))
}
