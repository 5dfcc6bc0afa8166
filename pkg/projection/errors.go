package projection

import (
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"
)

// Category classifies why an event was skipped.
type Category string

const (
	// MissingReference: the event refers to an entity that is not indexed.
	MissingReference Category = "missing_reference"
	// Malformed: the event data violates the expected shape.
	Malformed Category = "malformed_input"
	// NotFound: a mutation targets a record that must already exist.
	NotFound Category = "not_found"
	// Inconsistent: applying the event would break a ledger invariant.
	Inconsistent Category = "inconsistent_history"
)

// SkipError aborts the current event. Its writes are discarded, the event is
// still recorded as processed and the stream continues.
type SkipError struct {
	Category Category
	Reason   string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s: %s", e.Category, e.Reason)
}

// Level is the log level a skip is reported at.
func (e *SkipError) Level() zapcore.Level {
	if e.Category == NotFound || e.Category == Inconsistent {
		return zapcore.ErrorLevel
	}
	return zapcore.WarnLevel
}

// Skip builds a SkipError.
func Skip(cat Category, format string, args ...interface{}) error {
	return &SkipError{Category: cat, Reason: fmt.Sprintf(format, args...)}
}

// AsSkip unwraps a SkipError from err.
func AsSkip(err error) (*SkipError, bool) {
	var s *SkipError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}
