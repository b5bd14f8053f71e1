package ets

import (
	"errors"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// ErrSharedTable is returned when a mutating operation reaches a table
// constructed as shared.
var ErrSharedTable = errors.New("type table is shared and cannot be modified")

// LoadError aggregates the structural problems found while loading type
// extension data. Tolerant loads accumulate problems per fragment and keep
// going; strict callers receive the whole list at once.
type LoadError struct {
	Problems []string
}

func (e *LoadError) Error() string {
	switch len(e.Problems) {
	case 0:
		return "type data load failed"
	case 1:
		return "type data load: " + e.Problems[0]
	}
	return fmt.Sprintf("type data load: %d problems:\n  %s",
		len(e.Problems), strings.Join(e.Problems, "\n  "))
}

// newLoadError returns nil when there are no problems.
func newLoadError(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &LoadError{Problems: append([]string(nil), problems...)}
}

// ConversionError wraps any operational failure during string conversion
// or brokered member invocation, so callers have a single error type to
// catch regardless of which tier failed.
type ConversionError struct {
	Op    string
	Cause error
}

func (e *ConversionError) Error() string {
	if e.Cause == nil {
		return "conversion failed during " + e.Op
	}
	return "conversion failed during " + e.Op + ": " + e.Cause.Error()
}

func (e *ConversionError) Unwrap() error { return e.Cause }

func conversionError(op string, cause error) error {
	return &ConversionError{Op: op, Cause: cause}
}
