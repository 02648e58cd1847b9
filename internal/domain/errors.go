package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInput is returned when the input file cannot be read or is not tabular.
var ErrInput = errors.New("unreadable input")

// SchemaError reports required columns absent from the input header.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return "missing required columns: " + strings.Join(e.Missing, ", ")
}

// RowError reports a row whose timestamp could not be parsed while the
// fail policy is active.
type RowError struct {
	Row   int // 1-based data row in the source file
	Field string
	Value string
	Err   error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}
