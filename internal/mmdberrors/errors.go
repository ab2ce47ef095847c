// Package mmdberrors defines the error types returned while decoding a
// MaxMind DB file.
package mmdberrors

import "fmt"

// InvalidDatabaseError is returned when the database contains invalid data
// and cannot be parsed.
type InvalidDatabaseError struct {
	message string
}

// NewOffsetError returns an InvalidDatabaseError for reads past the end of
// the database buffer.
func NewOffsetError() InvalidDatabaseError {
	return InvalidDatabaseError{"unexpected end of database"}
}

// NewInvalidDatabaseError returns an InvalidDatabaseError with the given
// formatted message.
func NewInvalidDatabaseError(format string, args ...any) InvalidDatabaseError {
	return InvalidDatabaseError{fmt.Sprintf(format, args...)}
}

func (e InvalidDatabaseError) Error() string {
	return e.message
}

// DepthExceededError is returned when a pointer chain or container nesting
// exceeds the decoder's depth ceiling. It usually indicates a pointer cycle
// in a corrupt or hostile database.
type DepthExceededError struct {
	Depth int
}

func (e DepthExceededError) Error() string {
	return fmt.Sprintf(
		"exceeded maximum data structure depth (%d); the database is cyclic or corrupt",
		e.Depth,
	)
}
