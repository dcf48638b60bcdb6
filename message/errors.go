package message

import (
	"errors"
	"fmt"
)

// ConversionError reports raw text that could not be turned into a wire message.
// It is never retried.
type ConversionError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// IsConversionError returns true if err is or wraps a *ConversionError.
func IsConversionError(err error) bool {
	var convErr *ConversionError
	return errors.As(err, &convErr)
}
