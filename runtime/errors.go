package runtime

import (
	"errors"
	"fmt"
)

// SendError is a transport-level failure while writing a message.
// It is reported, never retried.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("unable to send the message: %v", e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}

// IsSendError returns true if err is or wraps a *SendError.
func IsSendError(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr)
}

// UnexpectedError wraps a panic recovered at the controller boundary.
type UnexpectedError struct {
	Value any
	Stack []byte
}

func (e *UnexpectedError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

func (e *UnexpectedError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}
