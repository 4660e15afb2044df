package mailer

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout means the configured send timeout elapsed. The provider may
	// or may not have accepted the message; callers must tolerate that.
	ErrTimeout = errors.New("email send timed out")

	// ErrTransport means the request never completed at the connection level.
	ErrTransport = errors.New("email transport failure")
)

// RejectedError is returned when the provider answered with a non-2xx status.
type RejectedError struct {
	StatusCode int
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("email provider rejected send (status %d)", e.StatusCode)
}
