package gateway

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned, before any network call, when a request
// is missing something it needs.
var ErrInvalidArgument = errors.New("invalid argument")

// RemoteCallFailure reports a failed gateway call. Status is 0 when the
// gateway could not be reached or the response could not be decoded.
type RemoteCallFailure struct {
	Operation string
	Status    int
	Err       error
}

func (e *RemoteCallFailure) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s failed with status %d: %v", e.Operation, e.Status, e.Err)
	default:
		return fmt.Sprintf("%s failed with status %d", e.Operation, e.Status)
	}
}

func (e *RemoteCallFailure) Unwrap() error {
	return e.Err
}
