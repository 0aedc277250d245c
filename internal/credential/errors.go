package credential

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated is returned by Acquire when no authenticated identity
// is available.
var ErrUnauthenticated = errors.New("no authenticated identity to acquire a credential for")

// IssuanceFailure reports that the issuing endpoint was unreachable or
// rejected the request. Status is 0 when no response was received.
type IssuanceFailure struct {
	Status int
	Err    error
}

func (e *IssuanceFailure) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("credential issuance failed: %v", e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("credential issuance failed: status %d", e.Status)
	}
	return fmt.Sprintf("credential issuance failed: status %d: %v", e.Status, e.Err)
}

func (e *IssuanceFailure) Unwrap() error {
	return e.Err
}
