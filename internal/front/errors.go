package front

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/abernathy/patientfront/internal/credential"
	"github.com/abernathy/patientfront/internal/gateway"
	"github.com/abernathy/patientfront/internal/risk"
)

// failure renders err as an HTTP error whose message reads
// "<what>: <cause>". The cause text never contains a credential.
func failure(what string, err error) error {
	return echo.NewHTTPError(statusFor(err), fmt.Sprintf("%s: %v", what, err)).SetInternal(err)
}

func statusFor(err error) int {
	var remote *gateway.RemoteCallFailure
	var issuance *credential.IssuanceFailure

	switch {
	case errors.Is(err, credential.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &remote):
		switch remote.Status {
		case http.StatusNotFound, http.StatusBadRequest:
			return remote.Status
		}
		return http.StatusBadGateway
	case errors.As(err, &issuance):
		return http.StatusBadGateway
	}

	// A workflow stopped by the record itself, such as a missing birth date.
	var comp *risk.ComputationFailure
	if errors.As(err, &comp) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
