package auth

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/abernathy/patientfront/internal/credential"
	"github.com/abernathy/patientfront/internal/identity"
)

type contextKey string

const IdentityKey contextKey = "identity"

// Authenticator checks a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*credential.Identity, error)
}

// SessionMiddleware authenticates each request with HTTP Basic credentials
// against the application user store and puts the resulting Identity on the
// request context. Requests for which skipper returns true pass through
// without an identity.
func SessionMiddleware(a Authenticator, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	if skipper == nil {
		skipper = echomw.DefaultSkipper
	}
	return echomw.BasicAuthWithConfig(echomw.BasicAuthConfig{
		Skipper: skipper,
		Realm:   "patientfront",
		Validator: func(username, password string, c echo.Context) (bool, error) {
			id, err := a.Authenticate(c.Request().Context(), username, password)
			if errors.Is(err, identity.ErrInvalidCredentials) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
			return true, nil
		},
	})
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *credential.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// IdentityFromContext returns the authenticated identity, or nil.
func IdentityFromContext(ctx context.Context) *credential.Identity {
	id, _ := ctx.Value(IdentityKey).(*credential.Identity)
	return id
}

// UsernameFromContext returns the authenticated username, or "".
func UsernameFromContext(ctx context.Context) string {
	if id := IdentityFromContext(ctx); id != nil {
		return id.Username
	}
	return ""
}
