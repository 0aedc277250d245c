package credential

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClockSkew is the tolerance applied to the expiry check to absorb clock
// drift between this process and the issuer.
const ClockSkew = 60 * time.Second

// Claims are the claims the issuer embeds in a credential.
type Claims struct {
	jwt.RegisteredClaims
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Validator decides whether a cached credential can still be used.
type Validator interface {
	IsValid(c Credential) bool
}

// HMACValidator verifies credentials signed with a shared symmetric key.
type HMACValidator struct {
	key []byte
	now func() time.Time
}

// NewHMACValidator creates a validator for the given raw key.
func NewHMACValidator(key []byte) *HMACValidator {
	return &HMACValidator{key: key, now: time.Now}
}

// NewHMACValidatorFromBase64 decodes a base64 encoded shared secret, the
// format the issuing service is configured with.
func NewHMACValidatorFromBase64(secret string) (*HMACValidator, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("signing secret is empty")
	}
	return NewHMACValidator(key), nil
}

// IsValid never fails loudly: malformed, badly signed, expired or empty
// credentials are simply invalid.
func (v *HMACValidator) IsValid(c Credential) bool {
	_, ok := v.Claims(c)
	return ok
}

// Claims returns the decoded claims of a valid credential.
func (v *HMACValidator) Claims(c Credential) (*Claims, bool) {
	if c.IsZero() {
		return nil, false
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(string(c), claims, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(ClockSkew),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}
