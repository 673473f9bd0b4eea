package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator turns a bearer token into a Caller with scopes and roles.
// Tokens are HS256-signed JWTs with a shared secret; the scope claim may be
// a space-separated "scope" string (OAuth2 style) or an "scp" array, and
// roles come from a "roles" array.
type TokenValidator struct {
	secret   []byte
	issuer   string // optional; checked only when set
	audience string // optional; checked only when set
}

// NewTokenValidator creates a validator for HS256 tokens signed with secret.
func NewTokenValidator(secret []byte, issuer, audience string) *TokenValidator {
	return &TokenValidator{secret: secret, issuer: issuer, audience: audience}
}

// Validate parses and verifies the token and extracts the caller identity.
func (v *TokenValidator) Validate(tokenString string) (*Caller, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	caller := &Caller{}
	if sub, err := claims.GetSubject(); err == nil {
		caller.Subject = sub
	}
	caller.Scopes = extractScopes(claims)
	caller.Roles = extractStrings(claims["roles"])
	return caller, nil
}

// BearerFromHeader strips the Bearer prefix from an Authorization header
// value; it returns "" when the header does not carry a bearer token.
func BearerFromHeader(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func extractScopes(claims jwt.MapClaims) []string {
	if s, ok := claims["scope"].(string); ok && s != "" {
		return strings.Fields(s)
	}
	return extractStrings(claims["scp"])
}

func extractStrings(v interface{}) []string {
	switch vals := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return vals
	case string:
		if vals == "" {
			return nil
		}
		return strings.Fields(vals)
	default:
		return nil
	}
}
