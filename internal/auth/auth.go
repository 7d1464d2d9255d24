// Package auth verifies the bearer credentials minted by the gateway.
// Token issuance lives elsewhere; services only share the HS256 secret.
package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned for missing, malformed, or invalid credentials.
var ErrUnauthorized = errors.New("unauthorized")

type userIDKey struct{}

// UserIDFromContext extracts the authenticated user id from the context.
// It returns an empty string when the request is unauthenticated.
func UserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithUserID stores the authenticated user id in the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

type tokenKey struct{}

// WithToken stores the raw bearer token in the context so outbound
// service-to-service calls can forward the caller's credential.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext extracts the raw bearer token from the context.
func TokenFromContext(ctx context.Context) string {
	if tok, ok := ctx.Value(tokenKey{}).(string); ok {
		return tok
	}
	return ""
}

// Verifier validates HS256 bearer tokens against the shared gateway secret
// and extracts the subject as the user identity.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given shared secret.
func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// VerifyBearer parses an Authorization header value and returns the token's
// subject. Any parse, signature, or claims failure maps to ErrUnauthorized;
// callers never leak the underlying reason to clients.
func (v *Verifier) VerifyBearer(header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", ErrUnauthorized
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return "", ErrUnauthorized
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrUnauthorized
	}
	return sub, nil
}
