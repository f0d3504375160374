package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// UserHeader carries the caller's user id when no JWT secret is configured.
const UserHeader = "X-User-ID"

const bearerPrefix = "Bearer "

type userKey struct{}

// WithUserID returns a copy of ctx carrying the authenticated user id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserIDFrom returns the authenticated user id stored in ctx.
func UserIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

// authenticator resolves the calling user from a request.
type authenticator struct {
	secret []byte
}

func newAuthenticator(secret []byte) *authenticator {
	return &authenticator{secret: secret}
}

// userID validates an HS256 bearer token and returns its subject. A nil
// authenticator trusts the X-User-ID header.
func (a *authenticator) userID(r *http.Request) (string, error) {
	if a == nil {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			return "", errors.New("missing " + UserHeader + " header")
		}
		return id, nil
	}

	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", errors.New("missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", errors.New("token has no subject")
	}
	return claims.Subject, nil
}
