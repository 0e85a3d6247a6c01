package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthenticated is returned when a token is missing, malformed, expired
// or signed with the wrong key.
var ErrUnauthenticated = errors.New("identity: unauthenticated")

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
}

// Resolver maps an access token to the user it was issued to. Account
// operations only ever see the resulting user id.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Principal, error)
}

// Claims are the access-token claims. Subject carries the decimal user id.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenResolver validates HS256 access tokens signed with a shared secret.
type TokenResolver struct {
	secret []byte
	now    func() time.Time
}

// NewTokenResolver builds a resolver for tokens signed with secret.
func NewTokenResolver(secret string) *TokenResolver {
	return &TokenResolver{secret: []byte(secret), now: time.Now}
}

// Resolve verifies token and returns its principal.
func (r *TokenResolver) Resolve(_ context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(r.now))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, ErrUnauthenticated
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Principal{}, fmt.Errorf("%w: invalid subject %q", ErrUnauthenticated, claims.Subject)
	}
	return Principal{UserID: userID}, nil
}

// Issue signs an access token for userID valid for ttl. The service does not
// issue tokens itself; this is used by tests and local tooling.
func (r *TokenResolver) Issue(userID int64, ttl time.Duration) (string, error) {
	now := r.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
}
