package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	apierr "github.com/opst/somigrate/pkg/api/types/errors"
)

var ErrInvalidToken error = errors.New("invalid token")

const issuer = "somigrate"

// Claims of tokens to apply migrations.
type Claims struct {
	jwt.RegisteredClaims
}

// NewToken signs a HS256 JWS for the subject. Each token has a unique ID (jti).
//
// # Args
//
// - key: signing key
//
// - subject: who applies migrations
//
// - ttl: lifetime of the token. Zero or negative means no expiration.
//
// # Returns
//
// - string: JWS token string
//
// - error: from [jwt.Token.SignedString]
func NewToken(key []byte, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if 0 < ttl {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(key)
}

// Verify verifies a token and returns its claims.
//
// # Returns
//
// - *Claims: claims of the token
//
// - error: ErrInvalidToken joined with the cause from [jwt.ParseWithClaims]
func Verify(key []byte, token string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		token, claims,
		func(*jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return claims, nil
}

const claimsKey = "somigrate.auth.claims"

// Middleware requires a valid bearer token.
//
// Verified claims can be taken with ClaimsOf.
func Middleware(key []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header.Get("Authorization")
			token, ok := strings.CutPrefix(h, "Bearer ")
			if !ok || token == "" {
				return apierr.NewErrorMessage(
					http.StatusUnauthorized, "unauthorized",
					apierr.WithAdvice("set a bearer token in Authorization header."),
				)
			}
			claims, err := Verify(key, token)
			if err != nil {
				return apierr.NewErrorMessage(
					http.StatusUnauthorized, "unauthorized",
					apierr.WithAdvice("the token is invalid or expired. issue new one."),
					apierr.WithError(err),
				)
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// ClaimsOf returns claims verified by Middleware.
func ClaimsOf(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(claimsKey).(*Claims)
	return claims, ok
}
