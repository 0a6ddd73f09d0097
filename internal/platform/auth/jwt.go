package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	TokenJTIKey contextKey = "token_jti"
)

// Claims is the JWT payload issued on login. Every token carries a JTI so it
// can be revoked individually on logout.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// TokenIssuer signs and validates HMAC tokens for the API.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(secret []byte, issuer string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, issuer: issuer, ttl: ttl}
}

// Issue creates a signed token for the given user. The JTI is returned along
// with the token string so callers can track it for revocation.
func (t *TokenIssuer) Issue(userID uuid.UUID, role string) (token string, jti string, expiresAt time.Time, err error) {
	jti = uuid.NewString()
	expiresAt = time.Now().Add(t.ttl)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    t.issuer,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, jti, expiresAt, nil
}

// Parse validates a token string and returns its claims.
func (t *TokenIssuer) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(t.issuer),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// Middleware authenticates requests with a Bearer token. Tokens whose JTI is
// present in the revocation store are rejected even if otherwise valid.
func Middleware(issuer *TokenIssuer, revoked *TokenRevocationStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := issuer.Parse(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if revoked != nil && revoked.IsRevoked(claims.ID) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.Subject)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			ctx = context.WithValue(ctx, TokenJTIKey, claims.ID)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// UserIDFromContext returns the authenticated user id, or uuid.Nil when the
// request is unauthenticated.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	raw, _ := ctx.Value(UserIDKey).(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

func JTIFromContext(ctx context.Context) string {
	jti, _ := ctx.Value(TokenJTIKey).(string)
	return jti
}
