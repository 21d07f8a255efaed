package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const operatorScope = "reminders:trigger"

// OperatorClaims authorize a caller to run reminder scans.
type OperatorClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// GenerateOperatorToken signs an HS256 token for the trigger endpoint.
func GenerateOperatorToken(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("trigger secret is not configured")
	}
	now := time.Now()
	claims := OperatorClaims{
		Scope: operatorScope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// OperatorJWT requires a bearer token signed with secret and carrying the
// trigger scope. An empty secret leaves the route open.
func OperatorJWT(secret string) echo.MiddlewareFunc {
	if secret == "" {
		slog.Warn("TRIGGER_JWT_SECRET not set, trigger endpoint is unauthenticated")
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "Authorization header is required"})
			}

			tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
			if !found || tokenString == "" {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "Invalid token format"})
			}

			claims := &OperatorClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Scope != operatorScope {
				return c.JSON(http.StatusUnauthorized, map[string]interface{}{"ok": false, "error": "Invalid token"})
			}

			c.Set("operator", claims.Subject)
			return next(c)
		}
	}
}
