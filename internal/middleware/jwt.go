package middleware // reusable HTTP middleware for the API

import (
	"net/http" // HTTP status codes for responses
	"strings"  // prefix checking and trimming

	"github.com/golang-jwt/jwt/v5" // JWT parsing and validation
	"github.com/labstack/echo/v4"  // Echo framework middleware types
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the identity claims into the request context. Handlers read
// them via c.Get("user_id"), c.Get("role"), c.Get("sector_id") and, for
// stage/unit accounts, c.Get("stage_id") / c.Get("unit_id"). The provided
// secret must match the one used when issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			// Parse with HS256 only; any other signing method is rejected.
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			// Copy the identity claims into the context as plain strings so
			// handlers do not need to touch the JWT library.
			for ctxKey, claimKey := range map[string]string{
				"user_id":   "sub",
				"role":      "role",
				"email":     "email",
				"sector_id": "sector_id",
				"stage_id":  "stage_id",
				"unit_id":   "unit_id",
			} {
				if v, ok := claims[claimKey].(string); ok {
					c.Set(ctxKey, v)
				}
			}
			return next(c)
		}
	}
}
