package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	authpkg "github.com/octobees/leads-enrichment/api/internal/auth"
)

// JWT validates bearer tokens and stores the member and organization in the request context.
func JWT(manager *authpkg.JWTManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing authorization header"})
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid authorization header"})
			}

			claims, err := manager.ParseToken(strings.TrimSpace(parts[1]))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}
			orgID, err := claims.Org()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			c.Set(ContextKeyOrgID, orgID)
			c.Set(ContextKeyMemberID, claims.Subject)
			c.Set(ContextKeyMemberEmail, claims.Email)
			c.Set(ContextKeyMemberRole, claims.Role)

			return next(c)
		}
	}
}

// RequireOrg rejects requests that reached a handler without an organization.
func RequireOrg() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if _, ok := OrgIDFromContext(c); !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "missing organization"})
			}
			return next(c)
		}
	}
}
