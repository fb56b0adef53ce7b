package middleware

import (
	"net/http"
	"strings"

	"task-service/internal/policy"
	"task-service/pkg/jwtutil"
	"task-service/pkg/logger"
	"task-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PrincipalKey is the echo context key holding the authenticated principal.
const PrincipalKey = "principal"

// AuthMiddleware validates the JWT token from the Authorization header and
// builds the request principal. A token issued for one partition is rejected
// on any other partition's host; a non-super token carries its partition key
// and must match the one TenantContext resolved.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		// Get the Authorization header
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			log.Error("Missing Authorization header")
			prometheus.RecordAuthError("missing_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing authorization token"})
		}

		// Check if it's a Bearer token
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			log.Error("Invalid Authorization header format")
			prometheus.RecordAuthError("invalid_auth_format")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid authorization format, expected Bearer token"})
		}

		// Validate the token
		claims, err := jwtutil.ValidateToken(parts[1])
		if err != nil {
			log.Error("Invalid JWT token", zap.Error(err))
			prometheus.RecordAuthError("invalid_token")
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
		}

		// A tenant token is only valid on the partition it was issued for.
		if key, ok := c.Get(PartitionKeyKey).(string); ok {
			if claims.PartitionKey != key {
				log.Warn("Token partition does not match request host",
					zap.String("token_partition", claims.PartitionKey),
					zap.String("host_partition", key))
				prometheus.RecordAuthError("partition_mismatch")
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
		}

		principal := &policy.Principal{
			UserID:        claims.UserID,
			Email:         claims.Email,
			Role:          claims.Role,
			TenantID:      claims.TenantID,
			PartitionKey:  claims.PartitionKey,
			Super:         claims.Super,
			Authenticated: true,
		}
		c.Set(PrincipalKey, principal)

		return next(c)
	}
}

// GetPrincipal returns the authenticated principal from the request context,
// or nil when authentication did not run.
func GetPrincipal(c echo.Context) *policy.Principal {
	p, _ := c.Get(PrincipalKey).(*policy.Principal)
	return p
}
