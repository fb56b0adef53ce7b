package middleware

import (
	"errors"
	"net/http"

	"task-service/internal/apperr"
	"task-service/internal/tenant"
	"task-service/pkg/logger"
	"task-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Context keys set by TenantContext for downstream middleware and handlers.
const (
	PartitionKeyKey = "partition_key"
	SharedKey       = "shared_partition"
)

// TenantContext resolves the request host to a tenant partition key and
// stores it in the request context. Requests to the configured public host
// are flagged as shared-partition requests instead. Any other host that
// resolves to no domain is rejected outright; there is no fallback
// partition.
func TenantContext(resolver *tenant.Resolver, publicHost string) echo.MiddlewareFunc {
	publicHost = tenant.NormalizeHost(publicHost)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.FromContext(c)
			host := tenant.NormalizeHost(c.Request().Host)

			if host != "" && host == publicHost {
				c.Set(SharedKey, true)
				return next(c)
			}

			key, err := resolver.Resolve(c.Request().Context(), host)
			if err != nil {
				if errors.Is(err, apperr.ErrTenantNotFound) {
					log.Warn("No tenant for request host", zap.String("host", host))
					prometheus.RecordTenantResolution("miss")
					return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
				}
				log.Error("Tenant resolution failed", zap.String("host", host), zap.Error(err))
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "tenant resolution failed"})
			}

			prometheus.RecordTenantResolution("hit")
			c.Set(PartitionKeyKey, key)
			return next(c)
		}
	}
}
