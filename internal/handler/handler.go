package handler

import (
	"errors"
	"net/http"

	"task-service/internal/apperr"
	"task-service/internal/middleware"
	"task-service/internal/partition"
	"task-service/internal/tenant"
	"task-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var (
	manager  *partition.Manager
	resolver *tenant.Resolver
)

// Init wires the partition manager and tenant resolver into the handler
// package. Called once from main before routes are registered.
func Init(m *partition.Manager, r *tenant.Resolver) {
	manager = m
	resolver = r
}

// withPartition runs fn inside the partition context of the request's
// resolved tenant. The handler writes its response inside fn.
func withPartition(c echo.Context, fn func(pc *partition.Context) error) error {
	key, ok := c.Get(middleware.PartitionKeyKey).(string)
	if !ok {
		// Reaching a tenant-scoped handler without a resolved partition is a
		// routing bug; fail closed.
		logger.FromContext(c).Error("Tenant-scoped handler reached without partition context")
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	}
	err := manager.Run(c.Request().Context(), key, fn)
	if err != nil {
		return respondError(c, err)
	}
	return nil
}

// respondError maps taxonomy errors to HTTP outcomes. Object-level policy
// denials arrive here already folded into ErrNotFound by the services, so an
// unauthorized caller cannot confirm existence; ErrForbidden only surfaces
// from collection-level checks where nothing is being hidden.
func respondError(c echo.Context, err error) error {
	log := logger.FromContext(c)
	switch {
	case errors.Is(err, apperr.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	case errors.Is(err, apperr.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, apperr.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, apperr.ErrTenantNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "tenant not found"})
	case errors.Is(err, apperr.ErrContextAlreadyActive):
		// Invariant violation, never expected in a correct integration.
		log.Error("Partition context already active", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	default:
		if ve, ok := apperr.AsValidation(err); ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": ve.Fields})
		}
		log.Error("Unhandled error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
