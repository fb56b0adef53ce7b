package handler

import (
	"net/http"
	"time"

	"task-service/internal/middleware"
	"task-service/internal/model"
	"task-service/internal/service"
	"task-service/pkg/logger"
	"task-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// sharedOnly guards tenant-administration handlers: they operate on the
// shared partition and are reachable only through the public host.
func sharedOnly(c echo.Context) bool {
	shared, _ := c.Get(middleware.SharedKey).(bool)
	return shared
}

// CreateTenant provisions a tenant together with its primary domain in one
// transaction.
func CreateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	p := middleware.GetPrincipal(c)
	prometheus.RecordTenantOperation("create")

	if !sharedOnly(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	var req service.TenantInput
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse tenant creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	t, err := service.CreateTenant(manager.Shared(c.Request().Context()), p, req)
	if err != nil {
		return respondError(c, err)
	}

	// Drop any stale mapping for the hostname; a fresh lookup will see the
	// new domain.
	resolver.Invalidate(req.Domain)

	log.Info("Tenant created",
		zap.String("name", t.Name),
		zap.String("partition_key", t.PartitionKey),
		zap.Uint("id", t.ID))

	var count int64
	if err := manager.Shared(c.Request().Context()).Model(&model.Tenant{}).Where("active = ?", true).Count(&count).Error; err == nil {
		prometheus.UpdateActiveTenants(int(count))
	}

	return c.JSON(http.StatusCreated, t)
}

// ListTenants returns all tenants. Super principal only.
func ListTenants(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	prometheus.RecordTenantOperation("list")

	if !sharedOnly(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	tenants, err := service.ListTenants(manager.Shared(c.Request().Context()), p)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, tenants)
}

// GetTenant retrieves one tenant record.
func GetTenant(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	prometheus.RecordTenantOperation("access")

	if !sharedOnly(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	t, err := service.GetTenant(manager.Shared(c.Request().Context()), p, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// AddDomain binds an additional hostname to a tenant.
func AddDomain(c echo.Context) error {
	log := logger.FromContext(c)
	p := middleware.GetPrincipal(c)
	prometheus.RecordTenantOperation("add_domain")

	if !sharedOnly(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	var req struct {
		Domain string `json:"domain"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse domain request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	dom, err := service.AddDomain(manager.Shared(c.Request().Context()), p, id, req.Domain)
	if err != nil {
		return respondError(c, err)
	}

	resolver.Invalidate(dom.Hostname)

	log.Info("Domain added",
		zap.String("hostname", dom.Hostname),
		zap.Uint("tenant_id", dom.TenantID))
	return c.JSON(http.StatusCreated, dom)
}

// DeactivateTenant marks a tenant inactive; its hosts stop resolving.
func DeactivateTenant(c echo.Context) error {
	log := logger.FromContext(c)
	p := middleware.GetPrincipal(c)
	prometheus.RecordTenantOperation("deactivate")

	if !sharedOnly(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tenant ID"})
	}

	defer prometheus.TrackDBOperation("update")(time.Now())

	t, err := service.DeactivateTenant(manager.Shared(c.Request().Context()), p, id)
	if err != nil {
		return respondError(c, err)
	}

	// The resolver may hold mappings for any of the tenant's hostnames.
	resolver.Flush()

	log.Info("Tenant deactivated", zap.Uint("id", t.ID), zap.String("partition_key", t.PartitionKey))
	return c.JSON(http.StatusOK, t)
}
