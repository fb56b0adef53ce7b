package handler

import (
	"net/http"
	"time"

	"task-service/internal/middleware"
	"task-service/internal/partition"
	"task-service/internal/service"
	"task-service/pkg/logger"
	"task-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListUsers returns the users visible to the caller within their partition.
func ListUsers(c echo.Context) error {
	p := middleware.GetPrincipal(c)

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("query")(time.Now())
		users, err := service.ListUsers(pc, p)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, users)
	})
}

// GetUser retrieves one user within the caller's visible scope.
func GetUser(c echo.Context) error {
	p := middleware.GetPrincipal(c)

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("query")(time.Now())
		user, err := service.GetUser(pc, p, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, user)
	})
}

// UpdateUser applies a partial update to a user record.
func UpdateUser(c echo.Context) error {
	log := logger.FromContext(c)
	p := middleware.GetPrincipal(c)

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user ID"})
	}

	var req service.UserUpdate
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse user update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("update")(time.Now())
		user, err := service.UpdateUser(pc, p, id, req)
		if err != nil {
			return err
		}
		log.Info("User updated", zap.Uint("id", user.ID))
		return c.JSON(http.StatusOK, user)
	})
}

// Me returns the caller's own user record.
func Me(c echo.Context) error {
	p := middleware.GetPrincipal(c)

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("query")(time.Now())
		user, err := service.Me(pc, p)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, user)
	})
}
