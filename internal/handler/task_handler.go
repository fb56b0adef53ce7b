package handler

import (
	"net/http"
	"strconv"
	"time"

	"task-service/internal/middleware"
	"task-service/internal/partition"
	"task-service/internal/service"
	"task-service/pkg/logger"
	"task-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ListTasks returns the tasks visible to the caller, with optional status,
// priority and assignee filters.
func ListTasks(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	prometheus.RecordTaskOperation("list")

	filters := service.TaskFilters{
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
	}
	if raw := c.QueryParam("assigned_to"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid assigned_to"})
		}
		uid := uint(id)
		filters.AssignedTo = &uid
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("query")(time.Now())
		tasks, err := service.ListTasks(pc, p, filters)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, tasks)
	})
}

// CreateTask creates a task with the caller as creator.
func CreateTask(c echo.Context) error {
	log := logger.FromContext(c)
	p := middleware.GetPrincipal(c)
	prometheus.RecordTaskOperation("create")

	var req service.TaskInput
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse task creation request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("insert")(time.Now())
		task, err := service.CreateTask(pc, p, req)
		if err != nil {
			return err
		}
		log.Info("Task created",
			zap.Uint("id", task.ID),
			zap.String("title", task.Title),
			zap.Uint("created_by", task.CreatedByID))
		return c.JSON(http.StatusCreated, task)
	})
}

// GetTask retrieves one task.
func GetTask(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	prometheus.RecordTaskOperation("read")

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task ID"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("query")(time.Now())
		task, err := service.GetTask(pc, p, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, task)
	})
}

// UpdateTask applies a partial update to a task.
func UpdateTask(c echo.Context) error {
	log := logger.FromContext(c)
	p := middleware.GetPrincipal(c)
	prometheus.RecordTaskOperation("update")

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task ID"})
	}

	var req service.TaskUpdate
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse task update request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("update")(time.Now())
		task, err := service.UpdateTask(pc, p, id, req)
		if err != nil {
			return err
		}
		log.Info("Task updated", zap.Uint("id", task.ID))
		return c.JSON(http.StatusOK, task)
	})
}

// DeleteTask deletes a task. Creator or admin only.
func DeleteTask(c echo.Context) error {
	log := logger.FromContext(c)
	p := middleware.GetPrincipal(c)
	prometheus.RecordTaskOperation("delete")

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task ID"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("delete")(time.Now())
		if err := service.DeleteTask(pc, p, id); err != nil {
			return err
		}
		log.Info("Task deleted", zap.Uint("id", id))
		return c.NoContent(http.StatusNoContent)
	})
}

// AddComment appends a comment to a task.
func AddComment(c echo.Context) error {
	log := logger.FromContext(c)
	p := middleware.GetPrincipal(c)
	prometheus.RecordTaskOperation("add_comment")

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task ID"})
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse comment request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("insert")(time.Now())
		comment, err := service.AddComment(pc, p, id, req.Content)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, comment)
	})
}

// ListComments returns a task's comments.
func ListComments(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	prometheus.RecordTaskOperation("list_comments")

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task ID"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("query")(time.Now())
		comments, err := service.ListComments(pc, p, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, comments)
	})
}

// AddAttachment records attachment metadata on a task.
func AddAttachment(c echo.Context) error {
	log := logger.FromContext(c)
	p := middleware.GetPrincipal(c)
	prometheus.RecordTaskOperation("add_attachment")

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task ID"})
	}

	var req service.AttachmentInput
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse attachment request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("insert")(time.Now())
		att, err := service.AddAttachment(pc, p, id, req)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, att)
	})
}

// ListAttachments returns a task's attachment records.
func ListAttachments(c echo.Context) error {
	p := middleware.GetPrincipal(c)
	prometheus.RecordTaskOperation("list_attachments")

	id, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid task ID"})
	}

	return withPartition(c, func(pc *partition.Context) error {
		defer prometheus.TrackDBOperation("query")(time.Now())
		atts, err := service.ListAttachments(pc, p, id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, atts)
	})
}

func pathID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
