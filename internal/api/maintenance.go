package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/logger"
)

// initMaintenanceRoutes registers maintenance window endpoints. Every write
// invalidates the suppression cache for the affected device so the engine
// sees the change on its next tick.
func (c *Controller) initMaintenanceRoutes(g *echo.Group) {
	windows := g.Group("/maintenance")
	windows.GET("", c.ListMaintenanceWindows)
	windows.POST("", c.CreateMaintenanceWindow)
	windows.GET("/:id", c.GetMaintenanceWindow)
	windows.PUT("/:id", c.UpdateMaintenanceWindow)
	windows.DELETE("/:id", c.DeleteMaintenanceWindow)
}

// ListMaintenanceWindows returns maintenance windows, optionally filtered by
// device and upcoming status.
func (c *Controller) ListMaintenanceWindows(ctx echo.Context) error {
	device := ctx.QueryParam("device")
	upcomingOnly := ctx.QueryParam("upcoming") == "true"

	windows, err := c.maintenance.ListWindows(ctx.Request().Context(), device, upcomingOnly)
	if err != nil {
		return c.handleError(ctx, err, "Failed to list maintenance windows", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"windows": windows,
		"count":   len(windows),
	})
}

// GetMaintenanceWindow returns one maintenance window by ID.
func (c *Controller) GetMaintenanceWindow(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid window ID"})
	}

	window, err := c.maintenance.GetWindow(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrWindowNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Maintenance window not found"})
		}
		return c.handleError(ctx, err, "Failed to get maintenance window", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, window)
}

// CreateMaintenanceWindow schedules a new window.
func (c *Controller) CreateMaintenanceWindow(ctx echo.Context) error {
	var window entities.MaintenanceWindow
	if err := ctx.Bind(&window); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if msg := validateWindow(&window); msg != "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	window.ID = 0
	if window.Status == "" {
		window.Status = entities.MaintenanceScheduled
	}

	if err := c.maintenance.CreateWindow(ctx.Request().Context(), &window); err != nil {
		return c.handleError(ctx, err, "Failed to create maintenance window", http.StatusInternalServerError)
	}

	c.registry.Invalidate(window.DeviceName)
	c.logger.Info("maintenance window scheduled",
		logger.String("device", window.DeviceName),
		logger.Time("start", window.ScheduledStart),
		logger.Time("end", window.ScheduledEnd))

	return ctx.JSON(http.StatusCreated, window)
}

// UpdateMaintenanceWindow replaces a window. The cache is invalidated for
// both the old and new device in case the window moved.
func (c *Controller) UpdateMaintenanceWindow(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid window ID"})
	}

	reqCtx := ctx.Request().Context()
	existing, err := c.maintenance.GetWindow(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrWindowNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Maintenance window not found"})
		}
		return c.handleError(ctx, err, "Failed to get maintenance window", http.StatusInternalServerError)
	}

	var window entities.MaintenanceWindow
	if err := ctx.Bind(&window); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if msg := validateWindow(&window); msg != "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	window.ID = existing.ID
	window.CreatedAt = existing.CreatedAt
	if window.Status == "" {
		window.Status = existing.Status
	}

	if err := c.maintenance.UpdateWindow(reqCtx, &window); err != nil {
		return c.handleError(ctx, err, "Failed to update maintenance window", http.StatusInternalServerError)
	}

	c.registry.Invalidate(existing.DeviceName)
	if window.DeviceName != existing.DeviceName {
		c.registry.Invalidate(window.DeviceName)
	}

	return ctx.JSON(http.StatusOK, window)
}

// DeleteMaintenanceWindow removes a window.
func (c *Controller) DeleteMaintenanceWindow(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid window ID"})
	}

	reqCtx := ctx.Request().Context()
	existing, err := c.maintenance.GetWindow(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrWindowNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Maintenance window not found"})
		}
		return c.handleError(ctx, err, "Failed to get maintenance window", http.StatusInternalServerError)
	}

	if err := c.maintenance.DeleteWindow(reqCtx, id); err != nil {
		return c.handleError(ctx, err, "Failed to delete maintenance window", http.StatusInternalServerError)
	}

	c.registry.Invalidate(existing.DeviceName)
	return ctx.NoContent(http.StatusNoContent)
}

// validateWindow checks the fields a schedulable window must carry. Returns
// an empty string when valid.
func validateWindow(window *entities.MaintenanceWindow) string {
	if window.DeviceName == "" {
		return "Device name is required"
	}
	if window.ScheduledStart.IsZero() || window.ScheduledEnd.IsZero() {
		return "Scheduled start and end are required"
	}
	if !window.ScheduledEnd.After(window.ScheduledStart) {
		return "Scheduled end must be after start"
	}
	switch window.Status {
	case "", entities.MaintenanceScheduled, entities.MaintenanceInProgress,
		entities.MaintenanceCompleted, entities.MaintenanceCancelled:
	default:
		return "Invalid status"
	}
	return ""
}
