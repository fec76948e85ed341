package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fleetwatch/fleetwatch/internal/alerting"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
)

// initAlertRoutes registers alert ledger endpoints.
func (c *Controller) initAlertRoutes(g *echo.Group) {
	alerts := g.Group("/alerts")
	alerts.GET("", c.ListAlerts)
	alerts.GET("/:id", c.GetAlert)
	alerts.POST("/:id/acknowledge", c.AcknowledgeAlert)
	alerts.POST("/:id/resolve", c.ResolveAlert)

	g.GET("/stats", c.GetStatistics)
}

// ListAlerts returns paginated alert instances, newest first.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	filter := repository.AlertInstanceFilter{
		DeviceName: ctx.QueryParam("device"),
		Status:     ctx.QueryParam("status"),
		Severity:   ctx.QueryParam("severity"),
		Limit:      defaultAlertLimit,
	}

	if sinceParam := ctx.QueryParam("since"); sinceParam != "" {
		t, err := time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid since timestamp, want RFC3339"})
		}
		filter.Since = &t
	}
	if untilParam := ctx.QueryParam("until"); untilParam != "" {
		t, err := time.Parse(time.RFC3339, untilParam)
		if err != nil {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid until timestamp, want RFC3339"})
		}
		filter.Until = &t
	}
	if limitParam := ctx.QueryParam("limit"); limitParam != "" {
		v, err := strconv.Atoi(limitParam)
		if err == nil && v > 0 {
			filter.Limit = min(v, maxAlertLimit)
		}
	}
	if offsetParam := ctx.QueryParam("offset"); offsetParam != "" {
		v, err := strconv.Atoi(offsetParam)
		if err == nil && v >= 0 {
			filter.Offset = v
		}
	}

	instances, total, err := c.alerts.ListInstances(ctx.Request().Context(), filter)
	if err != nil {
		return c.handleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": instances,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// GetAlert returns one alert instance with its notification attempts.
func (c *Controller) GetAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert ID"})
	}

	reqCtx := ctx.Request().Context()
	instance, err := c.alerts.GetInstance(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertInstanceNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
		}
		return c.handleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}

	attempts, err := c.alerts.ListAttempts(reqCtx, id)
	if err != nil {
		return c.handleError(ctx, err, "Failed to list notification attempts", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alert":    instance,
		"attempts": attempts,
	})
}

// AcknowledgeAlert marks a triggered alert as seen by an operator.
func (c *Controller) AcknowledgeAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert ID"})
	}

	var body struct {
		User  string `json:"user"`
		Notes string `json:"notes"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if body.User == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "User is required"})
	}

	err = c.engine.Acknowledge(ctx.Request().Context(), id, body.User, body.Notes)
	switch {
	case errors.Is(err, repository.ErrAlertInstanceNotFound):
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
	case errors.Is(err, alerting.ErrInvalidTransition):
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "Only triggered alerts can be acknowledged"})
	case err != nil:
		return c.handleError(ctx, err, "Failed to acknowledge alert", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "status": "acknowledged"})
}

// ResolveAlert resolves a triggered or acknowledged alert.
func (c *Controller) ResolveAlert(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid alert ID"})
	}

	var body struct {
		User  string `json:"user"`
		Notes string `json:"notes"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if body.User == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "User is required"})
	}

	err = c.engine.Resolve(ctx.Request().Context(), id, body.User, body.Notes)
	switch {
	case errors.Is(err, repository.ErrAlertInstanceNotFound):
		return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert not found"})
	case errors.Is(err, alerting.ErrInvalidTransition):
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "Alert is not active"})
	case err != nil:
		return c.handleError(ctx, err, "Failed to resolve alert", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "status": "resolved"})
}

// GetStatistics aggregates the alert ledger over a trailing window of days.
func (c *Controller) GetStatistics(ctx echo.Context) error {
	windowDays := 0
	if daysParam := ctx.QueryParam("window_days"); daysParam != "" {
		v, err := strconv.Atoi(daysParam)
		if err != nil || v <= 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid window_days"})
		}
		windowDays = v
	}

	stats, err := c.engine.Statistics(ctx.Request().Context(), windowDays)
	if err != nil {
		return c.handleError(ctx, err, "Failed to compute statistics", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, stats)
}
