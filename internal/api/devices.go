package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/logger"
)

const (
	defaultUptimeHours   = 24
	defaultStatsDays     = 7
	defaultSLATargetPct  = 95.0
	maxReportWindowHours = 24 * 90
)

// initDeviceRoutes registers device, group, and downtime report endpoints.
func (c *Controller) initDeviceRoutes(g *echo.Group) {
	devices := g.Group("/devices")
	devices.GET("", c.ListDevices)
	devices.POST("", c.CreateDevice)
	devices.PUT("/:id", c.UpdateDevice)
	devices.DELETE("/:id", c.DeleteDevice)
	devices.GET("/:name/downtime", c.ListDowntime)
	devices.GET("/:name/downtime/stats", c.GetDowntimeStats)
	devices.GET("/:name/uptime", c.GetUptime)

	groups := g.Group("/groups")
	groups.GET("", c.ListGroups)
	groups.POST("", c.CreateGroup)
	groups.DELETE("/:id", c.DeleteGroup)
	groups.GET("/:id/members", c.GetGroupMembers)

	g.GET("/sla", c.GetSLACompliance)
}

// ListDevices returns all devices.
func (c *Controller) ListDevices(ctx echo.Context) error {
	devices, err := c.devices.ListDevices(ctx.Request().Context())
	if err != nil {
		return c.handleError(ctx, err, "Failed to list devices", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"devices": devices,
		"count":   len(devices),
	})
}

// CreateDevice registers a new device.
func (c *Controller) CreateDevice(ctx echo.Context) error {
	var device entities.Device
	if err := ctx.Bind(&device); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if device.Name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Device name is required"})
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.devices.GetDevice(reqCtx, device.Name); err == nil {
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "A device with this name already exists"})
	} else if !errors.Is(err, repository.ErrDeviceNotFound) {
		return c.handleError(ctx, err, "Failed to create device", http.StatusInternalServerError)
	}

	device.ID = 0
	if err := c.devices.CreateDevice(reqCtx, &device); err != nil {
		return c.handleError(ctx, err, "Failed to create device", http.StatusInternalServerError)
	}

	c.logger.Info("device created", logger.String("name", device.Name))
	return ctx.JSON(http.StatusCreated, device)
}

// UpdateDevice replaces a device's metadata.
func (c *Controller) UpdateDevice(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid device ID"})
	}

	var device entities.Device
	if err := ctx.Bind(&device); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if device.Name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Device name is required"})
	}

	device.ID = id
	if err := c.devices.UpdateDevice(ctx.Request().Context(), &device); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Device not found"})
		}
		return c.handleError(ctx, err, "Failed to update device", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, device)
}

// DeleteDevice removes a device. Its downtime history is retained.
func (c *Controller) DeleteDevice(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid device ID"})
	}

	if err := c.devices.DeleteDevice(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrDeviceNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Device not found"})
		}
		return c.handleError(ctx, err, "Failed to delete device", http.StatusInternalServerError)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// ListGroups returns all device groups with members preloaded.
func (c *Controller) ListGroups(ctx echo.Context) error {
	groups, err := c.devices.ListGroups(ctx.Request().Context())
	if err != nil {
		return c.handleError(ctx, err, "Failed to list groups", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

// CreateGroup creates a device group, optionally with initial members.
func (c *Controller) CreateGroup(ctx echo.Context) error {
	var group entities.DeviceGroup
	if err := ctx.Bind(&group); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if group.Name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Group name is required"})
	}

	group.ID = 0
	if err := c.devices.CreateGroup(ctx.Request().Context(), &group); err != nil {
		return c.handleError(ctx, err, "Failed to create group", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusCreated, group)
}

// DeleteGroup removes a group and its memberships. Rules scoped to the group
// resolve to zero devices afterwards and follow the scope policy.
func (c *Controller) DeleteGroup(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid group ID"})
	}

	if err := c.devices.DeleteGroup(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Group not found"})
		}
		return c.handleError(ctx, err, "Failed to delete group", http.StatusInternalServerError)
	}

	return ctx.NoContent(http.StatusNoContent)
}

// GetGroupMembers returns the device names in a group.
func (c *Controller) GetGroupMembers(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid group ID"})
	}

	members, err := c.devices.GroupMembers(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrGroupNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Group not found"})
		}
		return c.handleError(ctx, err, "Failed to list group members", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"group_id": id,
		"members":  members,
	})
}

// ListDowntime returns downtime intervals overlapping [since, until] for a
// device. Defaults to the trailing 24 hours.
func (c *Controller) ListDowntime(ctx echo.Context) error {
	name := ctx.Param("name")
	now := time.Now()
	since, until, err := reportWindow(ctx, now)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	intervals, err := c.downtimes.ListOverlapping(ctx.Request().Context(), name, since, until)
	if err != nil {
		return c.handleError(ctx, err, "Failed to list downtime intervals", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"device":    name,
		"since":     since,
		"until":     until,
		"intervals": intervals,
		"count":     len(intervals),
	})
}

// GetDowntimeStats aggregates closed downtime intervals over a trailing
// window of days.
func (c *Controller) GetDowntimeStats(ctx echo.Context) error {
	name := ctx.Param("name")
	days := defaultStatsDays
	if daysParam := ctx.QueryParam("window_days"); daysParam != "" {
		v, err := strconv.Atoi(daysParam)
		if err != nil || v <= 0 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid window_days"})
		}
		days = v
	}

	since := time.Now().AddDate(0, 0, -days)
	stats, err := c.downtimes.DeviceStats(ctx.Request().Context(), name, since)
	if err != nil {
		return c.handleError(ctx, err, "Failed to compute downtime stats", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, stats)
}

// GetUptime returns the uptime percentage for a device over a trailing
// window of hours.
func (c *Controller) GetUptime(ctx echo.Context) error {
	name := ctx.Param("name")
	hours, err := windowHours(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	now := time.Now()
	start := now.Add(-time.Duration(hours) * time.Hour)
	pct, err := c.calculator.UptimePercentage(ctx.Request().Context(), name, start, now, now)
	if err != nil {
		if errors.Is(err, repository.ErrNoData) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "No availability data for device"})
		}
		return c.handleError(ctx, err, "Failed to compute uptime", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"device":         name,
		"window_hours":   hours,
		"uptime_percent": pct,
	})
}

// GetSLACompliance lists uptime for every enabled device against a target
// percentage. Devices without data yet are reported with a null percentage.
func (c *Controller) GetSLACompliance(ctx echo.Context) error {
	hours, err := windowHours(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	target := defaultSLATargetPct
	if targetParam := ctx.QueryParam("target"); targetParam != "" {
		v, err := strconv.ParseFloat(targetParam, 64)
		if err != nil || v < 0 || v > 100 {
			return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid target, want 0-100"})
		}
		target = v
	}

	reqCtx := ctx.Request().Context()
	names, err := c.devices.ListEnabledNames(reqCtx)
	if err != nil {
		return c.handleError(ctx, err, "Failed to list devices", http.StatusInternalServerError)
	}

	now := time.Now()
	start := now.Add(-time.Duration(hours) * time.Hour)

	type entry struct {
		Device        string   `json:"device"`
		UptimePercent *float64 `json:"uptime_percent"`
		Compliant     bool     `json:"compliant"`
	}
	entries := make([]entry, 0, len(names))
	compliant := 0
	for _, name := range names {
		pct, err := c.calculator.UptimePercentage(reqCtx, name, start, now, now)
		if err != nil {
			if errors.Is(err, repository.ErrNoData) {
				entries = append(entries, entry{Device: name})
				continue
			}
			return c.handleError(ctx, err, "Failed to compute uptime", http.StatusInternalServerError)
		}
		e := entry{Device: name, UptimePercent: &pct, Compliant: pct >= target}
		if e.Compliant {
			compliant++
		}
		entries = append(entries, e)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"window_hours": hours,
		"target":       target,
		"devices":      entries,
		"compliant":    compliant,
		"total":        len(entries),
	})
}

// reportWindow parses optional since/until query parameters, defaulting to
// the trailing 24 hours.
func reportWindow(ctx echo.Context, now time.Time) (since, until time.Time, err error) {
	since = now.Add(-defaultUptimeHours * time.Hour)
	until = now
	if sinceParam := ctx.QueryParam("since"); sinceParam != "" {
		since, err = time.Parse(time.RFC3339, sinceParam)
		if err != nil {
			return since, until, errors.New("Invalid since timestamp, want RFC3339")
		}
	}
	if untilParam := ctx.QueryParam("until"); untilParam != "" {
		until, err = time.Parse(time.RFC3339, untilParam)
		if err != nil {
			return since, until, errors.New("Invalid until timestamp, want RFC3339")
		}
	}
	if !until.After(since) {
		return since, until, errors.New("until must be after since")
	}
	return since, until, nil
}

// windowHours parses the hours query parameter, defaulting to 24 and capped
// to keep report queries bounded.
func windowHours(ctx echo.Context) (int, error) {
	hours := defaultUptimeHours
	if hoursParam := ctx.QueryParam("hours"); hoursParam != "" {
		v, err := strconv.Atoi(hoursParam)
		if err != nil || v <= 0 || v > maxReportWindowHours {
			return 0, errors.New("Invalid hours")
		}
		hours = v
	}
	return hours, nil
}
