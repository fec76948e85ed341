// Package api exposes the fleetwatch HTTP API: rule and device management,
// the alert ledger, downtime reports, maintenance windows, and the
// operational endpoints (/healthz, /metrics).
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/logger"
	"github.com/fleetwatch/fleetwatch/internal/observability"
)

const (
	defaultAlertLimit = 50
	maxAlertLimit     = 200
)

// Lifecycle is the subset of the alert engine the API drives.
type Lifecycle interface {
	Acknowledge(ctx context.Context, instanceID uint, user, notes string) error
	Resolve(ctx context.Context, instanceID uint, user, notes string) error
	Statistics(ctx context.Context, windowDays int) (*repository.AlertStatistics, error)
}

// AvailabilityReader computes uptime percentages for the reporting endpoints.
type AvailabilityReader interface {
	UptimePercentage(ctx context.Context, deviceName string, windowStart, windowEnd, now time.Time) (float64, error)
}

// SuppressionInvalidator drops cached suppression answers after maintenance
// window writes.
type SuppressionInvalidator interface {
	Invalidate(deviceName string)
}

// Options carries the Controller's dependencies.
type Options struct {
	Alerts      repository.AlertRepository
	Devices     repository.DeviceRepository
	Downtime    repository.DowntimeRepository
	Maintenance repository.MaintenanceRepository
	Engine      Lifecycle
	Calculator  AvailabilityReader
	Registry    SuppressionInvalidator
	Health      *observability.Health
	Gatherer    prometheus.Gatherer
	Settings    conf.APISettings
	// DefaultSuppress applies to created rules that omit
	// suppress_during_maintenance (engine.default_suppress_during_maintenance).
	DefaultSuppress bool
	Logger          logger.Logger
}

// Controller owns the echo server and its route handlers.
type Controller struct {
	echo            *echo.Echo
	alerts          repository.AlertRepository
	devices         repository.DeviceRepository
	downtimes       repository.DowntimeRepository
	maintenance     repository.MaintenanceRepository
	engine          Lifecycle
	calculator      AvailabilityReader
	registry        SuppressionInvalidator
	health          *observability.Health
	settings        conf.APISettings
	defaultSuppress bool
	logger          logger.Logger
}

// New builds the Controller and registers all routes.
func New(opts Options) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	c := &Controller{
		echo:            e,
		alerts:          opts.Alerts,
		devices:         opts.Devices,
		downtimes:       opts.Downtime,
		maintenance:     opts.Maintenance,
		engine:          opts.Engine,
		calculator:      opts.Calculator,
		registry:        opts.Registry,
		health:          opts.Health,
		settings:        opts.Settings,
		defaultSuppress: opts.DefaultSuppress,
		logger:          opts.Logger,
	}

	e.GET("/healthz", c.GetHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	v1 := e.Group("/api/v1")
	c.initRuleRoutes(v1)
	c.initAlertRoutes(v1)
	c.initDeviceRoutes(v1)
	c.initMaintenanceRoutes(v1)

	return c
}

// Start serves HTTP on the configured listen address. Blocks until Shutdown
// or a listener error.
func (c *Controller) Start() error {
	c.logger.Info("api server listening", logger.String("addr", c.settings.Listen))
	return c.echo.Start(c.settings.Listen)
}

// Shutdown stops the server gracefully.
func (c *Controller) Shutdown(ctx context.Context) error {
	return c.echo.Shutdown(ctx)
}

// GetHealth reports liveness plus the engine's degraded flag. A degraded
// store answers 503 so load balancers can rotate traffic away.
func (c *Controller) GetHealth(ctx echo.Context) error {
	status := c.health.Snapshot()
	if status.Degraded {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"reason": status.Reason,
			"since":  status.Since,
		})
	}
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleError logs the error and answers with a generic message so internal
// detail never leaks into responses.
func (c *Controller) handleError(ctx echo.Context, err error, message string, code int) error {
	c.logger.Error(message,
		logger.String("path", ctx.Request().URL.Path),
		logger.Error(err))
	return ctx.JSON(code, map[string]string{"error": message})
}

// parseUintParam parses a uint route parameter.
func parseUintParam(ctx echo.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil {
		return 0, err
	}
	return uint(v), nil
}
