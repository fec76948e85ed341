package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fleetwatch/fleetwatch/internal/alerting"
	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/logger"
)

// initRuleRoutes registers alert rule management endpoints.
func (c *Controller) initRuleRoutes(g *echo.Group) {
	rules := g.Group("/rules")
	rules.GET("", c.ListRules)
	rules.POST("", c.CreateRule)
	rules.GET("/:id", c.GetRule)
	rules.PUT("/:id", c.UpdateRule)
	rules.DELETE("/:id", c.DeleteRule)
	rules.PATCH("/:id/toggle", c.ToggleRule)
}

// ListRules returns all alert rules, optionally filtered.
func (c *Controller) ListRules(ctx echo.Context) error {
	filter := repository.AlertRuleFilter{
		RuleType: ctx.QueryParam("rule_type"),
	}
	if enabledParam := ctx.QueryParam("enabled"); enabledParam != "" {
		v := enabledParam == "true"
		filter.Enabled = &v
	}
	if builtInParam := ctx.QueryParam("built_in"); builtInParam != "" {
		v := builtInParam == "true"
		filter.BuiltIn = &v
	}

	rules, err := c.alerts.ListRules(ctx.Request().Context(), filter)
	if err != nil {
		return c.handleError(ctx, err, "Failed to list alert rules", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// GetRule returns a single alert rule by ID.
func (c *Controller) GetRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}

	rule, err := c.alerts.GetRule(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return c.handleError(ctx, err, "Failed to get alert rule", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, rule)
}

// CreateRule creates a new alert rule. The rule is validated up front so the
// engine never sees a misconfigured row from this path. A request that omits
// suppress_during_maintenance inherits the configured engine default; the
// shadow pointer field distinguishes omitted from explicit false.
func (c *Controller) CreateRule(ctx echo.Context) error {
	var req struct {
		entities.AlertRule
		SuppressDuringMaintenance *bool `json:"suppress_during_maintenance"`
	}
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	rule := req.AlertRule
	if req.SuppressDuringMaintenance != nil {
		rule.SuppressDuringMaintenance = *req.SuppressDuringMaintenance
	} else {
		rule.SuppressDuringMaintenance = c.defaultSuppress
	}

	if rule.Name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Rule name is required"})
	}
	if err := alerting.ValidateRule(&rule); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	reqCtx := ctx.Request().Context()
	count, err := c.alerts.CountRulesByName(reqCtx, rule.Name)
	if err != nil {
		return c.handleError(ctx, err, "Failed to create alert rule", http.StatusInternalServerError)
	}
	if count > 0 {
		return ctx.JSON(http.StatusConflict, map[string]string{"error": "A rule with this name already exists"})
	}

	rule.ID = 0
	rule.BuiltIn = false
	if err := c.alerts.CreateRule(reqCtx, &rule); err != nil {
		return c.handleError(ctx, err, "Failed to create alert rule", http.StatusInternalServerError)
	}

	c.logger.Info("alert rule created",
		logger.String("name", rule.Name),
		logger.Uint64("id", uint64(rule.ID)))

	return ctx.JSON(http.StatusCreated, rule)
}

// UpdateRule replaces an existing alert rule.
func (c *Controller) UpdateRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}

	reqCtx := ctx.Request().Context()
	existing, err := c.alerts.GetRule(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return c.handleError(ctx, err, "Failed to get alert rule", http.StatusInternalServerError)
	}

	var rule entities.AlertRule
	if err := ctx.Bind(&rule); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if rule.Name == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Rule name is required"})
	}
	if err := alerting.ValidateRule(&rule); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	rule.ID = existing.ID
	rule.BuiltIn = existing.BuiltIn
	rule.CreatedAt = existing.CreatedAt

	if err := c.alerts.UpdateRule(reqCtx, &rule); err != nil {
		return c.handleError(ctx, err, "Failed to update alert rule", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, rule)
}

// ToggleRule enables or disables an alert rule.
func (c *Controller) ToggleRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}

	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := ctx.Bind(&body); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if err := c.alerts.ToggleRule(ctx.Request().Context(), id, body.Enabled); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return c.handleError(ctx, err, "Failed to toggle alert rule", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{"id": id, "enabled": body.Enabled})
}

// DeleteRule deletes an alert rule and, via the schema cascade, its
// instances.
func (c *Controller) DeleteRule(ctx echo.Context) error {
	id, err := parseUintParam(ctx, "id")
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid rule ID"})
	}

	if err := c.alerts.DeleteRule(ctx.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrAlertRuleNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "Alert rule not found"})
		}
		return c.handleError(ctx, err, "Failed to delete alert rule", http.StatusInternalServerError)
	}

	return ctx.NoContent(http.StatusNoContent)
}
