package api

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

func TestCreateRule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.request(t, http.MethodPost, "/api/v1/rules", validRule())

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["id"])
	assert.Equal(t, "Extended downtime", body["name"])
	assert.Equal(t, false, body["built_in"], "API-created rules are never built-in")
}

func TestCreateRuleRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*entities.AlertRule)
	}{
		{"missing name", func(r *entities.AlertRule) { r.Name = "" }},
		{"bad rule type", func(r *entities.AlertRule) { r.RuleType = "weather" }},
		{"bad operator", func(r *entities.AlertRule) { r.Operator = "!=" }},
		{"group scope without group", func(r *entities.AlertRule) { r.AppliesTo = entities.ScopeGroup }},
		{"bad severity", func(r *entities.AlertRule) { r.Severity = "mild" }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			rule := validRule()
			tt.mutate(&rule)
			rec := f.request(t, http.MethodPost, "/api/v1/rules", rule)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateRuleMaintenanceSuppressionDefault(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	// Request without the field inherits the configured default (true in the
	// fixture).
	rec := f.request(t, http.MethodPost, "/api/v1/rules", map[string]any{
		"name":            "Omits suppression",
		"rule_type":       entities.RuleTypeExtendedDowntime,
		"operator":        entities.OperatorGreaterOrEqual,
		"threshold_value": 30,
		"applies_to":      entities.ScopeAll,
		"severity":        entities.SeverityCritical,
		"enabled":         true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["suppress_during_maintenance"])

	// An explicit false is kept, not overridden by the default.
	explicit := validRule()
	explicit.Name = "Opts out of suppression"
	explicit.SuppressDuringMaintenance = false
	rec = f.request(t, http.MethodPost, "/api/v1/rules", explicit)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["suppress_during_maintenance"])
}

func TestCreateRuleDuplicateName(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.request(t, http.MethodPost, "/api/v1/rules", validRule()).Code)

	rec := f.request(t, http.MethodPost, "/api/v1/rules", validRule())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListRulesFilters(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	enabled := validRule()
	disabled := validRule()
	disabled.Name = "Disabled rule"
	disabled.Enabled = false
	require.Equal(t, http.StatusCreated, f.request(t, http.MethodPost, "/api/v1/rules", enabled).Code)
	require.Equal(t, http.StatusCreated, f.request(t, http.MethodPost, "/api/v1/rules", disabled).Code)

	rec := f.request(t, http.MethodGet, "/api/v1/rules?enabled=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])

	rec = f.request(t, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])
}

func TestGetRuleNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rec := f.request(t, http.MethodGet, "/api/v1/rules/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/v1/rules/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateRulePreservesBuiltIn(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	seeded := validRule()
	seeded.BuiltIn = true
	require.NoError(t, f.alerts.CreateRule(context.Background(), &seeded))

	update := validRule()
	update.Description = "tightened threshold"
	update.ThresholdValue = 20
	rec := f.request(t, http.MethodPut, fmt.Sprintf("/api/v1/rules/%d", seeded.ID), update)

	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := f.alerts.GetRule(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.True(t, stored.BuiltIn)
	assert.InDelta(t, 20, stored.ThresholdValue, 0.001)
}

func TestToggleRule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rule := validRule()
	require.NoError(t, f.alerts.CreateRule(context.Background(), &rule))

	rec := f.request(t, http.MethodPatch, fmt.Sprintf("/api/v1/rules/%d/toggle", rule.ID),
		map[string]bool{"enabled": false})

	require.Equal(t, http.StatusOK, rec.Code)
	stored, err := f.alerts.GetRule(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.False(t, stored.Enabled)
}

func TestDeleteRule(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	rule := validRule()
	require.NoError(t, f.alerts.CreateRule(context.Background(), &rule))

	rec := f.request(t, http.MethodDelete, fmt.Sprintf("/api/v1/rules/%d", rule.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.request(t, http.MethodDelete, fmt.Sprintf("/api/v1/rules/%d", rule.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
