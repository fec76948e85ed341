package alerting

import (
	"context"
	"fmt"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
	"github.com/fleetwatch/fleetwatch/internal/datastore/repository"
	"github.com/fleetwatch/fleetwatch/internal/logger"
)

// DefaultRules returns the built-in rules seeded on first run. Operators can
// tune or disable them but the seeder restores missing ones by name.
func DefaultRules() []entities.AlertRule {
	return []entities.AlertRule{
		{
			Name:                      "Daily SLA below 95%",
			Description:               "Fires when a device's uptime over the last 24 hours drops below 95%",
			RuleType:                  entities.RuleTypeSLAViolation,
			ThresholdValue:            95,
			Operator:                  entities.OperatorLess,
			EvaluationWindowMinutes:   1440,
			AppliesTo:                 entities.ScopeAll,
			Severity:                  entities.SeverityWarning,
			Enabled:                   true,
			BuiltIn:                   true,
			SuppressDuringMaintenance: true,
			RateLimitMinutes:          240,
		},
		{
			Name:                      "Extended downtime over 30 minutes",
			Description:               "Fires when a device has been down for 30 minutes or more",
			RuleType:                  entities.RuleTypeExtendedDowntime,
			ThresholdValue:            30,
			Operator:                  entities.OperatorGreaterOrEqual,
			AppliesTo:                 entities.ScopeAll,
			Severity:                  entities.SeverityCritical,
			Enabled:                   true,
			BuiltIn:                   true,
			SuppressDuringMaintenance: true,
			RateLimitMinutes:          60,
			EscalationEnabled:         true,
			EscalationAfterMinutes:    60,
		},
		{
			Name:                      "Recovery after extended downtime",
			Description:               "Informs when a device comes back after 30 minutes or more of downtime",
			RuleType:                  entities.RuleTypeRecovery,
			ThresholdValue:            30,
			Operator:                  entities.OperatorGreaterOrEqual,
			EvaluationWindowMinutes:   60,
			AppliesTo:                 entities.ScopeAll,
			Severity:                  entities.SeverityInfo,
			Enabled:                   true,
			BuiltIn:                   true,
			SuppressDuringMaintenance: true,
			RateLimitMinutes:          60,
		},
	}
}

// SeedDefaultRules ensures every built-in rule exists, checking by name so
// partial seeds from interrupted startups self-heal.
func SeedDefaultRules(ctx context.Context, alerts repository.AlertRepository, log logger.Logger) error {
	defaults := DefaultRules()
	var created int
	for i := range defaults {
		count, err := alerts.CountRulesByName(ctx, defaults[i].Name)
		if err != nil {
			return fmt.Errorf("failed to check for default rule %q: %w", defaults[i].Name, err)
		}
		if count > 0 {
			continue
		}
		if err := alerts.CreateRule(ctx, &defaults[i]); err != nil {
			return fmt.Errorf("failed to seed default rule %q: %w", defaults[i].Name, err)
		}
		created++
	}
	if created > 0 {
		log.Info("seeded default alert rules", logger.Int("created", created))
	}
	return nil
}
