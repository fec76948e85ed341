package alerting

import (
	"fmt"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// ConfigurationError marks a rule the engine cannot evaluate. The engine
// persistently disables such rules instead of failing the pass.
type ConfigurationError struct {
	RuleID   uint
	RuleName string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("rule %q (id %d) misconfigured: %s", e.RuleName, e.RuleID, e.Reason)
}

// validateRule checks a rule before evaluation. The API performs the same
// checks on write, but rules can predate schema changes or be edited in the
// database directly, so the engine revalidates every pass.
func validateRule(rule *entities.AlertRule) *ConfigurationError {
	fail := func(format string, args ...any) *ConfigurationError {
		return &ConfigurationError{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Reason:   fmt.Sprintf(format, args...),
		}
	}

	switch rule.RuleType {
	case entities.RuleTypeSLAViolation, entities.RuleTypeExtendedDowntime, entities.RuleTypeRecovery:
	default:
		return fail("unknown rule type %q", rule.RuleType)
	}

	switch rule.Operator {
	case entities.OperatorLess, entities.OperatorLessOrEqual,
		entities.OperatorGreater, entities.OperatorGreaterOrEqual,
		entities.OperatorEqual:
	default:
		return fail("unknown operator %q", rule.Operator)
	}

	switch rule.AppliesTo {
	case entities.ScopeAll:
	case entities.ScopeGroup:
		if rule.GroupID == 0 {
			return fail("group scope requires a group_id")
		}
	case entities.ScopeDevice:
		if rule.DeviceName == "" {
			return fail("device scope requires a device_name")
		}
	default:
		return fail("unknown scope %q", rule.AppliesTo)
	}

	switch rule.Severity {
	case entities.SeverityInfo, entities.SeverityWarning, entities.SeverityError, entities.SeverityCritical:
	default:
		return fail("unknown severity %q", rule.Severity)
	}

	if rule.RuleType == entities.RuleTypeSLAViolation {
		if rule.ThresholdValue < 0 || rule.ThresholdValue > 100 {
			return fail("sla threshold must be a percentage, got %.2f", rule.ThresholdValue)
		}
		if rule.EvaluationWindowMinutes <= 0 {
			return fail("sla rules require a positive evaluation window")
		}
	}
	if rule.RuleType == entities.RuleTypeExtendedDowntime && rule.ThresholdValue < 0 {
		return fail("downtime threshold must not be negative, got %.2f", rule.ThresholdValue)
	}
	if rule.RateLimitMinutes < 0 {
		return fail("rate limit must not be negative, got %d", rule.RateLimitMinutes)
	}
	if rule.EscalationEnabled && rule.EscalationAfterMinutes <= 0 {
		return fail("escalation requires a positive delay")
	}
	return nil
}

// ValidateRule exposes rule validation to the API layer so writes are
// rejected with the same rules the engine applies.
func ValidateRule(rule *entities.AlertRule) error {
	if cfgErr := validateRule(rule); cfgErr != nil {
		return cfgErr
	}
	return nil
}
