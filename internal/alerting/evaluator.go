package alerting

import (
	"fmt"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// compare applies a rule operator to a metric value and threshold. Unknown
// operators never match; validation rejects them before evaluation.
func compare(value float64, operator string, threshold float64) bool {
	switch operator {
	case entities.OperatorLess:
		return value < threshold
	case entities.OperatorLessOrEqual:
		return value <= threshold
	case entities.OperatorGreater:
		return value > threshold
	case entities.OperatorGreaterOrEqual:
		return value >= threshold
	case entities.OperatorEqual:
		return value == threshold
	default:
		return false
	}
}

// alertMessage renders the human-readable summary stored on the instance.
// Device addresses never appear here; redaction of free text happens in the
// dispatcher for external channels regardless.
func alertMessage(rule *entities.AlertRule, deviceName string, value float64) string {
	switch rule.RuleType {
	case entities.RuleTypeSLAViolation:
		return fmt.Sprintf("%s: uptime %.2f%% over the last %d minutes (threshold %s %.2f%%)",
			deviceName, value, rule.EvaluationWindowMinutes, rule.Operator, rule.ThresholdValue)
	case entities.RuleTypeExtendedDowntime:
		return fmt.Sprintf("%s: down for %.1f minutes (threshold %s %.1f)",
			deviceName, value, rule.Operator, rule.ThresholdValue)
	case entities.RuleTypeRecovery:
		return fmt.Sprintf("%s: back online after %.1f minutes of downtime",
			deviceName, value)
	default:
		return fmt.Sprintf("%s: %s value %.2f (threshold %s %.2f)",
			deviceName, rule.RuleType, value, rule.Operator, rule.ThresholdValue)
	}
}
