package entities

import "time"

// Rule types supported by the evaluation engine.
const (
	RuleTypeSLAViolation     = "sla_violation"
	RuleTypeExtendedDowntime = "extended_downtime"
	RuleTypeRecovery         = "recovery"
)

// Comparison operators between metric and threshold.
const (
	OperatorLess           = "<"
	OperatorLessOrEqual    = "<="
	OperatorGreater        = ">"
	OperatorGreaterOrEqual = ">="
	OperatorEqual          = "=="
)

// Rule scopes.
const (
	ScopeAll    = "all"
	ScopeGroup  = "group"
	ScopeDevice = "device"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// AlertRule is an operator-defined alerting rule evaluated on every engine
// tick. Mutated only through the rule-management API; the engine reads it.
type AlertRule struct {
	ID                        uint      `gorm:"primaryKey" json:"id"`
	Name                      string    `gorm:"size:255;not null" json:"name"`
	Description               string    `gorm:"size:1000;default:''" json:"description"`
	RuleType                  string    `gorm:"size:30;not null;index" json:"rule_type"`
	ThresholdValue            float64   `gorm:"not null" json:"threshold_value"`
	Operator                  string    `gorm:"size:2;not null" json:"operator"`
	EvaluationWindowMinutes   int       `gorm:"not null;default:0" json:"evaluation_window_minutes"`
	AppliesTo                 string    `gorm:"size:10;not null;default:'all'" json:"applies_to"`
	DeviceName                string    `gorm:"size:255;default:''" json:"device_name"`
	GroupID                   uint      `gorm:"default:0" json:"group_id"`
	Severity                  string    `gorm:"size:10;not null;default:'warning'" json:"severity"`
	Enabled                   bool      `gorm:"not null;index" json:"enabled"`
	BuiltIn                   bool      `gorm:"not null;default:false" json:"built_in"`
	SuppressDuringMaintenance bool      `gorm:"not null;default:true" json:"suppress_during_maintenance"`
	RateLimitMinutes          int       `gorm:"not null;default:60" json:"rate_limit_minutes"`
	Channels                  string    `gorm:"size:500;default:''" json:"channels"` // comma-separated channel names
	Recipients                string    `gorm:"size:1000;default:''" json:"recipients"`
	EscalationEnabled         bool      `gorm:"not null;default:false" json:"escalation_enabled"`
	EscalationAfterMinutes    int       `gorm:"not null;default:0" json:"escalation_after_minutes"`
	EscalationRecipients      string    `gorm:"size:1000;default:''" json:"escalation_recipients"`
	CreatedAt                 time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt                 time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AlertRule) TableName() string {
	return "alert_rules"
}
