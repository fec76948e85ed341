package entities

import "time"

// Alert instance lifecycle statuses.
const (
	AlertTriggered    = "triggered"
	AlertAcknowledged = "acknowledged"
	AlertResolved     = "resolved"
	AlertAutoResolved = "auto_resolved"
	// AlertFired marks one-shot instances from recovery rules; they carry no
	// active lifecycle state and never escalate.
	AlertFired = "fired"
)

// AlertInstance is one occurrence of a rule firing for a device. Rows are
// append-only; only the lifecycle tail fields (status, acknowledgement,
// resolution, escalation, notification bookkeeping) mutate afterwards.
type AlertInstance struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	RuleID             uint       `gorm:"not null;index:idx_alert_rule_device,priority:1" json:"rule_id"`
	Rule               AlertRule  `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"rule,omitzero"`
	DeviceName         string     `gorm:"size:255;not null;index:idx_alert_rule_device,priority:2;index" json:"device_name"`
	Severity           string     `gorm:"size:10;not null;index" json:"severity"`
	TriggeredAt        time.Time  `gorm:"not null;index" json:"triggered_at"`
	TriggerValue       float64    `gorm:"not null" json:"trigger_value"`
	ThresholdValue     float64    `gorm:"not null" json:"threshold_value"`
	Message            string     `gorm:"size:2000;default:''" json:"message"`
	Status             string     `gorm:"size:20;not null;index" json:"status"`
	AcknowledgedAt     *time.Time `json:"acknowledged_at"`
	AcknowledgedBy     string     `gorm:"size:255;default:''" json:"acknowledged_by"`
	AcknowledgedNotes  string     `gorm:"size:1000;default:''" json:"acknowledged_notes"`
	ResolvedAt         *time.Time `json:"resolved_at"`
	ResolvedBy         string     `gorm:"size:255;default:''" json:"resolved_by"`
	ResolvedNotes      string     `gorm:"size:1000;default:''" json:"resolved_notes"`
	NotificationSent   bool       `gorm:"not null;default:false" json:"notification_sent"`
	NotificationSentAt *time.Time `json:"notification_sent_at"`
	Escalated          bool       `gorm:"not null;default:false" json:"escalated"`
	EscalatedAt        *time.Time `json:"escalated_at"`
	EscalationLevel    int        `gorm:"not null;default:0" json:"escalation_level"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (AlertInstance) TableName() string {
	return "alert_instances"
}

// Active reports whether the instance still represents an unresolved
// condition the engine should track.
func (a *AlertInstance) Active() bool {
	return a.Status == AlertTriggered || a.Status == AlertAcknowledged
}
