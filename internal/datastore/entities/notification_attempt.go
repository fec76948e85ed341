package entities

import "time"

// Notification kinds distinguish why a message was sent.
const (
	NotificationKindAlert      = "alert"
	NotificationKindEscalation = "escalation"
	NotificationKindRecovery   = "recovery"
)

// NotificationAttempt records one delivery attempt for an alert instance on
// one channel. Failures are recorded here and never feed back into the
// instance lifecycle.
type NotificationAttempt struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	InstanceID    uint      `gorm:"not null;index" json:"instance_id"`
	CorrelationID string    `gorm:"size:36;not null" json:"correlation_id"`
	Channel       string    `gorm:"size:100;not null" json:"channel"`
	Recipients    string    `gorm:"size:1000;default:''" json:"recipients"`
	Kind          string    `gorm:"size:20;not null;default:'alert'" json:"kind"`
	Success       bool      `gorm:"not null" json:"success"`
	Error         string    `gorm:"size:1000;default:''" json:"error"`
	AttemptedAt   time.Time `gorm:"not null;index" json:"attempted_at"`
}

// TableName returns the table name for GORM.
func (NotificationAttempt) TableName() string {
	return "notification_attempts"
}
