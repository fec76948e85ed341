package entities

import "time"

// HealthCheck is a raw probe result from the device-health collaborator.
// Deployments without the downtime interval ledger can compute availability
// from these rows instead (the "checks" availability source).
type HealthCheck struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DeviceName     string    `gorm:"size:255;not null;index:idx_health_device_checked,priority:1" json:"device_name"`
	Status         string    `gorm:"size:20;not null" json:"status"`
	ResponseTimeMs int       `gorm:"default:0" json:"response_time_ms"`
	CheckedAt      time.Time `gorm:"not null;index:idx_health_device_checked,priority:2" json:"checked_at"`
}

// TableName returns the table name for GORM.
func (HealthCheck) TableName() string {
	return "health_checks"
}
