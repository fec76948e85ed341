package entities

import "time"

// Maintenance window lifecycle states. The scheduling frontend owns the
// lifecycle; fleetwatch only reads windows for alert suppression.
const (
	MaintenanceScheduled  = "scheduled"
	MaintenanceInProgress = "in-progress"
	MaintenanceCompleted  = "completed"
	MaintenanceCancelled  = "cancelled"
)

// MaintenanceWindow is a planned service period for a device.
type MaintenanceWindow struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	DeviceName     string    `gorm:"size:255;not null;index" json:"device_name"`
	ScheduledStart time.Time `gorm:"not null;index" json:"scheduled_start"`
	ScheduledEnd   time.Time `gorm:"not null" json:"scheduled_end"`
	Status         string    `gorm:"size:20;not null;default:'scheduled'" json:"status"`
	SuppressAlerts bool      `gorm:"not null;default:true" json:"suppress_alerts"`
	Description    string    `gorm:"size:1000;default:''" json:"description"`
	Technician     string    `gorm:"size:255;default:''" json:"technician"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (MaintenanceWindow) TableName() string {
	return "maintenance_windows"
}

// Covers reports whether the window suppresses alerts at the given instant.
// Bounds are inclusive on both ends.
func (w *MaintenanceWindow) Covers(at time.Time) bool {
	if !w.SuppressAlerts {
		return false
	}
	if w.Status != MaintenanceScheduled && w.Status != MaintenanceInProgress {
		return false
	}
	return !at.Before(w.ScheduledStart) && !at.After(w.ScheduledEnd)
}
