package entities

import "time"

// Recovery methods recorded when a downtime interval closes.
const (
	RecoveryAuto   = "auto"
	RecoveryManual = "manual"
	RecoveryReboot = "reboot"
)

// DowntimeInterval is one contiguous period during which a device was not
// online. EndTime is NULL while the outage is ongoing; the Downtime Tracker
// guarantees at most one open interval per device.
type DowntimeInterval struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	DeviceName      string     `gorm:"size:255;not null;index:idx_downtime_device_start,priority:1" json:"device_name"`
	StartTime       time.Time  `gorm:"not null;index:idx_downtime_device_start,priority:2" json:"start_time"`
	EndTime         *time.Time `gorm:"index:idx_downtime_device_end" json:"end_time"`
	StatusBefore    string     `gorm:"size:20;default:''" json:"status_before"`
	StatusDuring    string     `gorm:"size:20;default:''" json:"status_during"`
	DurationMinutes float64    `gorm:"default:0" json:"duration_minutes"`
	RecoveryMethod  string     `gorm:"size:50;default:''" json:"recovery_method"`
	TicketRef       string     `gorm:"size:100;default:''" json:"ticket_ref"`
	Notes           string     `gorm:"size:1000;default:''" json:"notes"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (DowntimeInterval) TableName() string {
	return "downtime_intervals"
}

// Open reports whether the interval has not yet ended.
func (d *DowntimeInterval) Open() bool {
	return d.EndTime == nil
}

// ClippedBounds returns the interval bounds clipped to [windowStart,
// windowEnd], with an open end treated as now. The returned ok is false when
// the interval does not overlap the window at all.
func (d *DowntimeInterval) ClippedBounds(windowStart, windowEnd, now time.Time) (start, end time.Time, ok bool) {
	end = now
	if d.EndTime != nil {
		end = *d.EndTime
	}
	start = d.StartTime
	if start.Before(windowStart) {
		start = windowStart
	}
	if end.After(windowEnd) {
		end = windowEnd
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}
