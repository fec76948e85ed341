package entities

import "time"

// Device statuses as reported by the field collector.
const (
	StatusOnline   = "online"
	StatusOffline  = "offline"
	StatusDegraded = "degraded"
	StatusUnknown  = "unknown"
)

// Device is a monitored field device. Address is sensitive network detail
// and must never reach an external notification channel unredacted.
type Device struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Address   string    `gorm:"size:255;default:''" json:"address"`
	Location  string    `gorm:"size:255;default:''" json:"location"`
	Enabled   bool      `gorm:"not null;default:true;index" json:"enabled"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Device) TableName() string {
	return "devices"
}

// DeviceGroup is a named set of devices used for alert rule scoping.
type DeviceGroup struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	Name        string              `gorm:"size:255;not null;uniqueIndex" json:"name"`
	Description string              `gorm:"size:1000;default:''" json:"description"`
	Members     []DeviceGroupMember `gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE" json:"members"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for GORM.
func (DeviceGroup) TableName() string {
	return "device_groups"
}

// DeviceGroupMember links a device name into a group.
type DeviceGroupMember struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	GroupID    uint   `gorm:"not null;index" json:"group_id"`
	DeviceName string `gorm:"size:255;not null;index" json:"device_name"`
}

// TableName returns the table name for GORM.
func (DeviceGroupMember) TableName() string {
	return "device_group_members"
}
