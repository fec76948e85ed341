package repository

import (
	"context"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// DeviceRepository handles device and group metadata used for rule scoping.
type DeviceRepository interface {
	ListDevices(ctx context.Context) ([]entities.Device, error)
	GetDevice(ctx context.Context, name string) (*entities.Device, error)
	CreateDevice(ctx context.Context, device *entities.Device) error
	UpdateDevice(ctx context.Context, device *entities.Device) error
	DeleteDevice(ctx context.Context, id uint) error
	// ListEnabledNames returns the names of all enabled devices, the "all"
	// rule scope.
	ListEnabledNames(ctx context.Context) ([]string, error)

	ListGroups(ctx context.Context) ([]entities.DeviceGroup, error)
	CreateGroup(ctx context.Context, group *entities.DeviceGroup) error
	DeleteGroup(ctx context.Context, id uint) error
	// GroupMembers returns the device names in a group, the "group" rule
	// scope. Returns ErrGroupNotFound for an unknown group.
	GroupMembers(ctx context.Context, groupID uint) ([]string, error)
}
