package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// deviceRepository implements DeviceRepository.
type deviceRepository struct {
	db *gorm.DB
}

// NewDeviceRepository creates a new DeviceRepository.
func NewDeviceRepository(db *gorm.DB) DeviceRepository {
	return &deviceRepository{db: db}
}

func (r *deviceRepository) ListDevices(ctx context.Context) ([]entities.Device, error) {
	var devices []entities.Device
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

func (r *deviceRepository) GetDevice(ctx context.Context, name string) (*entities.Device, error) {
	var device entities.Device
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device %s: %w", name, err)
	}
	return &device, nil
}

func (r *deviceRepository) CreateDevice(ctx context.Context, device *entities.Device) error {
	if err := r.db.WithContext(ctx).Create(device).Error; err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	return nil
}

func (r *deviceRepository) UpdateDevice(ctx context.Context, device *entities.Device) error {
	if device.ID == 0 {
		return fmt.Errorf("failed to update device: missing ID")
	}
	if err := r.db.WithContext(ctx).Save(device).Error; err != nil {
		return fmt.Errorf("failed to update device %d: %w", device.ID, err)
	}
	return nil
}

func (r *deviceRepository) DeleteDevice(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.Device{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete device %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func (r *deviceRepository) ListEnabledNames(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&entities.Device{}).
		Where("enabled = ?", true).
		Order("name ASC").
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list enabled device names: %w", err)
	}
	return names, nil
}

func (r *deviceRepository) ListGroups(ctx context.Context) ([]entities.DeviceGroup, error) {
	var groups []entities.DeviceGroup
	if err := r.db.WithContext(ctx).Preload("Members").Order("name ASC").Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("failed to list device groups: %w", err)
	}
	return groups, nil
}

func (r *deviceRepository) CreateGroup(ctx context.Context, group *entities.DeviceGroup) error {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return fmt.Errorf("failed to create device group: %w", err)
	}
	return nil
}

func (r *deviceRepository) DeleteGroup(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&entities.DeviceGroup{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete device group %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *deviceRepository) GroupMembers(ctx context.Context, groupID uint) ([]string, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&entities.DeviceGroup{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("failed to check device group %d: %w", groupID, err)
	}
	if count == 0 {
		return nil, ErrGroupNotFound
	}

	var names []string
	err := r.db.WithContext(ctx).Model(&entities.DeviceGroupMember{}).
		Where("group_id = ?", groupID).
		Order("device_name ASC").
		Pluck("device_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list group members for %d: %w", groupID, err)
	}
	return names, nil
}
