// Package datastore opens the database connection and owns schema migration.
package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fleetwatch/fleetwatch/internal/conf"
	"github.com/fleetwatch/fleetwatch/internal/datastore/entities"
)

// Open connects to the configured database and migrates the schema.
func Open(settings conf.DatabaseSettings) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch settings.Driver {
	case "sqlite", "":
		dialector = sqlite.Open(settings.DSN)
	case "mysql":
		dialector = mysql.Open(settings.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", settings.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(
		&entities.Device{},
		&entities.DeviceGroup{},
		&entities.DeviceGroupMember{},
		&entities.DowntimeInterval{},
		&entities.MaintenanceWindow{},
		&entities.AlertRule{},
		&entities.AlertInstance{},
		&entities.NotificationAttempt{},
		&entities.HealthCheck{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return db, nil
}
