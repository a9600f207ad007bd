package db

import (
	"context"

	"gorm.io/gorm"

	"plugreg/internal/models"
)

// Migrate performs schema migrations for the persistent models.
func Migrate(ctx context.Context, database *gorm.DB) error {
	if err := database.SetupJoinTable(&models.Plugin{}, "Owners", &models.PluginOwner{}); err != nil {
		return err
	}

	return database.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Plugin{},
		&models.PluginOwner{},
	)
}
