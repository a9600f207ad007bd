package models

import (
	"time"

	"github.com/google/uuid"
)

// PluginOwner ties a plugin to an owning user with assignment metadata.
type PluginOwner struct {
	PluginID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`

	Plugin Plugin `gorm:"constraint:OnDelete:CASCADE;foreignKey:PluginID;references:ID"`
	User   User   `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
}
