package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Plugin is a registered containerized application tracked by the registry.
type Plugin struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Name           string         `gorm:"type:text;uniqueIndex;not null"`
	PublicRepo     string         `gorm:"type:text;not null"`
	DockerImage    string         `gorm:"type:text;not null"`
	DescriptorName string         `gorm:"type:text;not null"`
	Descriptor     datatypes.JSON `gorm:"type:jsonb;not null"`
	Version        string         `gorm:"type:text;not null"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`

	Owners []User `gorm:"many2many:plugin_owners"`
}
