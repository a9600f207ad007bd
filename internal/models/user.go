package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account entitled to own plugin records. Accounts are managed by
// the surrounding platform; this tool only resolves them by username.
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Username  string    `gorm:"type:text;uniqueIndex;not null"`
	Email     string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
