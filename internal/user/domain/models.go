// Package domain contains the user account types the membership core
// depends on. Authentication lives outside this module; invitations only
// need identity and a registered email to match against.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// User represents a system user account.
type User struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	ExternalID  string            `gorm:"type:text;not null;uniqueIndex" json:"external_id"`
	Email       string            `gorm:"type:text;not null;uniqueIndex" json:"email"`
	DisplayName string            `gorm:"type:text" json:"display_name"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

var ErrUserExists = errors.New("user_exists")
