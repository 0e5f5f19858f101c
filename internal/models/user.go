package models

import (
	"time"

	"salonshop/internal/domain"

	"gorm.io/gorm"
)

type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:255" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone        string         `gorm:"size:32" json:"phone"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Role         string         `gorm:"size:20;not null;index" json:"role"` // CUSTOMER | ADMIN | DRIVER
	FCMToken     string         `gorm:"size:512" json:"-"`                  // admin devices receive order pushes
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) IsAdmin() bool  { return u.Role == domain.RoleAdmin }
func (u *User) IsDriver() bool { return u.Role == domain.RoleDriver }
