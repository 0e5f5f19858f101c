package models

import (
	"time"
)

// AdminNotification is an event shown on the admin portal (new paid order, delivered order).
type AdminNotification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Type      string     `gorm:"size:50;not null;index" json:"type"`
	Title     string     `gorm:"size:255" json:"title"`
	Message   string     `gorm:"type:text" json:"message"`
	OrderID   *string    `gorm:"size:36;index" json:"order_id"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

func (AdminNotification) TableName() string {
	return "admin_notifications"
}
