package models

import (
	"time"
)

type DeliveryAssignment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	OrderID     string     `gorm:"size:36;not null;uniqueIndex" json:"order_id"`
	DriverID    uint       `gorm:"not null;index" json:"driver_id"`
	Status      string     `gorm:"size:20;not null;index" json:"status"` // assigned, picked_up, in_transit, delivered
	PickedUpAt  *time.Time `json:"picked_up_at"`
	DeliveredAt *time.Time `json:"delivered_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Order Order `gorm:"foreignKey:OrderID" json:"order"`
}

func (DeliveryAssignment) TableName() string {
	return "delivery_assignments"
}
