package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Description  string          `gorm:"type:text" json:"description"`
	Category     string          `gorm:"size:64;index" json:"category"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Stock        int             `gorm:"default:0" json:"stock"`
	ImageURL     string          `gorm:"size:512" json:"image_url"`
	ThumbnailURL string          `gorm:"size:512" json:"thumbnail_url"`
	Active       bool            `gorm:"default:true;index" json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (Product) TableName() string {
	return "products"
}
