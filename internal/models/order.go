package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Order struct {
	ID               string          `gorm:"primaryKey;size:36" json:"id"`
	UserID           *uint           `gorm:"index" json:"user_id"`
	CustomerName     string          `gorm:"size:255;not null" json:"customer_name"`
	CustomerEmail    string          `gorm:"size:255" json:"customer_email"`
	CustomerPhone    string          `gorm:"size:32;not null" json:"customer_phone"`
	DeliveryAddress  string          `gorm:"size:512;not null" json:"delivery_address"`
	DeliveryCity     string          `gorm:"size:128;not null" json:"delivery_city"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	DeliveryFee      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"delivery_fee"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_amount"`
	Currency         string          `gorm:"size:3;default:'KES'" json:"currency"`
	Status           string          `gorm:"size:20;not null;index" json:"status"` // pending, paid, dispatched, delivered, cancelled, returned
	PaymentMethod    string          `gorm:"size:32;not null" json:"payment_method"`
	PaymentReference string          `gorm:"size:128;index" json:"payment_reference"` // STK CheckoutRequestID until the receipt replaces it
	Notes            string          `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

type OrderItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	OrderID     string          `gorm:"size:36;not null;index" json:"order_id"`
	ProductID   *uint           `gorm:"index" json:"product_id"`
	ProductName string          `gorm:"size:255;not null" json:"product_name"`
	Quantity    int             `gorm:"not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_price"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
