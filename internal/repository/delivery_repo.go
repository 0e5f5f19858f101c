package repository

import (
	"time"

	"salonshop/internal/domain"
	"salonshop/internal/models"

	"gorm.io/gorm"
)

type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

// Assign gives an available order to driverID and marks the order dispatched.
// Returns ErrOrderUnavailable when the order is gone, already taken, or not deliverable.
func (r *DeliveryRepository) Assign(orderID string, driverID uint) (*models.DeliveryAssignment, error) {
	a := &models.DeliveryAssignment{OrderID: orderID, DriverID: driverID, Status: domain.DeliveryAssigned}
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND (status = ? OR (status = ? AND payment_method = ?))",
				orderID, domain.OrderStatusPaid, domain.OrderStatusPending, domain.PaymentMethodPayOnDelivery).
			Where("id NOT IN (?)", tx.Model(&models.DeliveryAssignment{}).Select("order_id")).
			Update("status", domain.OrderStatusDispatched)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOrderUnavailable
		}
		return tx.Create(a).Error
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *DeliveryRepository) GetByID(id uint) (*models.DeliveryAssignment, error) {
	var a models.DeliveryAssignment
	err := r.db.Preload("Order").Preload("Order.Items").First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListByDriver returns a driver's assignments restricted to the given statuses.
func (r *DeliveryRepository) ListByDriver(driverID uint, statuses []string) ([]models.DeliveryAssignment, error) {
	var list []models.DeliveryAssignment
	err := r.db.Preload("Order").Preload("Order.Items").
		Where("driver_id = ? AND status IN ?", driverID, statuses).
		Order("updated_at DESC").
		Find(&list).Error
	return list, err
}

// Advance moves the assignment to next. Reaching delivered also marks the order delivered.
func (r *DeliveryRepository) Advance(a *models.DeliveryAssignment, next string, at time.Time) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": next}
		switch next {
		case domain.DeliveryPickedUp:
			updates["picked_up_at"] = at
		case domain.DeliveryDelivered:
			updates["delivered_at"] = at
		}
		res := tx.Model(&models.DeliveryAssignment{}).Where("id = ? AND status = ?", a.ID, a.Status).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrOrderUnavailable
		}
		if next == domain.DeliveryDelivered {
			if err := tx.Model(&models.Order{}).Where("id = ?", a.OrderID).Update("status", domain.OrderStatusDelivered).Error; err != nil {
				return err
			}
		}
		a.Status = next
		return nil
	})
}
