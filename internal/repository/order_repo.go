package repository

import (
	"errors"

	"salonshop/internal/domain"
	"salonshop/internal/models"

	"gorm.io/gorm"
)

// ErrOrderUnavailable is returned when a conditional order update matched no row.
var ErrOrderUnavailable = errors.New("order not found or not in the expected state")

type OrderFilter struct {
	Status        string
	PaymentMethod string
	Search        string
}

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// appendNote keeps earlier notes and adds a new line.
func appendNote(note string) interface{} {
	return gorm.Expr("CONCAT_WS(?, NULLIF(notes, ''), ?)", "\n", note)
}

// Create inserts the order together with its items.
func (r *OrderRepository) Create(o *models.Order) error {
	return r.db.Create(o).Error
}

func (r *OrderRepository) GetByID(id string) (*models.Order, error) {
	var o models.Order
	err := r.db.Preload("Items").Where("id = ?", id).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *OrderRepository) GetByPaymentReference(ref string) (*models.Order, error) {
	var o models.Order
	err := r.db.Where("payment_reference = ?", ref).First(&o).Error
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// AttachCheckoutRequest records a freshly accepted STK push on the order.
func (r *OrderRepository) AttachCheckoutRequest(orderID, checkoutRequestID, note string) error {
	res := r.db.Model(&models.Order{}).Where("id = ?", orderID).Updates(map[string]interface{}{
		"payment_reference": checkoutRequestID,
		"payment_method":    domain.PaymentMethodMpesa,
		"notes":             appendNote(note),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkPaid moves a pending order that still carries checkoutRequestID to paid.
// It reports false when the row was already transitioned, so redelivered
// callbacks change nothing.
func (r *OrderRepository) MarkPaid(orderID, checkoutRequestID, reference, note string) (bool, error) {
	res := r.db.Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_reference = ?", orderID, domain.OrderStatusPending, checkoutRequestID).
		Updates(map[string]interface{}{
			"status":            domain.OrderStatusPaid,
			"payment_reference": reference,
			"notes":             appendNote(note),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderRepository) AppendNote(orderID, note string) error {
	return r.db.Model(&models.Order{}).Where("id = ?", orderID).Update("notes", appendNote(note)).Error
}

func (r *OrderRepository) UpdateStatus(id, status string) error {
	res := r.db.Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.mustExist(id)
	}
	return nil
}

func (r *OrderRepository) SetPaymentReference(id, ref string) error {
	res := r.db.Model(&models.Order{}).Where("id = ?", id).Update("payment_reference", ref)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.mustExist(id)
	}
	return nil
}

// mustExist tells "no such order" apart from an update that changed nothing.
func (r *OrderRepository) mustExist(id string) error {
	var n int64
	if err := r.db.Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns orders matching the filter, newest first.
func (r *OrderRepository) List(f OrderFilter, page, limit int) ([]models.Order, int64, error) {
	q := r.db.Model(&models.Order{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PaymentMethod != "" {
		q = q.Where("payment_method = ?", f.PaymentMethod)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		q = q.Where("customer_name LIKE ? OR customer_phone LIKE ? OR payment_reference LIKE ? OR id LIKE ?", like, like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Order
	err := q.Preload("Items").Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

func (r *OrderRepository) ListByUser(userID uint, page, limit int) ([]models.Order, int64, error) {
	q := r.db.Model(&models.Order{}).Where("user_id = ?", userID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []models.Order
	err := q.Preload("Items").Order("created_at DESC").Limit(limit).Offset((page - 1) * limit).Find(&list).Error
	return list, total, err
}

// ListAvailableForDelivery returns paid orders, and unpaid pay-on-delivery
// orders, that no driver has accepted yet.
func (r *OrderRepository) ListAvailableForDelivery(limit int) ([]models.Order, error) {
	var list []models.Order
	err := r.db.Preload("Items").
		Where("(status = ? OR (status = ? AND payment_method = ?))",
			domain.OrderStatusPaid, domain.OrderStatusPending, domain.PaymentMethodPayOnDelivery).
		Where("id NOT IN (?)", r.db.Model(&models.DeliveryAssignment{}).Select("order_id")).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
