package service

import (
	"context"
	"errors"
	"strings"

	"salonshop/internal/domain"
	"salonshop/internal/models"
	"salonshop/internal/repository"
	"salonshop/pkg/payment"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidItem          = errors.New("each item needs a name, a positive quantity and a positive unit price")
	ErrUnknownProduct       = errors.New("product is not available")
	ErrInvalidPaymentMethod = errors.New("payment method must be mpesa or pay_on_delivery")
	ErrMissingDeliveryInfo  = errors.New("customer name, phone, delivery address and city are required")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrForbidden            = errors.New("forbidden")
)

// feeTier charges Fee on subtotals below Below.
type feeTier struct {
	Below decimal.Decimal
	Fee   decimal.Decimal
}

// Flat delivery fees in KES. Orders of 50,000 and above ship free.
var deliveryFeeTiers = []feeTier{
	{Below: decimal.NewFromInt(10000), Fee: decimal.NewFromInt(300)},
	{Below: decimal.NewFromInt(35000), Fee: decimal.NewFromInt(500)},
	{Below: decimal.NewFromInt(50000), Fee: decimal.NewFromInt(800)},
}

// DeliveryFee returns the flat-rate delivery fee for a cart subtotal.
func DeliveryFee(subtotal decimal.Decimal) decimal.Decimal {
	for _, t := range deliveryFeeTiers {
		if subtotal.LessThan(t.Below) {
			return t.Fee
		}
	}
	return decimal.Zero
}

type CheckoutItem struct {
	ProductID   *uint
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type CheckoutInput struct {
	UserID          uint
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	DeliveryAddress string
	DeliveryCity    string
	Notes           string
	PaymentMethod   string
	Items           []CheckoutItem
}

type orderRepo interface {
	Create(o *models.Order) error
	GetByID(id string) (*models.Order, error)
	List(f repository.OrderFilter, page, limit int) ([]models.Order, int64, error)
	ListByUser(userID uint, page, limit int) ([]models.Order, int64, error)
	UpdateStatus(id, status string) error
	SetPaymentReference(id, ref string) error
}

type productCatalog interface {
	GetByIDs(ids []uint) (map[uint]models.Product, error)
}

type OrderService struct {
	orders   orderRepo
	products productCatalog
	notifier OrderNotifier
}

func NewOrderService(orders orderRepo, products productCatalog, notifier OrderNotifier) *OrderService {
	return &OrderService{orders: orders, products: products, notifier: notifier}
}

// Checkout prices the cart, adds the delivery fee and stores a pending order.
// Catalog items are charged at the catalog price, not the price the client sent.
func (s *OrderService) Checkout(ctx context.Context, in CheckoutInput) (*models.Order, error) {
	if in.PaymentMethod != domain.PaymentMethodMpesa && in.PaymentMethod != domain.PaymentMethodPayOnDelivery {
		return nil, ErrInvalidPaymentMethod
	}
	if strings.TrimSpace(in.CustomerName) == "" || strings.TrimSpace(in.DeliveryAddress) == "" || strings.TrimSpace(in.DeliveryCity) == "" {
		return nil, ErrMissingDeliveryInfo
	}
	phone, err := payment.ValidatePhoneNumber(in.CustomerPhone)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, ErrEmptyCart
	}
	items, subtotal, err := s.priceItems(in.Items)
	if err != nil {
		return nil, err
	}
	fee := DeliveryFee(subtotal)

	o := &models.Order{
		CustomerName:    strings.TrimSpace(in.CustomerName),
		CustomerEmail:   strings.TrimSpace(in.CustomerEmail),
		CustomerPhone:   phone,
		DeliveryAddress: strings.TrimSpace(in.DeliveryAddress),
		DeliveryCity:    strings.TrimSpace(in.DeliveryCity),
		Subtotal:        subtotal,
		DeliveryFee:     fee,
		TotalAmount:     subtotal.Add(fee),
		Currency:        domain.Currency,
		Status:          domain.OrderStatusPending,
		PaymentMethod:   in.PaymentMethod,
		Notes:           strings.TrimSpace(in.Notes),
		Items:           items,
	}
	if in.UserID != 0 {
		uid := in.UserID
		o.UserID = &uid
	}
	if err := s.orders.Create(o); err != nil {
		return nil, err
	}
	log.Info().Str("order_id", o.ID).Str("method", o.PaymentMethod).Str("total", o.TotalAmount.StringFixed(2)).Msg("[ORDER] created")

	if o.PaymentMethod == domain.PaymentMethodPayOnDelivery && s.notifier != nil {
		if err := s.notifier.NotifyNewOrder(ctx, o); err != nil {
			log.Error().Err(err).Str("order_id", o.ID).Msg("[ORDER] new order notification failed")
		}
	}
	return o, nil
}

func (s *OrderService) priceItems(in []CheckoutItem) ([]models.OrderItem, decimal.Decimal, error) {
	var ids []uint
	for _, it := range in {
		if it.ProductID != nil {
			ids = append(ids, *it.ProductID)
		}
	}
	catalog := map[uint]models.Product{}
	if len(ids) > 0 && s.products != nil {
		var err error
		if catalog, err = s.products.GetByIDs(ids); err != nil {
			return nil, decimal.Zero, err
		}
	}

	items := make([]models.OrderItem, 0, len(in))
	subtotal := decimal.Zero
	for _, it := range in {
		name, price := strings.TrimSpace(it.ProductName), it.UnitPrice
		if it.ProductID != nil && s.products != nil {
			p, ok := catalog[*it.ProductID]
			if !ok {
				return nil, decimal.Zero, ErrUnknownProduct
			}
			name, price = p.Name, p.Price
		}
		if name == "" || it.Quantity <= 0 || !price.IsPositive() {
			return nil, decimal.Zero, ErrInvalidItem
		}
		line := price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		items = append(items, models.OrderItem{
			ProductID:   it.ProductID,
			ProductName: name,
			Quantity:    it.Quantity,
			UnitPrice:   price,
			TotalPrice:  line,
		})
		subtotal = subtotal.Add(line)
	}
	return items, subtotal, nil
}

// GetForUser returns an order its owner or an admin may see.
func (s *OrderService) GetForUser(id string, userID uint, role string) (*models.Order, error) {
	o, err := s.orders.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if role == domain.RoleAdmin {
		return o, nil
	}
	if o.UserID == nil || *o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *OrderService) ListForUser(userID uint, page, limit int) ([]models.Order, int64, error) {
	return s.orders.ListByUser(userID, page, limit)
}

func (s *OrderService) List(f repository.OrderFilter, page, limit int) ([]models.Order, int64, error) {
	if f.Status != "" && !domain.ValidOrderStatus(f.Status) {
		return nil, 0, ErrInvalidStatus
	}
	return s.orders.List(f, page, limit)
}

// UpdateStatus is the admin override for fulfilment statuses.
func (s *OrderService) UpdateStatus(id, status string) error {
	if !domain.ValidOrderStatus(status) {
		return ErrInvalidStatus
	}
	if err := s.orders.UpdateStatus(id, status); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	log.Info().Str("order_id", id).Str("status", status).Msg("[ORDER] status updated by admin")
	return nil
}

// SetPaymentReference records a reference reconciled outside the STK flow.
func (s *OrderService) SetPaymentReference(id, ref string) error {
	if err := s.orders.SetPaymentReference(id, strings.TrimSpace(ref)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}
