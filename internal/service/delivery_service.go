package service

import (
	"context"
	"errors"
	"time"

	"salonshop/internal/domain"
	"salonshop/internal/models"
	"salonshop/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrJobUnavailable   = errors.New("this delivery is no longer available")
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrDeliveryFinished = errors.New("delivery is already completed")
	ErrDeliveryConflict = errors.New("delivery was updated by someone else, refresh and retry")
)

const availableJobsLimit = 50

type deliveryRepo interface {
	Assign(orderID string, driverID uint) (*models.DeliveryAssignment, error)
	GetByID(id uint) (*models.DeliveryAssignment, error)
	ListByDriver(driverID uint, statuses []string) ([]models.DeliveryAssignment, error)
	Advance(a *models.DeliveryAssignment, next string, at time.Time) error
}

type availableOrders interface {
	ListAvailableForDelivery(limit int) ([]models.Order, error)
}

type DeliveryNotifier interface {
	NotifyOrderDelivered(ctx context.Context, o *models.Order) error
}

// DeliveryService runs the driver portal: job board, acceptance and status steps.
type DeliveryService struct {
	deliveries deliveryRepo
	orders     availableOrders
	notifier   DeliveryNotifier
	now        func() time.Time
}

func NewDeliveryService(deliveries deliveryRepo, orders availableOrders, notifier DeliveryNotifier) *DeliveryService {
	return &DeliveryService{deliveries: deliveries, orders: orders, notifier: notifier, now: time.Now}
}

func (s *DeliveryService) AvailableJobs() ([]models.Order, error) {
	return s.orders.ListAvailableForDelivery(availableJobsLimit)
}

func (s *DeliveryService) Accept(orderID string, driverID uint) (*models.DeliveryAssignment, error) {
	a, err := s.deliveries.Assign(orderID, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderUnavailable) {
			return nil, ErrJobUnavailable
		}
		return nil, err
	}
	log.Info().Str("order_id", orderID).Uint("driver_id", driverID).Msg("[DELIVERY] job accepted")
	return a, nil
}

// Advance moves a driver's delivery one step forward. Reaching delivered closes
// the order and notifies the admins.
func (s *DeliveryService) Advance(ctx context.Context, assignmentID, driverID uint) (*models.DeliveryAssignment, error) {
	a, err := s.deliveries.GetByID(assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryNotFound
		}
		return nil, err
	}
	if a.DriverID != driverID {
		return nil, ErrDeliveryNotFound
	}
	next := domain.NextDeliveryStep(a.Status)
	if next == "" {
		return nil, ErrDeliveryFinished
	}
	if err := s.deliveries.Advance(a, next, s.now()); err != nil {
		if errors.Is(err, repository.ErrOrderUnavailable) {
			return nil, ErrDeliveryConflict
		}
		return nil, err
	}
	log.Info().Uint("assignment_id", a.ID).Str("order_id", a.OrderID).Str("status", next).Msg("[DELIVERY] status advanced")

	if next == domain.DeliveryDelivered {
		a.Order.Status = domain.OrderStatusDelivered
		if s.notifier != nil {
			if err := s.notifier.NotifyOrderDelivered(ctx, &a.Order); err != nil {
				log.Error().Err(err).Str("order_id", a.OrderID).Msg("[DELIVERY] delivered notification failed")
			}
		}
	}
	return a, nil
}

func (s *DeliveryService) Active(driverID uint) ([]models.DeliveryAssignment, error) {
	return s.deliveries.ListByDriver(driverID, []string{domain.DeliveryAssigned, domain.DeliveryPickedUp, domain.DeliveryInTransit})
}

func (s *DeliveryService) Completed(driverID uint) ([]models.DeliveryAssignment, error) {
	return s.deliveries.ListByDriver(driverID, []string{domain.DeliveryDelivered})
}
