package service

import (
	"context"
	"fmt"
	"sync"

	"salonshop/internal/domain"
	"salonshop/internal/models"
	"salonshop/internal/ws"
	"salonshop/pkg/events"

	"github.com/rs/zerolog/log"
)

type notificationStore interface {
	Create(n *models.AdminNotification) error
	List(unreadOnly bool, limit, offset int) ([]models.AdminNotification, int64, error)
	CountUnread() (int64, error)
	MarkRead(id uint) error
	MarkAllRead() error
}

type deviceTokens interface {
	FCMTokensByRole(role string) ([]string, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// NotificationService records admin notifications and fans them out to the live
// admin feed, admin devices (FCM) and the order event exchange. Only the database
// write can fail the call. FCM and AMQP run in the background so a slow Firebase
// or broker never holds up the caller.
type NotificationService struct {
	repo     notificationStore
	userRepo deviceTokens
	hub      *ws.Hub
	fcm      *FCMService
	events   eventPublisher

	fanOut sync.WaitGroup
}

func NewNotificationService(repo notificationStore, userRepo deviceTokens, hub *ws.Hub, fcm *FCMService, pub eventPublisher) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo, hub: hub, fcm: fcm, events: pub}
}

// Wait blocks until background pushes and event publishes have finished.
func (s *NotificationService) Wait() {
	s.fanOut.Wait()
}

// NotifyNewOrder tells the admins an order is ready to fulfil: paid via M-Pesa or placed as pay on delivery.
func (s *NotificationService) NotifyNewOrder(ctx context.Context, o *models.Order) error {
	title := "New order"
	msg := fmt.Sprintf("Order %s from %s: %s %s", shortOrderID(o.ID), o.CustomerName, o.Currency, o.TotalAmount.StringFixed(2))
	if o.Status == domain.OrderStatusPaid {
		title = "New paid order"
		msg += " (paid via M-Pesa, ref " + o.PaymentReference + ")"
	} else {
		msg += " (pay on delivery)"
	}
	evt := events.TypeOrderCreated
	if o.Status == domain.OrderStatusPaid {
		evt = events.TypeOrderPaid
	}
	return s.notify(ctx, domain.NotificationNewOrder, title, msg, o, evt)
}

func (s *NotificationService) NotifyOrderDelivered(ctx context.Context, o *models.Order) error {
	msg := fmt.Sprintf("Order %s for %s has been delivered", shortOrderID(o.ID), o.CustomerName)
	return s.notify(ctx, domain.NotificationOrderDelivered, "Order delivered", msg, o, events.TypeOrderDelivered)
}

func (s *NotificationService) List(unreadOnly bool, limit, offset int) ([]models.AdminNotification, int64, error) {
	return s.repo.List(unreadOnly, limit, offset)
}

func (s *NotificationService) CountUnread() (int64, error) {
	return s.repo.CountUnread()
}

func (s *NotificationService) MarkRead(id uint) error {
	return s.repo.MarkRead(id)
}

func (s *NotificationService) MarkAllRead() error {
	return s.repo.MarkAllRead()
}

func (s *NotificationService) notify(ctx context.Context, typ, title, message string, o *models.Order, eventType string) error {
	orderID := o.ID
	n := &models.AdminNotification{Type: typ, Title: title, Message: message, OrderID: &orderID}
	if err := s.repo.Create(n); err != nil {
		return err
	}
	if s.hub != nil {
		s.hub.BroadcastToRole(domain.RoleAdmin, map[string]interface{}{"type": "notification", "notification": n})
	}
	evt := events.Event{
		Type:    eventType,
		OrderID: orderID,
		Data: map[string]interface{}{
			"status":            o.Status,
			"total_amount":      o.TotalAmount.StringFixed(2),
			"payment_method":    o.PaymentMethod,
			"payment_reference": o.PaymentReference,
		},
	}
	bg := context.WithoutCancel(ctx)
	s.fanOut.Add(1)
	go func() {
		defer s.fanOut.Done()
		s.push(bg, typ, title, message, orderID)
		if s.events == nil {
			return
		}
		if err := s.events.Publish(bg, evt); err != nil {
			log.Warn().Err(err).Str("order_id", orderID).Msg("[NOTIFY] event publish failed")
		}
	}()
	return nil
}

func (s *NotificationService) push(ctx context.Context, typ, title, body, orderID string) {
	if s.fcm == nil || s.userRepo == nil {
		return
	}
	tokens, err := s.userRepo.FCMTokensByRole(domain.RoleAdmin)
	if err != nil {
		log.Warn().Err(err).Msg("[NOTIFY] load admin device tokens")
		return
	}
	_ = s.fcm.SendToTokens(ctx, tokens, title, body, map[string]string{"type": typ, "order_id": orderID})
}

func shortOrderID(id string) string {
	if len(id) > 8 {
		return "#" + id[:8]
	}
	return "#" + id
}
