package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salonshop/internal/domain"
	"salonshop/internal/metrics"
	"salonshop/internal/models"
	"salonshop/pkg/payment"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderNotPayable = errors.New("order is not awaiting payment")
)

// OrderStore is the slice of order persistence the payment flow needs.
type OrderStore interface {
	GetByID(id string) (*models.Order, error)
	GetByPaymentReference(ref string) (*models.Order, error)
	AttachCheckoutRequest(orderID, checkoutRequestID, note string) error
	MarkPaid(orderID, checkoutRequestID, reference, note string) (bool, error)
	AppendNote(orderID, note string) error
}

type OrderNotifier interface {
	NotifyNewOrder(ctx context.Context, o *models.Order) error
}

type PushInput struct {
	OrderID          string
	Phone            string
	Amount           decimal.Decimal
	AccountReference string
}

// PaymentService runs the server side of an M-Pesa STK payment: push initiation,
// the asynchronous gateway callback and on-demand status queries.
type PaymentService struct {
	orders      OrderStore
	notifier    OrderNotifier
	gateway     payment.Gateway
	callbackURL string
}

func NewPaymentService(orders OrderStore, notifier OrderNotifier, gateway payment.Gateway, callbackURL string) *PaymentService {
	return &PaymentService{orders: orders, notifier: notifier, gateway: gateway, callbackURL: callbackURL}
}

// InitiatePush sends the PIN prompt for an unpaid order and records the gateway's
// CheckoutRequestID as the order's payment reference.
func (s *PaymentService) InitiatePush(ctx context.Context, in PushInput) (*payment.PushResponse, error) {
	req := payment.PushRequest{
		OrderID:          in.OrderID,
		Phone:            in.Phone,
		Amount:           in.Amount,
		AccountReference: in.AccountReference,
		CallbackURL:      s.callbackURL,
	}
	phone, err := payment.ValidatePushRequest(req)
	if err != nil {
		metrics.STKPushes.WithLabelValues("invalid").Inc()
		return nil, err
	}
	order, err := s.orders.GetByID(in.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if order.Status != domain.OrderStatusPending {
		return nil, ErrOrderNotPayable
	}
	if !order.TotalAmount.IsZero() && !order.TotalAmount.Equal(in.Amount) {
		log.Warn().Str("order_id", order.ID).Str("order_total", order.TotalAmount.String()).
			Str("amount", in.Amount.String()).Msg("[STK-PUSH] push amount differs from order total")
	}

	resp, err := s.gateway.InitiatePush(ctx, req)
	if err != nil {
		metrics.STKPushes.WithLabelValues(pushOutcome(err)).Inc()
		log.Error().Err(err).Str("order_id", in.OrderID).Str("phone", payment.MaskPhone(phone)).Msg("[STK-PUSH] initiation failed")
		return nil, err
	}
	metrics.STKPushes.WithLabelValues("accepted").Inc()

	note := fmt.Sprintf("M-Pesa STK push sent to %s. Waiting for payment confirmation.", payment.MaskPhone(phone))
	if err := s.orders.AttachCheckoutRequest(order.ID, resp.CheckoutRequestID, note); err != nil {
		// The PIN prompt is already on the customer's phone; an admin can reconcile
		// the payment reference by hand if the callback finds no order.
		log.Error().Err(err).Str("order_id", order.ID).Str("checkout_request_id", resp.CheckoutRequestID).
			Msg("[STK-PUSH] failed to record checkout request on order")
		return resp, nil
	}
	log.Info().Str("order_id", order.ID).Str("checkout_request_id", resp.CheckoutRequestID).Msg("[STK-PUSH] order awaiting PIN")
	return resp, nil
}

// HandleCallback applies a gateway callback to the matching order. Unknown
// correlation ids and repeated callbacks are no-ops; only storage failures
// return an error.
func (s *PaymentService) HandleCallback(ctx context.Context, cb *payment.Callback) error {
	logger := log.With().Str("checkout_request_id", cb.CheckoutRequestID).Str("result_code", cb.ResultCode).Logger()

	order, err := s.orders.GetByPaymentReference(cb.CheckoutRequestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			metrics.Callbacks.WithLabelValues("unmatched").Inc()
			logger.Warn().Msg("[CALLBACK] no order carries this checkout request")
			return nil
		}
		return err
	}
	logger = logger.With().Str("order_id", order.ID).Logger()

	if !cb.Succeeded() {
		metrics.Callbacks.WithLabelValues("failed").Inc()
		if order.Status != domain.OrderStatusPending {
			logger.Info().Str("status", order.Status).Msg("[CALLBACK] failure for an order no longer pending, ignored")
			return nil
		}
		note := fmt.Sprintf("M-Pesa payment failed: %s (Code: %s)", cb.ResultDesc, cb.ResultCode)
		if strings.Contains(order.Notes, note) {
			return nil
		}
		logger.Info().Str("result_desc", cb.ResultDesc).Msg("[CALLBACK] payment not completed")
		return s.orders.AppendNote(order.ID, note)
	}

	ref := cb.ReceiptNumber
	if ref == "" {
		ref = cb.CheckoutRequestID
	}
	if !cb.Amount.IsZero() && cb.Amount.LessThan(order.TotalAmount) {
		logger.Warn().Str("paid", cb.Amount.String()).Str("order_total", order.TotalAmount.String()).
			Msg("[CALLBACK] amount paid is below order total")
	}
	note := fmt.Sprintf("M-Pesa payment confirmed. Receipt: %s. Amount: KSh %s. Phone: %s. Date: %s",
		ref, cb.Amount.String(), payment.MaskPhone(cb.PhoneNumber), cb.TransactionDate)
	applied, err := s.orders.MarkPaid(order.ID, cb.CheckoutRequestID, ref, note)
	if err != nil {
		return err
	}
	if !applied {
		metrics.Callbacks.WithLabelValues("duplicate").Inc()
		logger.Info().Msg("[CALLBACK] order already settled, duplicate ignored")
		return nil
	}
	metrics.Callbacks.WithLabelValues("paid").Inc()
	logger.Info().Str("receipt", ref).Msg("[CALLBACK] order marked paid")

	order.Status = domain.OrderStatusPaid
	order.PaymentReference = ref
	if s.notifier != nil {
		if err := s.notifier.NotifyNewOrder(ctx, order); err != nil {
			logger.Error().Err(err).Msg("[CALLBACK] new order notification failed")
		}
	}
	return nil
}

// QueryStatus reports the current state of a push without touching the order.
func (s *PaymentService) QueryStatus(ctx context.Context, checkoutRequestID string) (*payment.QueryResult, error) {
	res, err := s.gateway.QueryStatus(ctx, checkoutRequestID)
	if err != nil {
		var verr *payment.ValidationError
		if !errors.As(err, &verr) {
			log.Error().Err(err).Str("checkout_request_id", checkoutRequestID).Msg("[QUERY] status query failed")
		}
		return nil, err
	}
	metrics.StatusQueries.WithLabelValues(res.Status.String()).Inc()
	log.Debug().Str("checkout_request_id", checkoutRequestID).Stringer("status", res.Status).Msg("[QUERY] status reported")
	return res, nil
}

func pushOutcome(err error) string {
	var (
		verr *payment.ValidationError
		rej  *payment.GatewayRejection
	)
	switch {
	case errors.As(err, &verr):
		return "invalid"
	case errors.As(err, &rej):
		return "rejected"
	}
	return "error"
}
