package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// PushRequest asks the customer's phone for an M-Pesa PIN.
type PushRequest struct {
	OrderID          string
	Phone            string // any local format; normalized by the gateway client
	Amount           decimal.Decimal
	AccountReference string // defaults to ORDER-<first 8 chars of OrderID>
	CallbackURL      string
}

// PushResponse carries the ids the gateway assigned to an accepted push.
type PushResponse struct {
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

// Gateway is the mobile-money API the payment core talks to.
type Gateway interface {
	InitiatePush(ctx context.Context, req PushRequest) (*PushResponse, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error)
}

// ValidatePushRequest checks a push before any gateway traffic and returns the
// normalized 254XXXXXXXXX phone number.
func ValidatePushRequest(req PushRequest) (string, error) {
	if req.OrderID == "" || req.Phone == "" {
		return "", &ValidationError{Field: "orderId", Message: "Missing required fields: phone, amount, orderId"}
	}
	if req.Amount.LessThan(decimal.NewFromInt(1)) {
		return "", &ValidationError{Field: "amount", Message: "Invalid amount. Must be at least 1 KES"}
	}
	return ValidatePhoneNumber(req.Phone)
}
