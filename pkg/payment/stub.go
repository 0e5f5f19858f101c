package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// StubGateway is an offline gateway for development (MPESA_ENV=stub). Pushes are accepted
// and report success after ConfirmAfter status queries. When OnConfirm is set it receives a
// synthetic success callback at that point, standing in for the gateway's webhook.
//
// The callback is delivered from inside QueryStatus, so with the stub a status query is what
// settles the order. The Daraja client never does this: there only the webhook marks orders
// paid. Do not use the stub in production.
type StubGateway struct {
	ConfirmAfter int
	OnConfirm    func(ctx context.Context, cb *Callback)

	mu     sync.Mutex
	pushes map[string]*stubPush
}

type stubPush struct {
	req     PushRequest
	phone   string
	queries int
}

func NewStubGateway(confirmAfter int) *StubGateway {
	return &StubGateway{ConfirmAfter: confirmAfter, pushes: make(map[string]*stubPush)}
}

func (s *StubGateway) InitiatePush(ctx context.Context, req PushRequest) (*PushResponse, error) {
	phone, err := ValidatePushRequest(req)
	if err != nil {
		return nil, err
	}
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	checkoutID := "ws_CO_stub_" + id
	s.mu.Lock()
	s.pushes[checkoutID] = &stubPush{req: req, phone: phone}
	s.mu.Unlock()
	return &PushResponse{
		CheckoutRequestID: checkoutID,
		MerchantRequestID: "stub-" + id[:12],
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (s *StubGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	if checkoutRequestID == "" {
		return nil, &ValidationError{Field: "checkoutRequestId", Message: "Missing checkoutRequestId"}
	}
	s.mu.Lock()
	p, ok := s.pushes[checkoutRequestID]
	var n int
	if ok {
		p.queries++
		n = p.queries
	}
	s.mu.Unlock()
	if !ok {
		return &QueryResult{Status: StatusPending, Message: "Processing your payment..."}, nil
	}
	if n < s.ConfirmAfter {
		return &QueryResult{Status: StatusPending, Message: "Waiting for your M-Pesa PIN..."}, nil
	}
	if n == s.ConfirmAfter && s.OnConfirm != nil {
		s.OnConfirm(ctx, &Callback{
			MerchantRequestID: "stub",
			CheckoutRequestID: checkoutRequestID,
			ResultCode:        ResultCodeSuccess,
			ResultDesc:        "The service request is processed successfully.",
			ReceiptNumber:     "STUB" + strings.ToUpper(checkoutRequestID[len(checkoutRequestID)-6:]),
			PhoneNumber:       p.phone,
			Amount:            p.req.Amount,
		})
	}
	res := InterpretResultCode(ResultCodeSuccess, "The service request is processed successfully.")
	return &res, nil
}
