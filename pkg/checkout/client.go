package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"salonshop/pkg/payment"

	"github.com/shopspring/decimal"
)

type PushParams struct {
	Phone            string
	Amount           decimal.Decimal
	OrderID          string
	AccountReference string
}

// pushBody is the wire form of PushParams; amount goes out as a JSON number.
type pushBody struct {
	Phone            string      `json:"phone"`
	Amount           json.Number `json:"amount"`
	OrderID          string      `json:"orderId"`
	AccountReference string      `json:"accountReference,omitempty"`
}

type PushResult struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
	MerchantRequestID string `json:"merchantRequestId"`
	Message           string `json:"message"`
}

// PollResult is one answer of the status endpoint.
type PollResult struct {
	Status     payment.Status
	Message    string
	ResultCode string
	ResultDesc string
}

// API is the storefront payment surface the coordinator drives.
type API interface {
	Push(ctx context.Context, p PushParams) (*PushResult, error)
	Query(ctx context.Context, checkoutRequestID string) (*PollResult, error)
}

// APIError is a non-success answer from the storefront.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("checkout api: %d %s", e.StatusCode, e.Message)
}

// HTTPClient talks to the storefront's /api/v1/payments/mpesa endpoints.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type apiEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	PushResult
	Status     string `json:"status"`
	ResultCode string `json:"resultCode"`
	ResultDesc string `json:"resultDesc"`
}

func (c *HTTPClient) Push(ctx context.Context, p PushParams) (*PushResult, error) {
	var out apiEnvelope
	body := pushBody{
		Phone:            p.Phone,
		Amount:           json.Number(p.Amount.String()),
		OrderID:          p.OrderID,
		AccountReference: p.AccountReference,
	}
	if err := c.post(ctx, "/api/v1/payments/mpesa/stk-push", body, &out); err != nil {
		return nil, err
	}
	if !out.Success {
		return nil, &APIError{StatusCode: http.StatusOK, Message: out.Error}
	}
	return &out.PushResult, nil
}

// Query reports the gateway status of a push. Statuses this client does not know
// are read as pending so polling carries on.
func (c *HTTPClient) Query(ctx context.Context, checkoutRequestID string) (*PollResult, error) {
	var out apiEnvelope
	body := map[string]string{"checkoutRequestId": checkoutRequestID}
	if err := c.post(ctx, "/api/v1/payments/mpesa/query", body, &out); err != nil {
		return nil, err
	}
	st, err := payment.ParseStatus(out.Status)
	if err != nil {
		st = payment.StatusPending
	}
	return &PollResult{Status: st, Message: out.Message, ResultCode: out.ResultCode, ResultDesc: out.ResultDesc}, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, payload interface{}, out *apiEnvelope) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
	return decodeErr
}
