package payment

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMalformedCallback means the body is not an stkCallback envelope.
var ErrMalformedCallback = errors.New("mpesa: malformed stk callback")

type callbackEnvelope struct {
	Body *struct {
		StkCallback *stkCallback `json:"stkCallback"`
	} `json:"Body"`
}

type stkCallback struct {
	MerchantRequestID string   `json:"MerchantRequestID"`
	CheckoutRequestID string   `json:"CheckoutRequestID"`
	ResultCode        flexCode `json:"ResultCode"`
	ResultDesc        string   `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []callbackItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

type callbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// Callback is the parsed result the gateway posts once the customer acts on the PIN prompt.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        string
	ResultDesc        string

	// Present only on success.
	ReceiptNumber   string
	TransactionDate string
	PhoneNumber     string
	Amount          decimal.Decimal
}

func (c *Callback) Succeeded() bool { return c.ResultCode == ResultCodeSuccess }

// Outcome maps the callback's result code onto the canonical status table.
func (c *Callback) Outcome() QueryResult {
	return InterpretResultCode(c.ResultCode, c.ResultDesc)
}

// ParseCallback decodes a callback body. Metadata is a name/value list and is scanned by name.
func ParseCallback(body []byte) (*Callback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrMalformedCallback
	}
	if env.Body == nil || env.Body.StkCallback == nil || env.Body.StkCallback.CheckoutRequestID == "" {
		return nil, ErrMalformedCallback
	}
	sc := env.Body.StkCallback
	cb := &Callback{
		MerchantRequestID: sc.MerchantRequestID,
		CheckoutRequestID: sc.CheckoutRequestID,
		ResultCode:        string(sc.ResultCode),
		ResultDesc:        sc.ResultDesc,
	}
	if sc.CallbackMetadata == nil {
		return cb, nil
	}
	for _, item := range sc.CallbackMetadata.Item {
		switch item.Name {
		case "MpesaReceiptNumber":
			cb.ReceiptNumber = rawString(item.Value)
		case "TransactionDate":
			cb.TransactionDate = rawString(item.Value)
		case "PhoneNumber":
			cb.PhoneNumber = rawString(item.Value)
		case "Amount":
			if d, err := decimal.NewFromString(rawString(item.Value)); err == nil {
				cb.Amount = d
			}
		}
	}
	return cb, nil
}

// rawString renders a JSON scalar as text; numbers keep their literal digits.
func rawString(v json.RawMessage) string {
	s := strings.TrimSpace(string(v))
	if s == "" || s == "null" {
		return ""
	}
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal(v, &out); err == nil {
			return out
		}
	}
	return s
}
