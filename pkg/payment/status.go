package payment

import (
	"fmt"
)

// Status is the canonical outcome of an STK push as seen by the storefront.
type Status uint8

const (
	StatusPending Status = iota
	StatusSuccess
	StatusCancelled
	StatusTimeout
	StatusFailed
	StatusError
)

var statusNames = [...]string{
	StatusPending:   "pending",
	StatusSuccess:   "success",
	StatusCancelled: "cancelled",
	StatusTimeout:   "timeout",
	StatusFailed:    "failed",
	StatusError:     "error",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Terminal reports whether polling should stop on this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusCancelled, StatusTimeout, StatusFailed:
		return true
	case StatusPending, StatusError:
		return false
	}
	return false
}

func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("payment: invalid status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

func ParseStatus(v string) (Status, error) {
	for i, name := range statusNames {
		if name == v {
			return Status(i), nil
		}
	}
	return StatusError, fmt.Errorf("payment: unknown status %q", v)
}

// FailureReason refines StatusFailed.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonWrongPIN          FailureReason = "wrong_pin"
	ReasonInsufficientFunds FailureReason = "insufficient_funds"
	ReasonOther             FailureReason = "other"
)

// Daraja result and error codes.
const (
	ResultCodeSuccess           = "0"
	ResultCodeInsufficientFunds = "1"
	ResultCodeCancelled         = "1032"
	ResultCodeTimeout           = "1037"
	ResultCodeWrongPIN          = "2001"

	ErrorCodeInvalidRequest = "500.001.1001"
	ErrorCodeInvalidPhone   = "404.001.04"
)

// QueryResult is the interpreted answer of an STK status query.
type QueryResult struct {
	Status     Status
	Reason     FailureReason
	Message    string
	ResultCode string
	ResultDesc string
}

// InterpretResultCode maps a completed transaction's result code to its canonical status.
// It is shared by the status query and the callback receiver.
func InterpretResultCode(code, desc string) QueryResult {
	r := QueryResult{ResultCode: code, ResultDesc: desc}
	switch code {
	case ResultCodeSuccess:
		r.Status = StatusSuccess
		r.Message = "Payment successful! Your order has been confirmed."
	case ResultCodeCancelled:
		r.Status = StatusCancelled
		r.Message = "Transaction cancelled by user"
	case ResultCodeTimeout:
		r.Status = StatusTimeout
		r.Message = "Transaction timed out. Please try again."
	case ResultCodeWrongPIN:
		r.Status = StatusFailed
		r.Reason = ReasonWrongPIN
		r.Message = "Wrong PIN entered. Please try again."
	case ResultCodeInsufficientFunds:
		r.Status = StatusFailed
		r.Reason = ReasonInsufficientFunds
		r.Message = "Insufficient balance"
	default:
		r.Status = StatusFailed
		r.Reason = ReasonOther
		r.Message = desc
		if r.Message == "" {
			r.Message = "Payment failed. Please try again."
		}
	}
	return r
}

func interpretQuery(resp *stkQueryResp) QueryResult {
	switch {
	case resp.ResponseCode == "0" && resp.ResultCode != "":
		return InterpretResultCode(string(resp.ResultCode), resp.ResultDesc)
	case resp.ResponseCode == "0":
		return QueryResult{Status: StatusPending, Message: "Waiting for your M-Pesa PIN..."}
	case resp.ErrorCode == ErrorCodeInvalidRequest:
		// The gateway has not recorded the transaction yet.
		return QueryResult{Status: StatusPending, Message: "Processing your payment..."}
	case resp.ResponseCode != "":
		msg := resp.ResponseDescription
		if msg == "" {
			msg = "Error checking payment status"
		}
		return QueryResult{Status: StatusError, Message: msg}
	case resp.ErrorCode != "":
		msg := resp.ErrorMessage
		if msg == "" {
			msg = "Error checking payment status"
		}
		return QueryResult{Status: StatusError, Message: msg}
	}
	return QueryResult{Status: StatusPending, Message: "Transaction is being processed. Please wait..."}
}
