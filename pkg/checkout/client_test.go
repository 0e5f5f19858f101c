package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salonshop/pkg/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Push(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payments/mpesa/stk-push", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"amount":1500.5,`)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "o1", body["orderId"])
		assert.Equal(t, "ORDER-O1", body["accountReference"])
		_, _ = w.Write([]byte(`{"success":true,"message":"sent","checkoutRequestId":"ws_CO_9","merchantRequestId":"m9"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", time.Second)
	res, err := c.Push(context.Background(), PushParams{
		Phone: "0712345678", Amount: decimal.RequireFromString("1500.50"), OrderID: "o1", AccountReference: "ORDER-O1",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_9", res.CheckoutRequestID)
	assert.Equal(t, "m9", res.MerchantRequestID)
	assert.Equal(t, "sent", res.Message)
}

func TestHTTPClient_PushError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"error":"Invalid phone number format"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).Push(context.Background(), PushParams{OrderID: "o1"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid phone number format", apiErr.Message)
}

func TestHTTPClient_Query(t *testing.T) {
	answers := []string{
		`{"success":true,"status":"success","message":"Payment successful!","resultCode":"0"}`,
		`{"success":true,"status":"something-new","message":"?"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/payments/mpesa/query", r.URL.Path)
		_, _ = w.Write([]byte(answers[0]))
		answers = answers[1:]
	}))
	defer srv.Close()
	c := NewHTTPClient(srv.URL, time.Second)

	res, err := c.Query(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, res.Status)
	assert.Equal(t, "0", res.ResultCode)

	res, err = c.Query(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, res.Status)
}

func TestHTTPClient_QueryServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"M-Pesa is not configured. Please contact support.","status":"error"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, time.Second).Query(context.Background(), "ws_CO_1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}
