package payment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDaraja struct {
	tokenCalls int32
	pushCalls  int32
	queryCalls int32

	tokenStatus int
	lastPush    stkPushReq
	lastQuery   stkQueryReq
	pushStatus  int
	pushResp    string
	queryStatus int
	queryResp   string
}

func (f *fakeDaraja) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.tokenCalls, 1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			_, _ = w.Write([]byte(`{"errorCode":"400.008.01","errorMessage":"Invalid Authentication passed"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok-1","expires_in":"3599"}`))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.pushCalls, 1)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastPush))
		if f.pushStatus != 0 {
			w.WriteHeader(f.pushStatus)
		}
		_, _ = w.Write([]byte(f.pushResp))
	})
	mux.HandleFunc("/mpesa/stkpushquery/v1/query", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.queryCalls, 1)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&f.lastQuery))
		if f.queryStatus != 0 {
			w.WriteHeader(f.queryStatus)
		}
		_, _ = w.Write([]byte(f.queryResp))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeDaraja) *DarajaClient {
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	c := NewDarajaClient(DarajaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Passkey:        "passkey",
		Shortcode:      "174379",
		BaseURL:        srv.URL,
		Timeout:        5 * time.Second,
	})
	c.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return c
}

const acceptedPush = `{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"ws_CO_191220191020363925","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`

func TestInitiatePushAccepted(t *testing.T) {
	f := &fakeDaraja{pushResp: acceptedPush}
	c := newTestClient(t, f)

	resp, err := c.InitiatePush(context.Background(), PushRequest{
		OrderID:     "7f3c9a1e-5b2d-4c8e-9f10-1234567890ab",
		Phone:       "0712345678",
		Amount:      decimal.RequireFromString("1000.4"),
		CallbackURL: "https://shop.example.com/api/v1/webhooks/mpesa",
	})
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_191220191020363925", resp.CheckoutRequestID)
	assert.Equal(t, "29115-34620561-1", resp.MerchantRequestID)

	p := f.lastPush
	assert.Equal(t, "174379", p.BusinessShortCode)
	assert.Equal(t, "20240102060405", p.Timestamp)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379passkey20240102060405")), p.Password)
	assert.Equal(t, "CustomerPayBillOnline", p.TransactionType)
	assert.Equal(t, int64(1000), p.Amount)
	assert.Equal(t, "254712345678", p.PartyA)
	assert.Equal(t, "254712345678", p.PhoneNumber)
	assert.Equal(t, "174379", p.PartyB)
	assert.Equal(t, "ORDER-7F3C9A1E", p.AccountReference)
	assert.Equal(t, "Payment for order 7f3c9a1e", p.TransactionDesc)
	assert.Equal(t, "https://shop.example.com/api/v1/webhooks/mpesa", p.CallBackURL)
}

func TestAccessTokenIsCached(t *testing.T) {
	f := &fakeDaraja{pushResp: acceptedPush, queryResp: `{"ResponseCode":"0","ResultCode":"0","ResultDesc":"ok"}`}
	c := newTestClient(t, f)
	req := PushRequest{OrderID: "order-1", Phone: "0712345678", Amount: decimal.NewFromInt(10)}

	_, err := c.InitiatePush(context.Background(), req)
	require.NoError(t, err)
	_, err = c.QueryStatus(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	_, err = c.InitiatePush(context.Background(), req)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&f.tokenCalls))
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.pushCalls))
}

func TestInitiatePushValidationNeverCallsGateway(t *testing.T) {
	f := &fakeDaraja{pushResp: acceptedPush}
	c := newTestClient(t, f)

	tests := []PushRequest{
		{OrderID: "o1", Phone: "07123", Amount: decimal.NewFromInt(100)},
		{OrderID: "o1", Phone: "0712345678", Amount: decimal.RequireFromString("0.5")},
		{OrderID: "", Phone: "0712345678", Amount: decimal.NewFromInt(100)},
	}
	for _, req := range tests {
		_, err := c.InitiatePush(context.Background(), req)
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr), "%+v", req)
	}
	assert.Zero(t, atomic.LoadInt32(&f.tokenCalls))
	assert.Zero(t, atomic.LoadInt32(&f.pushCalls))
}

func TestInitiatePushRejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"invalid request", `{"requestId":"r","errorCode":"500.001.1001","errorMessage":"Unable to lock subscriber"}`, "Invalid credentials. Please contact support."},
		{"bad phone", `{"requestId":"r","errorCode":"404.001.04","errorMessage":"Invalid Access Token"}`, "Invalid phone number format"},
		{"other", `{"requestId":"r","errorCode":"400.002.02","errorMessage":"Bad Request - Invalid Amount"}`, "Bad Request - Invalid Amount"},
		{"response code", `{"ResponseCode":"1","ResponseDescription":"Rejected"}`, "Rejected"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeDaraja{pushStatus: http.StatusBadRequest, pushResp: tc.body}
			c := newTestClient(t, f)
			_, err := c.InitiatePush(context.Background(), PushRequest{OrderID: "o1", Phone: "0712345678", Amount: decimal.NewFromInt(5)})
			var rej *GatewayRejection
			require.True(t, errors.As(err, &rej))
			assert.Equal(t, tc.msg, rej.Message)
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	c := NewDarajaClient(DarajaConfig{Shortcode: "174379"})
	_, err := c.AccessToken(context.Background())
	var cerr *ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Missing, "consumer key")

	_, err = c.InitiatePush(context.Background(), PushRequest{OrderID: "o1", Phone: "0712345678", Amount: decimal.NewFromInt(5)})
	assert.True(t, errors.As(err, &cerr))
	assert.Contains(t, cerr.Missing, "passkey")

	_, err = c.QueryStatus(context.Background(), "ws_CO_1")
	assert.True(t, errors.As(err, &cerr))
}

func TestAccessTokenAuthFailure(t *testing.T) {
	f := &fakeDaraja{tokenStatus: http.StatusBadRequest}
	c := newTestClient(t, f)
	_, err := c.AccessToken(context.Background())
	var aerr *GatewayAuthError
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, http.StatusBadRequest, aerr.StatusCode)
}

func TestQueryStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Status
	}{
		{"success", 0, `{"ResponseCode":"0","ResultCode":"0","ResultDesc":"The service request is processed successfully."}`, StatusSuccess},
		{"cancelled", 0, `{"ResponseCode":"0","ResultCode":"1032","ResultDesc":"Request cancelled by user"}`, StatusCancelled},
		{"timeout", 0, `{"ResponseCode":"0","ResultCode":"1037","ResultDesc":"DS timeout user cannot be reached"}`, StatusTimeout},
		{"wrong pin", 0, `{"ResponseCode":"0","ResultCode":"2001","ResultDesc":"The initiator information is invalid."}`, StatusFailed},
		{"insufficient funds", 0, `{"ResponseCode":"0","ResultCode":1,"ResultDesc":"The balance is insufficient"}`, StatusFailed},
		{"other failure", 0, `{"ResponseCode":"0","ResultCode":"17","ResultDesc":"System internal error."}`, StatusFailed},
		{"accepted no result", 0, `{"ResponseCode":"0","ResponseDescription":"The service request has been accepted successfully"}`, StatusPending},
		{"unknown to gateway", http.StatusInternalServerError, `{"requestId":"r","errorCode":"500.001.1001","errorMessage":"The transaction is being processed"}`, StatusPending},
		{"garbage body", http.StatusBadGateway, `<html>bad gateway</html>`, StatusError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeDaraja{queryStatus: tc.status, queryResp: tc.body}
			c := newTestClient(t, f)
			res, err := c.QueryStatus(context.Background(), "ws_CO_191220191020363925")
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Status)
			assert.NotEmpty(t, res.Message)
			assert.Equal(t, "ws_CO_191220191020363925", f.lastQuery.CheckoutRequestID)
			assert.Equal(t, "20240102060405", f.lastQuery.Timestamp)
		})
	}
}

func TestQueryStatusTransportError(t *testing.T) {
	c := NewDarajaClient(DarajaConfig{
		ConsumerKey: "key", ConsumerSecret: "secret", Passkey: "pk", Shortcode: "174379",
		BaseURL: "http://127.0.0.1:1", Timeout: time.Second,
	})
	res, err := c.QueryStatus(context.Background(), "ws_CO_1")
	require.NoError(t, err)
	assert.Equal(t, StatusError, res.Status)
}

func TestStubGateway(t *testing.T) {
	g := NewStubGateway(2)
	resp, err := g.InitiatePush(context.Background(), PushRequest{OrderID: "o1", Phone: "0712345678", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)

	r, _ := g.QueryStatus(context.Background(), resp.CheckoutRequestID)
	assert.Equal(t, StatusPending, r.Status)
	r, _ = g.QueryStatus(context.Background(), resp.CheckoutRequestID)
	assert.Equal(t, StatusSuccess, r.Status)
	r, _ = g.QueryStatus(context.Background(), "unknown")
	assert.Equal(t, StatusPending, r.Status)
}

func TestStubGateway_OnConfirmFiresOnce(t *testing.T) {
	g := NewStubGateway(1)
	var got []*Callback
	g.OnConfirm = func(_ context.Context, cb *Callback) { got = append(got, cb) }

	resp, err := g.InitiatePush(context.Background(), PushRequest{OrderID: "o1", Phone: "0712345678", Amount: decimal.NewFromInt(250)})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		r, err := g.QueryStatus(context.Background(), resp.CheckoutRequestID)
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, r.Status)
	}

	require.Len(t, got, 1)
	assert.True(t, got[0].Succeeded())
	assert.Equal(t, resp.CheckoutRequestID, got[0].CheckoutRequestID)
	assert.Equal(t, "254712345678", got[0].PhoneNumber)
	assert.True(t, got[0].Amount.Equal(decimal.NewFromInt(250)))
	assert.NotEmpty(t, got[0].ReceiptNumber)
}
