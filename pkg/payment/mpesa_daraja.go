package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	SandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	ProductionBaseURL = "https://api.safaricom.co.ke"

	transactionType = "CustomerPayBillOnline"
	timestampLayout = "20060102150405"
)

// eat is the gateway's local time zone; timestamps in the signed password use it.
var eat = time.FixedZone("EAT", 3*60*60)

// DarajaConfig is injected at startup. Env selects the base URL unless BaseURL is set.
type DarajaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	Shortcode      string
	Env            string
	BaseURL        string
	Timeout        time.Duration
}

func (c DarajaConfig) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	if c.Env == "production" {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

func (c DarajaConfig) missing(signing bool) []string {
	var m []string
	if c.ConsumerKey == "" {
		m = append(m, "consumer key")
	}
	if c.ConsumerSecret == "" {
		m = append(m, "consumer secret")
	}
	if signing {
		if c.Passkey == "" {
			m = append(m, "passkey")
		}
		if c.Shortcode == "" {
			m = append(m, "shortcode")
		}
	}
	return m
}

// DarajaClient implements Gateway against Safaricom's Daraja STK push API.
type DarajaClient struct {
	cfg    DarajaConfig
	client *http.Client
	tokens oauth2.TokenSource
	now    func() time.Time
}

func NewDarajaClient(cfg DarajaConfig) *DarajaClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := &DarajaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
	c.tokens = oauth2.ReuseTokenSource(nil, darajaTokenSource{c: c})
	return c
}

type darajaTokenSource struct {
	c *DarajaClient
}

func (s darajaTokenSource) Token() (*oauth2.Token, error) {
	return s.c.AccessToken(context.Background())
}

type tokenResp struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   flexCode `json:"expires_in"`
}

// AccessToken exchanges the consumer key/secret for a bearer token. Callers inside the
// client go through the cached token source instead.
func (c *DarajaClient) AccessToken(ctx context.Context) (*oauth2.Token, error) {
	if m := c.cfg.missing(false); len(m) > 0 {
		return nil, &ConfigurationError{Missing: m}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.baseURL()+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "token", Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().Int("status", resp.StatusCode).Str("body", string(body)).Msg("[MPESA] access token request failed")
		return nil, &GatewayAuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	var out tokenResp
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &TransportError{Op: "token", Err: err}
	}
	if out.AccessToken == "" {
		return nil, &GatewayAuthError{StatusCode: resp.StatusCode, Body: "empty access token"}
	}
	secs, _ := strconv.Atoi(string(out.ExpiresIn))
	if secs <= 0 {
		secs = 3599
	}
	return &oauth2.Token{
		AccessToken: out.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Duration(secs) * time.Second),
	}, nil
}

func (c *DarajaClient) timestamp() string {
	return c.now().In(eat).Format(timestampLayout)
}

// password is base64(shortcode + passkey + timestamp).
func (c *DarajaClient) password(ts string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.Shortcode + c.cfg.Passkey + ts))
}

type stkPushReq struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResp struct {
	MerchantRequestID   string   `json:"MerchantRequestID"`
	CheckoutRequestID   string   `json:"CheckoutRequestID"`
	ResponseCode        flexCode `json:"ResponseCode"`
	ResponseDescription string   `json:"ResponseDescription"`
	CustomerMessage     string   `json:"CustomerMessage"`
	RequestID           string   `json:"requestId"`
	ErrorCode           string   `json:"errorCode"`
	ErrorMessage        string   `json:"errorMessage"`
}

type stkQueryReq struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

type stkQueryResp struct {
	ResponseCode        flexCode `json:"ResponseCode"`
	ResponseDescription string   `json:"ResponseDescription"`
	MerchantRequestID   string   `json:"MerchantRequestID"`
	CheckoutRequestID   string   `json:"CheckoutRequestID"`
	ResultCode          flexCode `json:"ResultCode"`
	ResultDesc          string   `json:"ResultDesc"`
	RequestID           string   `json:"requestId"`
	ErrorCode           string   `json:"errorCode"`
	ErrorMessage        string   `json:"errorMessage"`
}

// DefaultAccountReference is ORDER-<first 8 chars of the order id, upper-cased>.
func DefaultAccountReference(orderID string) string {
	return "ORDER-" + strings.ToUpper(shortID(orderID))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// InitiatePush validates the request, then sends the STK push. Validation failures never
// reach the gateway.
func (c *DarajaClient) InitiatePush(ctx context.Context, req PushRequest) (*PushResponse, error) {
	phone, err := ValidatePushRequest(req)
	if err != nil {
		return nil, err
	}
	if m := c.cfg.missing(true); len(m) > 0 {
		return nil, &ConfigurationError{Missing: m}
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, err
	}
	ts := c.timestamp()
	accountRef := req.AccountReference
	if accountRef == "" {
		accountRef = DefaultAccountReference(req.OrderID)
	}
	payload := stkPushReq{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		TransactionType:   transactionType,
		Amount:            req.Amount.Round(0).IntPart(),
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       req.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   "Payment for order " + shortID(req.OrderID),
	}
	log.Info().Str("order_id", req.OrderID).Str("phone", MaskPhone(phone)).Int64("amount", payload.Amount).
		Str("callback", req.CallbackURL).Msg("[STK-PUSH] sending push request")

	var out stkPushResp
	if err := c.post(ctx, "stkpush", "/mpesa/stkpush/v1/processrequest", tok.AccessToken, payload, &out); err != nil {
		return nil, err
	}
	if out.ResponseCode != ResultCodeSuccess {
		rej := &GatewayRejection{Code: out.ErrorCode, Message: rejectionMessage(&out)}
		if rej.Code == "" {
			rej.Code = string(out.ResponseCode)
		}
		log.Warn().Str("order_id", req.OrderID).Str("code", rej.Code).Str("message", rej.Message).Msg("[STK-PUSH] push rejected")
		return nil, rej
	}
	log.Info().Str("order_id", req.OrderID).Str("checkout_request_id", out.CheckoutRequestID).Msg("[STK-PUSH] push accepted")
	return &PushResponse{
		CheckoutRequestID: out.CheckoutRequestID,
		MerchantRequestID: out.MerchantRequestID,
		CustomerMessage:   out.CustomerMessage,
	}, nil
}

func rejectionMessage(out *stkPushResp) string {
	switch {
	case out.ErrorCode == ErrorCodeInvalidRequest:
		return "Invalid credentials. Please contact support."
	case out.ErrorCode == ErrorCodeInvalidPhone:
		return "Invalid phone number format"
	case out.ErrorMessage != "":
		return out.ErrorMessage
	case out.ResponseDescription != "":
		return out.ResponseDescription
	}
	return "Failed to initiate M-Pesa payment"
}

// QueryStatus asks the gateway what happened to a push. Transport failures are reported as
// StatusError in the result; only configuration and authentication problems return an error.
func (c *DarajaClient) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	if checkoutRequestID == "" {
		return nil, &ValidationError{Field: "checkoutRequestId", Message: "Missing checkoutRequestId"}
	}
	if m := c.cfg.missing(true); len(m) > 0 {
		return nil, &ConfigurationError{Missing: m}
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return transportResult(err)
	}
	ts := c.timestamp()
	payload := stkQueryReq{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          c.password(ts),
		Timestamp:         ts,
		CheckoutRequestID: checkoutRequestID,
	}
	var out stkQueryResp
	if err := c.post(ctx, "stkpushquery", "/mpesa/stkpushquery/v1/query", tok.AccessToken, payload, &out); err != nil {
		return transportResult(err)
	}
	res := interpretQuery(&out)
	log.Debug().Str("checkout_request_id", checkoutRequestID).Stringer("status", res.Status).
		Str("result_code", res.ResultCode).Msg("[QUERY] interpreted gateway response")
	return &res, nil
}

func transportResult(err error) (*QueryResult, error) {
	var te *TransportError
	if errors.As(err, &te) {
		log.Warn().Err(err).Msg("[QUERY] gateway unreachable")
		return &QueryResult{Status: StatusError, Message: "Could not reach M-Pesa. Please try again."}, nil
	}
	return nil, err
}

// post sends a JSON request and decodes the body regardless of HTTP status; Daraja reports
// request errors as JSON with 4xx/5xx codes.
func (c *DarajaClient) post(ctx context.Context, op, path, token string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.baseURL()+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.client.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	log.Debug().Str("op", op).Int("status", resp.StatusCode).Str("body", string(respBody)).Msg("[MPESA] gateway response")
	if err := json.Unmarshal(respBody, out); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("http %d: %w", resp.StatusCode, err)}
	}
	return nil
}

// flexCode accepts codes sent either as JSON strings or numbers.
type flexCode string

func (f *flexCode) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*f = flexCode(v)
		return nil
	}
	*f = flexCode(s)
	return nil
}
