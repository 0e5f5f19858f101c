package handler

import (
	"errors"
	"net/http"

	"salonshop/internal/service"
	"salonshop/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const pushSentMessage = "STK push sent successfully. Please check your phone and enter your M-Pesa PIN."

type MpesaHandler struct {
	svc *service.PaymentService
}

func NewMpesaHandler(svc *service.PaymentService) *MpesaHandler {
	return &MpesaHandler{svc: svc}
}

type stkPushRequest struct {
	Phone            string          `json:"phone"`
	Amount           decimal.Decimal `json:"amount"`
	OrderID          string          `json:"orderId"`
	AccountReference string          `json:"accountReference"`
}

// STKPush handles POST /payments/mpesa/stk-push.
func (h *MpesaHandler) STKPush(c *gin.Context) {
	var req stkPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request body"})
		return
	}
	if req.Phone == "" || req.OrderID == "" || req.Amount.IsZero() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing required fields: phone, amount, orderId"})
		return
	}
	resp, err := h.svc.InitiatePush(c.Request.Context(), service.PushInput{
		OrderID:          req.OrderID,
		Phone:            req.Phone,
		Amount:           req.Amount,
		AccountReference: req.AccountReference,
	})
	if err != nil {
		status, msg := pushErrorResponse(err)
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"message":           pushSentMessage,
		"checkoutRequestId": resp.CheckoutRequestID,
		"merchantRequestId": resp.MerchantRequestID,
	})
}

func pushErrorResponse(err error) (int, string) {
	var (
		verr *payment.ValidationError
		rej  *payment.GatewayRejection
		cerr *payment.ConfigurationError
		aerr *payment.GatewayAuthError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &rej):
		return http.StatusBadRequest, rej.Message
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	case errors.Is(err, service.ErrOrderNotPayable):
		return http.StatusConflict, "Order is not awaiting payment"
	case errors.As(err, &cerr):
		return http.StatusInternalServerError, "M-Pesa is not configured. Please contact support."
	case errors.As(err, &aerr):
		return http.StatusInternalServerError, "Failed to authenticate with M-Pesa"
	}
	return http.StatusInternalServerError, "Failed to initiate M-Pesa payment"
}

type stkQueryRequest struct {
	CheckoutRequestID string `json:"checkoutRequestId"`
}

// Query handles POST /payments/mpesa/query. It only reads; the callback settles orders.
func (h *MpesaHandler) Query(c *gin.Context) {
	var req stkQueryRequest
	_ = c.ShouldBindJSON(&req)
	if req.CheckoutRequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing checkoutRequestId"})
		return
	}
	res, err := h.svc.QueryStatus(c.Request.Context(), req.CheckoutRequestID)
	if err != nil {
		var (
			verr *payment.ValidationError
			aerr *payment.GatewayAuthError
		)
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": verr.Message})
		case errors.As(err, &aerr):
			c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "Failed to authenticate with M-Pesa", "status": payment.StatusError})
		default:
			log.Error().Err(err).Msg("[QUERY] query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "M-Pesa is not configured. Please contact support.", "status": payment.StatusError})
		}
		return
	}
	body := gin.H{"success": true, "status": res.Status, "message": res.Message}
	if res.ResultCode != "" {
		body["resultCode"] = res.ResultCode
	}
	if res.ResultDesc != "" {
		body["resultDesc"] = res.ResultDesc
	}
	c.JSON(http.StatusOK, body)
}
