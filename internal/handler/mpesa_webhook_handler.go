package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"salonshop/internal/metrics"
	"salonshop/internal/service"
	"salonshop/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// maxCallbackBody caps what we read from the gateway.
const maxCallbackBody = 1 << 20

var callbackAck = gin.H{"ResultCode": 0, "ResultDesc": "Accepted"}

type MpesaWebhookHandler struct {
	svc *service.PaymentService
}

func NewMpesaWebhookHandler(svc *service.PaymentService) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{svc: svc}
}

// Handle processes the Daraja STK callback. Every path, including malformed bodies,
// storage errors and panics, answers 200 with the acknowledgement so the gateway
// stops retrying.
func (h *MpesaWebhookHandler) Handle(c *gin.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("[CALLBACK] recovered")
			c.JSON(http.StatusOK, callbackAck)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxCallbackBody))
	if err != nil {
		log.Error().Err(err).Msg("[CALLBACK] read body")
		c.JSON(http.StatusOK, callbackAck)
		return
	}
	log.Info().RawJSON("body", jsonOrQuoted(body)).Msg("[CALLBACK] received")

	cb, err := payment.ParseCallback(body)
	if err != nil {
		metrics.Callbacks.WithLabelValues("malformed").Inc()
		log.Warn().Err(err).Msg("[CALLBACK] malformed payload ignored")
		c.JSON(http.StatusOK, callbackAck)
		return
	}
	if err := h.svc.HandleCallback(c.Request.Context(), cb); err != nil {
		log.Error().Err(err).Str("checkout_request_id", cb.CheckoutRequestID).Msg("[CALLBACK] processing failed")
	}
	c.JSON(http.StatusOK, callbackAck)
}

// jsonOrQuoted keeps valid JSON bodies structured in the log line.
func jsonOrQuoted(b []byte) []byte {
	if len(b) > 0 && (b[0] == '{' || b[0] == '[') && json.Valid(b) {
		return b
	}
	q, _ := json.Marshal(string(b))
	return q
}
