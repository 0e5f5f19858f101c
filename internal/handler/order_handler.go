package handler

import (
	"errors"
	"net/http"

	"salonshop/internal/middleware"
	"salonshop/internal/service"
	"salonshop/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type OrderHandler struct {
	svc *service.OrderService
}

func NewOrderHandler(svc *service.OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type checkoutItemRequest struct {
	ProductID   *uint           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity" binding:"required,min=1"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type checkoutRequest struct {
	CustomerName    string                `json:"customer_name" binding:"required"`
	CustomerEmail   string                `json:"customer_email"`
	CustomerPhone   string                `json:"customer_phone" binding:"required"`
	DeliveryAddress string                `json:"delivery_address" binding:"required"`
	DeliveryCity    string                `json:"delivery_city" binding:"required"`
	Notes           string                `json:"notes"`
	PaymentMethod   string                `json:"payment_method" binding:"required,oneof=mpesa pay_on_delivery"`
	Items           []checkoutItemRequest `json:"items" binding:"required,min=1,dive"`
}

// Create handles POST /orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, service.CheckoutItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	o, err := h.svc.Checkout(c.Request.Context(), service.CheckoutInput{
		UserID:          middleware.GetUserID(c),
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryCity:    req.DeliveryCity,
		Notes:           req.Notes,
		PaymentMethod:   req.PaymentMethod,
		Items:           items,
	})
	if err != nil {
		var verr *payment.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message})
		case errors.Is(err, service.ErrEmptyCart), errors.Is(err, service.ErrInvalidItem),
			errors.Is(err, service.ErrUnknownProduct), errors.Is(err, service.ErrInvalidPaymentMethod),
			errors.Is(err, service.ErrMissingDeliveryInfo):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error().Err(err).Msg("[ORDER] checkout failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to place order"})
		}
		return
	}
	c.JSON(http.StatusCreated, o)
}

// Get handles GET /orders/:id for the owner or an admin.
func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.svc.GetForUser(c.Param("id"), middleware.GetUserID(c), middleware.GetRole(c))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// ListMine handles GET /orders.
func (h *OrderHandler) ListMine(c *gin.Context) {
	page, limit := parsePagination(c)
	list, total, err := h.svc.ListForUser(middleware.GetUserID(c), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("[ORDER] request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
