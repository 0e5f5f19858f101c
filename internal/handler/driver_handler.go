package handler

import (
	"errors"
	"net/http"
	"strconv"

	"salonshop/internal/middleware"
	"salonshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type DriverHandler struct {
	svc *service.DeliveryService
}

func NewDriverHandler(svc *service.DeliveryService) *DriverHandler {
	return &DriverHandler{svc: svc}
}

// AvailableJobs handles GET /driver/jobs.
func (h *DriverHandler) AvailableJobs(c *gin.Context) {
	jobs, err := h.svc.AvailableJobs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load jobs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": jobs})
}

// Accept handles POST /driver/jobs/:orderId/accept.
func (h *DriverHandler) Accept(c *gin.Context) {
	a, err := h.svc.Accept(c.Param("orderId"), middleware.GetUserID(c))
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// Advance handles POST /driver/deliveries/:id/advance.
func (h *DriverHandler) Advance(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	a, err := h.svc.Advance(c.Request.Context(), uint(id), middleware.GetUserID(c))
	if err != nil {
		writeDeliveryError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Active handles GET /driver/deliveries/active.
func (h *DriverHandler) Active(c *gin.Context) {
	list, err := h.svc.Active(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load deliveries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

// Completed handles GET /driver/deliveries/completed.
func (h *DriverHandler) Completed(c *gin.Context) {
	list, err := h.svc.Completed(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load deliveries"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list})
}

func writeDeliveryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrJobUnavailable), errors.Is(err, service.ErrDeliveryConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDeliveryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDeliveryFinished):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("[DELIVERY] request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
