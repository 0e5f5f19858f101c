package handler

import (
	"errors"
	"net/http"
	"strconv"

	"salonshop/internal/repository"
	"salonshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type AdminHandler struct {
	orders    *service.OrderService
	authSvc   *service.AuthService
	adminRepo *repository.AdminRepository
}

func NewAdminHandler(orders *service.OrderService, authSvc *service.AuthService, adminRepo *repository.AdminRepository) *AdminHandler {
	return &AdminHandler{orders: orders, authSvc: authSvc, adminRepo: adminRepo}
}

// ListOrders handles GET /admin/orders.
func (h *AdminHandler) ListOrders(c *gin.Context) {
	page, limit := parsePagination(c)
	f := repository.OrderFilter{
		Status:        c.Query("status"),
		PaymentMethod: c.Query("payment_method"),
		Search:        c.Query("search"),
	}
	list, total, err := h.orders.List(f, page, limit)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "total": total, "page": page, "limit": limit})
}

// UpdateOrderStatus handles PATCH /admin/orders/:id/status.
func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.orders.UpdateStatus(c.Param("id"), req.Status); err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetPaymentReference handles PATCH /admin/orders/:id/payment-reference.
func (h *AdminHandler) SetPaymentReference(c *gin.Context) {
	var req struct {
		PaymentReference string `json:"payment_reference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.orders.SetPaymentReference(c.Param("id"), req.PaymentReference); err != nil {
		writeOrderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListUsers handles GET /admin/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, limit := parsePagination(c)
	users, total, err := h.adminRepo.ListUsers(c.Query("role"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": users, "total": total, "page": page, "limit": limit})
}

// CreateStaff handles POST /admin/users, used to onboard drivers and other admins.
func (h *AdminHandler) CreateStaff(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Phone    string `json:"phone"`
		Password string `json:"password" binding:"required,min=8"`
		Role     string `json:"role" binding:"required,oneof=ADMIN DRIVER"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.authSvc.CreateUser(req.Name, req.Email, req.Phone, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidRole), errors.Is(err, service.ErrWeakPassword):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error().Err(err).Str("role", req.Role).Msg("[ADMIN] create staff failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		}
		return
	}
	c.JSON(http.StatusCreated, u)
}

// UpdateUserRole handles PATCH /admin/users/:id/role.
func (h *AdminHandler) UpdateUserRole(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req struct {
		Role string `json:"role" binding:"required,oneof=CUSTOMER ADMIN DRIVER"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.adminRepo.UpdateUser(uint(id), map[string]interface{}{"role": req.Role}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
