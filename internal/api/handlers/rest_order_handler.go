package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nansalmad/thriftshop/internal/api/middleware"
	"github.com/nansalmad/thriftshop/internal/models"
	"github.com/nansalmad/thriftshop/internal/services"
)

// RestOrderHandler handles REST requests for orders.
type RestOrderHandler struct {
	orderService services.IOrderService
}

// NewRestOrderHandler creates a new RestOrderHandler.
func NewRestOrderHandler(orderService services.IOrderService) *RestOrderHandler {
	return &RestOrderHandler{orderService: orderService}
}

type placeOrderRequest struct {
	ShippingName    string `json:"shipping_name" binding:"required"`
	ShippingPhone   string `json:"shipping_phone" binding:"required"`
	ShippingAddress string `json:"shipping_address" binding:"required"`
}

// PlaceOrder handles POST /v1/orders: checkout of the current cart.
func (h *RestOrderHandler) PlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	order, err := h.orderService.PlaceOrder(c.Request.Context(), middleware.CurrentOwner(c), models.ShippingInfo{
		Name:    req.ShippingName,
		Phone:   req.ShippingPhone,
		Address: req.ShippingAddress,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// ListOrders handles GET /v1/orders: the caller's purchase history.
func (h *RestOrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.ListOrders(c.Request.Context(), middleware.CurrentOwner(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

// GetOrder handles GET /v1/orders/:id.
func (h *RestOrderHandler) GetOrder(c *gin.Context) {
	order, err := h.orderService.FindOrderByID(c.Request.Context(), middleware.CurrentOwner(c), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// ListSales handles GET /v1/sales: orders containing the caller's items.
func (h *RestOrderHandler) ListSales(c *gin.Context) {
	orders, err := h.orderService.ListSales(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

// ListPurchasedListings handles GET /v1/purchases: the distinct listings the
// caller has bought in delivered orders.
func (h *RestOrderHandler) ListPurchasedListings(c *gin.Context) {
	ids, err := h.orderService.PurchasedListingIDs(c.Request.Context(), middleware.CurrentOwner(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ids})
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus handles PATCH /v1/orders/:id/status.
func (h *RestOrderHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	order, err := h.orderService.UpdateOrderStatus(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), models.OrderStatus(req.Status))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type updatePaymentRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

// UpdatePayment handles PATCH /v1/orders/:id/payment.
func (h *RestOrderHandler) UpdatePayment(c *gin.Context) {
	var req updatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	order, err := h.orderService.UpdatePaymentStatus(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), models.PaymentStatus(req.PaymentStatus))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
