package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nansalmad/thriftshop/internal/api/middleware"
	"github.com/nansalmad/thriftshop/internal/services"
)

// RestCartHandler handles REST requests for the shopping cart. All routes
// run behind the session middleware, so guests and authenticated users hit
// the same endpoints.
type RestCartHandler struct {
	cartService services.ICartService
}

// NewRestCartHandler creates a new RestCartHandler.
func NewRestCartHandler(cartService services.ICartService) *RestCartHandler {
	return &RestCartHandler{cartService: cartService}
}

// GetCart handles GET /v1/cart.
func (h *RestCartHandler) GetCart(c *gin.Context) {
	view, err := h.cartService.GetCartView(c.Request.Context(), middleware.CurrentOwner(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type addItemRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
	Quantity  int64  `json:"quantity"`
}

// AddItem handles POST /v1/cart/items. Quantity defaults to 1.
func (h *RestCartHandler) AddItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.cartService.AddItem(c.Request.Context(), middleware.CurrentOwner(c), req.ListingID, req.Quantity)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type setQuantityRequest struct {
	Quantity int64 `json:"quantity" binding:"required"`
}

// SetItemQuantity handles PATCH /v1/cart/items/:item_id.
func (h *RestCartHandler) SetItemQuantity(c *gin.Context) {
	var req setQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	view, err := h.cartService.SetItemQuantity(c.Request.Context(), middleware.CurrentOwner(c), c.Param("item_id"), req.Quantity)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RemoveItem handles DELETE /v1/cart/items/:item_id.
func (h *RestCartHandler) RemoveItem(c *gin.Context) {
	view, err := h.cartService.RemoveItem(c.Request.Context(), middleware.CurrentOwner(c), c.Param("item_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
