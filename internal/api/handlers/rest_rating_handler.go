package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nansalmad/thriftshop/internal/api/middleware"
	"github.com/nansalmad/thriftshop/internal/services"
)

// RestRatingHandler handles REST requests for seller ratings.
type RestRatingHandler struct {
	ratingService services.IRatingService
}

// NewRestRatingHandler creates a new RestRatingHandler.
func NewRestRatingHandler(ratingService services.IRatingService) *RestRatingHandler {
	return &RestRatingHandler{ratingService: ratingService}
}

type submitRatingRequest struct {
	OrderID  string `json:"order_id" binding:"required"`
	SellerID string `json:"seller_id" binding:"required"`
	Rating   int    `json:"rating" binding:"required"`
	Comment  string `json:"comment"`
}

// SubmitRating handles POST /v1/ratings.
func (h *RestRatingHandler) SubmitRating(c *gin.Context) {
	var req submitRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	rating, err := h.ratingService.SubmitRating(c.Request.Context(), middleware.CurrentUserID(c), req.OrderID, req.SellerID, req.Rating, req.Comment)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}

// GetSellerRatings handles GET /v1/user/:id/ratings: the ratings a seller
// has received plus their aggregate score.
func (h *RestRatingHandler) GetSellerRatings(c *gin.Context) {
	sellerID := c.Param("id")

	ratings, err := h.ratingService.ListRatingsForSeller(c.Request.Context(), sellerID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	score, err := h.ratingService.SellerScore(c.Request.Context(), sellerID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": ratings, "score": score})
}

// GetMyRatings handles GET /v1/me/ratings: ratings the caller has given.
func (h *RestRatingHandler) GetMyRatings(c *gin.Context) {
	ratings, err := h.ratingService.ListRatingsByBuyer(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ratings})
}
