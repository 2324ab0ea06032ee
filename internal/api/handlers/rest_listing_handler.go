package handlers

import (
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/nansalmad/thriftshop/internal/api/middleware"
	"github.com/nansalmad/thriftshop/internal/cache"
	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/models"
	"github.com/nansalmad/thriftshop/internal/services"
	"github.com/nansalmad/thriftshop/internal/storage"
	"github.com/nansalmad/thriftshop/internal/tasks"
)

// RestListingHandler handles REST requests for the catalog.
type RestListingHandler struct {
	cfg            *config.Config
	rdb            *redis.Client
	listingService services.IListingService
	storageService storage.IS3Storage
	taskClient     tasks.IEnqueuer
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(cfg *config.Config, rdb *redis.Client, listingService services.IListingService, storageService storage.IS3Storage, taskClient tasks.IEnqueuer) *RestListingHandler {
	return &RestListingHandler{
		cfg:            cfg,
		rdb:            rdb,
		listingService: listingService,
		storageService: storageService,
		taskClient:     taskClient,
	}
}

type createListingRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	Price       string `json:"price" binding:"required"`
	PhoneNumber string `json:"phone_number"`
	CategoryID  string `json:"category_id"`
	Gender      string `json:"gender" binding:"required"`
	Condition   string `json:"condition" binding:"required"`
}

// CreateListing handles POST /v1/listing.
func (h *RestListingHandler) CreateListing(c *gin.Context) {
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	price, err := models.MoneyFromString(req.Price)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price format"})
		return
	}

	listing, err := h.listingService.CreateListing(c.Request.Context(), middleware.CurrentUserID(c), services.ListingInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       price,
		PhoneNumber: req.PhoneNumber,
		CategoryID:  req.CategoryID,
		Gender:      models.Gender(req.Gender),
		Condition:   models.Condition(req.Condition),
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// SearchListings handles GET /v1/listing/search.
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	listings, err := h.listingService.SearchListings(c.Request.Context(), services.ListingFilter{
		Query:      c.Query("q"),
		CategoryID: c.Query("category_id"),
		Gender:     models.Gender(c.Query("gender")),
		Condition:  models.Condition(c.Query("condition")),
		Limit:      limit,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": listings})
}

// GetListingByID handles GET /v1/listing/:id. Sold listings are only visible
// to their seller.
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	listing, err := h.listingService.FindListingByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if listing.IsSold && listing.SellerID != middleware.CurrentUserID(c) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found"})
		return
	}
	c.JSON(http.StatusOK, listing)
}

// UpdateListing handles PATCH /v1/listing/:id.
func (h *RestListingHandler) UpdateListing(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	listing, err := h.listingService.UpdateListing(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c), updates)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// DeleteListing handles DELETE /v1/listing/:id.
func (h *RestListingHandler) DeleteListing(c *gin.Context) {
	err := h.listingService.DeleteListing(c.Request.Context(), c.Param("id"), middleware.CurrentUserID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSellerListings handles GET /v1/user/:id/listing. The sold query
// parameter splits the "selling" and "sold" profile views.
func (h *RestListingHandler) GetSellerListings(c *gin.Context) {
	var sold *bool
	if soldStr := c.Query("sold"); soldStr != "" {
		parsed, err := strconv.ParseBool(soldStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sold parameter"})
			return
		}
		sold = &parsed
	}

	listings, err := h.listingService.FindListingsBySeller(c.Request.Context(), c.Param("id"), sold)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": listings})
}

type uploadImageRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
}

// UploadListingImage handles POST /v1/listing/:id/image. The raw bytes are
// staged in Redis and a background task normalizes and stores them; the
// image key lands on the listing when the worker finishes.
func (h *RestListingHandler) UploadListingImage(c *gin.Context) {
	listingID := c.Param("id")

	listing, err := h.listingService.FindListingByID(c.Request.Context(), listingID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if listing.SellerID != middleware.CurrentUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the seller can upload listing images"})
		return
	}

	var req uploadImageRequest
	if err = c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base64 image data"})
		return
	}
	maxSizeBytes := h.cfg.ImageMaxSizeMB * 1024 * 1024
	if len(data) > maxSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Image exceeds %d MB", h.cfg.ImageMaxSizeMB)})
		return
	}

	stagingKey := "image_staging:" + models.NewID()
	if err = cache.StageImage(c.Request.Context(), h.rdb, stagingKey, data, h.cfg.ImageStagingTTL); err != nil {
		abortWithServiceError(c, err)
		return
	}

	task, err := tasks.NewImageProcessTask(tasks.ImageTargetListing, listingID, stagingKey)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if _, err = h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		log.Printf("Failed to enqueue image task for listing %s: %v", listingID, err)
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
}

// GetListingImageURL handles GET /v1/listing/:id/image. Returns a short
// lived pre-signed URL for the stored image.
func (h *RestListingHandler) GetListingImageURL(c *gin.Context) {
	listing, err := h.listingService.FindListingByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if listing.ImageKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Listing has no image"})
		return
	}

	url, err := h.storageService.GeneratePresignedGetURL(c.Request.Context(), listing.ImageKey)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
