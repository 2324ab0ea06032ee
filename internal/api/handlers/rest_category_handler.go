package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nansalmad/thriftshop/internal/services"
)

// RestCategoryHandler handles REST requests for categories.
type RestCategoryHandler struct {
	categoryService services.ICategoryService
}

// NewRestCategoryHandler creates a new RestCategoryHandler.
func NewRestCategoryHandler(categoryService services.ICategoryService) *RestCategoryHandler {
	return &RestCategoryHandler{categoryService: categoryService}
}

// ListCategories handles GET /v1/categories.
func (h *RestCategoryHandler) ListCategories(c *gin.Context) {
	categories, err := h.categoryService.ListCategories(c.Request.Context())
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": categories})
}

// GetCategory handles GET /v1/categories/:id.
func (h *RestCategoryHandler) GetCategory(c *gin.Context) {
	category, err := h.categoryService.FindCategoryByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

type categoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateCategory handles POST /v1/categories.
func (h *RestCategoryHandler) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	category, err := h.categoryService.CreateCategory(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

// UpdateCategory handles PUT /v1/categories/:id.
func (h *RestCategoryHandler) UpdateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Request.Context(), c.Param("id"), req.Name, req.Description)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, category)
}

// DeleteCategory handles DELETE /v1/categories/:id.
func (h *RestCategoryHandler) DeleteCategory(c *gin.Context) {
	if err := h.categoryService.DeleteCategory(c.Request.Context(), c.Param("id")); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
