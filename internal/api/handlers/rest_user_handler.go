package handlers

import (
	"encoding/base64"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/nansalmad/thriftshop/internal/api/middleware"
	"github.com/nansalmad/thriftshop/internal/cache"
	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/models"
	"github.com/nansalmad/thriftshop/internal/services"
	"github.com/nansalmad/thriftshop/internal/tasks"
)

// RestUserHandler handles REST requests for user profiles.
type RestUserHandler struct {
	cfg         *config.Config
	rdb         *redis.Client
	userService services.IUserService
	taskClient  tasks.IEnqueuer
}

// NewRestUserHandler creates a new RestUserHandler.
func NewRestUserHandler(cfg *config.Config, rdb *redis.Client, userService services.IUserService, taskClient tasks.IEnqueuer) *RestUserHandler {
	return &RestUserHandler{cfg: cfg, rdb: rdb, userService: userService, taskClient: taskClient}
}

// publicProfile is what other users see of an account.
type publicProfile struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	ProfileImage string `json:"profile_image,omitempty"`
}

// GetUserByID handles GET /v1/user/:id. Email stays private.
func (h *RestUserHandler) GetUserByID(c *gin.Context) {
	user, err := h.userService.FindUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, publicProfile{
		ID:           user.ID,
		Username:     user.Username,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		ProfileImage: user.ProfileImageKey,
	})
}

// GetMe handles GET /v1/me: the caller's full profile plus what is still
// missing from it.
func (h *RestUserHandler) GetMe(c *gin.Context) {
	user, err := h.userService.FindUserByID(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":           user,
		"complete":       user.IsProfileComplete(),
		"missing_fields": user.MissingProfileFields(),
	})
}

// UpdateMe handles PATCH /v1/me.
func (h *RestUserHandler) UpdateMe(c *gin.Context) {
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), updates)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type uploadProfileImageRequest struct {
	ImageBase64 string `json:"image_base64" binding:"required"`
}

// UploadProfileImage handles POST /v1/me/profile-image. Same staging
// pipeline as listing images.
func (h *RestUserHandler) UploadProfileImage(c *gin.Context) {
	var req uploadProfileImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.ImageBase64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid base64 image data"})
		return
	}
	if len(data) > h.cfg.ImageMaxSizeMB*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image too large"})
		return
	}

	stagingKey := "image_staging:" + models.NewID()
	if err = cache.StageImage(c.Request.Context(), h.rdb, stagingKey, data, h.cfg.ImageStagingTTL); err != nil {
		abortWithServiceError(c, err)
		return
	}

	task, err := tasks.NewImageProcessTask(tasks.ImageTargetProfile, middleware.CurrentUserID(c), stagingKey)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if _, err = h.taskClient.EnqueueContext(c.Request.Context(), task); err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "processing"})
}
