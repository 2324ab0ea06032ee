package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nansalmad/thriftshop/internal/auth"
	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/services"
)

// RestAuthHandler handles registration and login.
type RestAuthHandler struct {
	cfg         *config.Config
	userService services.IUserService
}

// NewRestAuthHandler creates a new RestAuthHandler.
func NewRestAuthHandler(cfg *config.Config, userService services.IUserService) *RestAuthHandler {
	return &RestAuthHandler{cfg: cfg, userService: userService}
}

type registerRequest struct {
	Username  string `json:"username" binding:"required"`
	Email     string `json:"email" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Register handles POST /v1/auth/register.
func (h *RestAuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.userService.Register(c.Request.Context(), services.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Username, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user, "token": token})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /v1/auth/login.
func (h *RestAuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	user, err := h.userService.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		// Bad credentials surface as 401 rather than the generic 403 mapping.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := auth.GenerateJWT(user.ID, user.Username, h.cfg.JwtSecret, h.cfg.JwtTTL)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "token": token})
}
