package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nansalmad/thriftshop/internal/api/middleware"
	"github.com/nansalmad/thriftshop/internal/services"
)

// RestMessageHandler handles REST requests for peer messaging.
type RestMessageHandler struct {
	messageService services.IMessageService
}

// NewRestMessageHandler creates a new RestMessageHandler.
func NewRestMessageHandler(messageService services.IMessageService) *RestMessageHandler {
	return &RestMessageHandler{messageService: messageService}
}

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id" binding:"required"`
	ListingID   string `json:"listing_id"`
	Content     string `json:"content" binding:"required"`
}

// SendMessage handles POST /v1/messages.
func (h *RestMessageHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	message, err := h.messageService.SendMessage(c.Request.Context(), middleware.CurrentUserID(c), req.RecipientID, req.ListingID, req.Content)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, message)
}

// ListInbox handles GET /v1/messages.
func (h *RestMessageHandler) ListInbox(c *gin.Context) {
	messages, err := h.messageService.ListInbox(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	unread, err := h.messageService.UnreadCount(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": messages, "unread": unread})
}

// GetConversation handles GET /v1/messages/with/:user_id.
func (h *RestMessageHandler) GetConversation(c *gin.Context) {
	messages, err := h.messageService.ListConversation(c.Request.Context(), middleware.CurrentUserID(c), c.Param("user_id"))
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": messages})
}

// MarkRead handles POST /v1/messages/:id/read.
func (h *RestMessageHandler) MarkRead(c *gin.Context) {
	if err := h.messageService.MarkRead(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
