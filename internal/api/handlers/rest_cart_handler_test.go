package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/nansalmad/thriftshop/internal/api/handlers"
	"github.com/nansalmad/thriftshop/internal/api/middleware"
	"github.com/nansalmad/thriftshop/internal/identity"
	"github.com/nansalmad/thriftshop/internal/models"
	"github.com/nansalmad/thriftshop/internal/services"
)

// withOwner stands in for the session middleware on test routes.
func withOwner(owner identity.OwnerKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyOwner, owner)
		c.Next()
	}
}

func TestRestCartHandler_GetCart_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockCartSvc := new(MockCartService)
	handler := handlers.NewRestCartHandler(mockCartSvc)
	owner := identity.SessionOwner("guest-1")

	r := gin.New()
	r.GET("/v1/cart", withOwner(owner), handler.GetCart)

	expectedView := &models.CartView{
		ID:    "cart-1",
		Lines: []models.CartLine{},
		Total: models.ZeroMoney(),
	}
	mockCartSvc.On("GetCartView", mock.Anything, owner).Return(expectedView, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/cart", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &respBody)
	assert.NoError(t, err)
	assert.Equal(t, "cart-1", respBody["id"])
	mockCartSvc.AssertExpectations(t)
}

func TestRestCartHandler_AddItem_DefaultsQuantity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockCartSvc := new(MockCartService)
	handler := handlers.NewRestCartHandler(mockCartSvc)
	owner := identity.UserOwner("user-1")

	r := gin.New()
	r.POST("/v1/cart/items", withOwner(owner), handler.AddItem)

	expectedView := &models.CartView{ID: "cart-1"}
	// Quantity omitted in the request body arrives as 1.
	mockCartSvc.On("AddItem", mock.Anything, owner, "listing-1", int64(1)).Return(expectedView, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/cart/items", strings.NewReader(`{"listing_id":"listing-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockCartSvc.AssertExpectations(t)
}

func TestRestCartHandler_AddItem_MissingListingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockCartSvc := new(MockCartService)
	handler := handlers.NewRestCartHandler(mockCartSvc)

	r := gin.New()
	r.POST("/v1/cart/items", withOwner(identity.UserOwner("user-1")), handler.AddItem)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", "/v1/cart/items", strings.NewReader(`{"quantity":2}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockCartSvc.AssertNotCalled(t, "AddItem")
}

func TestRestCartHandler_ServiceErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	owner := identity.UserOwner("user-1")

	cases := []struct {
		name       string
		serviceErr error
		wantStatus int
	}{
		{"not found", fmt.Errorf("item: %w", services.ErrNotFound), http.StatusNotFound},
		{"permission denied", fmt.Errorf("item: %w", services.ErrPermissionDenied), http.StatusForbidden},
		{"invalid argument", fmt.Errorf("quantity: %w", services.ErrInvalidArgument), http.StatusBadRequest},
		{"conflict", fmt.Errorf("already sold: %w", services.ErrConflict), http.StatusConflict},
		{"unclassified", fmt.Errorf("mongo went away"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mockCartSvc := new(MockCartService)
			handler := handlers.NewRestCartHandler(mockCartSvc)
			r := gin.New()
			r.DELETE("/v1/cart/items/:item_id", withOwner(owner), handler.RemoveItem)

			mockCartSvc.On("RemoveItem", mock.Anything, owner, "item-1").Return(nil, tc.serviceErr)

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("DELETE", "/v1/cart/items/item-1", nil)
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			mockCartSvc.AssertExpectations(t)
		})
	}

	// Unclassified errors must not leak internals to the client.
	mockCartSvc := new(MockCartService)
	handler := handlers.NewRestCartHandler(mockCartSvc)
	r := gin.New()
	r.GET("/v1/cart", withOwner(owner), handler.GetCart)
	mockCartSvc.On("GetCartView", mock.Anything, owner).Return(nil, fmt.Errorf("mongo went away"))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/v1/cart", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "mongo")
}

func TestRestCartHandler_SetItemQuantity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockCartSvc := new(MockCartService)
	handler := handlers.NewRestCartHandler(mockCartSvc)
	owner := identity.SessionOwner("guest-2")

	r := gin.New()
	r.PATCH("/v1/cart/items/:item_id", withOwner(owner), handler.SetItemQuantity)

	expectedView := &models.CartView{ID: "cart-9"}
	mockCartSvc.On("SetItemQuantity", mock.Anything, owner, "item-3", int64(4)).Return(expectedView, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("PATCH", "/v1/cart/items/item-3", strings.NewReader(`{"quantity":4}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockCartSvc.AssertExpectations(t)
}
