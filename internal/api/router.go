package api

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nansalmad/thriftshop/internal/api/handlers"
	"github.com/nansalmad/thriftshop/internal/api/middleware"
	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/identity"
	"github.com/nansalmad/thriftshop/internal/services"
	"github.com/nansalmad/thriftshop/internal/storage"
	"github.com/nansalmad/thriftshop/internal/tasks"
)

// SetupRouter configures and returns the main Gin engine.
func SetupRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, taskClient tasks.IEnqueuer) *gin.Engine {
	// Initialize services needed by API handlers here.
	userService := services.NewUserService(db, cfg)
	categoryService := services.NewCategoryService(db)
	listingService := services.NewListingService(db, cfg)
	cartService := services.NewCartService(db, listingService)
	orderService := services.NewOrderService(db, listingService, cartService, taskClient)
	ratingService := services.NewRatingService(db, orderService)
	messageService := services.NewMessageService(db, userService)

	s3StorageService, err := storage.NewS3Storage(cfg)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize S3 storage for API: %v", err)
	}

	sessionResolver := identity.NewResolver(rdb, cfg.GuestSessionTTL)

	r := gin.Default()

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg)

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization", middleware.SessionHeader)
	corsCfg.ExposeHeaders = []string{middleware.SessionHeader}
	corsCfg.MaxAge = 12 * time.Hour

	r.Use(cors.New(corsCfg))
	r.Use(rateLimiter.Limit())

	// Initialize handlers
	authHandler := handlers.NewRestAuthHandler(cfg, userService)
	userHandler := handlers.NewRestUserHandler(cfg, rdb, userService, taskClient)
	categoryHandler := handlers.NewRestCategoryHandler(categoryService)
	listingHandler := handlers.NewRestListingHandler(cfg, rdb, listingService, s3StorageService, taskClient)
	cartHandler := handlers.NewRestCartHandler(cartService)
	orderHandler := handlers.NewRestOrderHandler(orderService)
	ratingHandler := handlers.NewRestRatingHandler(ratingService)
	messageHandler := handlers.NewRestMessageHandler(messageService)

	v1 := r.Group("/v1")
	{
		// Public routes
		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)

		v1.GET("/categories", categoryHandler.ListCategories)
		v1.GET("/categories/:id", categoryHandler.GetCategory)

		v1.GET("/listing/search", listingHandler.SearchListings)
		v1.GET("/listing/:id/image", listingHandler.GetListingImageURL)

		v1.GET("/user/:id", userHandler.GetUserByID)
		v1.GET("/user/:id/listing", listingHandler.GetSellerListings)
		v1.GET("/user/:id/ratings", ratingHandler.GetSellerRatings)

		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})

		// Listing detail decodes the JWT when present so sellers can see
		// their own sold listings.
		v1.GET("/listing/:id", middleware.OptionalAuthMiddleware(cfg.JwtSecret), listingHandler.GetListingByID)

		// Cart and checkout work for guests and users alike; the session
		// middleware resolves who the owner is.
		shopping := v1.Group("/")
		shopping.Use(middleware.OptionalAuthMiddleware(cfg.JwtSecret), middleware.SessionMiddleware(sessionResolver))
		{
			shopping.GET("/cart", cartHandler.GetCart)
			shopping.POST("/cart/items", cartHandler.AddItem)
			shopping.PATCH("/cart/items/:item_id", cartHandler.SetItemQuantity)
			shopping.DELETE("/cart/items/:item_id", cartHandler.RemoveItem)

			shopping.POST("/orders", orderHandler.PlaceOrder)
			shopping.GET("/orders", orderHandler.ListOrders)
			shopping.GET("/orders/:id", orderHandler.GetOrder)
			shopping.GET("/purchases", orderHandler.ListPurchasedListings)
		}

		// Authenticated routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.POST("/listing", listingHandler.CreateListing)
			authRequired.PATCH("/listing/:id", listingHandler.UpdateListing)
			authRequired.DELETE("/listing/:id", listingHandler.DeleteListing)
			authRequired.POST("/listing/:id/image", listingHandler.UploadListingImage)

			authRequired.POST("/categories", categoryHandler.CreateCategory)
			authRequired.PUT("/categories/:id", categoryHandler.UpdateCategory)
			authRequired.DELETE("/categories/:id", categoryHandler.DeleteCategory)

			authRequired.GET("/sales", orderHandler.ListSales)
			authRequired.PATCH("/orders/:id/status", orderHandler.UpdateStatus)
			authRequired.PATCH("/orders/:id/payment", orderHandler.UpdatePayment)

			authRequired.POST("/ratings", ratingHandler.SubmitRating)
			authRequired.GET("/me/ratings", ratingHandler.GetMyRatings)

			authRequired.POST("/messages", messageHandler.SendMessage)
			authRequired.GET("/messages", messageHandler.ListInbox)
			authRequired.GET("/messages/with/:user_id", messageHandler.GetConversation)
			authRequired.POST("/messages/:id/read", messageHandler.MarkRead)

			authRequired.GET("/me", userHandler.GetMe)
			authRequired.PATCH("/me", userHandler.UpdateMe)
			authRequired.POST("/me/profile-image", userHandler.UploadProfileImage)
		}
	}

	return r
}
