package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/nansalmad/thriftshop/internal/api"
	"github.com/nansalmad/thriftshop/internal/cache"
	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/db"
	"github.com/nansalmad/thriftshop/internal/email"
	"github.com/nansalmad/thriftshop/internal/services"
	"github.com/nansalmad/thriftshop/internal/storage"
	"github.com/nansalmad/thriftshop/internal/tasks"
	"github.com/nansalmad/thriftshop/internal/worker"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'worker', 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	if err = db.EnsureIndexes(context.Background(), mongoDb); err != nil {
		log.Fatalf("Failed to ensure indexes: %v", err)
	}

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	// Email sender: Redis mock in test setups, SMTP (or logging) otherwise.
	var primaryEmailSender email.Sender
	if os.Getenv("MOCK_SERVICES") == "true" {
		log.Println("MOCK_SERVICES enabled: Using Redis email sender.")
		primaryEmailSender = email.NewRedisSender(redisClient, cfg)
	} else {
		primaryEmailSender = email.NewSMTPSender(cfg)
	}
	compositeSender := email.NewCompositeSender(primaryEmailSender)
	finalEmailSender := email.Sender(compositeSender)

	taskClient := tasks.NewClient(redisClient)
	defer taskClient.Close()

	var wg sync.WaitGroup
	var mainApiSrv *http.Server
	var workerSrv *asynq.Server

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		fmt.Println("Starting main API server...")
		// Router initializes its own services.
		mainApiRouter := api.SetupRouter(cfg, mongoDb, redisClient, taskClient)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	workerMode := func() {
		fmt.Println("Starting background worker...")

		s3StorageService, err := storage.NewS3Storage(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage for worker: %v", err)
		}
		listingService := services.NewListingService(mongoDb, cfg)
		userService := services.NewUserService(mongoDb, cfg)
		cartService := services.NewCartService(mongoDb, listingService)
		orderService := services.NewOrderService(mongoDb, listingService, cartService, taskClient)

		taskProcessor := worker.NewTaskProcessor(cfg, redisClient, finalEmailSender, s3StorageService, listingService, userService, orderService)

		srv, mux := worker.SetupServer(redisClient, taskProcessor)
		workerSrv = srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Println("Worker task server starting...")
			if err := srv.Run(mux); err != nil {
				log.Fatalf("Worker task server error: %v", err)
			}
			fmt.Println("Worker task server stopped.")
		}()
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "worker":
		workerMode()
	case "all":
		apiMode()
		workerMode()
	default:
		log.Fatalf("Invalid run mode specified: %s.", cfg.RunMode)
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	if workerSrv != nil {
		fmt.Println("Shutting down worker task server...")
		workerSrv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}
