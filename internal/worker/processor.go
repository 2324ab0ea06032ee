package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"

	"github.com/nansalmad/thriftshop/internal/cache"
	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/email"
	"github.com/nansalmad/thriftshop/internal/services"
	"github.com/nansalmad/thriftshop/internal/storage"
	"github.com/nansalmad/thriftshop/internal/tasks"
)

// TaskProcessor handles the processing of tasks. It holds the dependencies
// the task handlers need.
type TaskProcessor struct {
	cfg            *config.Config
	rdb            *redis.Client
	emailSender    email.Sender
	storageService storage.IS3Storage
	listingService services.IListingService
	userService    services.IUserService
	orderService   services.IOrderService
}

func NewTaskProcessor(
	cfg *config.Config,
	rdb *redis.Client,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	listingService services.IListingService,
	userService services.IUserService,
	orderService services.IOrderService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:            cfg,
		rdb:            rdb,
		emailSender:    emailSender,
		storageService: storageService,
		listingService: listingService,
		userService:    userService,
		orderService:   orderService,
	}
}

// HandleImageProcessTask normalizes a staged upload and attaches it to its
// listing or profile. The raw bytes sit in Redis under the staging key, not
// in the task payload.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.ImageProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Processing image task: Target=%s, EntityID=%s", payload.Target, payload.EntityID)

	imgData, err := cache.TakeImage(ctx, p.rdb, payload.StagingKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			log.Printf("Staged image %s expired before processing.", payload.StagingKey)
			return fmt.Errorf("staged image expired: %w", asynq.SkipRetry)
		}
		return fmt.Errorf("failed to fetch staged image: %w", err)
	}

	maxSizeBytes := int64(p.cfg.ImageMaxSizeMB) * 1024 * 1024
	if int64(len(imgData)) > maxSizeBytes {
		log.Printf("Image for %s %s exceeds max size (%d > %d bytes). Skipping.", payload.Target, payload.EntityID, len(imgData), maxSizeBytes)
		return fmt.Errorf("image exceeds max size: %w", asynq.SkipRetry)
	}

	img, format, err := image.Decode(bytes.NewReader(imgData))
	if err != nil {
		log.Printf("Error decoding image for %s %s: %v", payload.Target, payload.EntityID, err)
		return fmt.Errorf("unsupported image format or corrupt image: %w", asynq.SkipRetry)
	}
	log.Printf("Decoded image for %s %s, format: %s, size: %dx%d", payload.Target, payload.EntityID, format, img.Bounds().Dx(), img.Bounds().Dy())

	maxDim := uint(p.cfg.ImageMaxDimension)
	if uint(img.Bounds().Dx()) > maxDim || uint(img.Bounds().Dy()) > maxDim {
		img = resize.Thumbnail(maxDim, maxDim, img, resize.Lanczos3)
	}

	// Always re-encode as JPEG so stored images are uniform.
	var buf bytes.Buffer
	if err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return fmt.Errorf("failed to encode processed image: %w", err)
	}
	if int64(buf.Len()) > maxSizeBytes {
		return fmt.Errorf("processed image still exceeds max size: %w", asynq.SkipRetry)
	}

	key := storage.NewImageKey(payload.Target, payload.EntityID)
	if err = p.storageService.PutObject(ctx, key, buf.Bytes(), "image/jpeg"); err != nil {
		return fmt.Errorf("failed to upload processed image: %w", err)
	}

	switch payload.Target {
	case tasks.ImageTargetListing:
		err = p.listingService.SetImageKey(ctx, payload.EntityID, key)
	case tasks.ImageTargetProfile:
		err = p.userService.SetProfileImageKey(ctx, payload.EntityID, key)
	default:
		return fmt.Errorf("unknown image target %q: %w", payload.Target, asynq.SkipRetry)
	}
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			// Entity deleted between upload and processing.
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("failed to attach image key %s: %w", key, err)
	}

	log.Printf("Image task processed successfully: Key=%s, Target=%s, EntityID=%s", key, payload.Target, payload.EntityID)
	return nil
}

// HandleOrderEmailTask sends the order confirmation email. Guest orders have
// no email address on file, so they are skipped.
func (p *TaskProcessor) HandleOrderEmailTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.OrderEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal order email payload: %v: %w", err, asynq.SkipRetry)
	}

	order, err := p.orderService.FindOrderForWorker(ctx, payload.OrderID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("order %s not found: %w", payload.OrderID, asynq.SkipRetry)
		}
		return err
	}

	if order.UserID == "" {
		log.Printf("Order %s was placed by a guest, no confirmation email to send.", order.ID)
		return nil
	}

	user, err := p.userService.FindUserByID(ctx, order.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return fmt.Errorf("user %s not found for order email: %w", order.UserID, asynq.SkipRetry)
		}
		return err
	}

	subject := fmt.Sprintf("%s: order %s confirmed", p.cfg.AppName, order.ID)

	var body strings.Builder
	body.WriteString(fmt.Sprintf("Hi %s,\r\n\r\n", user.FullName()))
	body.WriteString(fmt.Sprintf("Your order %s has been placed.\r\n\r\n", order.ID))
	for _, item := range order.Items {
		body.WriteString(fmt.Sprintf("  %s x%d @ %s (seller phone: %s)\r\n", item.Title, item.Quantity, item.UnitPrice.StringFixed(), item.SellerPhone))
	}
	body.WriteString(fmt.Sprintf("\r\nTotal: %s\r\n", order.TotalAmount.StringFixed()))
	body.WriteString(fmt.Sprintf("Shipping to: %s, %s (%s)\r\n", order.Shipping.Name, order.Shipping.Address, order.Shipping.Phone))

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", user.Email))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", p.cfg.SmtpFromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body.String())

	if err = p.emailSender.Send(ctx, []string{user.Email}, subject, []byte(sb.String())); err != nil {
		log.Printf("Order email for %s failed, will retry: %v", order.ID, err)
		return err
	}

	log.Printf("Order email task processed successfully: Order=%s, To=%s", order.ID, user.Email)
	return nil
}

// SetupServer configures the asynq server and its handler mux. The caller
// runs srv.Run(mux) and shuts down with srv.Shutdown().
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"default": 3,
				"images":  5,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				fmt.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v\n", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeImageProcess, processor.HandleImageProcessTask)
	mux.HandleFunc(tasks.TypeOrderEmail, processor.HandleOrderEmailTask)

	return srv, mux
}
