package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Task types handled by the worker process.
const (
	TypeImageProcess = "image:process"
	TypeOrderEmail   = "order:email"
)

// Image targets a processed upload can land on.
const (
	ImageTargetListing = "listing"
	ImageTargetProfile = "profile"
)

// IEnqueuer is the slice of asynq.Client the services use, kept narrow so
// tests can swap in a recorder.
type IEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewClient creates the asynq client the API process enqueues through.
func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// ImageProcessPayload points the image worker at a staged upload. Target is
// either "listing" or "profile"; StagingKey names the raw bytes in Redis.
type ImageProcessPayload struct {
	Target     string `json:"target"`
	EntityID   string `json:"entity_id"`
	StagingKey string `json:"staging_key"`
}

// NewImageProcessTask builds the task that normalizes a staged image and
// uploads it to object storage.
func NewImageProcessTask(target, entityID, stagingKey string) (*asynq.Task, error) {
	payload, err := json.Marshal(ImageProcessPayload{
		Target:     target,
		EntityID:   entityID,
		StagingKey: stagingKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal image process payload: %w", err)
	}
	return asynq.NewTask(TypeImageProcess, payload, asynq.MaxRetry(5), asynq.Queue("images")), nil
}

// OrderEmailPayload identifies an order whose confirmation email should go
// out. The worker re-reads the order so the email always reflects the stored
// snapshot.
type OrderEmailPayload struct {
	OrderID string `json:"order_id"`
}

// NewOrderEmailTask builds the order confirmation email task.
func NewOrderEmailTask(orderID string) (*asynq.Task, error) {
	payload, err := json.Marshal(OrderEmailPayload{OrderID: orderID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order email payload: %w", err)
	}
	return asynq.NewTask(TypeOrderEmail, payload, asynq.MaxRetry(3)), nil
}
