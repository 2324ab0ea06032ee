package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nansalmad/thriftshop/internal/db"
	"github.com/nansalmad/thriftshop/internal/models"
)

// IMessageService defines the interface for peer messaging between users.
type IMessageService interface {
	SendMessage(ctx context.Context, senderID, recipientID, listingID, content string) (*models.Message, error)
	ListConversation(ctx context.Context, userID, otherID string) ([]models.Message, error)
	ListInbox(ctx context.Context, userID string) ([]models.Message, error)
	MarkRead(ctx context.Context, userID, messageID string) error
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

const (
	messagesCollection = "messages"
	maxMessageLength   = 2000
)

type messageService struct {
	db    *mongo.Database
	users IUserService
}

// NewMessageService creates a new MessageService.
func NewMessageService(db *mongo.Database, users IUserService) IMessageService {
	return &messageService{db: db, users: users}
}

// SendMessage delivers a message from one registered user to another,
// optionally attached to a listing. Guests cannot message; they call the
// seller's phone number instead.
func (s *messageService) SendMessage(ctx context.Context, senderID, recipientID, listingID, content string) (*models.Message, error) {
	if content == "" {
		return nil, fmt.Errorf("message content is required: %w", ErrInvalidArgument)
	}
	if len(content) > maxMessageLength {
		return nil, fmt.Errorf("message exceeds %d characters: %w", maxMessageLength, ErrInvalidArgument)
	}
	if senderID == recipientID {
		return nil, fmt.Errorf("cannot message yourself: %w", ErrInvalidArgument)
	}

	// The recipient must exist; a typo'd ID should fail loudly rather than
	// write into the void.
	if _, err := s.users.FindUserByID(ctx, recipientID); err != nil {
		return nil, err
	}

	collection := s.db.Collection(messagesCollection)
	message := &models.Message{
		Base:        models.NewBase(),
		SenderID:    senderID,
		RecipientID: recipientID,
		ListingID:   listingID,
		Content:     content,
		IsRead:      false,
		CreatedAt:   time.Now().UTC(),
	}
	operation := func() error {
		message.GenID()
		_, insertErr := collection.InsertOne(ctx, message)
		return insertErr
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert message from %s to %s: %w", senderID, recipientID, err)
	}
	return message, nil
}

// ListConversation returns both directions of the thread between two users,
// oldest first.
func (s *messageService) ListConversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": userID, "recipient_id": otherID},
		bson.M{"sender_id": otherID, "recipient_id": userID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return messages, nil
}

// ListInbox returns messages received by the user, newest first.
func (s *messageService) ListInbox(ctx context.Context, userID string) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, bson.M{"recipient_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	var messages []models.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode inbox: %w", err)
	}
	return messages, nil
}

// MarkRead flags a received message as read. Only the recipient may do it;
// the recipient check is part of the update filter.
func (s *messageService) MarkRead(ctx context.Context, userID, messageID string) error {
	filter := bson.M{"_id": messageID, "recipient_id": userID}
	result, err := s.db.Collection(messagesCollection).UpdateOne(ctx, filter, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark message %s read: %w", messageID, err)
	}
	if result.MatchedCount == 0 {
		count, countErr := s.db.Collection(messagesCollection).CountDocuments(ctx, bson.M{"_id": messageID})
		if countErr == nil && count > 0 {
			return fmt.Errorf("message %s was not sent to user %s: %w", messageID, userID, ErrPermissionDenied)
		}
		return fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	return nil
}

// UnreadCount returns how many received messages are still unread.
func (s *messageService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	count, err := s.db.Collection(messagesCollection).CountDocuments(ctx, bson.M{"recipient_id": userID, "is_read": false})
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages for user %s: %w", userID, err)
	}
	return count, nil
}
