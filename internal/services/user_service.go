package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nansalmad/thriftshop/internal/auth"
	"github.com/nansalmad/thriftshop/internal/config"
	"github.com/nansalmad/thriftshop/internal/db"
	"github.com/nansalmad/thriftshop/internal/models"
)

// IUserService defines the interface for account operations.
type IUserService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	FindUserByID(ctx context.Context, userID string) (*models.User, error)
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}) (*models.User, error)
	SetProfileImageKey(ctx context.Context, userID, imageKey string) error
}

// RegisterInput carries the fields for account creation. A profile exists
// only because this call was made; nothing creates one implicitly.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

const usersCollection = "users"

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

type userService struct {
	db              *mongo.Database
	passwordPattern *regexp.Regexp
}

// NewUserService creates a new UserService.
func NewUserService(db *mongo.Database, cfg *config.Config) IUserService {
	return &userService{
		db:              db,
		passwordPattern: regexp.MustCompile(cfg.PasswordRegexp),
	}
}

// Register creates an account. Username and email are globally unique; the
// unique indexes turn a duplicate into ErrConflict regardless of timing.
func (s *userService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	if !usernamePattern.MatchString(input.Username) {
		return nil, fmt.Errorf("username must be 3-30 word characters: %w", ErrInvalidArgument)
	}
	if !emailPattern.MatchString(input.Email) {
		return nil, fmt.Errorf("invalid email address: %w", ErrInvalidArgument)
	}
	if !s.passwordPattern.MatchString(input.Password) {
		return nil, fmt.Errorf("password does not meet requirements: %w", ErrInvalidArgument)
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	collection := s.db.Collection(usersCollection)
	now := time.Now().UTC()
	user := &models.User{
		Base:         models.NewBase(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	operation := func() error {
		user.GenID()
		_, insertErr := collection.InsertOne(ctx, user)
		return insertErr
	}
	if err = db.Try(operation); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, fmt.Errorf("username or email already taken: %w", ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert user %s: %w", input.Username, err)
	}
	return user, nil
}

// Authenticate verifies the credentials and returns the account. A missing
// user and a wrong password are indistinguishable to the caller.
func (s *userService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("invalid credentials: %w", ErrPermissionDenied)
		}
		return nil, fmt.Errorf("error finding user %s: %w", username, err)
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, fmt.Errorf("invalid credentials: %w", ErrPermissionDenied)
	}
	return &user, nil
}

func (s *userService) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding user %s: %w", userID, err)
	}
	return &user, nil
}

func (s *userService) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := s.db.Collection(usersCollection).FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("error finding user %s: %w", username, err)
	}
	return &user, nil
}

// UpdateProfile updates the account's profile fields. Username and password
// are not updatable here.
func (s *userService) UpdateProfile(ctx context.Context, userID string, updates map[string]interface{}) (*models.User, error) {
	allowedUpdates := bson.M{}
	for key, value := range updates {
		switch key {
		case "first_name", "last_name", "email":
			allowedUpdates[key] = value
		default:
			return nil, fmt.Errorf("field %q cannot be updated: %w", key, ErrInvalidArgument)
		}
	}
	if len(allowedUpdates) == 0 {
		return nil, fmt.Errorf("no valid fields provided for update: %w", ErrInvalidArgument)
	}
	if e, ok := allowedUpdates["email"]; ok {
		if es, _ := e.(string); !emailPattern.MatchString(es) {
			return nil, fmt.Errorf("invalid email address: %w", ErrInvalidArgument)
		}
	}
	allowedUpdates["updated_at"] = time.Now().UTC()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var updated models.User
	err := s.db.Collection(usersCollection).FindOneAndUpdate(ctx, bson.M{"_id": userID}, bson.M{"$set": allowedUpdates}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		if db.IsMongoDuplicateKeyError(err) {
			return nil, fmt.Errorf("email already taken: %w", ErrConflict)
		}
		return nil, fmt.Errorf("failed to update user %s: %w", userID, err)
	}
	return &updated, nil
}

// SetProfileImageKey records the processed avatar's S3 key. Called by the
// image worker.
func (s *userService) SetProfileImageKey(ctx context.Context, userID, imageKey string) error {
	update := bson.M{"$set": bson.M{"profile_image": imageKey, "updated_at": time.Now().UTC()}}
	result, err := s.db.Collection(usersCollection).UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("db error setting profile image for user %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}
