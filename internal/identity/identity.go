package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
)

// OwnerKey identifies the acting party of a request: either an authenticated
// user or a guest session. Exactly one of the two fields is set. Carts and
// orders are scoped by this key for their whole lifetime; there is no
// guest-to-user migration, so a guest cart stays a guest cart after login.
type OwnerKey struct {
	UserID       string
	SessionToken string
}

// UserOwner builds the key for an authenticated user.
func UserOwner(userID string) OwnerKey {
	return OwnerKey{UserID: userID}
}

// SessionOwner builds the key for a guest session.
func SessionOwner(token string) OwnerKey {
	return OwnerKey{SessionToken: token}
}

// IsUser reports whether the owner is an authenticated user.
func (k OwnerKey) IsUser() bool {
	return k.UserID != ""
}

// IsZero reports whether no identity was resolved at all.
func (k OwnerKey) IsZero() bool {
	return k.UserID == "" && k.SessionToken == ""
}

// Equal reports whether two keys name the same owner.
func (k OwnerKey) Equal(other OwnerKey) bool {
	return k.UserID == other.UserID && k.SessionToken == other.SessionToken
}

// Filter returns the Mongo filter scoping a document to this owner.
func (k OwnerKey) Filter() bson.M {
	if k.IsUser() {
		return bson.M{"user_id": k.UserID}
	}
	return bson.M{"session_id": k.SessionToken}
}

// SetOn writes the owner fields onto a document-shaped map, used when
// inserting owner-scoped documents.
func (k OwnerKey) SetOn(doc bson.M) {
	if k.IsUser() {
		doc["user_id"] = k.UserID
	} else {
		doc["session_id"] = k.SessionToken
	}
}

// Owns reports whether a document's (user_id, session_id) pair belongs to
// this owner.
func (k OwnerKey) Owns(userID, sessionID string) bool {
	if k.IsUser() {
		return userID != "" && userID == k.UserID
	}
	return sessionID != "" && sessionID == k.SessionToken
}

func (k OwnerKey) String() string {
	if k.IsUser() {
		return "user:" + k.UserID
	}
	return "session:" + k.SessionToken
}

// IResolver resolves request credentials into a stable OwnerKey.
type IResolver interface {
	Resolve(ctx context.Context, userID, sessionToken string) (OwnerKey, bool, error)
}

const sessionKeyPrefix = "guest_session:"

// resolver implements IResolver over Redis-backed guest sessions.
type resolver struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewResolver creates a Resolver. Guest session tokens live in Redis with a
// sliding TTL; the token itself is an opaque UUID handed to the client in the
// X-Session-ID header.
func NewResolver(rdb *redis.Client, ttl time.Duration) IResolver {
	return &resolver{rdb: rdb, ttl: ttl}
}

// Resolve returns the owner key for the given credentials. An authenticated
// user always wins. For guests, a known session token is refreshed and
// reused; otherwise a new session is minted and the second return value is
// true so the transport layer can hand the token back to the client.
func (r *resolver) Resolve(ctx context.Context, userID, sessionToken string) (OwnerKey, bool, error) {
	if userID != "" {
		return UserOwner(userID), false, nil
	}

	if sessionToken != "" {
		// EXPIRE reports false for a token Redis no longer knows about, in
		// which case a fresh session is minted below.
		known, err := r.rdb.Expire(ctx, sessionKeyPrefix+sessionToken, r.ttl).Result()
		if err != nil {
			return OwnerKey{}, false, fmt.Errorf("failed to refresh guest session: %w", err)
		}
		if known {
			return SessionOwner(sessionToken), false, nil
		}
	}

	token := uuid.NewString()
	if err := r.rdb.Set(ctx, sessionKeyPrefix+token, time.Now().UTC().Format(time.RFC3339), r.ttl).Err(); err != nil {
		return OwnerKey{}, false, fmt.Errorf("failed to create guest session: %w", err)
	}
	return SessionOwner(token), true, nil
}
