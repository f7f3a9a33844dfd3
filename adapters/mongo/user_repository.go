package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

type UserRepository struct {
	users    *mongo.Collection
	requests *mongo.Collection
}

// NewUserRepository creates a new MongoDB user repository
func NewUserRepository(db *mongo.Database) repositories.UserRepository {
	return &UserRepository{
		users:    db.Collection("users"),
		requests: db.Collection("friend_requests"),
	}
}

// Create implements repositories.UserRepository
func (r *UserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	if _, err := r.users.InsertOne(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID implements repositories.UserRepository
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	err := r.users.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &user, nil
}

// GetByUsername implements repositories.UserRepository
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	var user entities.User
	err := r.users.FindOne(ctx, bson.M{"username": username}).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return &user, nil
}

// SetOnline implements repositories.UserRepository
func (r *UserRepository) SetOnline(ctx context.Context, userID string, online bool) error {
	result, err := r.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{
		"$set": bson.M{"online": online, "updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to update online status: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// AreFriends reports whether an accepted friend request links the two
// users, in either direction.
func (r *UserRepository) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	filter := bson.M{
		"status": entities.FriendRequestAccepted,
		"$or": bson.A{
			bson.M{"from_user_id": userA, "to_user_id": userB},
			bson.M{"from_user_id": userB, "to_user_id": userA},
		},
	}
	count, err := r.requests.CountDocuments(ctx, filter)
	if err != nil {
		return false, fmt.Errorf("failed to check friendship: %w", err)
	}
	return count > 0, nil
}

// CreateFriendRequest implements repositories.UserRepository
func (r *UserRepository) CreateFriendRequest(ctx context.Context, req *entities.FriendRequest) error {
	if req == nil {
		return errors.New("friend request cannot be nil")
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = entities.FriendRequestPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	if _, err := r.requests.InsertOne(ctx, req); err != nil {
		return fmt.Errorf("failed to create friend request: %w", err)
	}
	return nil
}

// AcceptFriendRequest resolves a pending request addressed to the
// acceptor and returns it.
func (r *UserRepository) AcceptFriendRequest(ctx context.Context, requestID, acceptorID string) (*entities.FriendRequest, error) {
	now := time.Now()
	filter := bson.M{
		"_id":        requestID,
		"to_user_id": acceptorID,
		"status":     entities.FriendRequestPending,
	}
	update := bson.M{"$set": bson.M{
		"status":      entities.FriendRequestAccepted,
		"resolved_at": now,
	}}

	var req entities.FriendRequest
	err := r.requests.FindOneAndUpdate(ctx, filter, update).Decode(&req)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to accept friend request: %w", err)
	}
	req.Status = entities.FriendRequestAccepted
	req.ResolvedAt = &now
	return &req, nil
}
