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

type GroupRepository struct {
	collection *mongo.Collection
}

// NewGroupRepository creates a new MongoDB group repository
func NewGroupRepository(db *mongo.Database) repositories.GroupRepository {
	return &GroupRepository{
		collection: db.Collection("groups"),
	}
}

// Create implements repositories.GroupRepository
func (r *GroupRepository) Create(ctx context.Context, group *entities.Group) error {
	if group == nil {
		return errors.New("group cannot be nil")
	}
	if err := group.Validate(); err != nil {
		return err
	}
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now
	if !group.HasMember(group.OwnerID) {
		group.MemberIDs = append(group.MemberIDs, group.OwnerID)
	}

	if _, err := r.collection.InsertOne(ctx, group); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	return nil
}

// GetByID implements repositories.GroupRepository
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*entities.Group, error) {
	var group entities.Group
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&group)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get group %s: %w", id, err)
	}
	return &group, nil
}

// Members implements repositories.GroupRepository
func (r *GroupRepository) Members(ctx context.Context, groupID string) ([]string, error) {
	group, err := r.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return group.MemberIDs, nil
}

// IsMember queries current membership without loading the whole group.
func (r *GroupRepository) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"_id":        groupID,
		"member_ids": userID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return count > 0, nil
}

// AddMember implements repositories.GroupRepository
func (r *GroupRepository) AddMember(ctx context.Context, groupID, userID string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": groupID}, bson.M{
		"$addToSet": bson.M{"member_ids": userID},
		"$set":      bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// RemoveMember implements repositories.GroupRepository
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, userID string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": groupID}, bson.M{
		"$pull": bson.M{"member_ids": userID},
		"$set":  bson.M{"updated_at": time.Now()},
	})
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
