package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

type MessageRepository struct {
	messages     *mongo.Collection
	translations *mongo.Collection
}

// NewMessageRepository creates a new MongoDB message repository
func NewMessageRepository(db *mongo.Database) repositories.MessageRepository {
	return &MessageRepository{
		messages:     db.Collection("messages"),
		translations: db.Collection("message_translations"),
	}
}

// Save implements repositories.MessageRepository
func (r *MessageRepository) Save(ctx context.Context, message *entities.Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if err := message.Validate(); err != nil {
		return err
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	if _, err := r.messages.InsertOne(ctx, message); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}
	return nil
}

// GetByID implements repositories.MessageRepository
func (r *MessageRepository) GetByID(ctx context.Context, id string) (*entities.Message, error) {
	var message entities.Message
	err := r.messages.FindOne(ctx, bson.M{"_id": id}).Decode(&message)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return &message, nil
}

// MarkRead implements repositories.MessageRepository
func (r *MessageRepository) MarkRead(ctx context.Context, messageID, userID string) error {
	result, err := r.messages.UpdateOne(ctx, bson.M{"_id": messageID}, bson.M{
		"$addToSet": bson.M{"read_by": userID},
	})
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	if result.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// SaveTranslation caches one translated view, keyed by source message
// and target language.
func (r *MessageRepository) SaveTranslation(ctx context.Context, view *entities.TranslatedView) error {
	if view == nil {
		return errors.New("translated view cannot be nil")
	}
	filter := bson.M{
		"source_message_id": view.SourceMessageID,
		"target_language":   view.TargetLanguage,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := r.translations.ReplaceOne(ctx, filter, view, opts); err != nil {
		return fmt.Errorf("failed to cache translation: %w", err)
	}
	return nil
}

// GetTranslation implements repositories.MessageRepository
func (r *MessageRepository) GetTranslation(ctx context.Context, messageID, targetLanguage string) (*entities.TranslatedView, error) {
	filter := bson.M{
		"source_message_id": messageID,
		"target_language":   targetLanguage,
	}
	var view entities.TranslatedView
	err := r.translations.FindOne(ctx, filter).Decode(&view)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cached translation: %w", err)
	}
	return &view, nil
}
