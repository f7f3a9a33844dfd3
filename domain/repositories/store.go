package repositories

import (
	"context"
	"errors"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
)

// ErrNotFound is returned by repositories when the requested entity
// does not exist.
var ErrNotFound = errors.New("not found")

// UserRepository defines data access methods for users, friendship and
// the persisted online-status field.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id string) (*entities.User, error)
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	// SetOnline writes through the derived presence state. It is only
	// called on the first-connection / last-connection transitions.
	SetOnline(ctx context.Context, userID string, online bool) error
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
	CreateFriendRequest(ctx context.Context, req *entities.FriendRequest) error
	// AcceptFriendRequest resolves a pending request and returns it.
	AcceptFriendRequest(ctx context.Context, requestID, acceptorID string) (*entities.FriendRequest, error)
}

// GroupRepository defines data access methods for groups and membership.
type GroupRepository interface {
	Create(ctx context.Context, group *entities.Group) error
	GetByID(ctx context.Context, id string) (*entities.Group, error)
	Members(ctx context.Context, groupID string) ([]string, error)
	IsMember(ctx context.Context, groupID, userID string) (bool, error)
	AddMember(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID string) error
}

// MessageRepository defines data access methods for message envelopes
// and the translated-view cache.
type MessageRepository interface {
	Save(ctx context.Context, message *entities.Message) error
	GetByID(ctx context.Context, id string) (*entities.Message, error)
	MarkRead(ctx context.Context, messageID, userID string) error
	SaveTranslation(ctx context.Context, view *entities.TranslatedView) error
	// GetTranslation returns ErrNotFound when no cached view exists.
	GetTranslation(ctx context.Context, messageID, targetLanguage string) (*entities.TranslatedView, error)
}
