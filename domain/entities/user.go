package entities

import (
	"errors"
	"time"
)

// User represents a chat account.
type User struct {
	ID           string    `json:"id" bson:"_id,omitempty"`
	Username     string    `json:"username" bson:"username"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	// Language is the user's preferred language as a BCP 47 tag, e.g. "zh" or "en".
	Language string `json:"language" bson:"language"`
	Online   bool   `json:"online" bson:"online"`
	// BridgeAddress is the identity on a linked external messaging platform.
	// Empty when the account is not bridged.
	BridgeAddress string    `json:"bridge_address,omitempty" bson:"bridge_address,omitempty"`
	CreatedAt     time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" bson:"updated_at"`
}

// FriendRequestStatus represents the state of a friend request.
type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

// FriendRequest represents a pending or resolved friend relationship.
type FriendRequest struct {
	ID         string              `json:"id" bson:"_id,omitempty"`
	FromUserID string              `json:"from_user_id" bson:"from_user_id"`
	ToUserID   string              `json:"to_user_id" bson:"to_user_id"`
	Status     FriendRequestStatus `json:"status" bson:"status"`
	CreatedAt  time.Time           `json:"created_at" bson:"created_at"`
	ResolvedAt *time.Time          `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}

func (u *User) Validate() error {
	if u.Username == "" {
		return errors.New("username is required")
	}
	if u.Language == "" {
		return errors.New("language is required")
	}
	return nil
}
