package entities

import (
	"errors"
	"time"
)

// Group represents a group conversation.
type Group struct {
	ID        string    `json:"id" bson:"_id,omitempty"`
	Name      string    `json:"name" bson:"name"`
	OwnerID   string    `json:"owner_id" bson:"owner_id"`
	MemberIDs []string  `json:"member_ids" bson:"member_ids"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (g *Group) Validate() error {
	if g.Name == "" {
		return errors.New("name is required")
	}
	if g.OwnerID == "" {
		return errors.New("owner_id is required")
	}
	return nil
}

// HasMember reports whether userID currently belongs to the group.
func (g *Group) HasMember(userID string) bool {
	for _, id := range g.MemberIDs {
		if id == userID {
			return true
		}
	}
	return false
}
