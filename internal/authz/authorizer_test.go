package authz

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

type fakePresence struct {
	online map[string]bool
}

func (f *fakePresence) IsOnline(userID string) bool { return f.online[userID] }

type fakeUsers struct {
	users   map[string]bool
	friends map[string]bool
}

func (f *fakeUsers) Create(ctx context.Context, user *entities.User) error { return nil }

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*entities.User, error) {
	if f.users[id] {
		return &entities.User{ID: id, Language: "en"}, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) SetOnline(ctx context.Context, userID string, online bool) error { return nil }

func (f *fakeUsers) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return f.friends[a+"|"+b] || f.friends[b+"|"+a], nil
}

func (f *fakeUsers) CreateFriendRequest(ctx context.Context, req *entities.FriendRequest) error {
	return nil
}

func (f *fakeUsers) AcceptFriendRequest(ctx context.Context, requestID, acceptorID string) (*entities.FriendRequest, error) {
	return nil, repositories.ErrNotFound
}

type fakeGroups struct {
	members map[string]map[string]bool
}

func (f *fakeGroups) Create(ctx context.Context, group *entities.Group) error { return nil }

func (f *fakeGroups) GetByID(ctx context.Context, id string) (*entities.Group, error) {
	return nil, repositories.ErrNotFound
}

func (f *fakeGroups) Members(ctx context.Context, groupID string) ([]string, error) {
	var out []string
	for id := range f.members[groupID] {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeGroups) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	return f.members[groupID][userID], nil
}

func (f *fakeGroups) AddMember(ctx context.Context, groupID, userID string) error    { return nil }
func (f *fakeGroups) RemoveMember(ctx context.Context, groupID, userID string) error { return nil }

func newTestAuthorizer() (*Authorizer, *fakePresence, *fakeUsers, *fakeGroups) {
	presence := &fakePresence{online: map[string]bool{"alice": true, "bob": true}}
	users := &fakeUsers{
		users:   map[string]bool{"alice": true, "bob": true, "carol": true},
		friends: map[string]bool{"alice|bob": true},
	}
	groups := &fakeGroups{members: map[string]map[string]bool{
		"group-1": {"alice": true, "carol": true},
	}}
	return New(presence, users, groups, zap.NewNop()), presence, users, groups
}

func TestAuthorizeMessageRequiresLiveConnection(t *testing.T) {
	a, presence, _, _ := newTestAuthorizer()
	presence.online["alice"] = false

	d := a.AuthorizeMessage(context.Background(), MessageContext{SenderID: "alice", ToUserID: "bob"})
	if d.Allowed || d.Reason != ReasonNotConnected {
		t.Errorf("expected NotConnected denial, got %+v", d)
	}
}

func TestAuthorizeMessageGroupMembership(t *testing.T) {
	a, _, _, _ := newTestAuthorizer()

	d := a.AuthorizeMessage(context.Background(), MessageContext{SenderID: "alice", GroupID: "group-1"})
	if !d.Allowed {
		t.Errorf("member send should be allowed, got %+v", d)
	}

	d = a.AuthorizeMessage(context.Background(), MessageContext{SenderID: "bob", GroupID: "group-1"})
	if d.Allowed || d.Reason != ReasonNotGroupMember {
		t.Errorf("expected NotGroupMember denial, got %+v", d)
	}
}

func TestAuthorizeMessageRecipientMustExist(t *testing.T) {
	a, _, _, _ := newTestAuthorizer()

	d := a.AuthorizeMessage(context.Background(), MessageContext{SenderID: "alice", ToUserID: "ghost"})
	if d.Allowed || d.Reason != ReasonRecipientNotFound {
		t.Errorf("expected RecipientNotFound denial, got %+v", d)
	}
}

func TestAuthorizeMessageNonFriendsAllowedByDefault(t *testing.T) {
	a, _, _, _ := newTestAuthorizer()

	// alice and carol are not friends; policy default allows it.
	d := a.AuthorizeMessage(context.Background(), MessageContext{SenderID: "alice", ToUserID: "carol"})
	if !d.Allowed {
		t.Errorf("non-friend direct message should pass by default, got %+v", d)
	}

	a.RequireFriendship = true
	d = a.AuthorizeMessage(context.Background(), MessageContext{SenderID: "alice", ToUserID: "carol"})
	if d.Allowed || d.Reason != ReasonNotFriends {
		t.Errorf("expected NotFriends denial with policy enabled, got %+v", d)
	}
}

func TestAuthorizeSignalingPrivateRoom(t *testing.T) {
	a, _, _, _ := newTestAuthorizer()

	d := a.AuthorizeSignaling(context.Background(), SignalingContext{
		CallerID: "alice", RoomID: "call_alice_bob", Action: SignalOffer,
	})
	if !d.Allowed {
		t.Errorf("participant should be authorized, got %+v", d)
	}

	d = a.AuthorizeSignaling(context.Background(), SignalingContext{
		CallerID: "carol", RoomID: "call_alice_bob", Action: SignalOffer,
	})
	if d.Allowed {
		t.Errorf("outsider must not be authorized for a private room, got %+v", d)
	}
}

func TestAuthorizeSignalingGroupRoom(t *testing.T) {
	a, _, _, _ := newTestAuthorizer()

	d := a.AuthorizeSignaling(context.Background(), SignalingContext{
		CallerID: "alice", RoomID: "chat_group-1", Action: SignalAnswer,
	})
	if !d.Allowed {
		t.Errorf("group member should be authorized, got %+v", d)
	}

	d = a.AuthorizeSignaling(context.Background(), SignalingContext{
		CallerID: "bob", RoomID: "chat_group-1", Action: SignalAnswer,
	})
	if d.Allowed || d.Reason != ReasonNotGroupMember {
		t.Errorf("expected NotGroupMember denial, got %+v", d)
	}
}

func TestAuthorizeSignalingInvalidRoomFormat(t *testing.T) {
	a, _, _, _ := newTestAuthorizer()

	for _, roomID := range []string{"", "call", "call_", "video_group-1"} {
		d := a.AuthorizeSignaling(context.Background(), SignalingContext{
			CallerID: "alice", RoomID: roomID, Action: SignalOffer,
		})
		if d.Allowed || d.Reason != ReasonInvalidRoomFormat {
			t.Errorf("roomID %q: expected InvalidRoomFormat, got %+v", roomID, d)
		}
	}
}

func TestAuthorizeSignalingCallRequestNeedsOnlineTarget(t *testing.T) {
	a, presence, _, _ := newTestAuthorizer()

	d := a.AuthorizeSignaling(context.Background(), SignalingContext{
		CallerID: "alice", RoomID: "call_alice_bob", Action: SignalCallRequest, TargetUserID: "bob",
	})
	if !d.Allowed {
		t.Errorf("call-request to online target should pass, got %+v", d)
	}

	presence.online["bob"] = false
	d = a.AuthorizeSignaling(context.Background(), SignalingContext{
		CallerID: "alice", RoomID: "call_alice_bob", Action: SignalCallRequest, TargetUserID: "bob",
	})
	if d.Allowed || d.Reason != ReasonTargetOffline {
		t.Errorf("expected TargetOffline denial, got %+v", d)
	}
}
