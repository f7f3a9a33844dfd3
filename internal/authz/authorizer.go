// Package authz gates realtime actions. Authorization failures are
// side-effect-free and carry a machine-readable reason; they are never
// surfaced to the transport as raw errors.
package authz

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

// Denial reasons returned to the offending connection and telemetry.
const (
	ReasonNotConnected      = "NotConnected"
	ReasonNotGroupMember    = "NotGroupMember"
	ReasonRecipientNotFound = "RecipientNotFound"
	ReasonNotFriends        = "NotFriends"
	ReasonInvalidRoomFormat = "InvalidRoomFormat"
	ReasonTargetOffline     = "TargetOffline"
	ReasonUnknownAction     = "UnknownSignalingAction"
	ReasonStoreUnavailable  = "StoreUnavailable"
)

// Signaling actions relayed between call peers.
const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"
	SignalEndCall      = "end-call"
	SignalCallRequest  = "call-request"
)

// Presence answers whether a user currently holds a live connection.
type Presence interface {
	IsOnline(userID string) bool
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision             { return Decision{Allowed: true} }
func deny(reason string) Decision { return Decision{Reason: reason} }

// MessageContext describes a pending message send.
type MessageContext struct {
	SenderID string
	ToUserID string
	GroupID  string
}

// SignalingContext describes a pending call-signaling relay.
type SignalingContext struct {
	CallerID     string
	RoomID       string
	Action       string
	TargetUserID string
}

// Authorizer performs per-event permission checks against presence and
// the persistence collaborator.
type Authorizer struct {
	presence Presence
	users    repositories.UserRepository
	groups   repositories.GroupRepository

	// RequireFriendship upgrades the non-friend warning on direct
	// messages to a hard denial. Off by default: product policy, not a
	// hard rule.
	RequireFriendship bool

	logger *zap.Logger
}

// New wires an authorizer.
func New(presence Presence, users repositories.UserRepository, groups repositories.GroupRepository, logger *zap.Logger) *Authorizer {
	return &Authorizer{
		presence: presence,
		users:    users,
		groups:   groups,
		logger:   logger,
	}
}

// AuthorizeMessage gates a message send. A verified-but-disconnected
// token is not sufficient: the sender must hold a live connection.
func (a *Authorizer) AuthorizeMessage(ctx context.Context, mc MessageContext) Decision {
	if !a.presence.IsOnline(mc.SenderID) {
		return deny(ReasonNotConnected)
	}

	if mc.GroupID != "" {
		member, err := a.groups.IsMember(ctx, mc.GroupID, mc.SenderID)
		if err != nil {
			a.logger.Error("group membership lookup failed",
				zap.String("groupID", mc.GroupID), zap.Error(err))
			return deny(ReasonStoreUnavailable)
		}
		if !member {
			return deny(ReasonNotGroupMember)
		}
		return allow()
	}

	if _, err := a.users.GetByID(ctx, mc.ToUserID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return deny(ReasonRecipientNotFound)
		}
		a.logger.Error("recipient lookup failed",
			zap.String("toUserID", mc.ToUserID), zap.Error(err))
		return deny(ReasonStoreUnavailable)
	}

	friends, err := a.users.AreFriends(ctx, mc.SenderID, mc.ToUserID)
	if err != nil {
		a.logger.Error("friendship lookup failed", zap.Error(err))
		return deny(ReasonStoreUnavailable)
	}
	if !friends {
		if a.RequireFriendship {
			return deny(ReasonNotFriends)
		}
		a.logger.Warn("direct message between non-friends allowed by policy",
			zap.String("senderID", mc.SenderID),
			zap.String("toUserID", mc.ToUserID))
	}
	return allow()
}

// AuthorizeSignaling gates call-signaling relay. Room membership is
// derived from the `<kind>_<conversationId>` convention.
func (a *Authorizer) AuthorizeSignaling(ctx context.Context, sc SignalingContext) Decision {
	if !a.presence.IsOnline(sc.CallerID) {
		return deny(ReasonNotConnected)
	}

	decision := a.authorizeRoom(ctx, sc.CallerID, sc.RoomID)
	if !decision.Allowed {
		return decision
	}

	switch sc.Action {
	case SignalOffer, SignalAnswer, SignalICECandidate, SignalEndCall:
		return allow()
	case SignalCallRequest:
		if !a.presence.IsOnline(sc.TargetUserID) {
			return deny(ReasonTargetOffline)
		}
		return allow()
	default:
		return deny(ReasonUnknownAction)
	}
}

// authorizeRoom checks membership of a `<kind>_<conversationId>` room.
// A private conversation id of the form `userA_userB` authorizes
// exactly those two identities; anything else defers to group
// membership.
func (a *Authorizer) authorizeRoom(ctx context.Context, callerID, roomID string) Decision {
	kind, conversationID, ok := strings.Cut(roomID, "_")
	if !ok || conversationID == "" {
		return deny(ReasonInvalidRoomFormat)
	}
	if kind != "chat" && kind != "call" {
		return deny(ReasonInvalidRoomFormat)
	}

	if userA, userB, private := strings.Cut(conversationID, "_"); private {
		if userA == "" || userB == "" {
			return deny(ReasonInvalidRoomFormat)
		}
		if callerID != userA && callerID != userB {
			return deny(ReasonNotGroupMember)
		}
		return allow()
	}

	member, err := a.groups.IsMember(ctx, conversationID, callerID)
	if err != nil {
		a.logger.Error("room membership lookup failed",
			zap.String("roomID", roomID), zap.Error(err))
		return deny(ReasonStoreUnavailable)
	}
	if !member {
		return deny(ReasonNotGroupMember)
	}
	return allow()
}
