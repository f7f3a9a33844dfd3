package websocket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
	"github.com/longxianmian/goodpick-go-sub000/internal/auth"
	"github.com/longxianmian/goodpick-go-sub000/internal/authz"
	"github.com/longxianmian/goodpick-go-sub000/internal/metrics"
	"github.com/longxianmian/goodpick-go-sub000/internal/ratelimit"
	"github.com/longxianmian/goodpick-go-sub000/internal/recognition"
	"github.com/longxianmian/goodpick-go-sub000/internal/translate"
)

const (
	handlerTimeout = 5 * time.Second
	fanOutTimeout  = 60 * time.Second
)

// Metric outcomes per inbound event.
const (
	outcomeOK          = "ok"
	outcomeInvalid     = "invalid"
	outcomeDenied      = "denied"
	outcomeRateLimited = "rate_limited"
	outcomeError       = "error"
)

// Deps are the collaborators the router dispatches against. All of
// them are constructor-injected; the router holds no global state.
type Deps struct {
	Registry    *Registry
	Auth        *auth.Authenticator
	Authorizer  *authz.Authorizer
	Limiter     *ratelimit.Limiter
	Engine      *translate.Engine
	Recognition *recognition.Manager
	Users       repositories.UserRepository
	Groups      repositories.GroupRepository
	Messages    repositories.MessageRepository
	Synthesizer repositories.SpeechSynthesizer
	Bridge      repositories.Bridge
	Logger      *zap.Logger
}

// Router is the connection-bound event dispatcher. Each connection's
// frames are processed in arrival order by its read pump; there is no
// ordering guarantee across connections or across fan-out recipients.
type Router struct {
	deps Deps
}

// NewRouter wires the dispatcher.
func NewRouter(deps Deps) *Router {
	return &Router{deps: deps}
}

// HandleOpen re-verifies the handshake token, registers the connection
// and emits authSuccess. A failed verification closes the transport
// with a policy-violation close reason; the pre-upgrade extraction
// check is advisory only and never the sole gate.
func (r *Router) HandleOpen(client *Client, token string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	identity, err := r.deps.Auth.Verify(ctx, token)
	if err != nil {
		r.deps.Logger.Warn("websocket token verification failed", zap.Error(err))
		client.closeWithReason(websocket.ClosePolicyViolation, "authentication failed")
		return false
	}
	client.userID = identity.UserID

	first := r.deps.Registry.Register(&Connection{
		ID:     client.id,
		UserID: identity.UserID,
		Kind:   TransportWebSocket,
		Handle: client,
	})
	if first {
		if err := r.deps.Users.SetOnline(ctx, identity.UserID, true); err != nil {
			r.deps.Logger.Error("failed to persist online status",
				zap.String("userID", identity.UserID), zap.Error(err))
		}
	}

	if err := client.Enqueue(AuthSuccessFrame(identity.UserID)); err != nil {
		r.deps.Logger.Warn("failed to send authSuccess", zap.Error(err))
	}
	return true
}

// HandleClose tears down connection-scoped state: any open recognition
// session, the registry entry, and on the last connection the persisted
// online status.
func (r *Router) HandleClose(client *Client) {
	r.deps.Recognition.Teardown(client.id)

	userID, wentOffline := r.deps.Registry.Remove(client.id)
	if !wentOffline {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	if err := r.deps.Users.SetOnline(ctx, userID, false); err != nil {
		r.deps.Logger.Error("failed to persist offline status",
			zap.String("userID", userID), zap.Error(err))
	}
	r.deps.Limiter.Forget(userID)
}

// HandleFrame decodes one inbound text frame and dispatches it. The
// event union is closed; an unknown type is a validation error on the
// offending connection only.
func (r *Router) HandleFrame(client *Client, raw []byte) {
	event, err := DecodeInbound(raw)
	if err != nil {
		metrics.EventsTotal.WithLabelValues("unknown", outcomeInvalid).Inc()
		client.Enqueue(ErrorFrame(CodeValidationError, err.Error()))
		return
	}

	var kind, outcome string
	switch ev := event.(type) {
	case SendMessageEvent:
		kind, outcome = EventSendMessage, r.handleSendMessage(client, ev)
	case TypingEvent:
		kind, outcome = EventTyping, r.handleTyping(client, ev)
	case MarkAsReadEvent:
		kind, outcome = EventMarkAsRead, r.handleMarkAsRead(client, ev)
	case JoinGroupEvent:
		kind, outcome = EventJoinGroup, r.handleJoinGroup(client, ev)
	case LeaveGroupEvent:
		kind, outcome = EventLeaveGroup, r.handleLeaveGroup(client, ev)
	case SendFriendRequestEvent:
		kind, outcome = EventSendFriendRequest, r.handleSendFriendRequest(client, ev)
	case AcceptFriendRequestEvent:
		kind, outcome = EventAcceptFriendRequest, r.handleAcceptFriendRequest(client, ev)
	case CallSignalEvent:
		kind, outcome = ev.Type, r.handleCallSignal(client, ev)
	case SttStartEvent:
		kind, outcome = EventSttStart, r.handleSttStart(client, ev)
	case SttAudioEvent:
		kind, outcome = EventSttAudio, r.handleSttAudio(client, ev)
	case SttStopEvent:
		kind, outcome = EventSttStop, r.handleSttStop(client)
	default:
		kind, outcome = "unknown", outcomeInvalid
	}
	metrics.EventsTotal.WithLabelValues(kind, outcome).Inc()
}

// HandleBinary forwards a binary frame to the connection's open
// recognition session. Frames without a session are dropped.
func (r *Router) HandleBinary(client *Client, data []byte) {
	if err := r.deps.Recognition.Feed(client.id, data); err != nil {
		r.deps.Logger.Debug("dropped audio frame",
			zap.String("connectionID", client.id), zap.Error(err))
	}
}

// handleSendMessage implements the send pipeline: rate limit,
// authorize, persist exactly once, acknowledge the sender with their
// untranslated original, then fan out asynchronously.
func (r *Router) handleSendMessage(client *Client, ev SendMessageEvent) string {
	if !r.deps.Limiter.Allow(client.userID, ratelimit.ActionSendMessage) {
		metrics.RateLimitedTotal.WithLabelValues(string(ratelimit.ActionSendMessage)).Inc()
		client.Enqueue(ErrorFrame(CodeRateLimited, "message rate limit exceeded"))
		return outcomeRateLimited
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	modality := ev.Modality
	if modality == "" {
		modality = entities.ModalityText
	}
	msg := &entities.Message{
		ID:               uuid.NewString(),
		FromUserID:       client.userID,
		ToUserID:         ev.ToUserID,
		GroupID:          ev.GroupID,
		Modality:         modality,
		Kind:             ev.Kind,
		Content:          ev.Content,
		OriginalLanguage: ev.OriginalLanguage,
		ReplyToMessageID: ev.ReplyToMessageID,
		CreatedAt:        time.Now(),
	}
	if err := msg.Validate(); err != nil {
		client.Enqueue(ErrorFrame(CodeValidationError, err.Error()))
		return outcomeInvalid
	}

	decision := r.deps.Authorizer.AuthorizeMessage(ctx, authz.MessageContext{
		SenderID: client.userID,
		ToUserID: ev.ToUserID,
		GroupID:  ev.GroupID,
	})
	if !decision.Allowed {
		client.Enqueue(ErrorFrame(CodePermissionDenied, decision.Reason))
		return outcomeDenied
	}

	sender, err := r.deps.Users.GetByID(ctx, client.userID)
	if err != nil {
		r.deps.Logger.Error("sender lookup failed",
			zap.String("userID", client.userID), zap.Error(err))
		client.Enqueue(ErrorFrame(CodeValidationError, "sender not found"))
		return outcomeError
	}
	if msg.OriginalLanguage == "" {
		msg.OriginalLanguage = r.deps.Engine.ResolveSourceLanguage(translate.Input{
			Text:                   msg.Content,
			SenderDeclaredLanguage: sender.Language,
		})
	}

	if err := r.deps.Messages.Save(ctx, msg); err != nil {
		r.deps.Logger.Error("failed to persist message",
			zap.String("messageID", msg.ID), zap.Error(err))
		client.Enqueue(ErrorFrame(authz.ReasonStoreUnavailable, "failed to persist message"))
		return outcomeError
	}

	// Senders always see their own original text, before fan-out runs.
	client.Enqueue(MessageSentFrame(msg))

	go r.fanOut(msg, sender, ev.WantSpokenReply)
	return outcomeOK
}

// fanOut derives and pushes one translated view per recipient. Each
// recipient's pipeline is isolated: a failure for one never blocks
// delivery to others, and ordering across recipients is unspecified.
func (r *Router) fanOut(msg *entities.Message, sender *entities.User, wantSpoken bool) {
	ctx, cancel := context.WithTimeout(context.Background(), fanOutTimeout)
	defer cancel()

	var recipients []string
	if msg.IsDirect() {
		recipients = []string{msg.ToUserID}
	} else {
		members, err := r.deps.Groups.Members(ctx, msg.GroupID)
		if err != nil {
			r.deps.Logger.Error("group member resolution failed",
				zap.String("groupID", msg.GroupID), zap.Error(err))
			return
		}
		for _, member := range members {
			if member != msg.FromUserID {
				recipients = append(recipients, member)
			}
		}
	}

	for _, recipientID := range recipients {
		go r.deliverTo(msg, sender, recipientID, wantSpoken)
	}
}

// deliverTo runs one recipient's pipeline: resolve their language,
// decide skip-vs-translate, push the view to their latest open
// connection, then attempt the best-effort bridge relay.
func (r *Router) deliverTo(msg *entities.Message, sender *entities.User, recipientID string, wantSpoken bool) {
	ctx, cancel := context.WithTimeout(context.Background(), fanOutTimeout)
	defer cancel()

	input := translate.Input{
		MessageID:               msg.ID,
		Text:                    msg.Content,
		Modality:                msg.Modality,
		Kind:                    msg.Kind,
		SenderDeclaredLanguage:  sender.Language,
		MessageDeclaredLanguage: msg.OriginalLanguage,
	}

	recipient, err := r.deps.Users.GetByID(ctx, recipientID)
	if err != nil {
		// Deliver the original untranslated rather than dropping.
		r.deps.Logger.Warn("recipient lookup failed, delivering original",
			zap.String("recipientID", recipientID), zap.Error(err))
		view := &entities.TranslatedView{
			SourceMessageID: msg.ID,
			TranslatedText:  msg.Content,
		}
		r.deps.Registry.Broadcast(recipientID, NewMessageFrame(msg, view), "")
		return
	}
	input.RecipientLanguage = recipient.Language

	decision := r.deps.Engine.Decide(ctx, input)
	view := &entities.TranslatedView{
		SourceMessageID:  msg.ID,
		TargetLanguage:   recipient.Language,
		TranslatedText:   decision.TranslatedText,
		NeedsTranslation: decision.NeedsTranslation,
		SourceLanguage:   decision.SourceLanguage,
	}

	delivered := r.deps.Registry.Broadcast(recipientID, NewMessageFrame(msg, view), "")
	if delivered > 0 && wantSpoken && msg.Modality == entities.ModalityText {
		r.speakTo(ctx, recipientID, msg.ID, view.TranslatedText, recipient.Language)
	}

	if recipient.BridgeAddress != "" && r.deps.Bridge != nil {
		if err := r.deps.Bridge.Relay(ctx, recipient.BridgeAddress, msg, view); err != nil {
			r.deps.Logger.Warn("bridge relay failed",
				zap.String("recipientID", recipientID),
				zap.String("messageID", msg.ID),
				zap.Error(err))
		}
	}
}

// speakTo streams synthesized audio of the delivered text to the
// recipient's latest connection, framed by tts-start/tts-end. Synthesis
// failures degrade to the already-delivered text.
func (r *Router) speakTo(ctx context.Context, recipientID, messageID, text, language string) {
	if r.deps.Synthesizer == nil {
		return
	}

	audio, err := r.deps.Synthesizer.Synthesize(ctx, text, language, "")
	if err != nil {
		r.deps.Logger.Warn("speech synthesis degraded to text only",
			zap.String("messageID", messageID), zap.Error(err))
		return
	}

	conn, ok := r.deps.Registry.Latest(recipientID, "")
	if !ok {
		for range audio {
		}
		return
	}

	conn.Handle.Enqueue(TtsStartFrame(messageID))
	for chunk := range audio {
		if err := conn.Handle.EnqueueBinary(chunk); err != nil {
			r.deps.Logger.Warn("dropped synthesized audio",
				zap.String("recipientID", recipientID), zap.Error(err))
			for range audio {
			}
			break
		}
	}
	conn.Handle.Enqueue(TtsEndFrame(messageID))
}

func (r *Router) handleTyping(client *Client, ev TypingEvent) string {
	if !r.deps.Limiter.Allow(client.userID, ratelimit.ActionSignal) {
		metrics.RateLimitedTotal.WithLabelValues(string(ratelimit.ActionSignal)).Inc()
		client.Enqueue(ErrorFrame(CodeRateLimited, "signal rate limit exceeded"))
		return outcomeRateLimited
	}
	if (ev.ToUserID == "") == (ev.GroupID == "") {
		client.Enqueue(ErrorFrame(CodeValidationError, "exactly one of toUserId and groupId must be set"))
		return outcomeInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	frame := TypingFrame(client.userID, ev)
	if ev.ToUserID != "" {
		r.deps.Registry.Broadcast(ev.ToUserID, frame, "")
		return outcomeOK
	}

	isMember, err := r.deps.Groups.IsMember(ctx, ev.GroupID, client.userID)
	if err != nil {
		r.deps.Logger.Warn("typing membership check failed",
			zap.String("groupID", ev.GroupID), zap.Error(err))
		return outcomeError
	}
	if !isMember {
		client.Enqueue(ErrorFrame(CodePermissionDenied, "not a member of the group"))
		return outcomeDenied
	}

	members, err := r.deps.Groups.Members(ctx, ev.GroupID)
	if err != nil {
		r.deps.Logger.Warn("typing fan-out member lookup failed",
			zap.String("groupID", ev.GroupID), zap.Error(err))
		return outcomeError
	}
	for _, member := range members {
		if member != client.userID {
			r.deps.Registry.Broadcast(member, frame, "")
		}
	}
	return outcomeOK
}

func (r *Router) handleMarkAsRead(client *Client, ev MarkAsReadEvent) string {
	if ev.MessageID == "" {
		client.Enqueue(ErrorFrame(CodeValidationError, "messageId is required"))
		return outcomeInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := r.deps.Messages.MarkRead(ctx, ev.MessageID, client.userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			client.Enqueue(ErrorFrame(CodeValidationError, "message not found"))
			return outcomeInvalid
		}
		r.deps.Logger.Error("failed to mark message read",
			zap.String("messageID", ev.MessageID), zap.Error(err))
		return outcomeError
	}

	msg, err := r.deps.Messages.GetByID(ctx, ev.MessageID)
	if err != nil {
		r.deps.Logger.Warn("read receipt sender lookup failed",
			zap.String("messageID", ev.MessageID), zap.Error(err))
		return outcomeOK
	}
	r.deps.Registry.Broadcast(msg.FromUserID, MessageUpdateFrame(ev.MessageID, client.userID), "")
	return outcomeOK
}

func (r *Router) handleJoinGroup(client *Client, ev JoinGroupEvent) string {
	if ev.GroupID == "" {
		client.Enqueue(ErrorFrame(CodeValidationError, "groupId is required"))
		return outcomeInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := r.deps.Groups.AddMember(ctx, ev.GroupID, client.userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			client.Enqueue(ErrorFrame(CodeValidationError, "group not found"))
			return outcomeInvalid
		}
		r.deps.Logger.Error("failed to add group member",
			zap.String("groupID", ev.GroupID), zap.Error(err))
		client.Enqueue(ErrorFrame(authz.ReasonStoreUnavailable, "failed to join group"))
		return outcomeError
	}

	frame := JoinedGroupFrame(ev.GroupID, client.userID)
	client.Enqueue(frame)
	r.notifyGroup(ctx, ev.GroupID, client.userID, frame)
	return outcomeOK
}

func (r *Router) handleLeaveGroup(client *Client, ev LeaveGroupEvent) string {
	if ev.GroupID == "" {
		client.Enqueue(ErrorFrame(CodeValidationError, "groupId is required"))
		return outcomeInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := r.deps.Groups.RemoveMember(ctx, ev.GroupID, client.userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			client.Enqueue(ErrorFrame(CodeValidationError, "group not found"))
			return outcomeInvalid
		}
		r.deps.Logger.Error("failed to remove group member",
			zap.String("groupID", ev.GroupID), zap.Error(err))
		client.Enqueue(ErrorFrame(authz.ReasonStoreUnavailable, "failed to leave group"))
		return outcomeError
	}

	frame := LeftGroupFrame(ev.GroupID, client.userID)
	client.Enqueue(frame)
	r.notifyGroup(ctx, ev.GroupID, client.userID, frame)
	return outcomeOK
}

func (r *Router) notifyGroup(ctx context.Context, groupID, excludeUserID string, frame []byte) {
	members, err := r.deps.Groups.Members(ctx, groupID)
	if err != nil {
		r.deps.Logger.Warn("group notification member lookup failed",
			zap.String("groupID", groupID), zap.Error(err))
		return
	}
	for _, member := range members {
		if member != excludeUserID {
			r.deps.Registry.Broadcast(member, frame, "")
		}
	}
}

// handleSendFriendRequest persists a pending request and notifies the
// addressee's latest open connection. The sender gets the same frame
// back as an acknowledgement carrying the request id.
func (r *Router) handleSendFriendRequest(client *Client, ev SendFriendRequestEvent) string {
	if ev.ToUserID == "" {
		client.Enqueue(ErrorFrame(CodeValidationError, "toUserId is required"))
		return outcomeInvalid
	}
	if ev.ToUserID == client.userID {
		client.Enqueue(ErrorFrame(CodeValidationError, "cannot send a friend request to yourself"))
		return outcomeInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if _, err := r.deps.Users.GetByID(ctx, ev.ToUserID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			client.Enqueue(ErrorFrame(CodeValidationError, "user not found"))
			return outcomeInvalid
		}
		r.deps.Logger.Error("friend request target lookup failed",
			zap.String("toUserID", ev.ToUserID), zap.Error(err))
		client.Enqueue(ErrorFrame(authz.ReasonStoreUnavailable, "failed to send friend request"))
		return outcomeError
	}

	alreadyFriends, err := r.deps.Users.AreFriends(ctx, client.userID, ev.ToUserID)
	if err != nil {
		r.deps.Logger.Error("friendship check failed",
			zap.String("toUserID", ev.ToUserID), zap.Error(err))
		client.Enqueue(ErrorFrame(authz.ReasonStoreUnavailable, "failed to send friend request"))
		return outcomeError
	}
	if alreadyFriends {
		client.Enqueue(ErrorFrame(CodeValidationError, "already friends"))
		return outcomeInvalid
	}

	req := &entities.FriendRequest{
		ID:         uuid.NewString(),
		FromUserID: client.userID,
		ToUserID:   ev.ToUserID,
		Status:     entities.FriendRequestPending,
		CreatedAt:  time.Now(),
	}
	if err := r.deps.Users.CreateFriendRequest(ctx, req); err != nil {
		r.deps.Logger.Error("failed to persist friend request",
			zap.String("toUserID", ev.ToUserID), zap.Error(err))
		client.Enqueue(ErrorFrame(authz.ReasonStoreUnavailable, "failed to send friend request"))
		return outcomeError
	}

	frame := NewFriendRequestFrame(req)
	client.Enqueue(frame)
	r.deps.Registry.Broadcast(ev.ToUserID, frame, "")
	return outcomeOK
}

func (r *Router) handleAcceptFriendRequest(client *Client, ev AcceptFriendRequestEvent) string {
	if ev.RequestID == "" {
		client.Enqueue(ErrorFrame(CodeValidationError, "requestId is required"))
		return outcomeInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	req, err := r.deps.Users.AcceptFriendRequest(ctx, ev.RequestID, client.userID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			client.Enqueue(ErrorFrame(CodeValidationError, "friend request not found"))
			return outcomeInvalid
		}
		r.deps.Logger.Error("failed to accept friend request",
			zap.String("requestID", ev.RequestID), zap.Error(err))
		client.Enqueue(ErrorFrame(authz.ReasonStoreUnavailable, "failed to accept friend request"))
		return outcomeError
	}

	frame := FriendRequestAcceptedFrame(req)
	client.Enqueue(frame)
	r.deps.Registry.Broadcast(req.FromUserID, frame, "")
	return outcomeOK
}

// handleCallSignal relays a signaling frame verbatim to the addressed
// peer, with one exception: an offer to a target with no open
// connection is answered with a synthetic call-busy frame instead.
func (r *Router) handleCallSignal(client *Client, ev CallSignalEvent) string {
	if !r.deps.Limiter.Allow(client.userID, ratelimit.ActionSignal) {
		metrics.RateLimitedTotal.WithLabelValues(string(ratelimit.ActionSignal)).Inc()
		client.Enqueue(ErrorFrame(CodeRateLimited, "signal rate limit exceeded"))
		return outcomeRateLimited
	}
	if ev.TargetUserID == "" {
		client.Enqueue(ErrorFrame(CodeValidationError, "targetUserId is required"))
		return outcomeInvalid
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	decision := r.deps.Authorizer.AuthorizeSignaling(ctx, authz.SignalingContext{
		CallerID:     client.userID,
		RoomID:       ev.RoomID,
		Action:       signalAction(ev.Type),
		TargetUserID: ev.TargetUserID,
	})
	if !decision.Allowed {
		client.Enqueue(ErrorFrame(CodePermissionDenied, decision.Reason))
		return outcomeDenied
	}

	if ev.Type == EventCallOffer && !r.deps.Registry.IsOnline(ev.TargetUserID) {
		client.Enqueue(CallBusyFrame(ev.RoomID, ev.TargetUserID))
		return outcomeOK
	}

	r.deps.Registry.Broadcast(ev.TargetUserID, CallSignalFrame(client.userID, ev), "")
	return outcomeOK
}

func signalAction(eventType string) string {
	switch eventType {
	case EventCallOffer:
		return authz.SignalOffer
	case EventCallAnswer:
		return authz.SignalAnswer
	case EventCallICECandidate:
		return authz.SignalICECandidate
	default:
		// call-end and call-reject both terminate the exchange.
		return authz.SignalEndCall
	}
}

func (r *Router) handleSttStart(client *Client, ev SttStartEvent) string {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	config := repositories.AudioConfig{
		SampleRate: ev.SampleRate,
		Format:     ev.Format,
		Language:   ev.Language,
	}
	if config.SampleRate == 0 {
		config.SampleRate = 16000
	}
	if config.Format == "" {
		config.Format = "pcm"
	}
	if config.Language == "" {
		if sender, err := r.deps.Users.GetByID(ctx, client.userID); err == nil {
			config.Language = sender.Language
		}
	}

	_, err := r.deps.Recognition.Start(ctx, client.id, config, func(u recognition.Update) {
		var frame []byte
		switch u.Kind {
		case recognition.UpdateReady:
			frame = SttReadyFrame(u.SessionID, u.TaskID)
		case recognition.UpdateTranscript:
			frame = SttTranscriptFrame(u.SessionID, u.Transcript, u.IsFinal)
		case recognition.UpdateError:
			frame = SttErrorFrame(u.SessionID, u.Reason)
		case recognition.UpdateClosed:
			frame = SttClosedFrame(u.SessionID)
		default:
			return
		}
		if err := client.Enqueue(frame); err != nil {
			r.deps.Logger.Debug("dropped recognition update",
				zap.String("connectionID", client.id), zap.Error(err))
		}
	})
	if err != nil {
		r.deps.Logger.Error("failed to start recognition session",
			zap.String("connectionID", client.id), zap.Error(err))
		client.Enqueue(SttErrorFrame("", "failed to start recognition session"))
		return outcomeError
	}
	return outcomeOK
}

// handleSttAudio accepts the base64-framed equivalent of a binary
// audio frame, for clients whose transport cannot send binary.
func (r *Router) handleSttAudio(client *Client, ev SttAudioEvent) string {
	if len(ev.Audio) == 0 {
		client.Enqueue(ErrorFrame(CodeValidationError, "audio is required"))
		return outcomeInvalid
	}
	if err := r.deps.Recognition.Feed(client.id, ev.Audio); err != nil {
		client.Enqueue(ErrorFrame(CodeValidationError, "no open recognition session"))
		return outcomeInvalid
	}
	return outcomeOK
}

func (r *Router) handleSttStop(client *Client) string {
	if err := r.deps.Recognition.Stop(client.id); err != nil {
		client.Enqueue(ErrorFrame(CodeValidationError, "no open recognition session"))
		return outcomeInvalid
	}
	return outcomeOK
}
