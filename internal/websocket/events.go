package websocket

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
)

// Inbound event types accepted from clients.
const (
	EventSendMessage         = "sendMessage"
	EventTyping              = "typing"
	EventMarkAsRead          = "markAsRead"
	EventJoinGroup           = "joinGroup"
	EventLeaveGroup          = "leaveGroup"
	EventSendFriendRequest   = "sendFriendRequest"
	EventAcceptFriendRequest = "acceptFriendRequest"
	EventCallOffer           = "call-offer"
	EventCallAnswer          = "call-answer"
	EventCallICECandidate    = "call-ice-candidate"
	EventCallEnd             = "call-end"
	EventCallReject          = "call-reject"
	EventSttStart            = "stt-start"
	EventSttAudio            = "stt-audio"
	EventSttStop             = "stt-stop"
)

// Outbound event types pushed to clients.
const (
	EventAuthSuccess           = "authSuccess"
	EventError                 = "error"
	EventMessageSent           = "messageSent"
	EventNewMessage            = "newMessage"
	EventMessageUpdate         = "messageUpdate"
	EventJoinedGroup           = "joinedGroup"
	EventLeftGroup             = "leftGroup"
	EventNewFriendRequest      = "newFriendRequest"
	EventFriendRequestAccepted = "friendRequestAccepted"
	EventCallBusy              = "call-busy"
	EventSttReady              = "stt-ready"
	EventSttTranscript         = "stt-transcript"
	EventSttError              = "stt-error"
	EventSttClosed             = "stt-closed"
	EventTtsStart              = "tts-start"
	EventTtsEnd                = "tts-end"
)

// Error codes carried on error frames.
const (
	CodeNotAuthenticated = "NotAuthenticated"
	CodeRateLimited      = "RateLimited"
	CodePermissionDenied = "PermissionDenied"
	CodeValidationError  = "ValidationError"
)

// Envelope is the transport framing: a type tag plus a payload object.
// Older clients send payload fields at the top level, so decoding
// falls back to the whole frame when payload is absent.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound is the closed set of client events. The router dispatches
// over the concrete types exhaustively.
type Inbound interface {
	inbound()
}

// SendMessageEvent asks the router to persist and fan out a message.
type SendMessageEvent struct {
	ToUserID         string               `json:"toUserId,omitempty"`
	GroupID          string               `json:"groupId,omitempty"`
	Modality         entities.Modality    `json:"modality,omitempty"`
	Kind             entities.MessageKind `json:"kind,omitempty"`
	Content          string               `json:"content"`
	OriginalLanguage string               `json:"originalLanguage,omitempty"`
	ReplyToMessageID string               `json:"replyToMessageId,omitempty"`
	WantSpokenReply  bool                 `json:"wantSpokenReply,omitempty"`
}

// TypingEvent is relayed to the conversation peer without persistence.
type TypingEvent struct {
	ToUserID string `json:"toUserId,omitempty"`
	GroupID  string `json:"groupId,omitempty"`
	IsTyping bool   `json:"isTyping"`
}

// MarkAsReadEvent records a read receipt.
type MarkAsReadEvent struct {
	MessageID string `json:"messageId"`
}

// JoinGroupEvent adds the caller to a group.
type JoinGroupEvent struct {
	GroupID string `json:"groupId"`
}

// LeaveGroupEvent removes the caller from a group.
type LeaveGroupEvent struct {
	GroupID string `json:"groupId"`
}

// SendFriendRequestEvent opens a pending friend request to another
// user.
type SendFriendRequestEvent struct {
	ToUserID string `json:"toUserId"`
}

// AcceptFriendRequestEvent accepts a pending friend request.
type AcceptFriendRequestEvent struct {
	RequestID string `json:"requestId"`
}

// CallSignalEvent is a call-signaling frame relayed verbatim to the
// addressed peer; the router never inspects the SDP/candidate body.
type CallSignalEvent struct {
	Type         string          `json:"-"`
	RoomID       string          `json:"roomId"`
	TargetUserID string          `json:"targetUserId"`
	Body         json.RawMessage `json:"-"`
}

// SttStartEvent opens a streaming recognition session on the
// connection.
type SttStartEvent struct {
	SampleRate int    `json:"sampleRate,omitempty"`
	Format     string `json:"format,omitempty"`
	Language   string `json:"language,omitempty"`
}

// SttAudioEvent carries one base64-framed audio chunk for clients that
// cannot send raw binary frames. Equivalent to a binary frame.
type SttAudioEvent struct {
	Audio []byte `json:"audio"`
}

// SttStopEvent finishes the connection's recognition session.
type SttStopEvent struct{}

func (SendMessageEvent) inbound()         {}
func (TypingEvent) inbound()              {}
func (MarkAsReadEvent) inbound()          {}
func (JoinGroupEvent) inbound()           {}
func (LeaveGroupEvent) inbound()          {}
func (SendFriendRequestEvent) inbound()   {}
func (AcceptFriendRequestEvent) inbound() {}
func (CallSignalEvent) inbound()          {}
func (SttStartEvent) inbound()            {}
func (SttAudioEvent) inbound()            {}
func (SttStopEvent) inbound()             {}

// DecodeInbound parses one text frame into its typed event.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("envelope missing type field")
	}

	// Legacy frames carry their fields at the top level.
	body := env.Payload
	if len(body) == 0 {
		body = raw
	}

	switch env.Type {
	case EventSendMessage:
		var ev SendMessageEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ev, nil
	case EventTyping:
		var ev TypingEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ev, nil
	case EventMarkAsRead:
		var ev MarkAsReadEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ev, nil
	case EventJoinGroup:
		var ev JoinGroupEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ev, nil
	case EventLeaveGroup:
		var ev LeaveGroupEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ev, nil
	case EventSendFriendRequest:
		var ev SendFriendRequestEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ev, nil
	case EventAcceptFriendRequest:
		var ev AcceptFriendRequestEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ev, nil
	case EventCallOffer, EventCallAnswer, EventCallICECandidate, EventCallEnd, EventCallReject:
		var ev CallSignalEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		ev.Type = env.Type
		ev.Body = append(json.RawMessage(nil), body...)
		return ev, nil
	case EventSttStart:
		var ev SttStartEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ev, nil
	case EventSttAudio:
		var ev SttAudioEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Type, err)
		}
		return ev, nil
	case EventSttStop:
		return SttStopEvent{}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}
}

func encode(eventType string, payload any) []byte {
	body, _ := json.Marshal(payload)
	frame, _ := json.Marshal(Envelope{Type: eventType, Payload: body})
	return frame
}

// AuthSuccessFrame confirms the post-upgrade token verification.
func AuthSuccessFrame(userID string) []byte {
	return encode(EventAuthSuccess, map[string]any{
		"userId":    userID,
		"timestamp": time.Now().Unix(),
	})
}

// ErrorFrame reports a dropped event to the offending connection only.
func ErrorFrame(code, message string) []byte {
	return encode(EventError, map[string]any{
		"code":    code,
		"message": message,
	})
}

// MessageSentFrame acknowledges the sender with their own untranslated
// original.
func MessageSentFrame(msg *entities.Message) []byte {
	return encode(EventMessageSent, messageBody(msg, nil))
}

// NewMessageFrame carries one recipient's translated view of a
// message.
func NewMessageFrame(msg *entities.Message, view *entities.TranslatedView) []byte {
	return encode(EventNewMessage, messageBody(msg, view))
}

// MessageUpdateFrame notifies the sender that a message was read.
func MessageUpdateFrame(messageID, readerID string) []byte {
	return encode(EventMessageUpdate, map[string]any{
		"messageId": messageID,
		"readerId":  readerID,
		"status":    "read",
	})
}

// TypingFrame relays a typing indicator.
func TypingFrame(fromUserID string, ev TypingEvent) []byte {
	return encode(EventTyping, map[string]any{
		"fromUserId": fromUserID,
		"toUserId":   ev.ToUserID,
		"groupId":    ev.GroupID,
		"isTyping":   ev.IsTyping,
	})
}

// JoinedGroupFrame confirms a group join to the caller and notifies
// members.
func JoinedGroupFrame(groupID, userID string) []byte {
	return encode(EventJoinedGroup, map[string]any{
		"groupId": groupID,
		"userId":  userID,
	})
}

// LeftGroupFrame confirms a group leave.
func LeftGroupFrame(groupID, userID string) []byte {
	return encode(EventLeftGroup, map[string]any{
		"groupId": groupID,
		"userId":  userID,
	})
}

// NewFriendRequestFrame notifies the addressee of a pending request.
func NewFriendRequestFrame(req *entities.FriendRequest) []byte {
	return encode(EventNewFriendRequest, map[string]any{
		"requestId":  req.ID,
		"fromUserId": req.FromUserID,
		"toUserId":   req.ToUserID,
	})
}

// FriendRequestAcceptedFrame notifies the original requester.
func FriendRequestAcceptedFrame(req *entities.FriendRequest) []byte {
	return encode(EventFriendRequestAccepted, map[string]any{
		"requestId":  req.ID,
		"fromUserId": req.FromUserID,
		"toUserId":   req.ToUserID,
	})
}

// CallSignalFrame re-frames a signaling event for the addressed peer,
// carrying the original body verbatim plus the sender identity.
func CallSignalFrame(fromUserID string, ev CallSignalEvent) []byte {
	var body map[string]any
	if err := json.Unmarshal(ev.Body, &body); err != nil || body == nil {
		body = make(map[string]any)
	}
	body["fromUserId"] = fromUserID
	return encode(ev.Type, body)
}

// CallBusyFrame is the synthetic reply for an offer to an offline
// target.
func CallBusyFrame(roomID, targetUserID string) []byte {
	return encode(EventCallBusy, map[string]any{
		"roomId":       roomID,
		"targetUserId": targetUserID,
		"reason":       "offline",
	})
}

// SttReadyFrame signals that the remote recognition task accepted the
// session and buffered audio has been flushed.
func SttReadyFrame(sessionID, taskID string) []byte {
	return encode(EventSttReady, map[string]any{
		"sessionId": sessionID,
		"taskId":    taskID,
	})
}

// SttTranscriptFrame carries the reconstructed full-so-far transcript.
func SttTranscriptFrame(sessionID, transcript string, isFinal bool) []byte {
	return encode(EventSttTranscript, map[string]any{
		"sessionId":  sessionID,
		"transcript": transcript,
		"isFinal":    isFinal,
	})
}

// SttErrorFrame reports a terminal session failure with the
// remote-provided reason.
func SttErrorFrame(sessionID, reason string) []byte {
	return encode(EventSttError, map[string]any{
		"sessionId": sessionID,
		"reason":    reason,
	})
}

// SttClosedFrame signals session teardown.
func SttClosedFrame(sessionID string) []byte {
	return encode(EventSttClosed, map[string]any{
		"sessionId": sessionID,
	})
}

// TtsStartFrame precedes a run of binary audio frames on the spoken
// reply path.
func TtsStartFrame(messageID string) []byte {
	return encode(EventTtsStart, map[string]any{
		"messageId": messageID,
	})
}

// TtsEndFrame closes a run of binary audio frames.
func TtsEndFrame(messageID string) []byte {
	return encode(EventTtsEnd, map[string]any{
		"messageId": messageID,
	})
}

func messageBody(msg *entities.Message, view *entities.TranslatedView) map[string]any {
	body := map[string]any{
		"id":         msg.ID,
		"fromUserId": msg.FromUserID,
		"modality":   msg.Modality,
		"content":    msg.Content,
		"createdAt":  msg.CreatedAt.Unix(),
	}
	if msg.ToUserID != "" {
		body["toUserId"] = msg.ToUserID
	}
	if msg.GroupID != "" {
		body["groupId"] = msg.GroupID
	}
	if msg.Kind != "" {
		body["kind"] = msg.Kind
	}
	if msg.OriginalLanguage != "" {
		body["originalLanguage"] = msg.OriginalLanguage
	}
	if msg.ReplyToMessageID != "" {
		body["replyToMessageId"] = msg.ReplyToMessageID
	}
	if view != nil {
		body["translatedText"] = view.TranslatedText
		body["needsTranslation"] = view.NeedsTranslation
		if view.SourceLanguage != "" {
			body["sourceLanguage"] = view.SourceLanguage
		}
	}
	return body
}
