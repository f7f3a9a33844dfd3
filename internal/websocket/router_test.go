package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
	"github.com/longxianmian/goodpick-go-sub000/internal/auth"
	"github.com/longxianmian/goodpick-go-sub000/internal/authz"
	"github.com/longxianmian/goodpick-go-sub000/internal/ratelimit"
	"github.com/longxianmian/goodpick-go-sub000/internal/recognition"
	"github.com/longxianmian/goodpick-go-sub000/internal/translate"
)

const testSigningSecret = "unit-test-signing-secret"

type fakeUserStore struct {
	mu       sync.Mutex
	users    map[string]*entities.User
	friends  map[string]bool
	online   map[string][]bool
	requests map[string]*entities.FriendRequest
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:    make(map[string]*entities.User),
		friends:  make(map[string]bool),
		online:   make(map[string][]bool),
		requests: make(map[string]*entities.FriendRequest),
	}
}

func (f *fakeUserStore) add(id, language string) {
	f.users[id] = &entities.User{ID: id, Username: id, Language: language}
}

func (f *fakeUserStore) Create(ctx context.Context, user *entities.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUserStore) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	return f.GetByID(ctx, username)
}

func (f *fakeUserStore) SetOnline(ctx context.Context, userID string, online bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.online[userID] = append(f.online[userID], online)
	return nil
}

func (f *fakeUserStore) AreFriends(ctx context.Context, a, b string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.friends[a+"|"+b] || f.friends[b+"|"+a], nil
}

func (f *fakeUserStore) CreateFriendRequest(ctx context.Context, req *entities.FriendRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[req.ID] = req
	return nil
}

func (f *fakeUserStore) AcceptFriendRequest(ctx context.Context, requestID, acceptorID string) (*entities.FriendRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.requests[requestID]
	if !ok || req.ToUserID != acceptorID {
		return nil, repositories.ErrNotFound
	}
	req.Status = entities.FriendRequestAccepted
	f.friends[req.FromUserID+"|"+req.ToUserID] = true
	return req, nil
}

func (f *fakeUserStore) onlineWrites(userID string) []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.online[userID]...)
}

type fakeGroupStore struct {
	mu      sync.Mutex
	members map[string]map[string]bool
}

func newFakeGroupStore() *fakeGroupStore {
	return &fakeGroupStore{members: make(map[string]map[string]bool)}
}

func (f *fakeGroupStore) Create(ctx context.Context, group *entities.Group) error { return nil }

func (f *fakeGroupStore) GetByID(ctx context.Context, id string) (*entities.Group, error) {
	return nil, repositories.ErrNotFound
}

func (f *fakeGroupStore) Members(ctx context.Context, groupID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for id := range f.members[groupID] {
		out = append(out, id)
	}
	return out, nil
}

func (f *fakeGroupStore) IsMember(ctx context.Context, groupID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[groupID][userID], nil
}

func (f *fakeGroupStore) AddMember(ctx context.Context, groupID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[groupID] == nil {
		f.members[groupID] = make(map[string]bool)
	}
	f.members[groupID][userID] = true
	return nil
}

func (f *fakeGroupStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[groupID], userID)
	return nil
}

type fakeMessageStore struct {
	mu    sync.Mutex
	saved map[string]*entities.Message
	reads map[string][]string
	views map[string]*entities.TranslatedView
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{
		saved: make(map[string]*entities.Message),
		reads: make(map[string][]string),
		views: make(map[string]*entities.TranslatedView),
	}
}

func (f *fakeMessageStore) Save(ctx context.Context, message *entities.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *message
	f.saved[message.ID] = &copied
	return nil
}

func (f *fakeMessageStore) GetByID(ctx context.Context, id string) (*entities.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.saved[id]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeMessageStore) MarkRead(ctx context.Context, messageID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.saved[messageID]; !ok {
		return repositories.ErrNotFound
	}
	f.reads[messageID] = append(f.reads[messageID], userID)
	return nil
}

func (f *fakeMessageStore) SaveTranslation(ctx context.Context, view *entities.TranslatedView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.views[view.SourceMessageID+"|"+view.TargetLanguage] = view
	return nil
}

func (f *fakeMessageStore) GetTranslation(ctx context.Context, messageID, targetLanguage string) (*entities.TranslatedView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.views[messageID+"|"+targetLanguage]; ok {
		return v, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeMessageStore) savedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

type fakeStream struct {
	taskID string
	events chan repositories.StreamEvent

	mu   sync.Mutex
	sent [][]byte
}

func newFakeStream(taskID string) *fakeStream {
	return &fakeStream{
		taskID: taskID,
		events: make(chan repositories.StreamEvent, 32),
	}
}

func (f *fakeStream) TaskID() string                          { return f.taskID }
func (f *fakeStream) Events() <-chan repositories.StreamEvent { return f.events }

func (f *fakeStream) Send(audio []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	frame := make([]byte, len(audio))
	copy(frame, audio)
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeStream) Finish() error {
	f.events <- repositories.StreamEvent{Kind: repositories.StreamEventCompleted}
	return nil
}

func (f *fakeStream) Close() error { return nil }

func (f *fakeStream) ready() {
	f.events <- repositories.StreamEvent{Kind: repositories.StreamEventReady}
}

func (f *fakeStream) sentFrames() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeRecognizer struct {
	mu      sync.Mutex
	streams []*fakeStream
	opened  int
}

func (f *fakeRecognizer) Open(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.opened >= len(f.streams) {
		return nil, repositories.ErrNotFound
	}
	stream := f.streams[f.opened]
	f.opened++
	return stream, nil
}

type echoTranslator struct{}

func (echoTranslator) Translate(ctx context.Context, text, targetLanguage, style string) (repositories.TranslationResult, error) {
	return repositories.TranslationResult{TranslatedText: "[" + targetLanguage + "] " + text}, nil
}

type routerFixture struct {
	router   *Router
	registry *Registry
	users    *fakeUserStore
	groups   *fakeGroupStore
	messages *fakeMessageStore
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	logger := zap.NewNop()

	users := newFakeUserStore()
	users.add("alice", "zh")
	users.add("bob", "en")
	users.add("carol", "en")
	users.friends["alice|bob"] = true

	groups := newFakeGroupStore()
	groups.members["group-1"] = map[string]bool{"alice": true, "carol": true}

	messages := newFakeMessageStore()
	registry := NewRegistry(logger)

	authenticator, err := auth.New(testSigningSecret, users, true)
	if err != nil {
		t.Fatalf("auth.New failed: %v", err)
	}

	router := NewRouter(Deps{
		Registry:    registry,
		Auth:        authenticator,
		Authorizer:  authz.New(registry, users, groups, logger),
		Limiter:     ratelimit.New(60, 120),
		Engine:      translate.NewEngine(echoTranslator{}, messages, logger),
		Recognition: recognition.NewManager(&fakeRecognizer{}, logger),
		Users:       users,
		Groups:      groups,
		Messages:    messages,
		Logger:      logger,
	})

	return &routerFixture{
		router:   router,
		registry: registry,
		users:    users,
		groups:   groups,
		messages: messages,
	}
}

// connect registers a pre-authenticated client without a real
// transport; frames accumulate on its send channel.
func (fx *routerFixture) connect(userID string) *Client {
	client := &Client{
		id:     uuid.NewString(),
		userID: userID,
		send:   make(chan WriteData, 64),
		logger: zap.NewNop(),
	}
	fx.registry.Register(&Connection{
		ID:     client.id,
		UserID: userID,
		Kind:   TransportWebSocket,
		Handle: client,
	})
	return client
}

func nextFrame(t *testing.T, client *Client) (string, map[string]any) {
	t.Helper()
	select {
	case data := <-client.send:
		var env Envelope
		if err := json.Unmarshal(data.Payload, &env); err != nil {
			t.Fatalf("malformed outbound frame: %v", err)
		}
		var payload map[string]any
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				t.Fatalf("malformed outbound payload: %v", err)
			}
		}
		return env.Type, payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return "", nil
	}
}

func assertNoFrame(t *testing.T, client *Client) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Fatalf("unexpected outbound frame: %s", data.Payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDirectMessageTranslatedForRecipient(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")
	bob := fx.connect("bob")

	fx.router.HandleFrame(alice, []byte(`{"type":"sendMessage","payload":{"toUserId":"bob","content":"你好"}}`))

	frameType, ack := nextFrame(t, alice)
	if frameType != EventMessageSent {
		t.Fatalf("expected messageSent ack, got %s", frameType)
	}
	if ack["content"] != "你好" {
		t.Errorf("sender ack must carry the untranslated original, got %v", ack["content"])
	}
	if _, ok := ack["translatedText"]; ok {
		t.Error("sender ack must not carry a translated view")
	}

	frameType, view := nextFrame(t, bob)
	if frameType != EventNewMessage {
		t.Fatalf("expected newMessage, got %s", frameType)
	}
	if view["needsTranslation"] != true {
		t.Errorf("zh->en delivery should need translation, got %v", view["needsTranslation"])
	}
	if text, _ := view["translatedText"].(string); text == "" || text == "你好" {
		t.Errorf("expected a non-empty translated text, got %q", text)
	}
	if fx.messages.savedCount() != 1 {
		t.Errorf("message must be persisted exactly once, got %d", fx.messages.savedCount())
	}
}

func TestSameLanguageDeliverySkipsTranslation(t *testing.T) {
	fx := newRouterFixture(t)
	fx.users.friends["bob|carol"] = true
	bob := fx.connect("bob")
	carol := fx.connect("carol")

	fx.router.HandleFrame(bob, []byte(`{"type":"sendMessage","payload":{"toUserId":"carol","content":"hello there","originalLanguage":"en"}}`))

	nextFrame(t, bob) // messageSent ack
	frameType, view := nextFrame(t, carol)
	if frameType != EventNewMessage {
		t.Fatalf("expected newMessage, got %s", frameType)
	}
	if view["needsTranslation"] != false {
		t.Errorf("same-language delivery must skip translation, got %v", view["needsTranslation"])
	}
	if view["translatedText"] != "hello there" {
		t.Errorf("identity copy must be byte-identical, got %v", view["translatedText"])
	}
}

func TestGroupSendFromNonMemberDenied(t *testing.T) {
	fx := newRouterFixture(t)
	bob := fx.connect("bob")

	fx.router.HandleFrame(bob, []byte(`{"type":"sendMessage","payload":{"groupId":"group-1","content":"hi"}}`))

	frameType, payload := nextFrame(t, bob)
	if frameType != EventError {
		t.Fatalf("expected error frame, got %s", frameType)
	}
	if payload["code"] != CodePermissionDenied || payload["message"] != authz.ReasonNotGroupMember {
		t.Errorf("expected PermissionDenied/NotGroupMember, got %v", payload)
	}
	if fx.messages.savedCount() != 0 {
		t.Errorf("denied send must not persist a message, got %d", fx.messages.savedCount())
	}
}

func TestGroupFanOutExcludesSender(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")
	carol := fx.connect("carol")

	fx.router.HandleFrame(alice, []byte(`{"type":"sendMessage","payload":{"groupId":"group-1","content":"你好"}}`))

	frameType, _ := nextFrame(t, alice)
	if frameType != EventMessageSent {
		t.Fatalf("expected messageSent ack, got %s", frameType)
	}
	frameType, _ = nextFrame(t, carol)
	if frameType != EventNewMessage {
		t.Fatalf("expected newMessage for member, got %s", frameType)
	}
	assertNoFrame(t, alice)
}

func TestSendMessageRateLimited(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")

	frame := []byte(`{"type":"sendMessage","payload":{"toUserId":"bob","content":"spam"}}`)
	var limited bool
	for i := 0; i < 30 && !limited; i++ {
		fx.router.HandleFrame(alice, frame)
		frameType, payload := nextFrame(t, alice)
		if frameType == EventError && payload["code"] == CodeRateLimited {
			limited = true
		}
	}
	if !limited {
		t.Fatal("expected the burst to exhaust the rate limit")
	}
}

func TestMalformedFrameGetsValidationError(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")

	fx.router.HandleFrame(alice, []byte(`{"type":"teleport"}`))

	frameType, payload := nextFrame(t, alice)
	if frameType != EventError || payload["code"] != CodeValidationError {
		t.Errorf("expected ValidationError frame, got %s %v", frameType, payload)
	}
}

func TestCallOfferToOfflineTargetAnsweredWithBusy(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")

	fx.router.HandleFrame(alice, []byte(`{"type":"call-offer","payload":{"roomId":"call_alice_bob","targetUserId":"bob","sdp":"v=0"}}`))

	frameType, payload := nextFrame(t, alice)
	if frameType != EventCallBusy {
		t.Fatalf("expected call-busy, got %s", frameType)
	}
	if payload["targetUserId"] != "bob" {
		t.Errorf("busy frame should name the target, got %v", payload)
	}
}

func TestCallSignalRelayedVerbatimToPeer(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")
	bob := fx.connect("bob")

	fx.router.HandleFrame(alice, []byte(`{"type":"call-offer","payload":{"roomId":"call_alice_bob","targetUserId":"bob","sdp":"v=0"}}`))

	frameType, payload := nextFrame(t, bob)
	if frameType != EventCallOffer {
		t.Fatalf("expected relayed call-offer, got %s", frameType)
	}
	if payload["sdp"] != "v=0" {
		t.Errorf("signal body must be relayed verbatim, got %v", payload)
	}
	if payload["fromUserId"] != "alice" {
		t.Errorf("relayed frame must carry the sender identity, got %v", payload)
	}
}

func TestCallSignalOutsiderDenied(t *testing.T) {
	fx := newRouterFixture(t)
	carol := fx.connect("carol")
	fx.connect("bob")

	fx.router.HandleFrame(carol, []byte(`{"type":"call-offer","payload":{"roomId":"call_alice_bob","targetUserId":"bob"}}`))

	frameType, payload := nextFrame(t, carol)
	if frameType != EventError || payload["code"] != CodePermissionDenied {
		t.Errorf("expected PermissionDenied, got %s %v", frameType, payload)
	}
}

func TestMarkAsReadNotifiesOriginalSender(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")
	bob := fx.connect("bob")

	fx.router.HandleFrame(alice, []byte(`{"type":"sendMessage","payload":{"toUserId":"bob","content":"你好"}}`))
	_, ack := nextFrame(t, alice)
	nextFrame(t, bob)
	messageID, _ := ack["id"].(string)
	if messageID == "" {
		t.Fatal("ack missing message id")
	}

	fx.router.HandleFrame(bob, []byte(`{"type":"markAsRead","payload":{"messageId":"`+messageID+`"}}`))

	frameType, payload := nextFrame(t, alice)
	if frameType != EventMessageUpdate {
		t.Fatalf("expected messageUpdate, got %s", frameType)
	}
	if payload["messageId"] != messageID || payload["readerId"] != "bob" {
		t.Errorf("unexpected read receipt payload: %v", payload)
	}
}

func TestTypingRelayedWithoutPersistence(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")
	bob := fx.connect("bob")

	fx.router.HandleFrame(alice, []byte(`{"type":"typing","payload":{"toUserId":"bob","isTyping":true}}`))

	frameType, payload := nextFrame(t, bob)
	if frameType != EventTyping {
		t.Fatalf("expected typing frame, got %s", frameType)
	}
	if payload["fromUserId"] != "alice" || payload["isTyping"] != true {
		t.Errorf("unexpected typing payload: %v", payload)
	}
	if fx.messages.savedCount() != 0 {
		t.Error("typing must not be persisted")
	}
}

func TestJoinGroupAcksAndNotifiesMembers(t *testing.T) {
	fx := newRouterFixture(t)
	bob := fx.connect("bob")
	carol := fx.connect("carol")

	fx.router.HandleFrame(bob, []byte(`{"type":"joinGroup","payload":{"groupId":"group-1"}}`))

	frameType, payload := nextFrame(t, bob)
	if frameType != EventJoinedGroup || payload["userId"] != "bob" {
		t.Fatalf("expected joinedGroup ack, got %s %v", frameType, payload)
	}
	frameType, _ = nextFrame(t, carol)
	if frameType != EventJoinedGroup {
		t.Fatalf("expected member notification, got %s", frameType)
	}

	member, _ := fx.groups.IsMember(context.Background(), "group-1", "bob")
	if !member {
		t.Error("join must persist membership")
	}
}

func TestAcceptFriendRequestNotifiesRequester(t *testing.T) {
	fx := newRouterFixture(t)
	fx.users.requests["req-1"] = &entities.FriendRequest{
		ID: "req-1", FromUserID: "carol", ToUserID: "alice",
		Status: entities.FriendRequestPending,
	}
	alice := fx.connect("alice")
	carol := fx.connect("carol")

	fx.router.HandleFrame(alice, []byte(`{"type":"acceptFriendRequest","payload":{"requestId":"req-1"}}`))

	frameType, _ := nextFrame(t, alice)
	if frameType != EventFriendRequestAccepted {
		t.Fatalf("expected acceptance ack, got %s", frameType)
	}
	frameType, payload := nextFrame(t, carol)
	if frameType != EventFriendRequestAccepted || payload["requestId"] != "req-1" {
		t.Fatalf("expected requester notification, got %s %v", frameType, payload)
	}

	friends, _ := fx.users.AreFriends(context.Background(), "alice", "carol")
	if !friends {
		t.Error("acceptance must establish the friendship")
	}
}

func TestHandleCloseWritesOfflineOnLastConnectionOnly(t *testing.T) {
	fx := newRouterFixture(t)
	first := fx.connect("alice")
	second := fx.connect("alice")

	fx.router.HandleClose(first)
	if writes := fx.users.onlineWrites("alice"); len(writes) != 0 {
		t.Fatalf("non-last removal must not write presence, got %v", writes)
	}

	fx.router.HandleClose(second)
	writes := fx.users.onlineWrites("alice")
	if len(writes) != 1 || writes[0] != false {
		t.Fatalf("last removal must write offline exactly once, got %v", writes)
	}
}

func TestSendFriendRequestNotifiesAddressee(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")
	carol := fx.connect("carol")

	fx.router.HandleFrame(alice, []byte(`{"type":"sendFriendRequest","payload":{"toUserId":"carol"}}`))

	frameType, ack := nextFrame(t, alice)
	if frameType != EventNewFriendRequest {
		t.Fatalf("expected newFriendRequest ack, got %s", frameType)
	}
	requestID, _ := ack["requestId"].(string)
	if requestID == "" {
		t.Fatal("ack missing request id")
	}

	frameType, payload := nextFrame(t, carol)
	if frameType != EventNewFriendRequest {
		t.Fatalf("expected newFriendRequest for addressee, got %s", frameType)
	}
	if payload["fromUserId"] != "alice" || payload["requestId"] != requestID {
		t.Errorf("unexpected friend request payload: %v", payload)
	}

	req := fx.users.requests[requestID]
	if req == nil || req.Status != entities.FriendRequestPending {
		t.Fatalf("request must be persisted pending, got %+v", req)
	}

	// The persisted request is acceptable through the normal lifecycle.
	fx.router.HandleFrame(carol, []byte(`{"type":"acceptFriendRequest","payload":{"requestId":"`+requestID+`"}}`))
	frameType, _ = nextFrame(t, carol)
	if frameType != EventFriendRequestAccepted {
		t.Fatalf("expected acceptance ack, got %s", frameType)
	}
	friends, _ := fx.users.AreFriends(context.Background(), "alice", "carol")
	if !friends {
		t.Error("acceptance must establish the friendship")
	}
}

func TestSendFriendRequestToExistingFriendRejected(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")

	fx.router.HandleFrame(alice, []byte(`{"type":"sendFriendRequest","payload":{"toUserId":"bob"}}`))

	frameType, payload := nextFrame(t, alice)
	if frameType != EventError || payload["code"] != CodeValidationError {
		t.Errorf("expected ValidationError for existing friendship, got %s %v", frameType, payload)
	}
	if len(fx.users.requests) != 0 {
		t.Errorf("rejected request must not be persisted, got %d", len(fx.users.requests))
	}
}

func TestGroupTypingFromNonMemberDenied(t *testing.T) {
	fx := newRouterFixture(t)
	bob := fx.connect("bob")
	carol := fx.connect("carol")

	fx.router.HandleFrame(bob, []byte(`{"type":"typing","payload":{"groupId":"group-1","isTyping":true}}`))

	frameType, payload := nextFrame(t, bob)
	if frameType != EventError || payload["code"] != CodePermissionDenied {
		t.Fatalf("expected PermissionDenied, got %s %v", frameType, payload)
	}
	assertNoFrame(t, carol)
}

func TestSttStartEmitsReadyThroughConnection(t *testing.T) {
	fx := newRouterFixture(t)
	stream := newFakeStream("task-9")
	fx.router.deps.Recognition = recognition.NewManager(
		&fakeRecognizer{streams: []*fakeStream{stream}}, zap.NewNop())
	alice := fx.connect("alice")

	fx.router.HandleFrame(alice, []byte(`{"type":"stt-start","payload":{"sampleRate":16000,"format":"pcm"}}`))
	stream.ready()

	frameType, payload := nextFrame(t, alice)
	if frameType != EventSttReady {
		t.Fatalf("expected stt-ready, got %s", frameType)
	}
	if payload["taskId"] != "task-9" {
		t.Errorf("ready frame should carry the remote task id, got %v", payload)
	}

	fx.router.HandleBinary(alice, []byte{0x01, 0x02})
	deadline := time.Now().Add(time.Second)
	for len(stream.sentFrames()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if frames := stream.sentFrames(); len(frames) != 1 {
		t.Fatalf("expected 1 forwarded audio frame, got %d", len(frames))
	}
}

func TestSttAudioEnvelopeFeedsRecognition(t *testing.T) {
	fx := newRouterFixture(t)
	stream := newFakeStream("task-10")
	fx.router.deps.Recognition = recognition.NewManager(
		&fakeRecognizer{streams: []*fakeStream{stream}}, zap.NewNop())
	alice := fx.connect("alice")

	fx.router.HandleFrame(alice, []byte(`{"type":"stt-start","payload":{"sampleRate":16000,"format":"pcm"}}`))
	stream.ready()
	if frameType, _ := nextFrame(t, alice); frameType != EventSttReady {
		t.Fatalf("expected stt-ready, got %s", frameType)
	}

	// "AAEC" is base64 for 0x00 0x01 0x02.
	fx.router.HandleFrame(alice, []byte(`{"type":"stt-audio","payload":{"audio":"AAEC"}}`))

	deadline := time.Now().Add(time.Second)
	for len(stream.sentFrames()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	frames := stream.sentFrames()
	if len(frames) != 1 {
		t.Fatalf("expected 1 forwarded audio frame, got %d", len(frames))
	}
	if len(frames[0]) != 3 || frames[0][0] != 0x00 || frames[0][1] != 0x01 || frames[0][2] != 0x02 {
		t.Errorf("expected decoded audio bytes 00 01 02, got %v", frames[0])
	}
	assertNoFrame(t, alice)
}

func TestSttAudioWithoutSessionGetsValidationError(t *testing.T) {
	fx := newRouterFixture(t)
	alice := fx.connect("alice")

	fx.router.HandleFrame(alice, []byte(`{"type":"stt-audio","payload":{"audio":"AAEC"}}`))

	frameType, payload := nextFrame(t, alice)
	if frameType != EventError || payload["code"] != CodeValidationError {
		t.Errorf("expected ValidationError without an open session, got %s %v", frameType, payload)
	}
}
