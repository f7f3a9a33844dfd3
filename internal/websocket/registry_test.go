package websocket

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeHandle struct {
	open     bool
	failSend bool
	sent     [][]byte
}

func (f *fakeHandle) Enqueue(payload []byte) error {
	if f.failSend {
		return errors.New("transport send failed")
	}
	f.sent = append(f.sent, payload)
	return nil
}

func (f *fakeHandle) EnqueueBinary(payload []byte) error {
	return f.Enqueue(payload)
}

func (f *fakeHandle) IsOpen() bool { return f.open }

func newConn(id, userID string, at time.Time, handle *fakeHandle) *Connection {
	return &Connection{
		ID:            id,
		UserID:        userID,
		Kind:          TransportWebSocket,
		Handle:        handle,
		EstablishedAt: at,
	}
}

func TestRegisterReportsFirstConnection(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	if first := r.Register(newConn("c1", "user-1", time.Now(), &fakeHandle{open: true})); !first {
		t.Error("first registration should report firstConnection=true")
	}
	if first := r.Register(newConn("c2", "user-1", time.Now(), &fakeHandle{open: true})); first {
		t.Error("second registration should report firstConnection=false")
	}
}

func TestRemoveSignalsOfflineOnlyOnLastConnection(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(newConn("c1", "user-1", time.Now(), &fakeHandle{open: true}))
	r.Register(newConn("c2", "user-1", time.Now(), &fakeHandle{open: true}))

	if _, wentOffline := r.Remove("c1"); wentOffline {
		t.Error("removing a non-last connection must not signal offline")
	}
	userID, wentOffline := r.Remove("c2")
	if !wentOffline {
		t.Error("removing the last connection must signal offline")
	}
	if userID != "user-1" {
		t.Errorf("expected user-1, got %s", userID)
	}
	if r.IsOnline("user-1") {
		t.Error("user should be offline after last removal")
	}
}

func TestBroadcastOfflineUserDeliversNothing(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	if n := r.Broadcast("nobody", []byte("hi"), ""); n != 0 {
		t.Errorf("expected 0 deliveries for offline user, got %d", n)
	}
}

func TestBroadcastDeliversToLatestOpenConnection(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	base := time.Now()

	oldest := &fakeHandle{open: true}
	middle := &fakeHandle{open: true}
	newest := &fakeHandle{open: true}
	r.Register(newConn("c1", "user-1", base, oldest))
	r.Register(newConn("c2", "user-1", base.Add(time.Second), middle))
	r.Register(newConn("c3", "user-1", base.Add(2*time.Second), newest))

	if n := r.Broadcast("user-1", []byte("hi"), ""); n != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", n)
	}
	if len(newest.sent) != 1 {
		t.Error("the newest connection should receive the push")
	}
	if len(oldest.sent) != 0 || len(middle.sent) != 0 {
		t.Error("older connections must not receive the push")
	}
}

func TestBroadcastSkipsClosedAndExcludedConnections(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	base := time.Now()

	open := &fakeHandle{open: true}
	closed := &fakeHandle{open: false}
	excluded := &fakeHandle{open: true}
	r.Register(newConn("c1", "user-1", base, open))
	r.Register(newConn("c2", "user-1", base.Add(time.Second), closed))
	r.Register(newConn("c3", "user-1", base.Add(2*time.Second), excluded))

	if n := r.Broadcast("user-1", []byte("hi"), "c3"); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if len(open.sent) != 1 {
		t.Error("the newest open, non-excluded connection should receive the push")
	}
}

func TestBroadcastSendFailureCountsAsZero(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	r.Register(newConn("c1", "user-1", time.Now(), &fakeHandle{open: true, failSend: true}))

	if n := r.Broadcast("user-1", []byte("hi"), ""); n != 0 {
		t.Errorf("send failure must count as 0 deliveries, got %d", n)
	}
}

func TestBroadcastTieBrokenByLatestRegistration(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	at := time.Now()

	first := &fakeHandle{open: true}
	second := &fakeHandle{open: true}
	r.Register(newConn("c1", "user-1", at, first))
	r.Register(newConn("c2", "user-1", at, second))

	if n := r.Broadcast("user-1", []byte("hi"), ""); n != 1 {
		t.Fatalf("expected 1 delivery, got %d", n)
	}
	if len(second.sent) != 1 {
		t.Error("equal timestamps should resolve to the latest registration")
	}
}

func TestPrimaryIsDeterministicNotMostRecent(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	base := time.Now()
	r.Register(newConn("b", "user-1", base.Add(time.Second), &fakeHandle{open: true}))
	r.Register(newConn("a", "user-1", base, &fakeHandle{open: true}))

	primary, ok := r.Primary("user-1")
	if !ok {
		t.Fatal("expected a primary connection")
	}
	if primary.ID != "a" {
		t.Errorf("primary should be the lowest connection id, got %s", primary.ID)
	}

	if _, ok := r.Primary("nobody"); ok {
		t.Error("no primary expected for unknown user")
	}
}
