package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/internal/metrics"
)

// TransportKind identifies the transport behind a connection handle.
type TransportKind string

const (
	TransportWebSocket TransportKind = "websocket"
)

// Sender is the transport-handle surface the registry delivers through.
type Sender interface {
	// Enqueue hands a text frame to the connection's write pump.
	Enqueue(payload []byte) error
	// EnqueueBinary hands a binary frame (synthesized audio) to the
	// write pump.
	EnqueueBinary(payload []byte) error
	// IsOpen reports whether the transport can still accept frames.
	IsOpen() bool
}

// Connection is one live transport handle bound to a user identity.
// It is owned exclusively by the registry for its lifetime.
type Connection struct {
	ID            string
	UserID        string
	Kind          TransportKind
	Handle        Sender
	EstablishedAt time.Time

	// seq orders connections registered within the same timestamp.
	seq uint64
}

// Registry maps user identities to their live connections and back.
// All mutations are guarded by a single mutex; register/remove are
// synchronous and atomic.
type Registry struct {
	mu     sync.Mutex
	byUser map[string]map[string]*Connection
	byConn map[string]*Connection
	seq    uint64
	logger *zap.Logger
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Connection),
		byConn: make(map[string]*Connection),
		logger: logger,
	}
}

// Register adds the connection to the per-user set and returns true
// when this is the user's first connection. The presence write-through
// (mark online) is the caller's responsibility, not the registry's.
func (r *Registry) Register(conn *Connection) (firstConnection bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	conn.seq = r.seq
	if conn.EstablishedAt.IsZero() {
		conn.EstablishedAt = time.Now()
	}

	set, ok := r.byUser[conn.UserID]
	if !ok {
		set = make(map[string]*Connection)
		r.byUser[conn.UserID] = set
	}
	set[conn.ID] = conn
	r.byConn[conn.ID] = conn

	metrics.ConnectionsActive.Inc()
	r.logger.Info("connection registered",
		zap.String("connectionID", conn.ID),
		zap.String("userID", conn.UserID),
		zap.Int("userConnections", len(set)))

	return len(set) == 1
}

// Remove deletes the mapping. wentOffline is true when the user's
// connection set became empty, signalling the caller to write the
// offline status through to persistence.
func (r *Registry) Remove(connectionID string) (userID string, wentOffline bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byConn[connectionID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connectionID)

	set := r.byUser[conn.UserID]
	delete(set, connectionID)
	if len(set) == 0 {
		delete(r.byUser, conn.UserID)
		wentOffline = true
	}

	metrics.ConnectionsActive.Dec()
	r.logger.Info("connection removed",
		zap.String("connectionID", connectionID),
		zap.String("userID", conn.UserID),
		zap.Bool("wentOffline", wentOffline))

	return conn.UserID, wentOffline
}

// Lookup resolves a connection id back to its connection.
func (r *Registry) Lookup(connectionID string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byConn[connectionID]
	return conn, ok
}

// Primary returns an arbitrary-but-deterministic single connection for
// legacy single-connection call sites: the one with the lowest
// connection id. This is NOT "the most recent"; Broadcast implements
// the deliberate latest-connection delivery rule.
func (r *Registry) Primary(userID string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var primary *Connection
	for _, conn := range r.byUser[userID] {
		if primary == nil || conn.ID < primary.ID {
			primary = conn
		}
	}
	return primary, primary != nil
}

// Broadcast delivers the payload to exactly one connection: the
// most-recently-established transport connection still open for the
// user, ties broken by latest registration. Returns the number of
// deliveries (0 or 1); 0 means the recipient is offline and callers
// must queue nothing. Delivery errors are swallowed and count as 0.
func (r *Registry) Broadcast(userID string, payload []byte, excludeConnectionID string) int {
	target, ok := r.Latest(userID, excludeConnectionID)
	if !ok {
		return 0
	}
	if err := target.Handle.Enqueue(payload); err != nil {
		r.logger.Warn("broadcast delivery failed",
			zap.String("userID", userID),
			zap.String("connectionID", target.ID),
			zap.Error(err))
		return 0
	}
	metrics.MessagesDelivered.Inc()
	return 1
}

// Latest selects the most-recently-established open connection for the
// user, ties broken by latest registration.
func (r *Registry) Latest(userID, excludeConnectionID string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target *Connection
	for _, conn := range r.byUser[userID] {
		if conn.ID == excludeConnectionID || !conn.Handle.IsOpen() {
			continue
		}
		if target == nil || conn.EstablishedAt.After(target.EstablishedAt) ||
			(conn.EstablishedAt.Equal(target.EstablishedAt) && conn.seq > target.seq) {
			target = conn
		}
	}
	return target, target != nil
}

// IsOnline reports whether the user has at least one registered
// connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser[userID]) > 0
}

// ConnectionCount returns the total number of registered connections.
func (r *Registry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byConn)
}
