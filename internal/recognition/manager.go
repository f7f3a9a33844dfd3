// Package recognition manages long-lived streaming speech-recognition
// sessions multiplexed over realtime connections. At most one session
// is active per connection.
package recognition

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
	"github.com/longxianmian/goodpick-go-sub000/internal/metrics"
)

// finishWait bounds how long a forced finish waits for the remote task
// before tearing the channel down.
const finishWait = 5 * time.Second

// Manager owns the lifecycle of recognition sessions, keyed by the
// owning connection.
type Manager struct {
	provider repositories.Recognizer
	logger   *zap.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager wires a session manager on top of a recognizer provider.
func NewManager(provider repositories.Recognizer, logger *zap.Logger) *Manager {
	return &Manager{
		provider: provider,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Start opens a session for the connection. Any prior open session on
// the same connection is force-finished first, emitting its close
// event, before the new session is created.
func (m *Manager) Start(ctx context.Context, connectionID string, config repositories.AudioConfig, emit Emitter) (*Session, error) {
	if prior := m.current(connectionID); prior != nil {
		m.forceFinish(prior)
	}

	stream, err := m.provider.Open(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to open recognition stream: %w", err)
	}

	session := &Session{
		ID:           uuid.NewString(),
		ConnectionID: connectionID,
		stream:       stream,
		emit:         emit,
		logger:       m.logger,
		state:        StateStarting,
		sentences:    make(map[int64]sentence),
		done:         make(chan struct{}),
		onClose: func(s *Session) {
			m.remove(s)
			metrics.RecognitionSessionsActive.Dec()
		},
	}

	m.mu.Lock()
	m.sessions[connectionID] = session
	m.mu.Unlock()
	metrics.RecognitionSessionsActive.Inc()

	m.logger.Info("recognition session started",
		zap.String("connectionID", connectionID),
		zap.String("sessionID", session.ID),
		zap.String("taskID", stream.TaskID()),
		zap.String("language", config.Language))

	go session.run()
	return session, nil
}

// Feed forwards one audio frame to the connection's open session.
func (m *Manager) Feed(connectionID string, audio []byte) error {
	session := m.current(connectionID)
	if session == nil {
		return fmt.Errorf("no open recognition session for connection %s", connectionID)
	}
	return session.Feed(audio)
}

// Stop finishes the connection's open session; the final transcript is
// emitted once the remote task completes.
func (m *Manager) Stop(connectionID string) error {
	session := m.current(connectionID)
	if session == nil {
		return fmt.Errorf("no open recognition session for connection %s", connectionID)
	}
	return session.Finish()
}

// Teardown aborts any open session for the connection. Used as a
// cleanup side effect on connection close so no remote task is
// orphaned.
func (m *Manager) Teardown(connectionID string) {
	if session := m.current(connectionID); session != nil {
		session.teardown()
	}
}

// Shutdown tears down every open session, used at process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	open := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.teardown()
	}
}

// ActiveCount returns the number of open sessions.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) current(connectionID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[connectionID]
}

func (m *Manager) remove(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[session.ConnectionID] == session {
		delete(m.sessions, session.ConnectionID)
	}
}

// forceFinish finishes a prior session and waits for its close event;
// a remote task that does not complete in time is torn down.
func (m *Manager) forceFinish(prior *Session) {
	if err := prior.Finish(); err != nil {
		m.logger.Warn("failed to finish prior recognition session",
			zap.String("sessionID", prior.ID), zap.Error(err))
		prior.teardown()
		return
	}
	select {
	case <-prior.Done():
	case <-time.After(finishWait):
		m.logger.Warn("prior recognition session did not finish in time",
			zap.String("sessionID", prior.ID))
		prior.teardown()
		<-prior.Done()
	}
}
