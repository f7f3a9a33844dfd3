package recognition

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

// State is the lifecycle state of one recognition session.
type State int

const (
	StateStarting State = iota
	StateReady
	StateStreaming
	StateFinishing
	StateClosed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateStreaming:
		return "streaming"
	case StateFinishing:
		return "finishing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// UpdateKind discriminates updates emitted to the owning connection.
type UpdateKind int

const (
	UpdateReady UpdateKind = iota
	UpdateTranscript
	UpdateError
	UpdateClosed
)

// Update is pushed back to the owning connection as the session
// progresses.
type Update struct {
	Kind       UpdateKind
	SessionID  string
	TaskID     string
	Transcript string
	IsFinal    bool
	Reason     string
}

// Emitter delivers updates to the owning connection.
type Emitter func(Update)

// ErrNotAcceptingAudio is returned when audio arrives after the
// session started finishing.
var ErrNotAcceptingAudio = errors.New("session is not accepting audio")

type sentence struct {
	text    string
	isFinal bool
}

// Session owns one duplex streaming channel to the remote recognition
// service, scoped to a single connection.
type Session struct {
	ID           string
	ConnectionID string

	stream repositories.RecognitionStream
	emit   Emitter
	logger *zap.Logger

	mu       sync.Mutex
	state    State
	pending  [][]byte
	// sentences is keyed by beginTime; out-of-order updates for an
	// already-seen slot overwrite it.
	sentences map[int64]sentence

	done     chan struct{}
	doneOnce sync.Once
	onClose  func(*Session)
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session reaches Closed or Failed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Feed forwards one audio frame. Frames arriving before the remote
// service confirms readiness are buffered in arrival order.
func (s *Session) Feed(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateStarting:
		buffered := make([]byte, len(audio))
		copy(buffered, audio)
		s.pending = append(s.pending, buffered)
		return nil
	case StateReady, StateStreaming:
		s.state = StateStreaming
		return s.stream.Send(audio)
	default:
		return ErrNotAcceptingAudio
	}
}

// Finish asks the remote task to drain and complete. The final
// transcript arrives through the event loop.
func (s *Session) Finish() error {
	s.mu.Lock()
	if s.state == StateFinishing || s.state == StateClosed || s.state == StateFailed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateFinishing
	s.mu.Unlock()

	return s.stream.Finish()
}

// run consumes the remote event stream until completion or failure.
func (s *Session) run() {
	for event := range s.stream.Events() {
		switch event.Kind {
		case repositories.StreamEventReady:
			s.handleReady()
		case repositories.StreamEventSentence:
			s.handleSentence(event.Sentence)
		case repositories.StreamEventCompleted:
			s.handleCompleted()
			return
		case repositories.StreamEventFailed:
			s.handleFailed(event.Err)
			return
		}
	}
	// Event channel closed without a terminal event: treat the remote
	// side as gone.
	s.handleFailed(errors.New("recognition stream closed unexpectedly"))
}

// handleReady flushes buffered audio to the remote channel in original
// arrival order, then frames are forwarded as they arrive.
func (s *Session) handleReady() {
	s.mu.Lock()
	if s.state != StateStarting {
		s.mu.Unlock()
		return
	}
	pending := s.pending
	s.pending = nil
	s.state = StateReady
	s.mu.Unlock()

	for _, frame := range pending {
		if err := s.stream.Send(frame); err != nil {
			s.logger.Warn("failed to flush buffered audio frame",
				zap.String("sessionID", s.ID),
				zap.Error(err))
			break
		}
	}

	s.emit(Update{Kind: UpdateReady, SessionID: s.ID, TaskID: s.stream.TaskID()})
}

// handleSentence updates the beginTime slot and emits the running
// transcript reconstructed in beginTime order.
func (s *Session) handleSentence(result repositories.SentenceResult) {
	s.mu.Lock()
	s.sentences[result.BeginTime] = sentence{text: result.Text, isFinal: result.IsFinal}
	transcript := s.transcriptLocked()
	s.mu.Unlock()

	s.emit(Update{
		Kind:       UpdateTranscript,
		SessionID:  s.ID,
		TaskID:     s.stream.TaskID(),
		Transcript: transcript,
		IsFinal:    false,
	})
}

func (s *Session) handleCompleted() {
	s.mu.Lock()
	transcript := s.transcriptLocked()
	s.state = StateClosed
	s.mu.Unlock()

	s.emit(Update{
		Kind:       UpdateTranscript,
		SessionID:  s.ID,
		TaskID:     s.stream.TaskID(),
		Transcript: transcript,
		IsFinal:    true,
	})
	s.emit(Update{Kind: UpdateClosed, SessionID: s.ID, TaskID: s.stream.TaskID()})
	s.finish()
}

func (s *Session) handleFailed(err error) {
	s.mu.Lock()
	s.state = StateFailed
	s.mu.Unlock()

	reason := "remote recognition task failed"
	if err != nil {
		reason = err.Error()
	}
	s.emit(Update{Kind: UpdateError, SessionID: s.ID, TaskID: s.stream.TaskID(), Reason: reason})
	if err := s.stream.Close(); err != nil {
		s.logger.Debug("recognition stream close after failure",
			zap.String("sessionID", s.ID), zap.Error(err))
	}
	s.finish()
}

// teardown aborts the session without waiting for remote completion,
// used when the owning connection closes.
func (s *Session) teardown() {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateFailed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	if err := s.stream.Close(); err != nil {
		s.logger.Debug("recognition stream close on teardown",
			zap.String("sessionID", s.ID), zap.Error(err))
	}
	s.finish()
}

func (s *Session) finish() {
	s.doneOnce.Do(func() {
		if s.onClose != nil {
			s.onClose(s)
		}
		close(s.done)
	})
}

// transcriptLocked concatenates sentence texts ordered by beginTime
// ascending, not by arrival order.
func (s *Session) transcriptLocked() string {
	keys := make([]int64, 0, len(s.sentences))
	for begin := range s.sentences {
		keys = append(keys, begin)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var b strings.Builder
	for _, begin := range keys {
		b.WriteString(s.sentences[begin].text)
	}
	return b.String()
}
