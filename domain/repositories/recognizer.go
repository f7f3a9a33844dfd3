package repositories

import "context"

// AudioConfig describes the fixed audio format of a recognition stream.
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format"`
	Language   string `json:"language"`
}

// StreamEventKind discriminates events on a recognition stream.
type StreamEventKind int

const (
	// StreamEventReady fires once when the remote task confirms it is
	// accepting audio.
	StreamEventReady StreamEventKind = iota
	// StreamEventSentence carries a partial or final sentence update.
	StreamEventSentence
	// StreamEventCompleted fires after Finish once the remote task has
	// drained and closed.
	StreamEventCompleted
	// StreamEventFailed is terminal; Err carries the remote reason.
	StreamEventFailed
)

// SentenceResult is one (beginTime, text, isFinal) tuple from the
// remote service. BeginTime is milliseconds from stream start and is
// the stable key of the sentence slot.
type SentenceResult struct {
	BeginTime int64  `json:"begin_time"`
	Text      string `json:"text"`
	IsFinal   bool   `json:"is_final"`
}

// StreamEvent is delivered on RecognitionStream.Events.
type StreamEvent struct {
	Kind     StreamEventKind
	Sentence SentenceResult
	Err      error
}

// RecognitionStream is one duplex streaming channel to the remote
// speech-recognition service, keyed by a remote task identifier.
type RecognitionStream interface {
	// TaskID returns the remote task identifier.
	TaskID() string
	// Events delivers readiness, sentence updates, completion and
	// failure. The channel is closed after a Completed or Failed event.
	Events() <-chan StreamEvent
	// Send forwards one audio frame. Callers must not Send before the
	// Ready event.
	Send(audio []byte) error
	// Finish signals end of audio; completion arrives via Events.
	Finish() error
	// Close tears the channel down without waiting for completion.
	Close() error
}

// Recognizer abstracts the streaming speech-recognition provider.
type Recognizer interface {
	Open(ctx context.Context, config AudioConfig) (RecognitionStream, error)
}
