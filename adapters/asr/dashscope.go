// Package asr provides streaming Recognizer implementations backed by
// remote speech-recognition services.
package asr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

// DashScopeRecognizer opens duplex recognition channels against the
// DashScope websocket inference API.
type DashScopeRecognizer struct {
	apiKey string
	wsURL  string
	model  string
	logger *zap.Logger
}

// NewDashScopeRecognizer creates a DashScope-backed recognizer.
func NewDashScopeRecognizer(apiKey, wsURL, model string, logger *zap.Logger) (*DashScopeRecognizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("DASHSCOPE_API_KEY is required")
	}
	if wsURL == "" {
		wsURL = "wss://dashscope.aliyuncs.com/api-ws/v1/inference"
	}
	if model == "" {
		model = "paraformer-realtime-v2"
	}
	return &DashScopeRecognizer{
		apiKey: apiKey,
		wsURL:  wsURL,
		model:  model,
		logger: logger,
	}, nil
}

// Control frames exchanged with the remote task.
type taskHeader struct {
	Action       string `json:"action,omitempty"`
	TaskID       string `json:"task_id"`
	Streaming    string `json:"streaming,omitempty"`
	Event        string `json:"event,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type taskFrame struct {
	Header  taskHeader      `json:"header"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type runTaskPayload struct {
	TaskGroup  string            `json:"task_group"`
	Task       string            `json:"task"`
	Function   string            `json:"function"`
	Model      string            `json:"model"`
	Parameters runTaskParameters `json:"parameters"`
	Input      struct{}          `json:"input"`
}

type runTaskParameters struct {
	Format        string   `json:"format"`
	SampleRate    int      `json:"sample_rate"`
	LanguageHints []string `json:"language_hints,omitempty"`
}

type resultPayload struct {
	Output struct {
		Sentence struct {
			BeginTime   int64  `json:"begin_time"`
			Text        string `json:"text"`
			SentenceEnd bool   `json:"sentence_end"`
		} `json:"sentence"`
	} `json:"output"`
}

// Open implements repositories.Recognizer. It dials the websocket,
// issues the run-task control frame, and hands back a stream whose
// Ready event fires when the remote task confirms.
func (r *DashScopeRecognizer) Open(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	header := http.Header{}
	header.Set("Authorization", "bearer "+r.apiKey)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, r.wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("failed to dial recognition service: %w", err)
	}

	taskID := uuid.NewString()
	params := runTaskParameters{
		Format:     config.Format,
		SampleRate: config.SampleRate,
	}
	if config.Language != "" {
		params.LanguageHints = []string{config.Language}
	}
	payload, _ := json.Marshal(runTaskPayload{
		TaskGroup:  "audio",
		Task:       "asr",
		Function:   "recognition",
		Model:      r.model,
		Parameters: params,
	})
	runTask := taskFrame{
		Header: taskHeader{
			Action:    "run-task",
			TaskID:    taskID,
			Streaming: "duplex",
		},
		Payload: payload,
	}
	if err := conn.WriteJSON(runTask); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send run-task frame: %w", err)
	}

	stream := &dashScopeStream{
		taskID: taskID,
		conn:   conn,
		events: make(chan repositories.StreamEvent, 32),
		logger: r.logger,
	}
	go stream.readLoop()
	return stream, nil
}

type dashScopeStream struct {
	taskID string
	conn   *websocket.Conn
	events chan repositories.StreamEvent
	logger *zap.Logger

	// writeMu serializes audio frames and the finish-task control
	// frame; reads run on their own goroutine.
	writeMu sync.Mutex

	closeOnce sync.Once
}

func (s *dashScopeStream) TaskID() string { return s.taskID }

func (s *dashScopeStream) Events() <-chan repositories.StreamEvent { return s.events }

func (s *dashScopeStream) Send(audio []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, audio); err != nil {
		return fmt.Errorf("failed to send audio frame: %w", err)
	}
	return nil
}

func (s *dashScopeStream) Finish() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	finish := taskFrame{
		Header: taskHeader{
			Action:    "finish-task",
			TaskID:    s.taskID,
			Streaming: "duplex",
		},
		Payload: json.RawMessage(`{"input":{}}`),
	}
	if err := s.conn.WriteJSON(finish); err != nil {
		return fmt.Errorf("failed to send finish-task frame: %w", err)
	}
	return nil
}

func (s *dashScopeStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// readLoop consumes remote events until the task finishes or fails.
// The events channel is closed after the terminal event.
func (s *dashScopeStream) readLoop() {
	defer close(s.events)

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			s.events <- repositories.StreamEvent{
				Kind: repositories.StreamEventFailed,
				Err:  fmt.Errorf("recognition channel read failed: %w", err),
			}
			s.Close()
			return
		}

		var frame taskFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.logger.Warn("unparseable recognition event",
				zap.String("taskID", s.taskID), zap.Error(err))
			continue
		}

		switch frame.Header.Event {
		case "task-started":
			s.events <- repositories.StreamEvent{Kind: repositories.StreamEventReady}
		case "result-generated":
			var result resultPayload
			if err := json.Unmarshal(frame.Payload, &result); err != nil {
				s.logger.Warn("unparseable recognition result",
					zap.String("taskID", s.taskID), zap.Error(err))
				continue
			}
			s.events <- repositories.StreamEvent{
				Kind: repositories.StreamEventSentence,
				Sentence: repositories.SentenceResult{
					BeginTime: result.Output.Sentence.BeginTime,
					Text:      result.Output.Sentence.Text,
					IsFinal:   result.Output.Sentence.SentenceEnd,
				},
			}
		case "task-finished":
			s.events <- repositories.StreamEvent{Kind: repositories.StreamEventCompleted}
			s.Close()
			return
		case "task-failed":
			s.events <- repositories.StreamEvent{
				Kind: repositories.StreamEventFailed,
				Err: fmt.Errorf("remote task failed: %s (%s)",
					frame.Header.ErrorMessage, frame.Header.ErrorCode),
			}
			s.Close()
			return
		default:
			s.logger.Debug("ignoring recognition event",
				zap.String("taskID", s.taskID),
				zap.String("event", frame.Header.Event))
		}
	}
}
