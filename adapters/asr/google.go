package asr

import (
	"context"
	"fmt"
	"io"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

// GoogleRecognizer opens recognition streams against Google Cloud
// Speech-to-Text. Credentials come from the ambient service account.
type GoogleRecognizer struct {
	logger *zap.Logger
}

// NewGoogleRecognizer creates a Google Cloud backed recognizer.
func NewGoogleRecognizer(logger *zap.Logger) *GoogleRecognizer {
	return &GoogleRecognizer{logger: logger}
}

// Open implements repositories.Recognizer.
func (r *GoogleRecognizer) Open(ctx context.Context, config repositories.AudioConfig) (repositories.RecognitionStream, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := audioEncoding(config.Format)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, err
	}
	language := config.Language
	if language == "" {
		language = "en-US"
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        encoding,
					SampleRateHertz: int32(config.SampleRate),
					LanguageCode:    language,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	gs := &googleStream{
		taskID: uuid.NewString(),
		client: client,
		stream: stream,
		events: make(chan repositories.StreamEvent, 32),
		logger: r.logger,
	}
	go gs.receiveResults()
	return gs, nil
}

type googleStream struct {
	taskID string
	client *speech.Client
	stream speechpb.Speech_StreamingRecognizeClient
	events chan repositories.StreamEvent
	logger *zap.Logger
}

func (g *googleStream) TaskID() string { return g.taskID }

func (g *googleStream) Events() <-chan repositories.StreamEvent { return g.events }

func (g *googleStream) Send(audio []byte) error {
	if len(audio) == 0 {
		return nil
	}
	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (g *googleStream) Finish() error {
	if err := g.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (g *googleStream) Close() error {
	return g.client.Close()
}

// receiveResults translates the Google response stream into events.
// Google has no explicit acceptance handshake, so Ready fires as soon
// as the receiver is up. Sentence slots are keyed by the cumulative
// end time of the finalized results that precede them: interim
// hypotheses for the current utterance overwrite one slot until the
// utterance finalizes and advances the key.
func (g *googleStream) receiveResults() {
	defer close(g.events)

	g.events <- repositories.StreamEvent{Kind: repositories.StreamEventReady}

	var sentenceBegin int64
	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			g.events <- repositories.StreamEvent{Kind: repositories.StreamEventCompleted}
			return
		}
		if err != nil {
			g.events <- repositories.StreamEvent{
				Kind: repositories.StreamEventFailed,
				Err:  fmt.Errorf("failed to receive response: %w", err),
			}
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			g.events <- repositories.StreamEvent{
				Kind: repositories.StreamEventSentence,
				Sentence: repositories.SentenceResult{
					BeginTime: sentenceBegin,
					Text:      result.Alternatives[0].Transcript,
					IsFinal:   result.IsFinal,
				},
			}
			if result.IsFinal && result.ResultEndTime != nil {
				sentenceBegin = result.ResultEndTime.AsDuration().Milliseconds()
			}
		}
	}
}

// audioEncoding maps our wire format names onto the Speech API enum.
func audioEncoding(format string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch strings.ToLower(format) {
	case "pcm", "wav", "linear16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "flac":
		return speechpb.RecognitionConfig_FLAC, nil
	case "mulaw":
		return speechpb.RecognitionConfig_MULAW, nil
	case "ogg_opus", "opus":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "webm_opus":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported audio format: %s", format)
	}
}
