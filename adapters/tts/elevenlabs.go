// Package tts provides the Eleven Labs speech synthesizer used for
// spoken replies.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

const (
	defaultAPIBaseURL   = "https://api.elevenlabs.io/v1"
	defaultVoiceID      = "21m00Tcm4TlvDq8ikWAM" // Rachel voice
	defaultChunkSize    = 1024
	defaultOutputFormat = "pcm_16000"
	defaultModelID      = "eleven_multilingual_v2"
	defaultStability    = 0.5
	defaultClarity      = 0.75
)

// ElevenLabsConfig configures the Eleven Labs synthesizer. APIKey is
// required; everything else falls back to a sensible default.
type ElevenLabsConfig struct {
	APIKey       string
	APIBaseURL   string
	VoiceID      string
	ModelID      string
	OutputFormat string
	ChunkSize    int
}

// ElevenLabs implements repositories.SpeechSynthesizer against the
// Eleven Labs streaming endpoint.
type ElevenLabs struct {
	apiKey       string
	apiBaseURL   string
	voiceID      string
	modelID      string
	outputFormat string
	chunkSize    int
	client       *http.Client
	logger       *zap.Logger
}

var _ repositories.SpeechSynthesizer = (*ElevenLabs)(nil)

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	LanguageCode  string        `json:"language_code,omitempty"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// NewElevenLabs creates an Eleven Labs synthesizer.
func NewElevenLabs(config ElevenLabsConfig, logger *zap.Logger) (*ElevenLabs, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("eleven labs API key is required")
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultAPIBaseURL
	}
	if config.VoiceID == "" {
		config.VoiceID = defaultVoiceID
	}
	if config.ModelID == "" {
		config.ModelID = defaultModelID
	}
	if config.OutputFormat == "" {
		config.OutputFormat = defaultOutputFormat
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = defaultChunkSize
	}

	return &ElevenLabs{
		apiKey:       config.APIKey,
		apiBaseURL:   config.APIBaseURL,
		voiceID:      config.VoiceID,
		modelID:      config.ModelID,
		outputFormat: config.OutputFormat,
		chunkSize:    config.ChunkSize,
		client:       &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}, nil
}

// Synthesize implements repositories.SpeechSynthesizer. The returned
// channel streams raw audio chunks and closes when the provider is
// done; provider errors after the stream starts are logged and end the
// stream early.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, language, voice string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if voice == "" {
		voice = e.voiceID
	}

	request := synthesisRequest{
		Text:         text,
		ModelID:      e.modelID,
		LanguageCode: language,
		VoiceSettings: voiceSettings{
			Stability:       defaultStability,
			SimilarityBoost: defaultClarity,
			UseSpeakerBoost: true,
		},
	}
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream?output_format=%s&enable_logging=false",
		e.apiBaseURL, voice, e.outputFormat)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	// PCM output requires an audio/pcm accept header.
	acceptHeader := "audio/mpeg"
	if strings.HasPrefix(e.outputFormat, "pcm") {
		acceptHeader = "audio/pcm"
	}
	httpReq.Header.Set("Accept", acceptHeader)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", e.apiKey)

	audioChan := make(chan []byte, 10)

	go func() {
		defer close(audioChan)

		resp, err := e.client.Do(httpReq)
		if err != nil {
			e.logger.Error("failed to execute synthesis request", zap.Error(err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errorBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			e.logger.Error("synthesis provider returned error",
				zap.Int("statusCode", resp.StatusCode),
				zap.String("response", string(errorBody)))
			return
		}

		buffer := make([]byte, e.chunkSize)
		totalBytes := 0
		for {
			n, err := resp.Body.Read(buffer)
			if n > 0 {
				totalBytes += n
				chunk := make([]byte, n)
				copy(chunk, buffer[:n])
				select {
				case audioChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err == io.EOF {
				e.logger.Debug("finished streaming synthesized audio",
					zap.Int("totalBytes", totalBytes))
				return
			}
			if err != nil {
				e.logger.Error("error reading synthesis response", zap.Error(err))
				return
			}
		}
	}()

	return audioChan, nil
}
