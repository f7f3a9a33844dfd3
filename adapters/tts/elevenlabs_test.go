package tts

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestNewElevenLabsRequiresAPIKey(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := NewElevenLabs(ElevenLabsConfig{}, logger)
	if err == nil {
		t.Error("Expected error when API key is not set")
	}

	e, err := NewElevenLabs(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabs: %v", err)
	}
	if e.voiceID != defaultVoiceID {
		t.Errorf("Expected default voice ID '%s', got '%s'", defaultVoiceID, e.voiceID)
	}
	if e.outputFormat != defaultOutputFormat {
		t.Errorf("Expected default output format '%s', got '%s'", defaultOutputFormat, e.outputFormat)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	logger := zaptest.NewLogger(t)
	e, err := NewElevenLabs(ElevenLabsConfig{APIKey: "test-api-key"}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabs: %v", err)
	}

	ctx := context.Background()
	if _, err := e.Synthesize(ctx, "", "en", ""); err == nil {
		t.Error("Expected error for empty text")
	}
	if _, err := e.Synthesize(ctx, "   ", "en", ""); err == nil {
		t.Error("Expected error for whitespace-only text")
	}
}

func TestSynthesizeStreamsAudioChunks(t *testing.T) {
	audio := bytes.Repeat([]byte{0x01, 0x02, 0x03, 0x04}, 1024)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xi-api-key") != "test-api-key" {
			t.Errorf("Expected api key header, got '%s'", r.Header.Get("xi-api-key"))
		}
		if r.Header.Get("Accept") != "audio/pcm" {
			t.Errorf("Expected audio/pcm accept header, got '%s'", r.Header.Get("Accept"))
		}
		w.Write(audio)
	}))
	defer server.Close()

	logger := zaptest.NewLogger(t)
	e, err := NewElevenLabs(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabs: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	audioChan, err := e.Synthesize(ctx, "hello there", "en", "")
	if err != nil {
		t.Fatalf("Failed to synthesize: %v", err)
	}

	var received []byte
	for chunk := range audioChan {
		if len(chunk) == 0 {
			t.Error("Received empty audio chunk")
		}
		received = append(received, chunk...)
	}
	if !bytes.Equal(received, audio) {
		t.Errorf("Expected %d audio bytes, got %d", len(audio), len(received))
	}
}

func TestSynthesizeProviderErrorClosesStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	logger := zaptest.NewLogger(t)
	e, err := NewElevenLabs(ElevenLabsConfig{
		APIKey:     "test-api-key",
		APIBaseURL: server.URL,
	}, logger)
	if err != nil {
		t.Fatalf("Failed to create ElevenLabs: %v", err)
	}

	audioChan, err := e.Synthesize(context.Background(), "hello", "en", "")
	if err != nil {
		t.Fatalf("Failed to synthesize: %v", err)
	}

	select {
	case chunk, ok := <-audioChan:
		if ok {
			t.Errorf("Expected closed channel without data, got %d bytes", len(chunk))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for channel close")
	}
}
