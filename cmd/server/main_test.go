package main

import (
	"testing"

	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/internal/config"
)

func TestBuildSynthesizerOptional(t *testing.T) {
	logger := zap.NewNop()

	if s := buildSynthesizer(&config.Config{}, logger); s != nil {
		t.Error("expected nil synthesizer when TTS is unconfigured")
	}

	if s := buildSynthesizer(&config.Config{TTSAPIKey: "test-api-key"}, logger); s == nil {
		t.Error("expected a synthesizer when TTS_API_KEY is set")
	}
}
