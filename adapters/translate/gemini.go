package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

const geminiModel = "gemini-2.0-flash"

// GeminiTranslator implements the Translator interface using Google's
// Gemini API, as an alternative to the DashScope provider.
type GeminiTranslator struct {
	client *genai.Client
	logger *zap.Logger
}

// NewGeminiTranslator creates a Gemini-backed translator.
func NewGeminiTranslator(apiKey string, logger *zap.Logger) (*GeminiTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiTranslator{
		client: client,
		logger: logger,
	}, nil
}

// Translate implements repositories.Translator.
func (t *GeminiTranslator) Translate(ctx context.Context, text, targetLanguage, style string) (repositories.TranslationResult, error) {
	prompt := fmt.Sprintf(
		"Translate the following text into %s. Keep the tone %s. Reply with the translation only, no explanations.\n\n%s",
		targetLanguage, style, text)

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.2)),
		MaxOutputTokens: 1024,
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	response, err := t.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return repositories.TranslationResult{}, fmt.Errorf("gemini translation failed: %w", err)
	}
	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return repositories.TranslationResult{}, fmt.Errorf("gemini returned no candidates")
	}

	var translated string
	for _, part := range response.Candidates[0].Content.Parts {
		translated += part.Text
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return repositories.TranslationResult{}, fmt.Errorf("gemini returned empty translation")
	}

	t.logger.Debug("gemini translation completed",
		zap.String("targetLanguage", targetLanguage),
		zap.Int("outputLen", len(translated)))

	return repositories.TranslationResult{TranslatedText: translated, Confidence: 1}, nil
}
