// Package translate provides Translator implementations backed by
// remote machine-translation providers.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

const dashScopeModel = "qwen-mt-turbo"

// DashScopeTranslator implements the Translator interface against the
// DashScope text-generation API.
type DashScopeTranslator struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewDashScopeTranslator creates a DashScope-backed translator.
func NewDashScopeTranslator(apiKey, baseURL string, logger *zap.Logger) (*DashScopeTranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("DASHSCOPE_API_KEY is required")
	}
	if baseURL == "" {
		baseURL = "https://dashscope.aliyuncs.com/api/v1"
	}
	return &DashScopeTranslator{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}, nil
}

type dashScopeRequest struct {
	Model      string              `json:"model"`
	Input      dashScopeInput      `json:"input"`
	Parameters dashScopeParameters `json:"parameters"`
}

type dashScopeInput struct {
	Messages []dashScopeMessage `json:"messages"`
}

type dashScopeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type dashScopeParameters struct {
	ResultFormat       string             `json:"result_format"`
	TranslationOptions translationOptions `json:"translation_options"`
}

type translationOptions struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	Domains    string `json:"domains,omitempty"`
}

type dashScopeResponse struct {
	Output struct {
		Choices []struct {
			Message dashScopeMessage `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Translate implements repositories.Translator. Any transport or
// provider error is returned as-is; the decision engine degrades to an
// identity copy.
func (t *DashScopeTranslator) Translate(ctx context.Context, text, targetLanguage, style string) (repositories.TranslationResult, error) {
	payload := dashScopeRequest{
		Model: dashScopeModel,
		Input: dashScopeInput{
			Messages: []dashScopeMessage{{Role: "user", Content: text}},
		},
		Parameters: dashScopeParameters{
			ResultFormat: "message",
			TranslationOptions: translationOptions{
				SourceLang: "auto",
				TargetLang: targetLanguage,
				Domains:    style,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return repositories.TranslationResult{}, fmt.Errorf("failed to encode translation request: %w", err)
	}

	url := t.baseURL + "/services/aigc/text-generation/generation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return repositories.TranslationResult{}, fmt.Errorf("failed to build translation request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return repositories.TranslationResult{}, fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return repositories.TranslationResult{}, fmt.Errorf("failed to read translation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return repositories.TranslationResult{}, fmt.Errorf("translation provider returned status %d: %s", resp.StatusCode, raw)
	}

	var parsed dashScopeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return repositories.TranslationResult{}, fmt.Errorf("failed to decode translation response: %w", err)
	}
	if parsed.Code != "" {
		return repositories.TranslationResult{}, fmt.Errorf("translation provider error %s: %s", parsed.Code, parsed.Message)
	}
	if len(parsed.Output.Choices) == 0 {
		return repositories.TranslationResult{}, fmt.Errorf("translation provider returned no choices")
	}

	translated := parsed.Output.Choices[0].Message.Content
	t.logger.Debug("translation completed",
		zap.String("targetLanguage", targetLanguage),
		zap.Int("inputLen", len(text)),
		zap.Int("outputLen", len(translated)))

	return repositories.TranslationResult{TranslatedText: translated, Confidence: 1}, nil
}
