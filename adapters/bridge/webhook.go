// Package bridge relays delivered messages to linked external
// messaging platforms over HTTP webhooks.
package bridge

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

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
)

// WebhookBridge posts delivered messages to a per-user webhook
// address. A bare address is resolved against the configured base URL,
// so operators can run one gateway that demultiplexes by path.
type WebhookBridge struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.Bridge = (*WebhookBridge)(nil)

// NewWebhookBridge creates a webhook-backed bridge.
func NewWebhookBridge(baseURL string, logger *zap.Logger) *WebhookBridge {
	return &WebhookBridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// resolve turns a stored bridge address into a full webhook URL.
func (b *WebhookBridge) resolve(address string) (string, error) {
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return address, nil
	}
	if b.baseURL == "" {
		return "", fmt.Errorf("no bridge webhook base URL configured for address %q", address)
	}
	return b.baseURL + "/" + strings.TrimLeft(address, "/"), nil
}

type relayPayload struct {
	MessageID        string `json:"messageId"`
	FromUserID       string `json:"fromUserId"`
	Content          string `json:"content"`
	OriginalLanguage string `json:"originalLanguage,omitempty"`
	TranslatedText   string `json:"translatedText,omitempty"`
	TargetLanguage   string `json:"targetLanguage,omitempty"`
	CreatedAt        string `json:"createdAt"`
}

// Relay implements repositories.Bridge. The translated view is
// optional; when present its text rides along with the original.
func (b *WebhookBridge) Relay(ctx context.Context, address string, message *entities.Message, view *entities.TranslatedView) error {
	target, err := b.resolve(address)
	if err != nil {
		return err
	}

	payload := relayPayload{
		MessageID:        message.ID,
		FromUserID:       message.FromUserID,
		Content:          message.Content,
		OriginalLanguage: message.OriginalLanguage,
		CreatedAt:        message.CreatedAt.Format(time.RFC3339),
	}
	if view != nil {
		payload.TranslatedText = view.TranslatedText
		payload.TargetLanguage = view.TargetLanguage
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("relay endpoint returned status %d", resp.StatusCode)
	}

	b.logger.Debug("relayed message to bridge",
		zap.String("messageID", message.ID),
		zap.String("address", address))
	return nil
}
