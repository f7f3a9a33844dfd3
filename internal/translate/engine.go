package translate

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"

	"go.uber.org/zap"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
	"github.com/longxianmian/goodpick-go-sub000/domain/repositories"
	"github.com/longxianmian/goodpick-go-sub000/internal/metrics"
)

// coordinatePattern matches a bare "number, number" pair. Location
// payloads whose address is really a coordinate pair are never sent to
// the translation provider.
var coordinatePattern = regexp.MustCompile(`^\s*-?\d+(\.\d+)?\s*,\s*-?\d+(\.\d+)?\s*$`)

// Input carries everything the engine needs for one recipient decision.
type Input struct {
	MessageID string
	Text      string
	Modality  entities.Modality
	Kind      entities.MessageKind
	// RecipientLanguage is the target of the decision.
	RecipientLanguage string
	// SenderDeclaredLanguage is the sender's profile language, used as
	// a hint when local detection is ambiguous.
	SenderDeclaredLanguage string
	// MessageDeclaredLanguage is the per-message original language and
	// takes precedence over detection.
	MessageDeclaredLanguage string
}

// Decision is the shaped bilingual result for one recipient.
type Decision struct {
	TranslatedText   string
	NeedsTranslation bool
	SourceLanguage   string
}

// locationPayload is the structured content of a location message.
// Only Address is human-readable; the coordinates stay untouched.
type locationPayload struct {
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Engine decides skip-vs-translate per message and recipient. Provider
// failures always degrade to an identity copy; they never surface as
// user-facing errors or block delivery.
type Engine struct {
	translator repositories.Translator
	cache      repositories.MessageRepository
	style      string
	logger     *zap.Logger
}

// NewEngine wires the decision engine. cache may be nil to disable the
// translated-view cache.
func NewEngine(translator repositories.Translator, cache repositories.MessageRepository, logger *zap.Logger) *Engine {
	return &Engine{
		translator: translator,
		cache:      cache,
		style:      "casual",
		logger:     logger,
	}
}

// ResolveSourceLanguage applies the resolution order: per-message
// declaration, local detection, sender declaration, unknown ("").
func (e *Engine) ResolveSourceLanguage(in Input) string {
	if in.MessageDeclaredLanguage != "" {
		return in.MessageDeclaredLanguage
	}
	if detected := DetectLanguage(in.Text); detected != "" {
		return detected
	}
	return in.SenderDeclaredLanguage
}

// Decide shapes the translated view for one recipient.
func (e *Engine) Decide(ctx context.Context, in Input) Decision {
	// Non-text modalities pass the reference through untranslated.
	if in.Modality != entities.ModalityText {
		return Decision{TranslatedText: in.Text, NeedsTranslation: false}
	}

	if in.Kind == entities.MessageKindLocation {
		return e.decideLocation(ctx, in)
	}

	source := e.ResolveSourceLanguage(in)
	if source != "" && sameLanguage(source, in.RecipientLanguage) {
		metrics.TranslationsTotal.WithLabelValues("skipped").Inc()
		return Decision{TranslatedText: in.Text, NeedsTranslation: false, SourceLanguage: source}
	}

	if view, ok := e.cachedView(ctx, in); ok {
		metrics.TranslationsTotal.WithLabelValues("cached").Inc()
		return Decision{
			TranslatedText:   view.TranslatedText,
			NeedsTranslation: view.NeedsTranslation,
			SourceLanguage:   view.SourceLanguage,
		}
	}

	translated, err := e.translate(ctx, in.Text, in.RecipientLanguage)
	if err != nil {
		metrics.TranslationsTotal.WithLabelValues("degraded").Inc()
		e.logger.Warn("translation degraded to identity copy",
			zap.String("messageID", in.MessageID),
			zap.String("targetLanguage", in.RecipientLanguage),
			zap.Error(err))
		return Decision{TranslatedText: in.Text, NeedsTranslation: false, SourceLanguage: source}
	}

	metrics.TranslationsTotal.WithLabelValues("translated").Inc()
	decision := Decision{TranslatedText: translated, NeedsTranslation: true, SourceLanguage: source}
	e.storeView(ctx, in, decision)
	return decision
}

// decideLocation translates only the human-readable address field of a
// structured location message. Coordinate pairs and the machine-readable
// payload are never sent to the provider.
func (e *Engine) decideLocation(ctx context.Context, in Input) Decision {
	var loc locationPayload
	if err := json.Unmarshal([]byte(in.Text), &loc); err != nil {
		// Not the structured shape; treat as plain text.
		plain := in
		plain.Kind = entities.MessageKindPlain
		return e.Decide(ctx, plain)
	}

	if loc.Address == "" || coordinatePattern.MatchString(loc.Address) {
		return Decision{TranslatedText: in.Text, NeedsTranslation: false}
	}

	source := e.ResolveSourceLanguage(Input{
		Text:                    loc.Address,
		MessageDeclaredLanguage: in.MessageDeclaredLanguage,
		SenderDeclaredLanguage:  in.SenderDeclaredLanguage,
	})
	if source != "" && sameLanguage(source, in.RecipientLanguage) {
		return Decision{TranslatedText: in.Text, NeedsTranslation: false, SourceLanguage: source}
	}

	translated, err := e.translate(ctx, loc.Address, in.RecipientLanguage)
	if err != nil {
		metrics.TranslationsTotal.WithLabelValues("degraded").Inc()
		return Decision{TranslatedText: in.Text, NeedsTranslation: false, SourceLanguage: source}
	}

	loc.Address = translated
	shaped, err := json.Marshal(loc)
	if err != nil {
		return Decision{TranslatedText: in.Text, NeedsTranslation: false, SourceLanguage: source}
	}
	metrics.TranslationsTotal.WithLabelValues("translated").Inc()
	return Decision{TranslatedText: string(shaped), NeedsTranslation: true, SourceLanguage: source}
}

func (e *Engine) translate(ctx context.Context, text, targetLanguage string) (string, error) {
	result, err := e.translator.Translate(ctx, text, targetLanguage, e.style)
	if err != nil {
		return "", err
	}
	if result.TranslatedText == "" {
		return "", errors.New("provider returned empty translation")
	}
	return result.TranslatedText, nil
}

func (e *Engine) cachedView(ctx context.Context, in Input) (*entities.TranslatedView, bool) {
	if e.cache == nil || in.MessageID == "" {
		return nil, false
	}
	view, err := e.cache.GetTranslation(ctx, in.MessageID, in.RecipientLanguage)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			e.logger.Warn("translation cache lookup failed",
				zap.String("messageID", in.MessageID),
				zap.Error(err))
		}
		return nil, false
	}
	return view, true
}

func (e *Engine) storeView(ctx context.Context, in Input, decision Decision) {
	if e.cache == nil || in.MessageID == "" {
		return
	}
	view := &entities.TranslatedView{
		SourceMessageID:  in.MessageID,
		TargetLanguage:   in.RecipientLanguage,
		TranslatedText:   decision.TranslatedText,
		NeedsTranslation: decision.NeedsTranslation,
		SourceLanguage:   decision.SourceLanguage,
	}
	if err := e.cache.SaveTranslation(ctx, view); err != nil {
		e.logger.Warn("failed to cache translated view",
			zap.String("messageID", in.MessageID),
			zap.Error(err))
	}
}
