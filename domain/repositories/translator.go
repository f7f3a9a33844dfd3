package repositories

import "context"

// TranslationResult is the provider's answer for a single text.
type TranslationResult struct {
	TranslatedText string  `json:"translated_text"`
	Confidence     float64 `json:"confidence"`
}

// Translator abstracts the remote machine-translation provider. It is
// expected to fail closed: callers fall back to an identity copy when
// Translate returns an error.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage, style string) (TranslationResult, error)
}
