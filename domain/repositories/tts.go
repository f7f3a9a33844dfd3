package repositories

import "context"

// SpeechSynthesizer abstracts the text-to-speech provider. The returned
// channel streams raw audio and is closed when synthesis ends.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text, language, voice string) (<-chan []byte, error)
}
