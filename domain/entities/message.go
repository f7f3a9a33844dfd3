package entities

import (
	"errors"
	"time"
)

// Modality distinguishes what kind of content a message carries.
type Modality string

const (
	ModalityText  Modality = "text"
	ModalityAudio Modality = "audio"
)

// MessageKind refines text messages that need structured handling.
type MessageKind string

const (
	MessageKindPlain    MessageKind = ""
	MessageKindLocation MessageKind = "location"
)

// Message is the stored envelope for one send event. Exactly one of
// ToUserID/GroupID is set. The stored envelope is never mutated after
// persistence; per-recipient translated views are derived from it.
type Message struct {
	ID               string      `json:"id" bson:"_id,omitempty"`
	FromUserID       string      `json:"from_user_id" bson:"from_user_id"`
	ToUserID         string      `json:"to_user_id,omitempty" bson:"to_user_id,omitempty"`
	GroupID          string      `json:"group_id,omitempty" bson:"group_id,omitempty"`
	Modality         Modality    `json:"modality" bson:"modality"`
	Kind             MessageKind `json:"kind,omitempty" bson:"kind,omitempty"`
	Content          string      `json:"content" bson:"content"`
	OriginalLanguage string      `json:"original_language,omitempty" bson:"original_language,omitempty"`
	ReplyToMessageID string      `json:"reply_to_message_id,omitempty" bson:"reply_to_message_id,omitempty"`
	CreatedAt        time.Time   `json:"created_at" bson:"created_at"`
	ReadBy           []string    `json:"read_by,omitempty" bson:"read_by,omitempty"`
}

// TranslatedView is a per-recipient copy of a message's text. It is
// ephemeral unless cached through the message repository.
type TranslatedView struct {
	SourceMessageID  string `json:"source_message_id" bson:"source_message_id"`
	TargetLanguage   string `json:"target_language" bson:"target_language"`
	TranslatedText   string `json:"translated_text" bson:"translated_text"`
	NeedsTranslation bool   `json:"needs_translation" bson:"needs_translation"`
	SourceLanguage   string `json:"source_language,omitempty" bson:"source_language,omitempty"`
}

func (m *Message) Validate() error {
	if m.FromUserID == "" {
		return errors.New("from_user_id is required")
	}
	if (m.ToUserID == "") == (m.GroupID == "") {
		return errors.New("exactly one of to_user_id and group_id must be set")
	}
	if m.Modality != ModalityText && m.Modality != ModalityAudio {
		return errors.New("invalid modality")
	}
	if m.Content == "" {
		return errors.New("content is required")
	}
	return nil
}

// IsDirect reports whether the message addresses a single recipient.
func (m *Message) IsDirect() bool {
	return m.ToUserID != ""
}
