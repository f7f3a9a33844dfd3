package repositories

import (
	"context"

	"github.com/longxianmian/goodpick-go-sub000/domain/entities"
)

// Bridge relays a delivered message to a linked external messaging
// platform. Relay is best-effort: errors are logged by the caller and
// never affect in-app delivery.
type Bridge interface {
	Relay(ctx context.Context, address string, message *entities.Message, view *entities.TranslatedView) error
}
