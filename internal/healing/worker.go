package healing

import (
	"context"
	"fmt"

	"github.com/Camier/2SEARX2COOL-sub001/internal/bus"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// NewWorker returns an actor that answers healing_request messages with
// healing_suggestion messages.
func NewWorker(id string, e *Engine, mailboxSize int, out bus.Sink) *bus.Actor {
	return bus.NewActor(id, models.RoleHealing, mailboxSize, out, func(_ context.Context, msg models.Message) (models.Payload, error) {
		req, ok := msg.Payload.(models.HealingRequest)
		if !ok {
			return nil, fmt.Errorf("unexpected %s message", msg.Type)
		}
		return models.HealingPayload{Actions: e.HealFailure(&req.Task, req.Content, req.Error)}, nil
	})
}
