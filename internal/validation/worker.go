package validation

import (
	"context"
	"fmt"

	"github.com/Camier/2SEARX2COOL-sub001/internal/bus"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// NewWorker returns an actor that answers validation_request messages
// with validation_result messages.
func NewWorker(id string, e *Engine, mailboxSize int, out bus.Sink) *bus.Actor {
	return bus.NewActor(id, models.RoleValidation, mailboxSize, out, func(_ context.Context, msg models.Message) (models.Payload, error) {
		req, ok := msg.Payload.(models.ValidationRequest)
		if !ok {
			return nil, fmt.Errorf("unexpected %s message", msg.Type)
		}
		return models.ValidationPayload{Report: e.Validate(&req.Task, req.Content)}, nil
	})
}
