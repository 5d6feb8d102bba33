package prediction

import (
	"context"
	"fmt"

	"github.com/Camier/2SEARX2COOL-sub001/internal/bus"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// NewWorker returns an actor that answers prediction_request messages
// with prediction messages.
func NewWorker(id string, e *Engine, mailboxSize int, out bus.Sink) *bus.Actor {
	return bus.NewActor(id, models.RolePrediction, mailboxSize, out, func(_ context.Context, msg models.Message) (models.Payload, error) {
		req, ok := msg.Payload.(models.PredictionRequest)
		if !ok {
			return nil, fmt.Errorf("unexpected %s message", msg.Type)
		}
		return models.PredictionPayload{Result: e.AnalyzeTask(&req.Task)}, nil
	})
}
