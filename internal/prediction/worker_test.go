package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/internal/bus"
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

func TestWorker_AnswersPredictionRequests(t *testing.T) {
	e := newTestEngine(t)
	out := bus.NewCollector()
	w := NewWorker("prediction-1", e, 8, out)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	task := newTask("p1", "security", 9)
	w.Post(models.NewMessage("orchestrator", task.ID, models.PredictionRequest{Task: *task}))

	ok := out.WaitFor(2*time.Second, func(msgs []models.Message) bool { return len(msgs) > 0 })
	if !ok {
		t.Fatal("no prediction received")
	}
	msg := out.OfType(models.MsgPrediction)[0]
	res := msg.Payload.(models.PredictionPayload).Result
	if res.TaskID != "p1" || res.Risk.Level != models.RiskHigh {
		t.Errorf("unexpected prediction: %+v", res)
	}
}
