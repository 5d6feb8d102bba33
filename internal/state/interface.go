package state

import (
	"context"
	"io"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// TaskStore handles task persistence.
type TaskStore interface {
	SaveTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id string) (*models.Task, error)
	ListTasks(ctx context.Context, f TaskFilter) ([]*models.Task, error)
}

// MessageStore is the audit log of worker messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg models.Message) error
	ListMessages(ctx context.Context, taskID string) ([]models.Message, error)
}

// PlanStore handles plan persistence.
type PlanStore interface {
	SavePlan(ctx context.Context, p *models.Plan) error
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
	ListPlans(ctx context.Context) ([]*models.Plan, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store is the full history backend.
type Store interface {
	io.Closer
	Migrator
	TaskStore
	MessageStore
	PlanStore
}

var (
	_ Store        = (*DB)(nil)
	_ TaskStore    = (*DB)(nil)
	_ MessageStore = (*DB)(nil)
	_ PlanStore    = (*DB)(nil)
)
