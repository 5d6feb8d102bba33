package bus

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// Responder answers one request. A nil payload means no reply is sent.
type Responder func(ctx context.Context, msg models.Message) (models.Payload, error)

// Actor is a single-threaded worker that answers requests arriving in its
// mailbox by posting replies to out. The prediction, validation and
// healing workers are Actors.
type Actor struct {
	id      string
	role    models.WorkerRole
	mailbox *Mailbox
	out     Sink
	respond Responder

	mu     sync.Mutex
	status models.WorkerStatus
}

// NewActor creates an actor with the given identity.
func NewActor(id string, role models.WorkerRole, mailboxSize int, out Sink, respond Responder) *Actor {
	if out == nil {
		out = Discard
	}
	return &Actor{
		id:      id,
		role:    role,
		mailbox: NewMailbox(id, mailboxSize),
		out:     out,
		respond: respond,
		status: models.WorkerStatus{
			ID:        id,
			Role:      role,
			State:     models.WorkerIdle,
			Capacity:  1,
			UpdatedAt: time.Now(),
		},
	}
}

// ID returns the actor ID.
func (a *Actor) ID() string { return a.id }

// Post enqueues a request.
func (a *Actor) Post(msg models.Message) { a.mailbox.Post(msg) }

// Status returns a copy of the actor's status.
func (a *Actor) Status() models.WorkerStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status.Copy()
}

// Run processes requests until ctx is cancelled, then reports itself offline.
func (a *Actor) Run(ctx context.Context) error {
	err := a.mailbox.Run(ctx, a.handle)
	a.setState(models.WorkerOffline, "")
	a.out.Post(models.NewMessage(a.id, "", models.StatusUpdate{Status: a.Status()}))
	return err
}

func (a *Actor) handle(ctx context.Context, msg models.Message) {
	start := time.Now()
	a.setState(models.WorkerBusy, msg.TaskID)

	payload, err := a.respond(ctx, msg)

	a.mu.Lock()
	a.status.CurrentTasks = nil
	a.status.Record(err == nil, time.Since(start))
	a.status.State = models.WorkerIdle
	a.status.UpdatedAt = time.Now()
	a.mu.Unlock()

	if err != nil {
		log.Printf("[%s] %s for task %s failed: %v", a.role, msg.Type, msg.TaskID, err)
		return
	}
	if payload != nil {
		a.out.Post(models.NewMessage(a.id, msg.TaskID, payload))
	}
}

func (a *Actor) setState(s models.WorkerState, taskID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status.State = s
	a.status.CurrentTasks = nil
	if taskID != "" {
		a.status.CurrentTasks = []string{taskID}
	}
	a.status.UpdatedAt = time.Now()
}
