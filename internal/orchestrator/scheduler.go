package orchestrator

import (
	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// assignLocked hands ready tasks to execution workers, highest priority
// first. Scheduling is greedy and non-preemptive: tasks whose
// dependencies are not completed go back to the queue with their original
// sequence number, so their order among equal-priority peers is unchanged.
func (o *Orchestrator) assignLocked() {
	if o.pause.IsPaused() || o.queue.Len() == 0 {
		return
	}

	items := o.queue.drain()
	full := make(map[string]bool)
	var keep []queueItem

	for i, it := range items {
		t := o.tasks[it.id]
		if t == nil || t.Status != models.TaskStatusPending {
			continue
		}
		if !o.depsSatisfiedLocked(t) {
			keep = append(keep, it)
			continue
		}

		assigned := false
		for {
			e := o.pickWorkerLocked(full)
			if e == nil {
				break
			}
			if err := o.assignToLocked(t, e); err != nil {
				debugLog("[scheduler] %s rejected %s: %v", e.status.ID, t.ID, err)
				full[e.status.ID] = true
				continue
			}
			assigned = true
			break
		}
		if !assigned {
			// No execution capacity left for anyone.
			keep = append(keep, items[i:]...)
			break
		}
	}

	for _, it := range keep {
		o.queue.push(it)
	}
}

// capacityOf is the number of tasks the orchestrator may hand to e at once.
func (o *Orchestrator) capacityOf(e *workerEntry) int {
	c := e.status.Capacity
	if c <= 0 {
		c = 1
	}
	if m := o.opts.maxTasksPerWorker; m > 0 && m < c {
		c = m
	}
	return c
}

// pickWorkerLocked returns the least-loaded available execution worker,
// or nil when every worker is full.
func (o *Orchestrator) pickWorkerLocked(skip map[string]bool) *workerEntry {
	var best *workerEntry
	for _, id := range o.workerOrder {
		e := o.workers[id]
		if e.status.Role != models.RoleExecution || skip[id] || !e.status.State.Available() {
			continue
		}
		if len(e.assigned) >= o.capacityOf(e) {
			continue
		}
		if best == nil || len(e.assigned) < len(best.assigned) {
			best = e
		}
	}
	return best
}

// assignToLocked marks t in progress on e and delivers the assignment.
// On rejection the task is left pending.
func (o *Orchestrator) assignToLocked(t *models.Task, e *workerEntry) error {
	id := e.status.ID
	t.Status = models.TaskStatusInProgress
	t.AssignedTo = id
	msg := models.NewMessage(ID, t.ID, models.TaskAssignment{Task: *t.Clone()})

	if d, ok := e.worker.(deliverer); ok {
		if err := d.Deliver(msg); err != nil {
			t.Status = models.TaskStatusPending
			t.AssignedTo = ""
			return err
		}
	} else {
		w := e.worker
		o.later(func() { w.Post(msg) })
	}

	e.assigned[t.ID] = true
	t.UpdatedAt = o.opts.now()
	o.logger.Log("assigned %s to %s (%d/%d)", t.ID, id, len(e.assigned), o.capacityOf(e))
	o.saveTaskLocked(t)
	o.saveMessageLocked(msg)
	o.emitLocked(Event{Type: EventTaskStarted, TaskID: t.ID, TaskTitle: t.Title, WorkerID: id, PlanID: t.PlanID, Phase: t.Phase})
	o.notifyLocked()
	return nil
}

// releaseLocked frees the slot t held on its worker.
func (o *Orchestrator) releaseLocked(t *models.Task, sender string) {
	for _, id := range []string{t.AssignedTo, sender} {
		if e := o.workers[id]; e != nil {
			delete(e.assigned, t.ID)
		}
	}
}
