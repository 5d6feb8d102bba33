package orchestrator

import (
	"fmt"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// GetMetrics returns an observability snapshot.
func (o *Orchestrator) GetMetrics() models.SystemMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()

	m := models.SystemMetrics{TotalTasks: len(o.tasks)}
	for _, t := range o.tasks {
		switch t.Status {
		case models.TaskStatusPending:
			m.PendingTasks++
		case models.TaskStatusInProgress:
			m.InProgressTasks++
		case models.TaskStatusCompleted:
			m.CompletedTasks++
		case models.TaskStatusFailed:
			m.FailedTasks++
		case models.TaskStatusBlocked:
			m.BlockedTasks++
		}
	}

	m.Workers = make([]models.WorkerStatus, 0, len(o.workerOrder))
	for _, id := range o.workerOrder {
		m.Workers = append(m.Workers, o.workers[id].status.Copy())
	}

	m.Uptime = o.opts.now().Sub(o.startedAt)
	if mins := m.Uptime.Minutes(); mins > 0 {
		m.TasksPerMinute = float64(o.stats.completed) / mins
	}
	if attempts := o.stats.completed + o.stats.failures; attempts > 0 {
		m.SuccessRate = float64(o.stats.completed) / float64(attempts)
		m.ErrorRate = float64(o.stats.failures) / float64(attempts)
	}
	if o.stats.failures > 0 {
		m.HealingRate = float64(o.stats.healed) / float64(o.stats.failures)
	}
	m.Health = o.healthLocked()
	return m
}

func (o *Orchestrator) healthLocked() models.CodebaseHealth {
	h := models.CodebaseHealth{
		ValidatedTasks:     len(o.reports),
		ValidationFailures: o.stats.validationFailures,
		AppliedFixes:       o.stats.healingApplied,
	}
	var sum float64
	for _, r := range o.reports {
		sum += r.Scores.Quality
		h.OpenIssues += len(r.Issues)
	}
	if len(o.reports) > 0 {
		h.AverageQuality = sum / float64(len(o.reports))
	}
	for _, p := range o.predictions {
		if p.Risk.Level == models.RiskHigh {
			h.HighRiskTasks++
		}
	}
	return h
}

// CheckHealth flags workers in the error or offline state and an
// execution pool with no free capacity.
func (o *Orchestrator) CheckHealth() models.HealthReport {
	o.mu.Lock()
	defer o.mu.Unlock()

	var issues []string
	for _, id := range o.workerOrder {
		e := o.workers[id]
		switch e.status.State {
		case models.WorkerError:
			issues = append(issues, fmt.Sprintf("worker %s is in error state", id))
		case models.WorkerOffline:
			issues = append(issues, fmt.Sprintf("worker %s is offline", id))
		}
	}

	execs := o.workersByRoleLocked(models.RoleExecution)
	if len(execs) == 0 {
		issues = append(issues, "no execution workers registered")
	} else {
		used, capacity := 0, 0
		for _, e := range execs {
			used += len(e.assigned)
			capacity += o.capacityOf(e)
		}
		if used >= capacity {
			issues = append(issues, fmt.Sprintf("execution pool at full capacity (%d/%d)", used, capacity))
		}
	}

	return models.HealthReport{Healthy: len(issues) == 0, Issues: issues}
}
