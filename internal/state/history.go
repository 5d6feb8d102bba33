package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Camier/2SEARX2COOL-sub001/pkg/models"
)

// ErrNotFound is returned when a task or plan does not exist.
var ErrNotFound = errors.New("not found")

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	PlanID string
	Status []models.TaskStatus
}

// SaveTask inserts or replaces the stored copy of a task.
func (db *DB) SaveTask(ctx context.Context, t *models.Task) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task %s: %w", t.ID, err)
	}
	updated := t.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO tasks (id, plan_id, phase, status, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			plan_id = excluded.plan_id,
			phase = excluded.phase,
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, t.ID, t.PlanID, t.Phase, string(t.Status), string(data), formatTime(t.CreatedAt), formatTime(updated))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

// GetTask returns the stored copy of a task, or ErrNotFound.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var data string
	db.mu.RLock()
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM tasks WHERE id = ?`, id).Scan(&data)
	db.mu.RUnlock()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return decodeTask(data)
}

// ListTasks returns stored tasks in creation order.
func (db *DB) ListTasks(ctx context.Context, f TaskFilter) ([]*models.Task, error) {
	var where []string
	var args []any
	if f.PlanID != "" {
		where = append(where, "plan_id = ?")
		args = append(args, f.PlanID)
	}
	if len(f.Status) > 0 {
		marks := make([]string, len(f.Status))
		for i, s := range f.Status {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	query := "SELECT data FROM tasks"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, id"

	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t, err := decodeTask(data)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func decodeTask(data string) (*models.Task, error) {
	var t models.Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}

// SaveMessage appends a message to the audit log. Saving the same message
// twice is a no-op.
func (db *DB) SaveMessage(ctx context.Context, msg models.Message) error {
	payload, err := msg.MarshalPayload()
	if err != nil {
		return fmt.Errorf("encode message %s: %w", msg.ID, err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (id, type, sender, task_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, msg.ID, string(msg.Type), msg.Sender, msg.TaskID, string(payload), formatTime(msg.Timestamp))
	if err != nil {
		return fmt.Errorf("save message %s: %w", msg.ID, err)
	}
	return nil
}

// ListMessages returns the messages about a task, oldest first. An empty
// taskID returns every message.
func (db *DB) ListMessages(ctx context.Context, taskID string) ([]models.Message, error) {
	query := `SELECT id, type, sender, task_id, payload, created_at FROM messages`
	var args []any
	if taskID != "" {
		query += ` WHERE task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY created_at, id`

	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var (
			m       models.Message
			typ     string
			taskCol sql.NullString
			payload string
			created any
		)
		if err := rows.Scan(&m.ID, &typ, &m.Sender, &taskCol, &payload, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Type = models.MessageType(typ)
		m.TaskID = taskCol.String
		m.Timestamp = scanTime(created)
		if m.Payload, err = models.DecodePayload(m.Type, []byte(payload)); err != nil {
			return nil, fmt.Errorf("message %s: %w", m.ID, err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// scanTime accepts both the text we store and the time.Time some drivers
// produce for DATETIME columns.
func scanTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.Parse(timeLayout, t); err == nil {
			return parsed
		}
	case []byte:
		if parsed, err := time.Parse(timeLayout, string(t)); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// SavePlan inserts or replaces a plan.
func (db *DB) SavePlan(ctx context.Context, p *models.Plan) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode plan %s: %w", p.ID, err)
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO plans (id, name, project_path, status, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			project_path = excluded.project_path,
			status = excluded.status,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, p.ID, p.Name, p.ProjectPath, string(p.Status), string(data), formatTime(created), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save plan %s: %w", p.ID, err)
	}
	return nil
}

// GetPlan returns a stored plan, or ErrNotFound.
func (db *DB) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	var data string
	db.mu.RLock()
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM plans WHERE id = ?`, id).Scan(&data)
	db.mu.RUnlock()
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	var p models.Plan
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	return &p, nil
}

// ListPlans returns every stored plan, newest first.
func (db *DB) ListPlans(ctx context.Context) ([]*models.Plan, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	rows, err := db.conn.QueryContext(ctx, `SELECT data FROM plans ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []*models.Plan
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		var p models.Plan
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, fmt.Errorf("decode plan: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
