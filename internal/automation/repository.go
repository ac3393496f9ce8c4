package automation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dewansh/dewhome-core/internal/device"
	"github.com/dewansh/dewhome-core/internal/infrastructure/database"
)

// Repository defines the interface for action persistence.
type Repository interface {
	// GetByID retrieves an action and its steps. Returns ErrActionNotFound.
	GetByID(ctx context.Context, id int64) (*Action, error)

	// List retrieves all actions ordered by ID.
	List(ctx context.Context) ([]Action, error)

	// Create inserts an action and its steps in one transaction and assigns its ID.
	// Returns ErrUnknownDevice if a step references a missing device.
	Create(ctx context.Context, action *Action) error

	// Delete removes an action, its steps and its execution log.
	Delete(ctx context.Context, id int64) error

	// SetEnabled persists the enabled flag.
	SetEnabled(ctx context.Context, id int64, enabled bool, at time.Time) error

	// SetLastRun records when the action last ran.
	SetLastRun(ctx context.Context, id int64, at time.Time) error

	// CreateExecution appends an execution record.
	CreateExecution(ctx context.Context, exec *Execution) error

	// ListExecutions returns the most recent executions of an action, newest first.
	ListExecutions(ctx context.Context, actionID int64, limit int) ([]Execution, error)
}

// Execution log page sizes.
const (
	DefaultExecutionLimit = 20
	MaxExecutionLimit     = 100
)

// executionTimeLayout has a fixed-width fraction so stored timestamps sort lexically.
const executionTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectAction = `
	SELECT id, name, type, schedule, enabled, last_run_at, created_at, updated_at
	FROM actions`

const selectSteps = `
	SELECT action_id, device_id, action_type, delay_seconds
	FROM action_devices`

// GetByID retrieves an action by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Action, error) {
	a, err := scanAction(r.db.QueryRowContext(ctx, selectAction+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrActionNotFound
		}
		return nil, fmt.Errorf("querying action by id: %w", err)
	}

	steps, err := r.loadSteps(ctx, selectSteps+" WHERE action_id = ? ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	a.DeviceActions = steps[id]
	if a.DeviceActions == nil {
		a.DeviceActions = []DeviceAction{}
	}
	return a, nil
}

// List retrieves all actions.
func (r *SQLiteRepository) List(ctx context.Context) ([]Action, error) {
	rows, err := r.db.QueryContext(ctx, selectAction+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		a, scanErr := scanAction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning action: %w", scanErr)
		}
		actions = append(actions, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actions: %w", err)
	}

	steps, err := r.loadSteps(ctx, selectSteps+" ORDER BY action_id, position")
	if err != nil {
		return nil, err
	}
	for i := range actions {
		actions[i].DeviceActions = steps[actions[i].ID]
		if actions[i].DeviceActions == nil {
			actions[i].DeviceActions = []DeviceAction{}
		}
	}
	return actions, nil
}

func (r *SQLiteRepository) loadSteps(ctx context.Context, query string, args ...any) (map[int64][]DeviceAction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying action steps: %w", err)
	}
	defer rows.Close()

	steps := make(map[int64][]DeviceAction)
	for rows.Next() {
		var actionID int64
		var da DeviceAction
		var cmd string
		if err := rows.Scan(&actionID, &da.DeviceID, &cmd, &da.DelaySeconds); err != nil {
			return nil, fmt.Errorf("scanning action step: %w", err)
		}
		da.ActionType = device.Command(cmd)
		steps[actionID] = append(steps[actionID], da)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action steps: %w", err)
	}
	return steps, nil
}

// Create inserts a new action with its steps.
func (r *SQLiteRepository) Create(ctx context.Context, a *Action) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	result, err := tx.ExecContext(ctx, `
		INSERT INTO actions (name, type, schedule, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.Name,
		string(a.Type),
		a.Schedule,
		boolToInt(a.Enabled),
		a.CreatedAt.Format(time.RFC3339),
		a.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting action: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading action id: %w", err)
	}

	for i, da := range a.DeviceActions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO action_devices (action_id, position, device_id, action_type, delay_seconds)
			VALUES (?, ?, ?, ?, ?)`,
			id, i, da.DeviceID, string(da.ActionType), da.DelaySeconds,
		)
		if err != nil {
			if database.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: device_actions[%d]: device %d does not exist", ErrUnknownDevice, i, da.DeviceID)
			}
			return fmt.Errorf("inserting action step %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing action: %w", err)
	}
	a.ID = id
	return nil
}

// Delete removes an action by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM actions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting action: %w", err)
	}
	return expectOneRow(result)
}

// SetEnabled updates the enabled flag.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, id int64, enabled bool, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE actions SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating action enabled: %w", err)
	}
	return expectOneRow(result)
}

// SetLastRun updates the last run timestamp.
func (r *SQLiteRepository) SetLastRun(ctx context.Context, id int64, at time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE actions SET last_run_at = ? WHERE id = ?",
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating action last run: %w", err)
	}
	return expectOneRow(result)
}

// CreateExecution inserts an execution record.
func (r *SQLiteRepository) CreateExecution(ctx context.Context, e *Execution) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO action_executions (
			id, action_id, trigger, status, message,
			steps_total, steps_failed, started_at, completed_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.ActionID,
		string(e.Trigger),
		string(e.Status),
		e.Message,
		e.StepsTotal,
		e.StepsFailed,
		e.StartedAt.UTC().Format(executionTimeLayout),
		nullableTime(e.CompletedAt),
		nullableInt64(e.DurationMS),
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return ErrActionNotFound
		}
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// ListExecutions retrieves recent executions for an action.
// A limit outside 1..MaxExecutionLimit is replaced by the default or the cap.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, actionID int64, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = DefaultExecutionLimit
	}
	if limit > MaxExecutionLimit {
		limit = MaxExecutionLimit
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, action_id, trigger, status, message,
			steps_total, steps_failed, started_at, completed_at, duration_ms
		FROM action_executions
		WHERE action_id = ?
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, actionID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	executions := []Execution{}
	for rows.Next() {
		e, scanErr := scanExecution(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning execution: %w", scanErr)
		}
		executions = append(executions, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(scanner rowScanner) (*Action, error) {
	var a Action
	var actionType string
	var enabled int
	var lastRun sql.NullString
	var createdAt, updatedAt string

	if err := scanner.Scan(
		&a.ID,
		&a.Name,
		&actionType,
		&a.Schedule,
		&enabled,
		&lastRun,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	a.Type = ActionType(actionType)
	a.Enabled = enabled != 0
	if lastRun.Valid {
		if t, err := time.Parse(time.RFC3339, lastRun.String); err == nil {
			a.LastRun = &t
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		a.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		a.UpdatedAt = t
	}
	return &a, nil
}

func scanExecution(scanner rowScanner) (*Execution, error) {
	var e Execution
	var trigger, status, startedAt string
	var completedAt sql.NullString
	var durationMS sql.NullInt64

	if err := scanner.Scan(
		&e.ID,
		&e.ActionID,
		&trigger,
		&status,
		&e.Message,
		&e.StepsTotal,
		&e.StepsFailed,
		&startedAt,
		&completedAt,
		&durationMS,
	); err != nil {
		return nil, err
	}

	e.Trigger = Trigger(trigger)
	e.Status = ExecutionStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		e.StartedAt = t
	}
	if completedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			e.CompletedAt = &t
		}
	}
	if durationMS.Valid {
		d := durationMS.Int64
		e.DurationMS = &d
	}
	return &e, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func expectOneRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrActionNotFound
	}
	return nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(executionTimeLayout), Valid: true}
}

func nullableInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
