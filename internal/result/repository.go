package result

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/database"
)

// Repository is the result store.
type Repository interface {
	Create(ctx context.Context, res *Result) error
	GetByTaskID(ctx context.Context, taskID uuid.UUID) (*Result, error)
	GetForOwner(ctx context.Context, taskID uuid.UUID, owner, action string) (*Result, error)
}

// SQLRepository implements Repository over the results table.
type SQLRepository struct {
	db *database.DB
}

// NewSQLRepository creates a repository over an open, migrated database.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const resultColumns = `r.task_id, r.status, r.result, r.reason, r.transpiled_code, r.qubit_allocation, r.created_at`

// Create validates r and inserts it in one transaction.
//
// Returns:
//   - error: *ValidationError, ErrConflict if the task already has a
//     result, ErrTaskNotFound if the task does not exist
func (r *SQLRepository) Create(ctx context.Context, res *Result) error {
	if err := Validate(res); err != nil {
		return err
	}

	return r.db.InTx(ctx, func(tx *database.Tx) error {
		exists, err := Exists(ctx, tx, res.TaskID)
		if err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}

		var one int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM tasks WHERE id = ?`, res.TaskID[:]).Scan(&one)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrTaskNotFound
			}
			return fmt.Errorf("checking task: %w", err)
		}

		return Insert(ctx, tx, res)
	})
}

// Exists reports whether the task already has a result.
func Exists(ctx context.Context, q database.Querier, taskID uuid.UUID) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM results WHERE task_id = ?`, taskID[:]).Scan(&one)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	default:
		return false, fmt.Errorf("checking existing result: %w", err)
	}
}

// Insert writes res through q without any checks. The task package uses it
// to record a cancellation result inside its own transaction.
func Insert(ctx context.Context, q database.Querier, res *Result) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = database.Now()
	}

	var allocation any
	if res.QubitAllocation != nil {
		b, err := json.Marshal(res.QubitAllocation)
		if err != nil {
			return fmt.Errorf("marshalling qubit_allocation: %w", err)
		}
		allocation = string(b)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO results (task_id, status, result, reason, transpiled_code, qubit_allocation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		res.TaskID[:],
		string(res.Status),
		database.NullableString(res.Result),
		database.NullableString(res.Reason),
		database.NullableString(res.TranspiledCode),
		allocation,
		database.FormatTime(res.CreatedAt),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("inserting result: %w", err)
	}
	return nil
}

// GetByTaskID returns the result of a task.
func (r *SQLRepository) GetByTaskID(ctx context.Context, taskID uuid.UUID) (*Result, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results r WHERE r.task_id = ?`, taskID[:])
	return scanOne(row)
}

// GetForOwner returns the result of a task only if the task belongs to
// owner and was submitted with action.
func (r *SQLRepository) GetForOwner(ctx context.Context, taskID uuid.UUID, owner, action string) (*Result, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+resultColumns+`
		FROM results r
		JOIN tasks t ON t.id = r.task_id
		WHERE r.task_id = ? AND t.owner = ? AND t.action = ?`,
		taskID[:], owner, action)
	return scanOne(row)
}

func scanOne(row *sql.Row) (*Result, error) {
	var (
		res                   Result
		id                    []byte
		status                string
		payload, reason, code sql.NullString
		allocation            sql.NullString
		createdAt             string
	)
	err := row.Scan(&id, &status, &payload, &reason, &code, &allocation, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying result: %w", err)
	}

	if res.TaskID, err = uuid.FromBytes(id); err != nil {
		return nil, fmt.Errorf("decoding task id: %w", err)
	}
	res.Status = Status(status)
	if payload.Valid {
		res.Result = &payload.String
	}
	if reason.Valid {
		res.Reason = &reason.String
	}
	if code.Valid {
		res.TranspiledCode = &code.String
	}
	if allocation.Valid {
		if err := json.Unmarshal([]byte(allocation.String), &res.QubitAllocation); err != nil {
			return nil, fmt.Errorf("unmarshalling qubit_allocation: %w", err)
		}
	}
	if res.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return &res, nil
}
