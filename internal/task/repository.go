package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/database"
	"github.com/nerrad567/quantum-task-core/internal/result"
)

// CancelReason is recorded on the result of a task cancelled before any
// provider claimed it.
const CancelReason = "user cancelled"

// Filter narrows a provider task listing. Zero values match everything;
// a non-nil MaxResults caps the listing, zero included.
type Filter struct {
	DeviceID     string
	Status       Status
	CreatedAfter *time.Time
	MaxResults   *int
}

// Repository is the task store.
type Repository interface {
	Create(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*Task, error)
	GetForOwner(ctx context.Context, id uuid.UUID, owner string, action Action) (*Task, error)
	ListForOwner(ctx context.Context, owner string, action Action) ([]Task, error)
	ListAllForOwner(ctx context.Context, owner string) ([]Task, error)
	List(ctx context.Context, f Filter) ([]Task, error)
	Fetch(ctx context.Context, deviceID string, desired Status, maxResults *int) ([]Transition, error)
	Cancel(ctx context.Context, id uuid.UUID, owner string, action Action) (Transition, error)
	Delete(ctx context.Context, id uuid.UUID, owner string, action Action) (*Task, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (Transition, error)
}

// SQLRepository implements Repository for SQLite and PostgreSQL.
type SQLRepository struct {
	db *database.DB
}

// NewSQLRepository creates a repository over an open, migrated database.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const taskColumns = `id, owner, name, device, n_qubits, n_nodes, code, action, method, shots,
	operator, qubit_allocation, skip_transpilation, seed_transpilation, seed_simulation,
	ro_error_mitigation, n_per_node, simulation_opt, note, status, created_at, updated_at`

// Create stores a validated task as QUEUED, assigning its ID and timestamps.
func (r *SQLRepository) Create(ctx context.Context, t *Task) error {
	t.ID = uuid.New()
	t.Status = StatusQueued
	if t.CreatedAt.IsZero() {
		t.CreatedAt = database.Now()
	}
	t.UpdatedAt = t.CreatedAt

	operator, err := encodeOperator(t.Operator)
	if err != nil {
		return err
	}
	allocation, err := encodeAllocation(t.QubitAllocation)
	if err != nil {
		return err
	}

	var method, ro, simOpt any
	if t.Method != nil {
		method = string(*t.Method)
	}
	if t.ROErrorMitigation != nil {
		ro = string(*t.ROErrorMitigation)
	}
	if len(t.SimulationOpt) > 0 {
		simOpt = string(t.SimulationOpt)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID[:],
		t.Owner,
		database.NullableString(t.Name),
		t.Device,
		database.NullableInt(t.NQubits),
		database.NullableInt(t.NNodes),
		t.Code,
		string(t.Action),
		method,
		database.NullableInt(t.Shots),
		operator,
		allocation,
		database.BoolToInt(t.SkipTranspilation),
		database.NullableInt(t.SeedTranspilation),
		database.NullableInt(t.SeedSimulation),
		ro,
		database.NullableInt(t.NPerNode),
		simOpt,
		database.NullableString(t.Note),
		string(t.Status),
		database.FormatTime(t.CreatedAt),
		database.FormatTime(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// GetByID returns a task regardless of owner.
func (r *SQLRepository) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	return getOne(ctx, r.db, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id[:])
}

// GetForOwner returns a task only when owner and action match.
func (r *SQLRepository) GetForOwner(ctx context.Context, id uuid.UUID, owner string, action Action) (*Task, error) {
	return getForOwner(ctx, r.db, id, owner, action)
}

func getForOwner(ctx context.Context, q database.Querier, id uuid.UUID, owner string, action Action) (*Task, error) {
	return getOne(ctx, q,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND owner = ? AND action = ?`,
		id[:], owner, string(action))
}

// ListForOwner returns an owner's tasks of one action, oldest first.
func (r *SQLRepository) ListForOwner(ctx context.Context, owner string, action Action) ([]Task, error) {
	return queryTasks(ctx, r.db,
		`SELECT `+taskColumns+` FROM tasks WHERE owner = ? AND action = ? ORDER BY created_at, id`,
		owner, string(action))
}

// ListAllForOwner returns every task of an owner, oldest first.
func (r *SQLRepository) ListAllForOwner(ctx context.Context, owner string) ([]Task, error) {
	return queryTasks(ctx, r.db,
		`SELECT `+taskColumns+` FROM tasks WHERE owner = ? ORDER BY created_at, id`, owner)
}

// List returns tasks matching f, oldest first, without claiming them.
func (r *SQLRepository) List(ctx context.Context, f Filter) ([]Task, error) {
	var (
		where []string
		args  []any
	)
	if f.DeviceID != "" {
		where = append(where, "device = ?")
		args = append(args, f.DeviceID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.CreatedAfter != nil {
		where = append(where, "created_at > ?")
		args = append(args, database.FormatTime(*f.CreatedAfter))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at, id`
	if f.MaxResults != nil {
		query += ` LIMIT ?`
		args = append(args, *f.MaxResults)
	}
	return queryTasks(ctx, r.db, query, args...)
}

// Fetch claims up to maxResults tasks of a device for a provider poll.
// A nil maxResults claims every match; zero claims nothing.
//
// For StatusQueued it claims the oldest QUEUED tasks and moves them to
// QUEUED_FETCHED. For StatusCancelling it claims tasks of the device in
// any status and moves them to CANCELLING_FETCHED. Selection and update
// run in one transaction; PostgreSQL additionally skips rows locked by a
// concurrent poll, so no task is claimed twice.
//
// Returns:
//   - []Transition: The claimed tasks after the update, with their prior status
//   - error: ErrInvalidStatus for any other desired status
func (r *SQLRepository) Fetch(ctx context.Context, deviceID string, desired Status, maxResults *int) ([]Transition, error) {
	var (
		target Status
		query  = `SELECT ` + taskColumns + ` FROM tasks WHERE device = ?`
		args   = []any{deviceID}
	)
	switch desired {
	case StatusQueued:
		target = StatusQueuedFetched
		query += ` AND status = ?`
		args = append(args, string(StatusQueued))
	case StatusCancelling:
		// Claims every task of the device regardless of its status.
		target = StatusCancellingFetched
	default:
		return nil, ErrInvalidStatus
	}
	query += ` ORDER BY created_at, id`
	if maxResults != nil {
		query += ` LIMIT ?`
		args = append(args, *maxResults)
	}

	var claimed []Transition
	err := r.db.InTx(ctx, func(tx *database.Tx) error {
		tasks, err := queryTasks(ctx, tx, query+tx.Dialect().ClaimClause(), args...)
		if err != nil {
			return err
		}

		now := database.Now()
		for i := range tasks {
			t := &tasks[i]
			if err := setStatus(ctx, tx, t.ID, target, now); err != nil {
				return err
			}
			from := t.Status
			t.Status, t.UpdatedAt = target, now
			claimed = append(claimed, Transition{Task: t, From: from, To: target})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Cancel handles a user cancellation. A QUEUED task becomes CANCELLED
// together with a CANCELLED result, unless one is already attached; a
// claimed or running task becomes CANCELLING and is finalized by its
// provider.
//
// Returns:
//   - Transition: The applied change
//   - error: ErrNotFound, or ErrNotCancellable for any other status
func (r *SQLRepository) Cancel(ctx context.Context, id uuid.UUID, owner string, action Action) (Transition, error) {
	var tr Transition
	err := r.db.InTx(ctx, func(tx *database.Tx) error {
		t, err := getForOwner(ctx, tx, id, owner, action)
		if err != nil {
			return err
		}
		if !t.Status.Cancellable() {
			return ErrNotCancellable
		}

		now := database.Now()
		target := StatusCancelling
		if t.Status == StatusQueued {
			target = StatusCancelled
			if err := recordCancellation(ctx, tx, t.ID, now); err != nil {
				return err
			}
		}

		if err := setStatus(ctx, tx, t.ID, target, now); err != nil {
			return err
		}
		tr = Transition{Task: t, From: t.Status, To: target}
		t.Status, t.UpdatedAt = target, now
		return nil
	})
	return tr, err
}

// recordCancellation writes the CANCELLED result of a task cancelled before
// any claim. A result already attached by a provider is kept as it is.
func recordCancellation(ctx context.Context, tx *database.Tx, id uuid.UUID, now time.Time) error {
	exists, err := result.Exists(ctx, tx, id)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	reason := CancelReason
	err = result.Insert(ctx, tx, &result.Result{
		TaskID:    id,
		Status:    result.StatusCancelled,
		Reason:    &reason,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("recording cancellation result: %w", err)
	}
	return nil
}

// Delete removes a finished task owned by owner; its result cascades.
//
// Returns:
//   - *Task: The deleted task
//   - error: ErrNotFound, or ErrNotDeletable if the task has not finished
func (r *SQLRepository) Delete(ctx context.Context, id uuid.UUID, owner string, action Action) (*Task, error) {
	var deleted *Task
	err := r.db.InTx(ctx, func(tx *database.Tx) error {
		t, err := getForOwner(ctx, tx, id, owner, action)
		if err != nil {
			return err
		}
		if !t.Status.IsTerminal() {
			return ErrNotDeletable
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id[:]); err != nil {
			return fmt.Errorf("deleting task: %w", err)
		}
		deleted = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// UpdateStatus applies a provider status push. The task must be claimed
// (QUEUED_FETCHED, RUNNING or CANCELLING_FETCHED) and the target must be
// reachable from its current status.
//
// Returns:
//   - Transition: The applied change
//   - error: ErrNotFound, or a *TransitionError
func (r *SQLRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (Transition, error) {
	var tr Transition
	err := r.db.InTx(ctx, func(tx *database.Tx) error {
		t, err := getOne(ctx, tx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id[:])
		if err != nil {
			return err
		}
		if !t.Status.ProviderUpdatable() {
			return ErrNotFound
		}
		if !CanTransition(t.Status, to) {
			return &TransitionError{From: t.Status, To: to}
		}

		now := database.Now()
		if err := setStatus(ctx, tx, t.ID, to, now); err != nil {
			return err
		}
		tr = Transition{Task: t, From: t.Status, To: to}
		t.Status, t.UpdatedAt = to, now
		return nil
	})
	return tr, err
}

func setStatus(ctx context.Context, q database.Querier, id uuid.UUID, to Status, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), database.FormatTime(now), id[:])
	if err != nil {
		return fmt.Errorf("updating task status: %w", err)
	}
	return nil
}

func encodeAllocation(m map[string]int) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshalling qubit_allocation: %w", err)
	}
	return string(b), nil
}

func getOne(ctx context.Context, q database.Querier, query string, args ...any) (*Task, error) {
	t, err := scanTask(q.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return t, nil
}

func queryTasks(ctx context.Context, q database.Querier, query string, args ...any) ([]Task, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	tasks := []Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var (
		t                                  Task
		id                                 []byte
		name, method, operator, allocation sql.NullString
		ro, simOpt, note                   sql.NullString
		nQubits, nNodes, shots, nPerNode   sql.NullInt64
		seedTranspilation, seedSimulation  sql.NullInt64
		action, status                     string
		skip                               int64
		createdAt, updatedAt               string
	)

	err := s.Scan(
		&id, &t.Owner, &name, &t.Device, &nQubits, &nNodes, &t.Code, &action, &method, &shots,
		&operator, &allocation, &skip, &seedTranspilation, &seedSimulation,
		&ro, &nPerNode, &simOpt, &note, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if t.ID, err = uuid.FromBytes(id); err != nil {
		return nil, fmt.Errorf("decoding task id: %w", err)
	}
	t.Action = Action(action)
	t.Status = Status(status)
	t.SkipTranspilation = skip != 0
	t.Name = nullString(name)
	t.Note = nullString(note)
	t.NQubits = nullInt(nQubits)
	t.NNodes = nullInt(nNodes)
	t.Shots = nullInt(shots)
	t.NPerNode = nullInt(nPerNode)
	t.SeedTranspilation = nullInt(seedTranspilation)
	t.SeedSimulation = nullInt(seedSimulation)

	if method.Valid {
		m := Method(method.String)
		t.Method = &m
	}
	if ro.Valid {
		mode := ROErrorMitigation(ro.String)
		t.ROErrorMitigation = &mode
	}
	if simOpt.Valid {
		t.SimulationOpt = json.RawMessage(simOpt.String)
	}
	if operator.Valid {
		if t.Operator, err = decodeOperator(operator.String); err != nil {
			return nil, err
		}
	}
	if allocation.Valid {
		if err := json.Unmarshal([]byte(allocation.String), &t.QubitAllocation); err != nil {
			return nil, fmt.Errorf("unmarshalling qubit_allocation: %w", err)
		}
	}
	if t.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	i := int(ni.Int64)
	return &i
}
