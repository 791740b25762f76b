package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/database"
)

// Repository is the device store.
type Repository interface {
	// GetByID returns ErrNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List returns every device ordered by ID.
	List(ctx context.Context) ([]Device, error)

	// Create returns ErrExists if the ID is taken.
	Create(ctx context.Context, d *Device) error

	// Upsert inserts d or refreshes the administered fields of an existing
	// device, leaving provider-managed state alone.
	Upsert(ctx context.Context, d *Device) error

	// Apply runs cmd against the stored device in one transaction and
	// returns the updated device.
	Apply(ctx context.Context, id string, cmd Command) (*Device, error)
}

// SQLRepository implements Repository for SQLite and PostgreSQL.
type SQLRepository struct {
	db *database.DB
}

// NewSQLRepository creates a repository over an open, migrated database.
func NewSQLRepository(db *database.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

const deviceColumns = `id, device_type, status, available_at, pending_tasks, n_qubits, n_nodes,
	basis_gates, instructions, calibration_data, calibrated_at, description, created_at, updated_at`

// GetByID retrieves a device by ID.
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	return getByID(ctx, r.db, id)
}

func getByID(ctx context.Context, q database.Querier, id string) (*Device, error) {
	row := q.QueryRowContext(ctx, `SELECT `+deviceColumns+` FROM devices WHERE id = ?`, id)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// List retrieves all devices.
func (r *SQLRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+deviceColumns+` FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Create inserts a new device after validating it.
func (r *SQLRepository) Create(ctx context.Context, d *Device) error {
	if err := Validate(d); err != nil {
		return err
	}
	now := database.Now()
	d.CreatedAt, d.UpdatedAt = now, now

	args, err := insertArgs(d)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Upsert inserts a device or refreshes device_type, n_qubits, n_nodes,
// basis_gates, instructions and description of an existing one.
func (r *SQLRepository) Upsert(ctx context.Context, d *Device) error {
	if err := Validate(d); err != nil {
		return err
	}
	now := database.Now()
	d.CreatedAt, d.UpdatedAt = now, now

	args, err := insertArgs(d)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (`+deviceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			device_type = excluded.device_type,
			n_qubits = excluded.n_qubits,
			n_nodes = excluded.n_nodes,
			basis_gates = excluded.basis_gates,
			instructions = excluded.instructions,
			description = excluded.description,
			updated_at = excluded.updated_at`, args...)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// Apply executes cmd against device id in a single read-modify-write
// transaction. Command rejections are returned as *UpdateError.
func (r *SQLRepository) Apply(ctx context.Context, id string, cmd Command) (*Device, error) {
	var updated *Device
	err := r.db.InTx(ctx, func(tx *database.Tx) error {
		d, err := getByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := cmd.apply(d); err != nil {
			return err
		}
		d.UpdatedAt = database.Now()

		_, err = tx.ExecContext(ctx, `
			UPDATE devices
			SET status = ?, available_at = ?, pending_tasks = ?,
				calibration_data = ?, calibrated_at = ?, updated_at = ?
			WHERE id = ?`,
			string(d.Status),
			database.NullableTime(d.AvailableAt),
			d.PendingTasks,
			database.NullableString(d.CalibrationData),
			database.NullableTime(d.CalibratedAt),
			database.FormatTime(d.UpdatedAt),
			d.ID,
		)
		if err != nil {
			return fmt.Errorf("updating device: %w", err)
		}
		updated = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func insertArgs(d *Device) ([]any, error) {
	basisGates, err := marshalStrings(d.BasisGates)
	if err != nil {
		return nil, fmt.Errorf("marshalling basis_gates: %w", err)
	}
	instructions, err := marshalStrings(d.Instructions)
	if err != nil {
		return nil, fmt.Errorf("marshalling instructions: %w", err)
	}
	return []any{
		d.ID,
		string(d.Type),
		string(d.Status),
		database.NullableTime(d.AvailableAt),
		d.PendingTasks,
		d.NQubits,
		database.NullableInt(d.NNodes),
		basisGates,
		instructions,
		database.NullableString(d.CalibrationData),
		database.NullableTime(d.CalibratedAt),
		d.Description,
		database.FormatTime(d.CreatedAt),
		database.FormatTime(d.UpdatedAt),
	}, nil
}

func marshalStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var (
		deviceType, status        string
		availableAt, calibratedAt sql.NullString
		nNodes                    sql.NullInt64
		basisGates, instructions  string
		calibrationData           sql.NullString
		createdAt, updatedAt      string
	)

	err := s.Scan(
		&d.ID, &deviceType, &status, &availableAt, &d.PendingTasks, &d.NQubits, &nNodes,
		&basisGates, &instructions, &calibrationData, &calibratedAt, &d.Description,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Type = Type(deviceType)
	d.Status = Status(status)

	if d.AvailableAt, err = parseNullableTime(availableAt); err != nil {
		return nil, err
	}
	if d.CalibratedAt, err = parseNullableTime(calibratedAt); err != nil {
		return nil, err
	}
	if nNodes.Valid {
		n := int(nNodes.Int64)
		d.NNodes = &n
	}
	if calibrationData.Valid {
		d.CalibrationData = &calibrationData.String
	}
	if err := json.Unmarshal([]byte(basisGates), &d.BasisGates); err != nil {
		return nil, fmt.Errorf("unmarshalling basis_gates: %w", err)
	}
	if err := json.Unmarshal([]byte(instructions), &d.Instructions); err != nil {
		return nil, fmt.Errorf("unmarshalling instructions: %w", err)
	}
	if d.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := database.ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
