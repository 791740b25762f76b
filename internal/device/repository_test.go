package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/database/dbtest"
)

func intPtr(i int) *int { return &i }

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func testQPU() *Device {
	return &Device{
		ID:           "SC2",
		Type:         TypeQPU,
		Status:       StatusAvailable,
		NQubits:      39,
		BasisGates:   []string{"sx", "rz", "cx"},
		Instructions: []string{"measure", "barrier"},
		Description:  "superconducting QPU",
	}
}

func testSimulator() *Device {
	return &Device{
		ID:      "SVSim",
		Type:    TypeSimulator,
		Status:  StatusAvailable,
		NQubits: 39,
		NNodes:  intPtr(512),
	}
}

func setupRepo(t *testing.T) *SQLRepository {
	t.Helper()
	return NewSQLRepository(dbtest.Open(t))
}

func TestCreateAndGet(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testQPU()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "SC2")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Type != TypeQPU || got.NQubits != 39 || got.Status != StatusAvailable {
		t.Errorf("GetByID() = %+v", got)
	}
	if len(got.BasisGates) != 3 || got.BasisGates[2] != "cx" {
		t.Errorf("BasisGates = %v", got.BasisGates)
	}
	if got.NNodes != nil || got.AvailableAt != nil || got.CalibrationData != nil {
		t.Errorf("unexpected optional fields: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCreate_Duplicate(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testQPU()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, testQPU()); !errors.Is(err, ErrExists) {
		t.Errorf("Create() duplicate error = %v, want ErrExists", err)
	}
}

func TestCreate_Invalid(t *testing.T) {
	repo := setupRepo(t)
	d := testQPU()
	d.NQubits = 0
	if err := repo.Create(context.Background(), d); !errors.Is(err, ErrInvalidDevice) {
		t.Errorf("Create() error = %v, want ErrInvalidDevice", err)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := setupRepo(t)
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for _, d := range []*Device{testSimulator(), testQPU()} {
		if err := repo.Create(ctx, d); err != nil {
			t.Fatalf("Create(%s) error = %v", d.ID, err)
		}
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(devices) != 2 || devices[0].ID != "SC2" || devices[1].ID != "SVSim" {
		t.Fatalf("List() = %+v", devices)
	}
	if devices[1].NodeLimit() != 512 {
		t.Errorf("NodeLimit() = %d, want 512", devices[1].NodeLimit())
	}
}

func TestUpsert_PreservesProviderState(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, testQPU()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	restart := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if _, err := repo.Apply(ctx, "SC2", StatusUpdate{Status: StatusUnavailable, AvailableAt: &restart}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	seed := testQPU()
	seed.Description = "refreshed"
	seed.NQubits = 64
	if err := repo.Upsert(ctx, seed); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "SC2")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Description != "refreshed" || got.NQubits != 64 {
		t.Errorf("administered fields not refreshed: %+v", got)
	}
	if got.Status != StatusUnavailable || got.AvailableAt == nil || !got.AvailableAt.Equal(restart) {
		t.Errorf("provider state overwritten: status=%s available_at=%v", got.Status, got.AvailableAt)
	}
}

func TestApply(t *testing.T) {
	restart := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calibrated := time.Date(2026, 2, 28, 6, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		deviceID   string
		cmd        Command
		wantDetail string
		check      func(t *testing.T, d *Device)
	}{
		{
			name:     "unavailable with available_at",
			deviceID: "SC2",
			cmd:      StatusUpdate{Status: StatusUnavailable, AvailableAt: &restart},
			check: func(t *testing.T, d *Device) {
				if d.Status != StatusUnavailable || d.AvailableAt == nil || !d.AvailableAt.Equal(restart) {
					t.Errorf("device = %+v", d)
				}
			},
		},
		{
			name:       "unavailable without available_at",
			deviceID:   "SC2",
			cmd:        StatusUpdate{Status: StatusUnavailable},
			wantDetail: "available_at is required for status unavailable",
		},
		{
			name:       "available with available_at",
			deviceID:   "SC2",
			cmd:        StatusUpdate{Status: StatusAvailable, AvailableAt: &restart},
			wantDetail: "available_at is not required for status available",
		},
		{
			name:     "pending jobs",
			deviceID: "SVSim",
			cmd:      PendingJobsUpdate{NPendingJobs: intPtr(7)},
			check: func(t *testing.T, d *Device) {
				if d.PendingTasks != 7 {
					t.Errorf("PendingTasks = %d, want 7", d.PendingTasks)
				}
			},
		},
		{
			name:       "pending jobs missing",
			deviceID:   "SVSim",
			cmd:        PendingJobsUpdate{},
			wantDetail: "n_pending_jobs is required",
		},
		{
			name:       "pending jobs negative",
			deviceID:   "SVSim",
			cmd:        PendingJobsUpdate{NPendingJobs: intPtr(-1)},
			wantDetail: "n_pending_jobs must be greater than or equal to 0",
		},
		{
			name:     "calibration on QPU",
			deviceID: "SC2",
			cmd:      CalibrationUpdate{DeviceInfo: strPtr(`{"t1":{"0":55.5}}`), CalibratedAt: &calibrated},
			check: func(t *testing.T, d *Device) {
				if d.CalibrationData == nil || *d.CalibrationData != `{"t1":{"0":55.5}}` {
					t.Errorf("CalibrationData = %v", d.CalibrationData)
				}
				if d.CalibratedAt == nil || !d.CalibratedAt.Equal(calibrated) {
					t.Errorf("CalibratedAt = %v", d.CalibratedAt)
				}
			},
		},
		{
			name:       "calibration on simulator",
			deviceID:   "SVSim",
			cmd:        CalibrationUpdate{DeviceInfo: strPtr("{}"), CalibratedAt: &calibrated},
			wantDetail: "Calibration is only supported for QPU devices",
		},
		{
			name:       "calibration without device_info",
			deviceID:   "SC2",
			cmd:        CalibrationUpdate{CalibratedAt: &calibrated},
			wantDetail: "device_info is required",
		},
		{
			name:       "calibration without calibrated_at",
			deviceID:   "SC2",
			cmd:        CalibrationUpdate{DeviceInfo: strPtr("{}")},
			wantDetail: "calibrated_at is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupRepo(t)
			ctx := context.Background()
			for _, d := range []*Device{testQPU(), testSimulator()} {
				if err := repo.Create(ctx, d); err != nil {
					t.Fatalf("Create() error = %v", err)
				}
			}

			got, err := repo.Apply(ctx, tt.deviceID, tt.cmd)
			if tt.wantDetail != "" {
				var ue *UpdateError
				if !errors.As(err, &ue) || ue.Detail != tt.wantDetail {
					t.Fatalf("Apply() error = %v, want %q", err, tt.wantDetail)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			tt.check(t, got)

			stored, err := repo.GetByID(ctx, tt.deviceID)
			if err != nil {
				t.Fatalf("GetByID() error = %v", err)
			}
			tt.check(t, stored)
		})
	}
}

func TestApply_ClearsAvailableAt(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	if err := repo.Create(ctx, testQPU()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	restart := time.Now().Add(time.Hour)
	if _, err := repo.Apply(ctx, "SC2", StatusUpdate{Status: StatusUnavailable, AvailableAt: &restart}); err != nil {
		t.Fatalf("Apply(unavailable) error = %v", err)
	}
	got, err := repo.Apply(ctx, "SC2", StatusUpdate{Status: StatusAvailable})
	if err != nil {
		t.Fatalf("Apply(available) error = %v", err)
	}
	if got.AvailableAt != nil || !got.IsAvailable() {
		t.Errorf("device = %+v, want available with no available_at", got)
	}
}

func TestApply_DeviceNotFound(t *testing.T) {
	repo := setupRepo(t)
	_, err := repo.Apply(context.Background(), "ghost", PendingJobsUpdate{NPendingJobs: intPtr(1)})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Apply() error = %v, want ErrNotFound", err)
	}
}

func TestApply_RejectionLeavesDeviceUnchanged(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	if err := repo.Create(ctx, testQPU()); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := repo.Apply(ctx, "SC2", StatusUpdate{Status: StatusUnavailable}); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("Apply() error = %v, want ErrInvalidUpdate", err)
	}
	got, err := repo.GetByID(ctx, "SC2")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !got.IsAvailable() {
		t.Errorf("Status = %s, want available", got.Status)
	}
}
