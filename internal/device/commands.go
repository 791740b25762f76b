package device

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command names carried in the "command" discriminator.
const (
	CommandStatusUpdate      = "DeviceStatusUpdate"
	CommandPendingJobsUpdate = "DevicePendingJobsUpdate"
	CommandCalibrationUpdate = "DeviceCalibrationUpdate"
)

// Command is one provider-side device mutation. The set of implementations
// is closed; use DecodeCommand to build one from a request body.
type Command interface {
	// Name returns the discriminator value.
	Name() string

	// apply checks the command against d and mutates it in place.
	apply(d *Device) error
}

// StatusUpdate changes availability.
type StatusUpdate struct {
	Status      Status     `json:"status"`
	AvailableAt *time.Time `json:"available_at"`
}

// PendingJobsUpdate records the provider's queue depth.
type PendingJobsUpdate struct {
	NPendingJobs *int `json:"n_pending_jobs"`
}

// CalibrationUpdate replaces a QPU's calibration data.
type CalibrationUpdate struct {
	DeviceInfo   *string    `json:"device_info"`
	CalibratedAt *time.Time `json:"calibrated_at"`
}

// Name implements Command.
func (StatusUpdate) Name() string { return CommandStatusUpdate }

// Name implements Command.
func (PendingJobsUpdate) Name() string { return CommandPendingJobsUpdate }

// Name implements Command.
func (CalibrationUpdate) Name() string { return CommandCalibrationUpdate }

func (c StatusUpdate) apply(d *Device) error {
	switch c.Status {
	case StatusUnavailable:
		if c.AvailableAt == nil {
			return rejectUpdate("available_at is required for status unavailable")
		}
		at := c.AvailableAt.UTC()
		d.Status = StatusUnavailable
		d.AvailableAt = &at
	case StatusAvailable:
		if c.AvailableAt != nil {
			return rejectUpdate("available_at is not required for status available")
		}
		d.Status = StatusAvailable
		d.AvailableAt = nil
	default:
		return rejectUpdate("status should be either 'available' or 'unavailable'")
	}
	return nil
}

func (c PendingJobsUpdate) apply(d *Device) error {
	if c.NPendingJobs == nil {
		return rejectUpdate("n_pending_jobs is required")
	}
	if *c.NPendingJobs < 0 {
		return rejectUpdate("n_pending_jobs must be greater than or equal to 0")
	}
	d.PendingTasks = *c.NPendingJobs
	return nil
}

func (c CalibrationUpdate) apply(d *Device) error {
	if !d.IsQPU() {
		return rejectUpdate("Calibration is only supported for QPU devices")
	}
	if c.DeviceInfo == nil {
		return rejectUpdate("device_info is required")
	}
	if c.CalibratedAt == nil {
		return rejectUpdate("calibrated_at is required")
	}
	info := *c.DeviceInfo
	at := c.CalibratedAt.UTC()
	d.CalibrationData = &info
	d.CalibratedAt = &at
	return nil
}

// DecodeCommand reads the "command" discriminator and decodes the rest of
// body into the matching command type.
//
// Returns:
//   - Command: The decoded command
//   - error: An *UpdateError for a missing or unknown discriminator or a
//     body that does not match the command's shape
func DecodeCommand(body []byte) (Command, error) {
	var head struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, rejectUpdate(fmt.Sprintf("invalid request body: %v", err))
	}

	var cmd Command
	var err error
	switch head.Command {
	case CommandStatusUpdate:
		var c StatusUpdate
		err = json.Unmarshal(body, &c)
		cmd = c
	case CommandPendingJobsUpdate:
		var c PendingJobsUpdate
		err = json.Unmarshal(body, &c)
		cmd = c
	case CommandCalibrationUpdate:
		var c CalibrationUpdate
		err = json.Unmarshal(body, &c)
		cmd = c
	case "":
		return nil, rejectUpdate("command is required")
	default:
		return nil, rejectUpdate("unknown command: " + head.Command)
	}
	if err != nil {
		return nil, rejectUpdate(fmt.Sprintf("invalid %s body: %v", head.Command, err))
	}
	return cmd, nil
}
