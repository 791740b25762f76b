package device

import (
	"fmt"
	"regexp"
)

// idPattern limits device IDs to characters that are safe in URL paths
// and MQTT topic levels.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Validate checks a device definition before it is stored. Provider
// updates are checked by their commands instead.
func Validate(d *Device) error {
	if !idPattern.MatchString(d.ID) {
		return fmt.Errorf("%w: id %q must match %s", ErrInvalidDevice, d.ID, idPattern)
	}
	switch d.Type {
	case TypeQPU, TypeSimulator:
	default:
		return fmt.Errorf("%w: device_type must be %q or %q, got %q", ErrInvalidDevice, TypeQPU, TypeSimulator, d.Type)
	}
	switch d.Status {
	case StatusAvailable:
		if d.AvailableAt != nil {
			return fmt.Errorf("%w: available_at must be empty for an available device", ErrInvalidDevice)
		}
	case StatusUnavailable:
		if d.AvailableAt == nil {
			return fmt.Errorf("%w: available_at is required for an unavailable device", ErrInvalidDevice)
		}
	default:
		return fmt.Errorf("%w: status must be %q or %q, got %q", ErrInvalidDevice, StatusAvailable, StatusUnavailable, d.Status)
	}
	if d.NQubits <= 0 {
		return fmt.Errorf("%w: n_qubits must be greater than 0", ErrInvalidDevice)
	}
	if d.PendingTasks < 0 {
		return fmt.Errorf("%w: pending_tasks must be greater than or equal to 0", ErrInvalidDevice)
	}
	if d.NNodes != nil {
		if d.IsQPU() {
			return fmt.Errorf("%w: n_nodes is valid only for simulator devices", ErrInvalidDevice)
		}
		if *d.NNodes <= 0 {
			return fmt.Errorf("%w: n_nodes must be greater than 0", ErrInvalidDevice)
		}
	}
	if (d.CalibrationData == nil) != (d.CalibratedAt == nil) {
		return fmt.Errorf("%w: calibration_data and calibrated_at must be set together", ErrInvalidDevice)
	}
	if d.CalibrationData != nil && !d.IsQPU() {
		return fmt.Errorf("%w: calibration is only supported for QPU devices", ErrInvalidDevice)
	}
	return nil
}
