package device

import "time"

// Type distinguishes physical QPUs from simulators.
type Type string

// Device types.
const (
	TypeQPU       Type = "QPU"
	TypeSimulator Type = "simulator"
)

// Status is the provider-controlled availability of a device.
type Status string

// Device statuses.
const (
	StatusAvailable   Status = "available"
	StatusUnavailable Status = "unavailable"
)

// Device is a backend that executes tasks.
//
// AvailableAt is set exactly when Status is StatusUnavailable. CalibratedAt
// is set exactly when CalibrationData is, and both only for QPUs.
type Device struct {
	ID           string
	Type         Type
	Status       Status
	AvailableAt  *time.Time
	PendingTasks int

	// NQubits is the hard qubit capacity.
	NQubits int

	// NNodes is the node capacity of a simulator; nil for QPUs.
	NNodes *int

	BasisGates   []string
	Instructions []string

	// CalibrationData is opaque JSON supplied by the provider.
	CalibrationData *string
	CalibratedAt    *time.Time

	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsQPU reports whether the device is a physical QPU.
func (d *Device) IsQPU() bool {
	return d.Type == TypeQPU
}

// IsSimulator reports whether the device is a simulator.
func (d *Device) IsSimulator() bool {
	return d.Type == TypeSimulator
}

// IsAvailable reports whether the device accepts submissions.
func (d *Device) IsAvailable() bool {
	return d.Status == StatusAvailable
}

// NodeLimit returns the node capacity, or 0 when none is recorded.
func (d *Device) NodeLimit() int {
	if d.NNodes == nil {
		return 0
	}
	return *d.NNodes
}
