package task

import (
	"bytes"
	"encoding/json"

	"github.com/nerrad567/quantum-task-core/internal/device"
)

// Submission is a task request as received from a user, before defaults.
// Nil pointers mean the field was omitted.
type Submission struct {
	Owner  string
	Action Action
	Name   *string
	Device string
	Code   string

	NQubits *int
	NNodes  *int

	Method   *string
	Shots    *int
	Operator json.RawMessage

	QubitAllocation   map[string]int
	SkipTranspilation *bool
	SeedTranspilation *int
	SeedSimulation    *int
	ROErrorMitigation *string
	NPerNode          *int
	SimulationOpt     json.RawMessage
	Note              *string
}

// Validate checks sub against dev and returns the normalized task with
// every default applied. dev is nil when the referenced device does not
// exist. Checks run in a fixed order and the first failure is returned as
// a *Rejection; Validate never touches the store.
func Validate(sub *Submission, dev *device.Device) (*Task, error) {
	if dev == nil {
		return nil, reject("device", "device not found")
	}
	if !dev.IsAvailable() {
		return nil, reject("device", "device %s is not available", dev.ID)
	}
	if sub.Code == "" {
		return nil, reject("code", "code is required")
	}

	t := &Task{
		Owner:  sub.Owner,
		Name:   sub.Name,
		Device: dev.ID,
		Code:   sub.Code,
		Action: sub.Action,
		Note:   sub.Note,
		Status: StatusQueued,
	}

	steps := []func(*Submission, *device.Device, *Task) *Rejection{
		validateResources,
		validateQubitAllocation,
		validateTranspilation,
		validateSeedSimulation,
		validateROErrorMitigation,
		validateNPerNode,
		validateSimulationOpt,
		validateAction,
	}
	for _, step := range steps {
		if r := step(sub, dev, t); r != nil {
			return nil, r
		}
	}
	return t, nil
}

func positive(field string, v *int) *Rejection {
	if v != nil && *v <= 0 {
		return reject(field, "%s must be greater than 0", field)
	}
	return nil
}

func validateResources(sub *Submission, dev *device.Device, t *Task) *Rejection {
	if r := positive("nQubits", sub.NQubits); r != nil {
		return r
	}
	if r := positive("nNodes", sub.NNodes); r != nil {
		return r
	}

	if dev.IsSimulator() {
		if sub.NQubits != nil && sub.NNodes != nil {
			return reject("nQubits", "nQubits and nNodes parameters are exclusive")
		}
		if sub.NQubits != nil {
			if *sub.NQubits > dev.NQubits {
				return reject("nQubits", "Requested nQubits: %d exceeds limit for device %s (limit = %d)", *sub.NQubits, dev.ID, dev.NQubits)
			}
			t.NQubits = sub.NQubits
			return nil
		}
		nodes := 1
		if sub.NNodes != nil {
			nodes = *sub.NNodes
			if nodes > dev.NodeLimit() {
				return reject("nNodes", "Requested nNodes: %d exceeds limit for device %s (limit = %d)", nodes, dev.ID, dev.NodeLimit())
			}
		}
		t.NNodes = &nodes
		return nil
	}

	if sub.NQubits != nil {
		if *sub.NQubits > dev.NQubits {
			return reject("nQubits", "Requested nQubits: %d exceeds limit for device %s (limit = %d)", *sub.NQubits, dev.ID, dev.NQubits)
		}
		t.NQubits = sub.NQubits
	}
	if sub.NNodes != nil {
		return reject("nNodes", "nNodes parameter not supported for device: '%s' (deviceType: %s). nNodes requires deviceType: 'simulator'.", dev.ID, dev.Type)
	}
	return nil
}

func validateQubitAllocation(sub *Submission, dev *device.Device, t *Task) *Rejection {
	if sub.QubitAllocation == nil {
		return nil
	}
	if !dev.IsQPU() {
		return reject("qubitAllocation", "qubitAllocation is valid only for QPU devices")
	}
	t.QubitAllocation = sub.QubitAllocation
	return nil
}

func validateTranspilation(sub *Submission, _ *device.Device, t *Task) *Rejection {
	if sub.SkipTranspilation != nil {
		t.SkipTranspilation = *sub.SkipTranspilation
	}
	if sub.SeedTranspilation != nil {
		if t.SkipTranspilation {
			return reject("seedTranspilation", "seedTranspilation is valid only for transpilation enabled tasks")
		}
		t.SeedTranspilation = sub.SeedTranspilation
	}
	return nil
}

func validateSeedSimulation(sub *Submission, dev *device.Device, t *Task) *Rejection {
	if sub.SeedSimulation == nil {
		return nil
	}
	if !dev.IsSimulator() {
		return reject("seedSimulation", "seedSimulation is valid only for simulator devices")
	}
	t.SeedSimulation = sub.SeedSimulation
	return nil
}

// validateROErrorMitigation accepts an explicit "none" on simulators but
// stores nothing for them.
func validateROErrorMitigation(sub *Submission, dev *device.Device, t *Task) *Rejection {
	mode := ROMitigationNone
	if sub.ROErrorMitigation != nil {
		mode = ROErrorMitigation(*sub.ROErrorMitigation)
		switch mode {
		case ROMitigationNone, ROMitigationPseudoInverse, ROMitigationLeastSquare:
		default:
			return reject("roErrorMitigation", "roErrorMitigation should be one of 'none', 'pseudo_inverse' or 'least_square'")
		}
	}
	if !dev.IsQPU() {
		if mode != ROMitigationNone {
			return reject("roErrorMitigation", "roErrorMitigation is valid only for QPU devices")
		}
		return nil
	}
	t.ROErrorMitigation = &mode
	return nil
}

func validateNPerNode(sub *Submission, dev *device.Device, t *Task) *Rejection {
	if sub.NPerNode != nil {
		if !dev.IsSimulator() {
			return reject("nPerNode", "nPerNode is valid only for simulator devices")
		}
		if r := positive("nPerNode", sub.NPerNode); r != nil {
			return r
		}
		t.NPerNode = sub.NPerNode
		return nil
	}
	if dev.IsSimulator() {
		one := 1
		t.NPerNode = &one
	}
	return nil
}

// absent reports whether a raw JSON field was omitted or null.
func absent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func validateSimulationOpt(sub *Submission, dev *device.Device, t *Task) *Rejection {
	if absent(sub.SimulationOpt) {
		return nil
	}
	opt := bytes.TrimSpace(sub.SimulationOpt)
	if !dev.IsSimulator() {
		return reject("simulationOpt", "simulationOpt is valid only for simulator devices")
	}
	var obj map[string]any
	if err := json.Unmarshal(opt, &obj); err != nil || obj == nil {
		return reject("simulationOpt", "simulationOpt must be a JSON object")
	}
	t.SimulationOpt = json.RawMessage(opt)
	return nil
}

func validateAction(sub *Submission, dev *device.Device, t *Task) *Rejection {
	switch sub.Action {
	case ActionSampling:
		if sub.Shots == nil {
			return reject("nShots", "nShots is mandatory for sampling action")
		}
		if r := positive("nShots", sub.Shots); r != nil {
			return r
		}
		t.Shots = sub.Shots
		return nil
	case ActionEstimation:
		return validateEstimation(sub, dev, t)
	default:
		return reject("action", "action should be either 'sampling' or 'estimation'")
	}
}

func validateEstimation(sub *Submission, dev *device.Device, t *Task) *Rejection {
	if sub.Method == nil {
		return reject("method", "method should be either 'state_vector' or 'sampling'")
	}
	method := Method(*sub.Method)
	switch method {
	case MethodStateVector:
		if !dev.IsSimulator() {
			return reject("method", "state_vector method is valid only for simulator devices")
		}
		if sub.Shots != nil {
			return reject("nShots", "nShots is not valid for state_vector method")
		}
	case MethodSampling:
		if sub.Shots == nil {
			return reject("nShots", "nShots is mandatory for sampling method")
		}
		if r := positive("nShots", sub.Shots); r != nil {
			return r
		}
		t.Shots = sub.Shots
	default:
		return reject("method", "method should be either 'state_vector' or 'sampling'")
	}
	t.Method = &method

	if absent(sub.Operator) {
		return reject("operator", "operator is mandatory for estimation action")
	}
	terms, r := parseOperator(sub.Operator)
	if r != nil {
		return r
	}
	t.Operator = terms
	return nil
}
