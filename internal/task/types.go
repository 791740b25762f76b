package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of computation a task asks for.
type Action string

// Actions.
const (
	ActionSampling   Action = "sampling"
	ActionEstimation Action = "estimation"
)

// ParseAction returns the action named s.
func ParseAction(s string) (Action, bool) {
	switch Action(s) {
	case ActionSampling, ActionEstimation:
		return Action(s), true
	}
	return "", false
}

// Method is the estimation method.
type Method string

// Estimation methods.
const (
	MethodStateVector Method = "state_vector"
	MethodSampling    Method = "sampling"
)

// ROErrorMitigation is the readout error mitigation applied on a QPU.
type ROErrorMitigation string

// Readout error mitigation modes.
const (
	ROMitigationNone          ROErrorMitigation = "none"
	ROMitigationPseudoInverse ROErrorMitigation = "pseudo_inverse"
	ROMitigationLeastSquare   ROErrorMitigation = "least_square"
)

// Task is a stored quantum computation request.
type Task struct {
	ID     uuid.UUID
	Owner  string
	Name   *string
	Device string

	// Exactly one of NQubits and NNodes is set on simulators; QPUs never
	// carry NNodes.
	NQubits *int
	NNodes  *int

	Code   string
	Action Action

	// Method and Operator are set only for estimation.
	Method   *Method
	Shots    *int
	Operator []OperatorTerm

	QubitAllocation   map[string]int
	SkipTranspilation bool
	SeedTranspilation *int
	SeedSimulation    *int
	ROErrorMitigation *ROErrorMitigation
	NPerNode          *int
	SimulationOpt     json.RawMessage
	Note              *string

	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Transition records one accepted status change.
type Transition struct {
	Task *Task
	From Status
	To   Status
}
