package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/quantum-task-core/internal/device"
	"github.com/nerrad567/quantum-task-core/internal/result"
	"github.com/nerrad567/quantum-task-core/internal/task"
)

// deviceResponse is a device as served to users.
type deviceResponse struct {
	DeviceID              string          `json:"deviceId"`
	DeviceType            device.Type     `json:"deviceType"`
	Status                device.Status   `json:"status"`
	RestartAt             *time.Time      `json:"restartAt"`
	NPendingTasks         int             `json:"nPendingTasks"`
	NQubits               int             `json:"nQubits"`
	NNodes                *int            `json:"nNodes"`
	BasisGates            []string        `json:"basisGates"`
	SupportedInstructions []string        `json:"supportedInstructions"`
	CalibrationData       json.RawMessage `json:"calibrationData"`
	CalibratedAt          *time.Time      `json:"calibratedAt"`
	Description           string          `json:"description"`
}

func toDeviceResponse(d *device.Device) deviceResponse {
	resp := deviceResponse{
		DeviceID:              d.ID,
		DeviceType:            d.Type,
		Status:                d.Status,
		RestartAt:             d.AvailableAt,
		NPendingTasks:         d.PendingTasks,
		NQubits:               d.NQubits,
		NNodes:                d.NNodes,
		BasisGates:            nonNil(d.BasisGates),
		SupportedInstructions: nonNil(d.Instructions),
		CalibratedAt:          d.CalibratedAt,
		Description:           d.Description,
	}
	if d.CalibrationData != nil {
		resp.CalibrationData = rawJSON(*d.CalibrationData)
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// rawJSON passes stored JSON text through unchanged and quotes anything
// that is not valid JSON.
func rawJSON(text string) json.RawMessage {
	if json.Valid([]byte(text)) {
		return json.RawMessage(text)
	}
	quoted, _ := json.Marshal(text) //nolint:errcheck // strings always encode
	return quoted
}

// taskRequest is the body of a user task submission.
type taskRequest struct {
	Name              *string         `json:"name"`
	Device            string          `json:"device"`
	NQubits           *int            `json:"nQubits"`
	NNodes            *int            `json:"nNodes"`
	Code              string          `json:"code"`
	Method            *string         `json:"method"`
	NShots            *int            `json:"nShots"`
	Operator          json.RawMessage `json:"operator"`
	QubitAllocation   map[string]int  `json:"qubitAllocation"`
	SkipTranspilation *bool           `json:"skipTranspilation"`
	SeedTranspilation *int            `json:"seedTranspilation"`
	SeedSimulation    *int            `json:"seedSimulation"`
	ROErrorMitigation *string         `json:"roErrorMitigation"`
	NPerNode          *int            `json:"nPerNode"`
	SimulationOpt     json.RawMessage `json:"simulationOpt"`
	Note              *string         `json:"note"`
}

// submission converts the body for action. Method and operator are only
// read for estimation.
func (req *taskRequest) submission(owner string, action task.Action) *task.Submission {
	sub := &task.Submission{
		Owner:             owner,
		Action:            action,
		Name:              req.Name,
		Device:            req.Device,
		Code:              req.Code,
		NQubits:           req.NQubits,
		NNodes:            req.NNodes,
		Shots:             req.NShots,
		QubitAllocation:   req.QubitAllocation,
		SkipTranspilation: req.SkipTranspilation,
		SeedTranspilation: req.SeedTranspilation,
		SeedSimulation:    req.SeedSimulation,
		ROErrorMitigation: req.ROErrorMitigation,
		NPerNode:          req.NPerNode,
		SimulationOpt:     req.SimulationOpt,
		Note:              req.Note,
	}
	if action == task.ActionEstimation {
		sub.Method = req.Method
		sub.Operator = req.Operator
	}
	return sub
}

// submitResponse answers an accepted submission.
type submitResponse struct {
	TaskID    uuid.UUID   `json:"taskId"`
	CreatedAt time.Time   `json:"createdAt"`
	Status    task.Status `json:"status"`
}

// statusResponse is the body of the status endpoints.
type statusResponse struct {
	TaskID uuid.UUID   `json:"taskId"`
	Status task.Status `json:"status"`
}

// taskResponse is a task as served to its owner. Status is user-facing.
type taskResponse struct {
	TaskID            uuid.UUID               `json:"taskId"`
	Code              string                  `json:"code"`
	Name              *string                 `json:"name"`
	Device            string                  `json:"device"`
	NQubits           *int                    `json:"nQubits"`
	NNodes            *int                    `json:"nNodes"`
	Method            *task.Method            `json:"method,omitempty"`
	NShots            *int                    `json:"nShots"`
	Operator          []task.OperatorTerm     `json:"operator,omitempty"`
	QubitAllocation   map[string]int          `json:"qubitAllocation"`
	SkipTranspilation bool                    `json:"skipTranspilation"`
	SeedTranspilation *int                    `json:"seedTranspilation"`
	SeedSimulation    *int                    `json:"seedSimulation"`
	ROErrorMitigation *task.ROErrorMitigation `json:"roErrorMitigation"`
	NPerNode          *int                    `json:"nPerNode"`
	SimulationOpt     json.RawMessage         `json:"simulationOpt"`
	Note              *string                 `json:"note"`
	Status            task.Status             `json:"status"`
	CreatedAt         time.Time               `json:"createdAt"`
}

func toTaskResponse(t *task.Task) taskResponse {
	return taskResponse{
		TaskID:            t.ID,
		Code:              t.Code,
		Name:              t.Name,
		Device:            t.Device,
		NQubits:           t.NQubits,
		NNodes:            t.NNodes,
		Method:            t.Method,
		NShots:            t.Shots,
		Operator:          t.Operator,
		QubitAllocation:   t.QubitAllocation,
		SkipTranspilation: t.SkipTranspilation,
		SeedTranspilation: t.SeedTranspilation,
		SeedSimulation:    t.SeedSimulation,
		ROErrorMitigation: t.ROErrorMitigation,
		NPerNode:          t.NPerNode,
		SimulationOpt:     t.SimulationOpt,
		Note:              t.Note,
		Status:            t.Status.UserFacing(),
		CreatedAt:         t.CreatedAt,
	}
}

func toTaskResponses(tasks []task.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	return out
}

// actionResponse describes what a provider must run.
type actionResponse struct {
	Name     task.Action         `json:"name"`
	Method   *task.Method        `json:"method,omitempty"`
	NShots   *int                `json:"nShots"`
	Operator []task.OperatorTerm `json:"operator,omitempty"`
}

// providerTaskResponse is a task as served to providers. Status is raw.
type providerTaskResponse struct {
	TaskID            uuid.UUID               `json:"taskId"`
	Code              string                  `json:"code"`
	Device            string                  `json:"device"`
	NQubits           *int                    `json:"nQubits"`
	NNodes            *int                    `json:"nNodes"`
	Action            actionResponse          `json:"action"`
	QubitAllocation   map[string]int          `json:"qubitAllocation"`
	SkipTranspilation bool                    `json:"skipTranspilation"`
	SeedTranspilation *int                    `json:"seedTranspilation"`
	SeedSimulation    *int                    `json:"seedSimulation"`
	ROErrorMitigation *task.ROErrorMitigation `json:"roErrorMitigation"`
	NPerNode          *int                    `json:"nPerNode"`
	SimulationOpt     json.RawMessage         `json:"simulationOpt"`
	Status            task.Status             `json:"status"`
	CreatedAt         time.Time               `json:"createdAt"`
}

func toProviderTaskResponse(t *task.Task) providerTaskResponse {
	action := actionResponse{Name: t.Action, NShots: t.Shots}
	if t.Action == task.ActionEstimation {
		action.Method = t.Method
		action.Operator = t.Operator
	}
	return providerTaskResponse{
		TaskID:            t.ID,
		Code:              t.Code,
		Device:            t.Device,
		NQubits:           t.NQubits,
		NNodes:            t.NNodes,
		Action:            action,
		QubitAllocation:   t.QubitAllocation,
		SkipTranspilation: t.SkipTranspilation,
		SeedTranspilation: t.SeedTranspilation,
		SeedSimulation:    t.SeedSimulation,
		ROErrorMitigation: t.ROErrorMitigation,
		NPerNode:          t.NPerNode,
		SimulationOpt:     t.SimulationOpt,
		Status:            t.Status,
		CreatedAt:         t.CreatedAt,
	}
}

// resultRequest is the body of a provider result attachment.
type resultRequest struct {
	TaskID          string          `json:"taskId"`
	Status          result.Status   `json:"status"`
	Result          json.RawMessage `json:"result"`
	Reason          *string         `json:"reason"`
	TranspiledCode  *string         `json:"transpiledCode"`
	QubitAllocation map[string]int  `json:"qubitAllocation"`
}

// resultResponse is a result as served to the task owner.
type resultResponse struct {
	TaskID          uuid.UUID       `json:"taskId"`
	Status          result.Status   `json:"status"`
	Result          json.RawMessage `json:"result"`
	Reason          *string         `json:"reason"`
	TranspiledCode  *string         `json:"transpiledCode"`
	QubitAllocation map[string]int  `json:"qubitAllocation"`
}

func toResultResponse(r *result.Result) resultResponse {
	payload, reason := r.Visible()
	resp := resultResponse{
		TaskID:          r.TaskID,
		Status:          r.Status,
		Reason:          reason,
		TranspiledCode:  r.TranspiledCode,
		QubitAllocation: r.QubitAllocation,
	}
	if payload != nil {
		resp.Result = rawJSON(*payload)
	}
	return resp
}
