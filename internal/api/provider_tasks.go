package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/quantum-task-core/internal/events"
	"github.com/nerrad567/quantum-task-core/internal/task"
)

// maxResultsParam parses the optional maxResults query parameter. Absent
// yields nil, meaning unbounded.
func maxResultsParam(w http.ResponseWriter, r *http.Request) (*int, bool) {
	raw := r.URL.Query().Get("maxResults")
	if raw == "" {
		return nil, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, "Invalid maxResults")
		return nil, false
	}
	return &n, true
}

// deviceIDParam reads the required deviceId query parameter.
func deviceIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.URL.Query().Get("deviceId")
	if id == "" {
		writeBadRequest(w, "deviceId is required")
		return "", false
	}
	return id, true
}

// handleProviderListTasks returns the tasks of a device without claiming
// them.
//
// Query parameters:
//   - deviceId: required
//   - status: raw task status
//   - maxResults: limit
//   - timestamp: RFC 3339; only tasks created after it
func (s *Server) handleProviderListTasks(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	filter := task.Filter{DeviceID: deviceID}

	query := r.URL.Query()
	if raw := query.Get("status"); raw != "" {
		status, ok := task.ParseStatus(raw)
		if !ok {
			writeBadRequest(w, "Invalid status")
			return
		}
		filter.Status = status
	}
	if raw := query.Get("timestamp"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "Invalid timestamp")
			return
		}
		filter.CreatedAfter = &ts
	}
	if filter.MaxResults, ok = maxResultsParam(w, r); !ok {
		return
	}

	tasks, err := s.tasks.List(r.Context(), filter)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}

	resp := make([]providerTaskResponse, 0, len(tasks))
	for i := range tasks {
		resp = append(resp, toProviderTaskResponse(&tasks[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleFetchTasks claims tasks of a device for a provider poll.
//
// status=QUEUED returns the claimed tasks in full; status=CANCELLING
// returns only their ids.
func (s *Server) handleFetchTasks(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceIDParam(w, r)
	if !ok {
		return
	}
	desired := task.Status(r.URL.Query().Get("status"))
	maxResults, ok := maxResultsParam(w, r)
	if !ok {
		return
	}

	claimed, err := s.tasks.Fetch(r.Context(), deviceID, desired, maxResults)
	if err != nil {
		if errors.Is(err, task.ErrInvalidStatus) {
			writeBadRequest(w, "Invalid status")
			return
		}
		s.writeInternalError(w, r, err)
		return
	}

	if len(claimed) > 0 {
		s.logger.Info("tasks fetched",
			"device_id", deviceID,
			"status", desired,
			"count", len(claimed),
		)
	}
	for _, tr := range claimed {
		s.publish(r.Context(), events.FromTransition(tr))
	}

	if desired == task.StatusCancelling {
		ids := make([]uuid.UUID, 0, len(claimed))
		for _, tr := range claimed {
			ids = append(ids, tr.Task.ID)
		}
		writeJSON(w, http.StatusOK, ids)
		return
	}

	resp := make([]providerTaskResponse, 0, len(claimed))
	for _, tr := range claimed {
		resp = append(resp, toProviderTaskResponse(tr.Task))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleProviderGetTask returns any task by id.
func (s *Server) handleProviderGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "taskId", "Invalid taskId")
	if !ok {
		return
	}

	t, err := s.tasks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeNotFound(w, "Task not found")
			return
		}
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProviderTaskResponse(t))
}

// taskStatusUpdate is the body of a provider status push.
type taskStatusUpdate struct {
	Status string `json:"status"`
}

// handleUpdateTaskStatus applies a provider status push to a claimed task.
func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "taskId", "Invalid taskId")
	if !ok {
		return
	}

	var req taskStatusUpdate
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	to, ok := task.ParseStatus(req.Status)
	if !ok {
		writeBadRequest(w, "Invalid status")
		return
	}

	tr, err := s.tasks.UpdateStatus(r.Context(), id, to)
	if err != nil {
		var terr *task.TransitionError
		switch {
		case errors.Is(err, task.ErrNotFound):
			writeNotFound(w, "Task not found")
		case errors.As(err, &terr):
			writeBadRequest(w, terr.Error())
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	s.publishTransition(r.Context(), tr)
	writeMessage(w, http.StatusOK, "Task status updated")
}
