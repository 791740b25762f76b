package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nerrad567/quantum-task-core/internal/events"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/database"
	"github.com/nerrad567/quantum-task-core/internal/result"
)

// handleGetResult returns the result of one of the caller's tasks.
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	action, id, ok := userTaskParams(w, r)
	if !ok {
		return
	}

	res, err := s.results.GetForOwner(r.Context(), id, identity(r.Context()).Owner, string(action))
	if err != nil {
		if errors.Is(err, result.ErrNotFound) {
			writeNotFound(w, "result not found")
			return
		}
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResultResponse(res))
}

// handleCreateResult attaches a provider result to a task.
func (s *Server) handleCreateResult(w http.ResponseWriter, r *http.Request) {
	var req resultRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		writeBadRequest(w, "Invalid taskId")
		return
	}

	res := &result.Result{
		TaskID:          taskID,
		Status:          req.Status,
		Reason:          req.Reason,
		TranspiledCode:  req.TranspiledCode,
		QubitAllocation: req.QubitAllocation,
		CreatedAt:       database.Now(),
	}
	if payload := bytes.TrimSpace(req.Result); len(payload) > 0 && !bytes.Equal(payload, []byte("null")) {
		text := string(payload)
		res.Result = &text
	}

	if err := s.results.Create(r.Context(), res); err != nil {
		switch {
		case errors.Is(err, result.ErrInvalid):
			writeBadRequest(w, err.Error())
		case errors.Is(err, result.ErrConflict):
			writeConflict(w, "Result already exists")
		case errors.Is(err, result.ErrTaskNotFound):
			writeNotFound(w, "Task not found")
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	s.logger.Info("result attached", "task_id", taskID, "status", res.Status)
	if t, err := s.tasks.GetByID(r.Context(), taskID); err == nil {
		s.publish(r.Context(), events.ResultAttached(t, string(res.Status), res.CreatedAt))
	} else {
		s.logger.Warn("result event skipped", "task_id", taskID, "error", err)
	}
	writeMessage(w, http.StatusCreated, "success")
}
