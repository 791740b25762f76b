package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/nerrad567/quantum-task-core/internal/device"
	"github.com/nerrad567/quantum-task-core/internal/events"
	"github.com/nerrad567/quantum-task-core/internal/task"
)

const taskNotFound = "task not found with the given id"

// actionParam reads the {action} path segment. Anything other than
// sampling or estimation is an unknown route.
func actionParam(w http.ResponseWriter, r *http.Request) (task.Action, bool) {
	action, ok := task.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		writeNotFound(w, "Not Found")
		return "", false
	}
	return action, true
}

// uuidParam parses the named path parameter, writing a 400 with detail
// when it is not a UUID.
func uuidParam(w http.ResponseWriter, r *http.Request, name, detail string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, detail)
		return uuid.Nil, false
	}
	return id, true
}

// userTaskParams reads {action} and {taskId} for the user task routes.
func userTaskParams(w http.ResponseWriter, r *http.Request) (task.Action, uuid.UUID, bool) {
	action, ok := actionParam(w, r)
	if !ok {
		return "", uuid.Nil, false
	}
	id, ok := uuidParam(w, r, "taskId", "invalid task id")
	if !ok {
		return "", uuid.Nil, false
	}
	return action, id, true
}

// submit runs the validation engine on sub and stores the accepted task.
// On failure the response has been written and nil is returned.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, sub *task.Submission) *task.Task {
	ctx, span := s.telemetry.StartSpan(r.Context(), "task.submit",
		attribute.String("task.action", string(sub.Action)),
		attribute.String("task.device", sub.Device),
	)
	defer span.End()

	dev, err := s.devices.GetByID(ctx, sub.Device)
	if err != nil && !errors.Is(err, device.ErrNotFound) {
		span.RecordError(err)
		s.writeInternalError(w, r, err)
		return nil
	}

	t, err := task.Validate(sub, dev)
	if err != nil {
		var rej *task.Rejection
		if errors.As(err, &rej) {
			s.telemetry.Instruments.TasksRejected.Add(ctx, 1, metric.WithAttributes(
				attribute.String("action", string(sub.Action)),
				attribute.String("field", rej.Field),
			))
			span.SetStatus(codes.Error, rej.Reason)
			s.logger.Debug("task rejected",
				"owner", sub.Owner,
				"device_id", sub.Device,
				"field", rej.Field,
				"reason", rej.Reason,
			)
			writeBadRequest(w, rej.Reason)
			return nil
		}
		s.writeInternalError(w, r, err)
		return nil
	}

	if err := s.tasks.Create(ctx, t); err != nil {
		span.RecordError(err)
		s.writeInternalError(w, r, err)
		return nil
	}
	span.SetAttributes(attribute.String("task.id", t.ID.String()))

	s.logger.Info("task submitted",
		"task_id", t.ID,
		"owner", t.Owner,
		"action", t.Action,
		"device_id", t.Device,
		"correlation_id", correlationID(ctx),
	)
	s.publish(ctx, events.Submitted(t))
	return t
}

// publishTransition fans out an applied status change.
func (s *Server) publishTransition(ctx context.Context, tr task.Transition) {
	s.logger.Info("task status changed",
		"task_id", tr.Task.ID,
		"device_id", tr.Task.Device,
		"from", tr.From,
		"to", tr.To,
	)
	s.publish(ctx, events.FromTransition(tr))
}

// handleSubmitTask accepts a sampling or estimation task.
func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	action, ok := actionParam(w, r)
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	t := s.submit(w, r, req.submission(identity(r.Context()).Owner, action))
	if t == nil {
		return
	}
	writeJSON(w, http.StatusCreated, submitResponse{
		TaskID:    t.ID,
		CreatedAt: t.CreatedAt,
		Status:    t.Status.UserFacing(),
	})
}

// handleListTasks returns the caller's tasks of one action, oldest first.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	action, ok := actionParam(w, r)
	if !ok {
		return
	}

	tasks, err := s.tasks.ListForOwner(r.Context(), identity(r.Context()).Owner, action)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// getOwnedTask loads a task of the caller, writing the 404 itself.
func (s *Server) getOwnedTask(w http.ResponseWriter, r *http.Request, id uuid.UUID, action task.Action) *task.Task {
	t, err := s.tasks.GetForOwner(r.Context(), id, identity(r.Context()).Owner, action)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeNotFound(w, taskNotFound)
			return nil
		}
		s.writeInternalError(w, r, err)
		return nil
	}
	return t
}

// handleGetTask returns one of the caller's tasks.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	action, id, ok := userTaskParams(w, r)
	if !ok {
		return
	}
	if t := s.getOwnedTask(w, r, id, action); t != nil {
		writeJSON(w, http.StatusOK, toTaskResponse(t))
	}
}

// handleGetTaskStatus returns the user-facing status of a task.
func (s *Server) handleGetTaskStatus(w http.ResponseWriter, r *http.Request) {
	action, id, ok := userTaskParams(w, r)
	if !ok {
		return
	}
	if t := s.getOwnedTask(w, r, id, action); t != nil {
		writeJSON(w, http.StatusOK, statusResponse{TaskID: t.ID, Status: t.Status.UserFacing()})
	}
}

// handleCancelTask cancels a queued task or asks the provider to stop a
// claimed one.
func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	action, id, ok := userTaskParams(w, r)
	if !ok {
		return
	}

	tr, err := s.tasks.Cancel(r.Context(), id, identity(r.Context()).Owner, action)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrNotFound):
			writeNotFound(w, taskNotFound)
		case errors.Is(err, task.ErrNotCancellable):
			writeNotFound(w, fmt.Sprintf("%s task is not in valid status for cancellation "+
				"(valid statuses for cancellation: 'QUEUED_FETCHED', 'QUEUED' and 'RUNNING')", id))
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	s.publishTransition(r.Context(), tr)
	writeMessage(w, http.StatusOK, "cancel request accepted")
}

// handleDeleteTask removes a finished task and its result.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	action, id, ok := userTaskParams(w, r)
	if !ok {
		return
	}

	t, err := s.tasks.Delete(r.Context(), id, identity(r.Context()).Owner, action)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrNotFound):
			writeNotFound(w, taskNotFound)
		case errors.Is(err, task.ErrNotDeletable):
			writeNotFound(w, fmt.Sprintf("%s task is not in valid status for deletion "+
				"(valid statuses for deletion: 'COMPLETED', 'FAILED' and 'CANCELLED')", id))
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	s.logger.Info("task deleted", "task_id", t.ID, "owner", t.Owner)
	w.WriteHeader(http.StatusNoContent)
}
