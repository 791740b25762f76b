package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/nerrad567/quantum-task-core/internal/job"
	"github.com/nerrad567/quantum-task-core/internal/task"
)

const jobNotFound = "job not found with the given id"

// submitJobResponse answers an accepted legacy submission.
type submitJobResponse struct {
	JobID uuid.UUID `json:"job_id"`
}

// jobStatusResponse is the body of the legacy status endpoint.
type jobStatusResponse struct {
	JobID  uuid.UUID  `json:"job_id"`
	Status job.Status `json:"status"`
}

// handleSubmitJob accepts a legacy job and stores it as a task.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req job.Submission
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	sub, err := req.ToTask(identity(r.Context()).Owner)
	if err != nil {
		if errors.Is(err, job.ErrUnsupportedType) {
			writeBadRequest(w, job.UnsupportedTypeDetail(req.JobType))
			return
		}
		s.writeInternalError(w, r, err)
		return
	}

	t := s.submit(w, r, sub)
	if t == nil {
		return
	}
	writeJSON(w, http.StatusOK, submitJobResponse{JobID: t.ID})
}

// handleListJobs returns every task of the caller as jobs.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListAllForOwner(r.Context(), identity(r.Context()).Owner)
	if err != nil {
		s.writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job.FromTasks(tasks))
}

// getOwnedJob loads the caller's task behind a job id. Tasks of other
// owners are reported as missing.
func (s *Server) getOwnedJob(w http.ResponseWriter, r *http.Request) (*task.Task, bool) {
	id, ok := uuidParam(w, r, "jobId", "invalid job id")
	if !ok {
		return nil, false
	}

	t, err := s.tasks.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, task.ErrNotFound) {
			writeNotFound(w, jobNotFound)
			return nil, false
		}
		s.writeInternalError(w, r, err)
		return nil, false
	}
	if t.Owner != identity(r.Context()).Owner {
		writeNotFound(w, jobNotFound)
		return nil, false
	}
	return t, true
}

// handleGetJob returns one job of the caller.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if t, ok := s.getOwnedJob(w, r); ok {
		writeJSON(w, http.StatusOK, job.FromTask(t))
	}
}

// handleGetJobStatus returns the legacy status of a job.
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request) {
	if t, ok := s.getOwnedJob(w, r); ok {
		writeJSON(w, http.StatusOK, jobStatusResponse{JobID: t.ID, Status: job.FromTaskStatus(t.Status)})
	}
}

// handleCancelJob cancels the task behind a job.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	t, ok := s.getOwnedJob(w, r)
	if !ok {
		return
	}

	tr, err := s.tasks.Cancel(r.Context(), t.ID, t.Owner, t.Action)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrNotFound):
			writeNotFound(w, jobNotFound)
		case errors.Is(err, task.ErrNotCancellable):
			writeNotFound(w, job.NotCancellableDetail(t.ID.String()))
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	s.publishTransition(r.Context(), tr)
	writeMessage(w, http.StatusOK, "cancel request accepted")
}

// handleDeleteJob removes a finished job.
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	t, ok := s.getOwnedJob(w, r)
	if !ok {
		return
	}

	if _, err := s.tasks.Delete(r.Context(), t.ID, t.Owner, t.Action); err != nil {
		switch {
		case errors.Is(err, task.ErrNotFound):
			writeNotFound(w, jobNotFound)
		case errors.Is(err, task.ErrNotDeletable):
			writeNotFound(w, job.NotDeletableDetail(t.ID.String()))
		default:
			s.writeInternalError(w, r, err)
		}
		return
	}

	s.logger.Info("job deleted", "job_id", t.ID, "owner", t.Owner)
	writeMessage(w, http.StatusOK, "job deleted")
}
