package api

import (
	"net/http"
	"testing"

	"github.com/nerrad567/quantum-task-core/internal/auth"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/config"
	"github.com/nerrad567/quantum-task-core/internal/job"
)

func TestJobs(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	alice := token(t, "alice", auth.RoleUser)
	bob := token(t, "bob", auth.RoleUser)
	provider := token(t, "worker-1", auth.RoleProvider)

	w := env.do(t, http.MethodPost, "/api/v1/jobs", alice, map[string]any{
		"name":        "bell",
		"description": "legacy client",
		"device_id":   "SC2",
		"job_info":    "OPENQASM 3; qubit[2] q;",
		"job_type":    "sampling",
		"shots":       200,
	})
	expectStatus(t, w, http.StatusOK)
	var submitted submitJobResponse
	decode(t, w, &submitted)
	id := submitted.JobID.String()

	// The job is an ordinary task.
	w = env.do(t, http.MethodGet, "/api/v1/tasks/sampling/"+id, alice, nil)
	expectStatus(t, w, http.StatusOK)

	w = env.do(t, http.MethodGet, "/api/v1/jobs/"+id, alice, nil)
	expectStatus(t, w, http.StatusOK)
	var j job.Job
	decode(t, w, &j)
	if j.Name != "bell" || j.Description != "legacy client" || j.JobInfo != "OPENQASM 3; qubit[2] q;" {
		t.Errorf("job = %+v", j)
	}
	if j.Status != job.StatusSubmitted {
		t.Errorf("status = %s, want submitted", j.Status)
	}

	w = env.do(t, http.MethodGet, "/api/v1/jobs/"+id, bob, nil)
	expectDetail(t, w, http.StatusNotFound, "job not found with the given id")

	env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=QUEUED", provider, nil)
	w = env.do(t, http.MethodGet, "/api/v1/jobs/"+id+"/status", alice, nil)
	expectStatus(t, w, http.StatusOK)
	var status jobStatusResponse
	decode(t, w, &status)
	if status.Status != job.StatusReady {
		t.Errorf("status = %s, want ready", status.Status)
	}

	w = env.do(t, http.MethodDelete, "/api/v1/jobs/"+id, alice, nil)
	expectDetail(t, w, http.StatusNotFound, job.NotDeletableDetail(id))

	w = env.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/cancel", alice, nil)
	expectMessage(t, w, http.StatusOK, "cancel request accepted")

	w = env.do(t, http.MethodPost, "/api/v1/jobs/"+id+"/cancel", alice, nil)
	expectDetail(t, w, http.StatusNotFound, job.NotCancellableDetail(id))

	var jobs []job.Job
	w = env.do(t, http.MethodGet, "/api/v1/jobs", alice, nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &jobs)
	if len(jobs) != 1 || jobs[0].Status != job.StatusCancelled {
		t.Errorf("jobs = %+v", jobs)
	}

	env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=CANCELLING", provider, nil)
	env.do(t, http.MethodPatch, "/provider/v1/tasks/"+id, provider, map[string]string{"status": "CANCELLED"})
	w = env.do(t, http.MethodDelete, "/api/v1/jobs/"+id, alice, nil)
	expectMessage(t, w, http.StatusOK, "job deleted")

	w = env.do(t, http.MethodGet, "/api/v1/jobs/"+id, alice, nil)
	expectDetail(t, w, http.StatusNotFound, "job not found with the given id")
}

func TestSubmitJob_Rejections(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	alice := token(t, "alice", auth.RoleUser)

	tests := []struct {
		name string
		body map[string]any
		want string
	}{
		{"sse", map[string]any{"device_id": "SC2", "job_info": "c", "job_type": "sse", "shots": 10}, job.UnsupportedTypeDetail(job.TypeSSE)},
		{"unknown device", map[string]any{"device_id": "nope", "job_info": "c", "job_type": "sampling", "shots": 10}, "device not found"},
		{"estimation without operator", map[string]any{"device_id": "SC2", "job_info": "c", "job_type": "estimation", "shots": 10},
			"operator is mandatory for estimation action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/jobs", alice, tt.body)
			expectDetail(t, w, http.StatusBadRequest, tt.want)
		})
	}

	w := env.do(t, http.MethodGet, "/api/v1/jobs/not-a-uuid", alice, nil)
	expectDetail(t, w, http.StatusBadRequest, "invalid job id")
}
