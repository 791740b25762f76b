package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/quantum-task-core/internal/auth"
	"github.com/nerrad567/quantum-task-core/internal/events"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/config"
	"github.com/nerrad567/quantum-task-core/internal/task"
)

func TestSubmitTask_Rejections(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	user := token(t, "alice", auth.RoleUser)

	tests := []struct {
		name   string
		action string
		body   map[string]any
		want   string
	}{
		{"unknown device", "sampling", map[string]any{"device": "nope", "code": "c", "nShots": 10}, "device not found"},
		{"unavailable device", "sampling", map[string]any{"device": "Maint", "code": "c", "nShots": 10}, "device Maint is not available"},
		{"missing shots", "sampling", map[string]any{"device": "SC2", "code": "c"}, "nShots is mandatory for sampling action"},
		{"nodes on qpu", "sampling", map[string]any{"device": "SC2", "code": "c", "nShots": 10, "nNodes": 2},
			"nNodes parameter not supported for device: 'SC2' (deviceType: QPU). nNodes requires deviceType: 'simulator'."},
		{"exclusive resources", "sampling", map[string]any{"device": "SVSim", "code": "c", "nShots": 10, "nQubits": 2, "nNodes": 2},
			"nQubits and nNodes parameters are exclusive"},
		{"missing operator", "estimation", map[string]any{"device": "SC2", "code": "c", "method": "sampling", "nShots": 10},
			"operator is mandatory for estimation action"},
		{"state vector on qpu", "estimation", map[string]any{"device": "SC2", "code": "c", "method": "state_vector", "operator": [][]any{{"Z0", 1.0}}},
			"state_vector method is valid only for simulator devices"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/v1/tasks/"+tt.action, user, tt.body)
			expectDetail(t, w, http.StatusBadRequest, tt.want)
		})
	}

	if n := len(env.published(t)); n != 0 {
		t.Errorf("rejected submissions published %d events", n)
	}

	w := env.do(t, http.MethodPost, "/api/v1/tasks/sampling", user, "{not json")
	expectDetail(t, w, http.StatusBadRequest, "invalid request body")
}

func TestSubmitAndGetTask(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	alice := token(t, "alice", auth.RoleUser)
	bob := token(t, "bob", auth.RoleUser)

	w := env.do(t, http.MethodPost, "/api/v1/tasks/estimation", alice, map[string]any{
		"name":          "vqe-step",
		"device":        "SVSim",
		"code":          "OPENQASM 3; qubit[2] q;",
		"method":        "state_vector",
		"operator":      []any{[]any{"X0 X1", []float64{1.5, 0}}, []any{"Z0", 2}},
		"simulationOpt": map[string]any{"precision": "double"},
		"note":          "first try",
	})
	expectStatus(t, w, http.StatusCreated)
	var submitted submitResponse
	decode(t, w, &submitted)
	if submitted.Status != task.StatusQueued {
		t.Errorf("status = %s, want QUEUED", submitted.Status)
	}
	id := submitted.TaskID.String()

	w = env.do(t, http.MethodGet, "/api/v1/tasks/estimation/"+id, alice, nil)
	expectStatus(t, w, http.StatusOK)
	var got map[string]any
	decode(t, w, &got)
	if got["taskId"] != id || got["name"] != "vqe-step" || got["method"] != "state_vector" {
		t.Errorf("task = %v", got)
	}
	if got["nNodes"] != float64(1) || got["nPerNode"] != float64(1) {
		t.Errorf("simulator defaults: nNodes = %v, nPerNode = %v", got["nNodes"], got["nPerNode"])
	}
	if got["roErrorMitigation"] != nil {
		t.Errorf("roErrorMitigation = %v, want null on a simulator", got["roErrorMitigation"])
	}
	if ops, ok := got["operator"].([]any); !ok || len(ops) != 2 {
		t.Errorf("operator = %v", got["operator"])
	}
	if got["createdAt"] != submitted.CreatedAt.Format(time.RFC3339Nano) {
		t.Errorf("createdAt = %v, submit returned %s", got["createdAt"], submitted.CreatedAt.Format(time.RFC3339Nano))
	}

	t.Run("wrong action", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/tasks/sampling/"+id, alice, nil)
		expectDetail(t, w, http.StatusNotFound, "task not found with the given id")
	})
	t.Run("other owner", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/tasks/estimation/"+id, bob, nil)
		expectDetail(t, w, http.StatusNotFound, "task not found with the given id")
	})
	t.Run("invalid id", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/v1/tasks/estimation/not-a-uuid", alice, nil)
		expectDetail(t, w, http.StatusBadRequest, "invalid task id")
	})
	t.Run("list", func(t *testing.T) {
		var list []taskResponse
		w := env.do(t, http.MethodGet, "/api/v1/tasks/estimation", alice, nil)
		expectStatus(t, w, http.StatusOK)
		decode(t, w, &list)
		if len(list) != 1 {
			t.Errorf("alice has %d estimation tasks, want 1", len(list))
		}

		w = env.do(t, http.MethodGet, "/api/v1/tasks/estimation", bob, nil)
		expectStatus(t, w, http.StatusOK)
		decode(t, w, &list)
		if len(list) != 0 {
			t.Errorf("bob has %d estimation tasks, want 0", len(list))
		}
	})

	evs := env.published(t)
	if len(evs) != 1 || evs[0].Kind != events.KindTaskStatus || evs[0].From != "" || evs[0].To != task.StatusQueued {
		t.Errorf("events = %+v, want one submission event", evs)
	}
}

func TestTaskLifecycle(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	user := token(t, "alice", auth.RoleUser)
	provider := token(t, "worker-1", auth.RoleProvider)

	id := env.submitSampling(t, user)
	userStatus := func(want task.Status) {
		t.Helper()
		w := env.do(t, http.MethodGet, "/api/v1/tasks/sampling/"+id+"/status", user, nil)
		expectStatus(t, w, http.StatusOK)
		var resp statusResponse
		decode(t, w, &resp)
		if resp.Status != want {
			t.Errorf("user status = %s, want %s", resp.Status, want)
		}
	}

	// Claim
	w := env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=QUEUED&maxResults=5", provider, nil)
	expectStatus(t, w, http.StatusOK)
	var claimed []providerTaskResponse
	decode(t, w, &claimed)
	if len(claimed) != 1 || claimed[0].TaskID.String() != id {
		t.Fatalf("claimed = %+v", claimed)
	}
	if claimed[0].Status != task.StatusQueuedFetched {
		t.Errorf("provider status = %s, want QUEUED_FETCHED", claimed[0].Status)
	}
	if claimed[0].Action.Name != task.ActionSampling || claimed[0].Action.NShots == nil || *claimed[0].Action.NShots != 1000 {
		t.Errorf("action = %+v", claimed[0].Action)
	}
	userStatus(task.StatusQueued)

	// A second poll finds nothing left.
	w = env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=QUEUED", provider, nil)
	decode(t, w, &claimed)
	if len(claimed) != 0 {
		t.Errorf("second poll claimed %d tasks", len(claimed))
	}

	// Run
	w = env.do(t, http.MethodPatch, "/provider/v1/tasks/"+id, provider, map[string]string{"status": "RUNNING"})
	expectMessage(t, w, http.StatusOK, "Task status updated")
	userStatus(task.StatusRunning)

	// Cancel while running
	w = env.do(t, http.MethodPost, "/api/v1/tasks/sampling/"+id+"/cancel", user, nil)
	expectMessage(t, w, http.StatusOK, "cancel request accepted")
	userStatus(task.StatusCancelling)

	w = env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=CANCELLING", provider, nil)
	expectStatus(t, w, http.StatusOK)
	var ids []string
	decode(t, w, &ids)
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("cancelling ids = %v", ids)
	}
	userStatus(task.StatusCancelling)

	w = env.do(t, http.MethodPatch, "/provider/v1/tasks/"+id, provider, map[string]string{"status": "CANCELLED"})
	expectMessage(t, w, http.StatusOK, "Task status updated")
	userStatus(task.StatusCancelled)

	// Result
	w = env.do(t, http.MethodPost, "/provider/v1/results", provider, map[string]any{
		"taskId": id,
		"status": "CANCELLED",
		"reason": "cancelled by provider",
	})
	expectMessage(t, w, http.StatusCreated, "success")

	w = env.do(t, http.MethodGet, "/api/v1/results/sampling/"+id, user, nil)
	expectStatus(t, w, http.StatusOK)
	var res resultResponse
	decode(t, w, &res)
	if res.Reason == nil || *res.Reason != "cancelled by provider" {
		t.Errorf("reason = %v, want cancelled by provider", res.Reason)
	}
	if len(res.Result) != 0 && string(res.Result) != "null" {
		t.Errorf("result = %s, want hidden for CANCELLED", res.Result)
	}

	// Delete
	w = env.do(t, http.MethodDelete, "/api/v1/tasks/sampling/"+id, user, nil)
	expectStatus(t, w, http.StatusNoContent)
	w = env.do(t, http.MethodGet, "/api/v1/tasks/sampling/"+id, user, nil)
	expectDetail(t, w, http.StatusNotFound, "task not found with the given id")
	w = env.do(t, http.MethodGet, "/api/v1/results/sampling/"+id, user, nil)
	expectDetail(t, w, http.StatusNotFound, "result not found")

	var transitions []string
	for _, e := range env.published(t) {
		if e.Kind == events.KindTaskStatus && e.From != "" {
			transitions = append(transitions, string(e.From)+">"+string(e.To))
		}
	}
	want := []string{
		"QUEUED>QUEUED_FETCHED",
		"QUEUED_FETCHED>RUNNING",
		"RUNNING>CANCELLING",
		"CANCELLING>CANCELLING_FETCHED",
		"CANCELLING_FETCHED>CANCELLED",
	}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}

func TestCancelQueuedTask(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	user := token(t, "alice", auth.RoleUser)
	id := env.submitSampling(t, user)

	w := env.do(t, http.MethodPost, "/api/v1/tasks/sampling/"+id+"/cancel", user, nil)
	expectMessage(t, w, http.StatusOK, "cancel request accepted")

	w = env.do(t, http.MethodGet, "/api/v1/results/sampling/"+id, user, nil)
	expectStatus(t, w, http.StatusOK)
	var res resultResponse
	decode(t, w, &res)
	if res.Status != "CANCELLED" || res.Reason == nil || *res.Reason != "user cancelled" {
		t.Errorf("result = %+v", res)
	}

	w = env.do(t, http.MethodPost, "/api/v1/tasks/sampling/"+id+"/cancel", user, nil)
	expectDetail(t, w, http.StatusNotFound, id+" task is not in valid status for cancellation "+
		"(valid statuses for cancellation: 'QUEUED_FETCHED', 'QUEUED' and 'RUNNING')")
}

func TestDeleteUnfinishedTask(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	user := token(t, "alice", auth.RoleUser)
	id := env.submitSampling(t, user)

	w := env.do(t, http.MethodDelete, "/api/v1/tasks/sampling/"+id, user, nil)
	expectDetail(t, w, http.StatusNotFound, id+" task is not in valid status for deletion "+
		"(valid statuses for deletion: 'COMPLETED', 'FAILED' and 'CANCELLED')")
}

func TestProviderUpdateStatus(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	user := token(t, "alice", auth.RoleUser)
	provider := token(t, "worker-1", auth.RoleProvider)
	id := env.submitSampling(t, user)

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantDetail string
	}{
		{"unclaimed task", "/provider/v1/tasks/" + id, map[string]string{"status": "RUNNING"}, http.StatusNotFound, "Task not found"},
		{"unknown task", "/provider/v1/tasks/00000000-0000-0000-0000-000000000001", map[string]string{"status": "RUNNING"}, http.StatusNotFound, "Task not found"},
		{"invalid id", "/provider/v1/tasks/xyz", map[string]string{"status": "RUNNING"}, http.StatusBadRequest, "Invalid taskId"},
		{"unknown status", "/provider/v1/tasks/" + id, map[string]string{"status": "DONE"}, http.StatusBadRequest, "Invalid status"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPatch, tt.path, provider, tt.body)
			expectDetail(t, w, tt.wantStatus, tt.wantDetail)
		})
	}

	env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=QUEUED", provider, nil)
	t.Run("unreachable transition", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/provider/v1/tasks/"+id, provider, map[string]string{"status": "QUEUED"})
		expectDetail(t, w, http.StatusBadRequest, "invalid status transition from QUEUED_FETCHED to QUEUED")
	})
	t.Run("complete", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/provider/v1/tasks/"+id, provider, map[string]string{"status": "COMPLETED"})
		expectMessage(t, w, http.StatusOK, "Task status updated")
	})
	t.Run("terminal task", func(t *testing.T) {
		w := env.do(t, http.MethodPatch, "/provider/v1/tasks/"+id, provider, map[string]string{"status": "FAILED"})
		expectDetail(t, w, http.StatusNotFound, "Task not found")
	})
}

func TestFetchTasks_Params(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	provider := token(t, "worker-1", auth.RoleProvider)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"missing device", "/provider/v1/tasks/unfetched?status=QUEUED", "deviceId is required"},
		{"running is not fetchable", "/provider/v1/tasks/unfetched?deviceId=SC2&status=RUNNING", "Invalid status"},
		{"missing status", "/provider/v1/tasks/unfetched?deviceId=SC2", "Invalid status"},
		{"bad limit", "/provider/v1/tasks/unfetched?deviceId=SC2&status=QUEUED&maxResults=many", "Invalid maxResults"},
		{"list missing device", "/provider/v1/tasks", "deviceId is required"},
		{"list bad status", "/provider/v1/tasks?deviceId=SC2&status=DONE", "Invalid status"},
		{"list bad timestamp", "/provider/v1/tasks?deviceId=SC2&timestamp=yesterday", "Invalid timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, provider, nil)
			expectDetail(t, w, http.StatusBadRequest, tt.want)
		})
	}
}

func TestFetchTasks_ZeroMaxResultsClaimsNothing(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	user := token(t, "alice", auth.RoleUser)
	provider := token(t, "worker-1", auth.RoleProvider)

	for range 3 {
		env.submitSampling(t, user)
	}

	var claimed []providerTaskResponse
	w := env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=QUEUED&maxResults=0", provider, nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &claimed)
	if len(claimed) != 0 {
		t.Fatalf("maxResults=0 claimed %d tasks", len(claimed))
	}

	var queued []providerTaskResponse
	w = env.do(t, http.MethodGet, "/provider/v1/tasks?deviceId=SC2&status=QUEUED", provider, nil)
	decode(t, w, &queued)
	if len(queued) != 3 {
		t.Errorf("QUEUED tasks = %d, want 3", len(queued))
	}
}

// stalledSink blocks every delivery until release is closed.
type stalledSink struct{ release chan struct{} }

func (s *stalledSink) Name() string { return "stalled" }

func (s *stalledSink) Publish(context.Context, events.Event) error {
	<-s.release
	return nil
}

func TestFetchTasks_StalledSinkDoesNotBlockRequest(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	stalled := &stalledSink{release: make(chan struct{})}
	env.events.Register(stalled)
	t.Cleanup(func() { close(stalled.release) })

	user := token(t, "alice", auth.RoleUser)
	provider := token(t, "worker-1", auth.RoleProvider)
	for range 3 {
		env.submitSampling(t, user)
	}

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=QUEUED", provider, nil)
	}()

	select {
	case w := <-done:
		var claimed []providerTaskResponse
		expectStatus(t, w, http.StatusOK)
		decode(t, w, &claimed)
		if len(claimed) != 3 {
			t.Errorf("claimed %d tasks, want 3", len(claimed))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("fetch request blocked on a stalled event sink")
	}
}

func TestProviderListAndGetTask(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	user := token(t, "alice", auth.RoleUser)
	provider := token(t, "worker-1", auth.RoleProvider)

	first := env.submitSampling(t, user)
	env.submitSampling(t, user)
	env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=QUEUED&maxResults=1", provider, nil)

	var list []providerTaskResponse
	w := env.do(t, http.MethodGet, "/provider/v1/tasks?deviceId=SC2", provider, nil)
	expectStatus(t, w, http.StatusOK)
	decode(t, w, &list)
	if len(list) != 2 {
		t.Fatalf("listed %d tasks, want 2", len(list))
	}

	w = env.do(t, http.MethodGet, "/provider/v1/tasks?deviceId=SC2&status=QUEUED_FETCHED", provider, nil)
	decode(t, w, &list)
	if len(list) != 1 || list[0].TaskID.String() != first {
		t.Errorf("QUEUED_FETCHED list = %+v, want only %s", list, first)
	}

	w = env.do(t, http.MethodGet, "/provider/v1/tasks?deviceId=SC2&timestamp=2999-01-01T00:00:00Z", provider, nil)
	decode(t, w, &list)
	if len(list) != 0 {
		t.Errorf("future timestamp listed %d tasks", len(list))
	}

	w = env.do(t, http.MethodGet, "/provider/v1/tasks/"+first, provider, nil)
	expectStatus(t, w, http.StatusOK)
	var got map[string]any
	decode(t, w, &got)
	if got["status"] != "QUEUED_FETCHED" {
		t.Errorf("status = %v, want raw QUEUED_FETCHED", got["status"])
	}
	if _, ok := got["name"]; ok {
		t.Error("provider view should not carry name")
	}
	if got["roErrorMitigation"] != "none" {
		t.Errorf("roErrorMitigation = %v, want none on a QPU", got["roErrorMitigation"])
	}

	w = env.do(t, http.MethodGet, "/provider/v1/tasks/00000000-0000-0000-0000-000000000001", provider, nil)
	expectDetail(t, w, http.StatusNotFound, "Task not found")
}

func TestCreateResult(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	user := token(t, "alice", auth.RoleUser)
	provider := token(t, "worker-1", auth.RoleProvider)
	id := env.submitSampling(t, user)

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantDetail string
	}{
		{"success without payload", map[string]any{"taskId": id, "status": "SUCCESS"}, http.StatusBadRequest, "result is required for status SUCCESS"},
		{"failure without reason", map[string]any{"taskId": id, "status": "FAILURE"}, http.StatusBadRequest, "reason is required for status FAILURE"},
		{"unknown task", map[string]any{"taskId": "00000000-0000-0000-0000-000000000001", "status": "FAILURE", "reason": "x"}, http.StatusNotFound, "Task not found"},
		{"invalid id", map[string]any{"taskId": "xyz", "status": "FAILURE", "reason": "x"}, http.StatusBadRequest, "Invalid taskId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/provider/v1/results", provider, tt.body)
			expectDetail(t, w, tt.wantStatus, tt.wantDetail)
		})
	}

	body := map[string]any{
		"taskId":          id,
		"status":          "SUCCESS",
		"result":          map[string]int{"00": 498, "11": 502},
		"transpiledCode":  "OPENQASM 3; qubit[2] q;",
		"qubitAllocation": map[string]int{"0": 4, "1": 5},
	}
	w := env.do(t, http.MethodPost, "/provider/v1/results", provider, body)
	expectMessage(t, w, http.StatusCreated, "success")

	w = env.do(t, http.MethodPost, "/provider/v1/results", provider, body)
	expectDetail(t, w, http.StatusConflict, "Result already exists")

	w = env.do(t, http.MethodGet, "/api/v1/results/sampling/"+id, user, nil)
	expectStatus(t, w, http.StatusOK)
	var res struct {
		Status          string         `json:"status"`
		Result          map[string]int `json:"result"`
		Reason          *string        `json:"reason"`
		QubitAllocation map[string]int `json:"qubitAllocation"`
	}
	decode(t, w, &res)
	if res.Status != "SUCCESS" || res.Result["11"] != 502 || res.Reason != nil || res.QubitAllocation["1"] != 5 {
		t.Errorf("result = %+v", res)
	}

	w = env.do(t, http.MethodGet, "/api/v1/results/estimation/"+id, user, nil)
	expectDetail(t, w, http.StatusNotFound, "result not found")

	var attached int
	for _, e := range env.published(t) {
		if e.Kind == events.KindTaskResult && e.TaskID.String() == id && e.ResultStatus == "SUCCESS" {
			attached++
		}
	}
	if attached != 1 {
		t.Errorf("result events = %d, want 1", attached)
	}
}
