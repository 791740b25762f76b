package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/quantum-task-core/internal/auth"
	"github.com/nerrad567/quantum-task-core/internal/device"
	"github.com/nerrad567/quantum-task-core/internal/events"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/config"
	"github.com/nerrad567/quantum-task-core/internal/infrastructure/logging"
	"github.com/nerrad567/quantum-task-core/internal/task"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newTestClient(hub *Hub, owner string, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
		owner:         owner,
	}
	hub.Register(client)
	return client
}

func receive(t *testing.T, client *WSClient) WSMessage {
	t.Helper()
	select {
	case data := <-client.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return WSMessage{}
	}
}

func expectSilence(t *testing.T, client *WSClient) {
	t.Helper()
	select {
	case data := <-client.send:
		t.Errorf("unexpected message: %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func statusEvent(owner string, from, to task.Status) events.Event {
	return events.Event{
		Kind:     events.KindTaskStatus,
		TaskID:   uuid.New(),
		Owner:    owner,
		DeviceID: "SC2",
		Action:   task.ActionSampling,
		From:     from,
		To:       to,
	}
}

func TestHub_OwnerScoping(t *testing.T) {
	hub := newTestHub(t)
	alice := newTestClient(hub, "alice", ChannelTaskStatus)
	bob := newTestClient(hub, "bob", ChannelTaskStatus)

	if err := hub.Publish(context.Background(), statusEvent("alice", task.StatusQueuedFetched, task.StatusRunning)); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}

	msg := receive(t, alice)
	if msg.Type != WSTypeEvent || msg.EventType != ChannelTaskStatus {
		t.Errorf("message = %+v", msg)
	}
	payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // checked below
	if payload["status"] != "RUNNING" || payload["device"] != "SC2" || payload["action"] != "sampling" {
		t.Errorf("payload = %v", msg.Payload)
	}
	expectSilence(t, bob)
}

func TestHub_SkipsInvisibleTransitions(t *testing.T) {
	hub := newTestHub(t)
	client := newTestClient(hub, "alice", ChannelTaskStatus)

	tests := []struct {
		from, to task.Status
		pushed   bool
		want     string
	}{
		{"", task.StatusQueued, true, "QUEUED"},
		{task.StatusQueued, task.StatusQueuedFetched, false, ""},
		{task.StatusRunning, task.StatusCancelling, true, "CANCELLING"},
		{task.StatusCancelling, task.StatusCancellingFetched, false, ""},
		{task.StatusCancellingFetched, task.StatusCancelled, true, "CANCELLED"},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+">"+string(tt.to), func(t *testing.T) {
			if err := hub.Publish(context.Background(), statusEvent("alice", tt.from, tt.to)); err != nil {
				t.Fatalf("Publish() error: %v", err)
			}
			if !tt.pushed {
				expectSilence(t, client)
				return
			}
			payload, _ := receive(t, client).Payload.(map[string]any) //nolint:errcheck // checked below
			if payload["status"] != tt.want {
				t.Errorf("status = %v, want %s", payload["status"], tt.want)
			}
		})
	}
}

func TestHub_Channels(t *testing.T) {
	hub := newTestHub(t)
	statusOnly := newTestClient(hub, "alice", ChannelTaskStatus)
	everything := newTestClient(hub, "carol", ChannelTaskStatus, ChannelTaskResult, ChannelDeviceUpdate)

	d := &device.Device{ID: "SC2", Status: device.StatusAvailable, PendingTasks: 3}
	if err := hub.Publish(context.Background(), events.DeviceUpdated(d)); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	msg := receive(t, everything)
	if msg.EventType != ChannelDeviceUpdate {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelDeviceUpdate)
	}
	payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // checked below
	if payload["deviceId"] != "SC2" || payload["nPendingTasks"] != float64(3) {
		t.Errorf("payload = %v", payload)
	}
	expectSilence(t, statusOnly)

	tk := &task.Task{ID: uuid.New(), Owner: "carol", Device: "SC2", Action: task.ActionSampling}
	if err := hub.Publish(context.Background(), events.ResultAttached(tk, "SUCCESS", time.Now())); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	if msg := receive(t, everything); msg.EventType != ChannelTaskResult {
		t.Errorf("event_type = %q, want %q", msg.EventType, ChannelTaskResult)
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := newTestHub(t)
	a := newTestClient(hub, "alice")
	newTestClient(hub, "bob")
	if got := hub.ClientCount(); got != 2 {
		t.Errorf("ClientCount() = %d, want 2", got)
	}
	hub.Unregister(a)
	hub.Unregister(a)
	if got := hub.ClientCount(); got != 1 {
		t.Errorf("ClientCount() = %d, want 1", got)
	}
}

func dialWS(t *testing.T, ts *httptest.Server, bearer string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	if bearer != "" {
		url += "?access_token=" + bearer
	}
	return websocket.DefaultDialer.Dial(url, nil)
}

func readWS(t *testing.T, ws *websocket.Conn) WSMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var msg WSMessage
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestWebSocket_Unauthenticated(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ws, resp, err := dialWS(t, ts, "")
	if err == nil {
		ws.Close()
		t.Fatal("dial without a token should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

func TestWebSocket_StreamsOwnTaskStatus(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	user := token(t, "alice", auth.RoleUser)
	provider := token(t, "worker-1", auth.RoleProvider)

	ws, _, err := dialWS(t, ts, user)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	// Ping round trip also proves the connection is registered.
	if err := ws.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if msg := readWS(t, ws); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Fatalf("ping reply = %+v", msg)
	}

	id := env.submitSampling(t, user)
	msg := readWS(t, ws)
	payload, _ := msg.Payload.(map[string]any) //nolint:errcheck // checked below
	if msg.EventType != ChannelTaskStatus || payload["taskId"] != id || payload["status"] != "QUEUED" {
		t.Fatalf("submission event = %+v", msg)
	}

	// The claim is invisible; RUNNING is the next push.
	env.do(t, http.MethodGet, "/provider/v1/tasks/unfetched?deviceId=SC2&status=QUEUED", provider, nil)
	env.do(t, http.MethodPatch, "/provider/v1/tasks/"+id, provider, map[string]string{"status": "RUNNING"})
	msg = readWS(t, ws)
	payload, _ = msg.Payload.(map[string]any) //nolint:errcheck // checked below
	if payload["status"] != "RUNNING" {
		t.Errorf("status = %v, want RUNNING", payload["status"])
	}
}

func TestWebSocket_Subscribe(t *testing.T) {
	env := newTestEnv(t, config.AuthModeJWT)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	ws, _, err := dialWS(t, ts, token(t, "alice", auth.RoleUser))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	tests := []struct {
		name     string
		msg      WSMessage
		wantType string
	}{
		{"subscribe", WSMessage{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{ChannelTaskResult}}}, WSTypeResponse},
		{"unknown channel", WSMessage{Type: WSTypeSubscribe, ID: "s2", Payload: WSSubscribePayload{Channels: []string{"scene.activated"}}}, WSTypeError},
		{"unsubscribe", WSMessage{Type: WSTypeUnsubscribe, ID: "s3", Payload: WSSubscribePayload{Channels: []string{ChannelTaskResult}}}, WSTypeResponse},
		{"unknown type", WSMessage{Type: "launch", ID: "s4"}, WSTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ws.WriteJSON(tt.msg); err != nil {
				t.Fatalf("write: %v", err)
			}
			reply := readWS(t, ws)
			if reply.Type != tt.wantType || reply.ID != tt.msg.ID {
				t.Errorf("reply = %+v, want type %s id %s", reply, tt.wantType, tt.msg.ID)
			}
		})
	}
}
