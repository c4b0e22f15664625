package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/smarthome-bridge/internal/device"
	"github.com/nerrad567/smarthome-bridge/internal/entity"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/config"
)

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func testClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	client := &WSClient{
		id:            "test",
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
	hub.Register(client)
	return client
}

func switchState(id string, on bool) entity.State {
	v := 0.0
	if on {
		v = 1
	}
	return entity.State{
		EntityID:   id,
		Kind:       entity.KindSwitch,
		Available:  true,
		Value:      &v,
		Attributes: map[string]any{"is_on": on},
	}
}

// =============================================================================
// Hub
// =============================================================================

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub, WSTypeEntityState)

	hub.Broadcast(WSTypeEntityState, map[string]any{"entity_id": "a"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEntityState {
			t.Errorf("type = %q, want %q", wsMsg.Type, WSTypeEntityState)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub)

	hub.Broadcast(WSTypeEntityState, map[string]any{"entity_id": "a"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}
	client := testClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(client)
	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
}

func TestHub_PublishStatesOnlyChanged(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub, WSTypeEntityState)

	states := []entity.State{switchState("a", false), switchState("b", false)}
	if n := hub.PublishStates(states); n != 2 {
		t.Errorf("first pass sent %d, want 2", n)
	}
	if n := hub.PublishStates(states); n != 0 {
		t.Errorf("unchanged pass sent %d, want 0", n)
	}

	states[1] = switchState("b", true)
	if n := hub.PublishStates(states); n != 1 {
		t.Errorf("changed pass sent %d, want 1", n)
	}
	if got := len(client.send); got != 3 {
		t.Errorf("client received %d messages, want 3", got)
	}
}

func TestHub_SlowClientSkipped(t *testing.T) {
	hub := testHub(t)
	slow := &WSClient{id: "slow", hub: hub, send: make(chan []byte, 1), subscriptions: map[string]struct{}{WSTypeEntityState: {}}}
	hub.Register(slow)
	fast := testClient(hub, WSTypeEntityState)

	done := make(chan struct{})
	go func() {
		for i := range 5 {
			hub.Broadcast(WSTypeEntityState, map[string]any{"n": i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on a full client buffer")
	}
	if len(slow.send) != 1 || len(fast.send) != 5 {
		t.Errorf("slow = %d, fast = %d, want 1 and 5", len(slow.send), len(fast.send))
	}
}

func TestHub_CloseAllThenSend(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, testLogger())
	client := testClient(hub, WSTypeEntityState)

	hub.closeAll()
	client.trySend([]byte("x"))
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d after closeAll", hub.ClientCount())
	}
}

// =============================================================================
// End to end
// =============================================================================

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return msg
}

func payloadEntityID(t *testing.T, msg WSMessage) string {
	t.Helper()
	p, ok := msg.Payload.(map[string]any)
	if !ok {
		t.Fatalf("payload = %T, want object", msg.Payload)
	}
	id, _ := p["entity_id"].(string)
	return id
}

func TestWebSocket_SnapshotThenChanges(t *testing.T) {
	srv, coord, _ := testServer(t)
	srv.subscribeStateUpdates()
	t.Cleanup(func() { srv.unsubscribe() })

	// Prime the push tracker so only later changes are sent.
	srv.hub.PublishStates(srv.entities.States())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	for _, want := range []string{"casait_1_u1", "casait_2_u2", "casait_3_u3"} {
		msg := readWS(t, conn)
		if msg.Type != WSTypeEntityState || payloadEntityID(t, msg) != want {
			t.Errorf("snapshot message = %+v, want entity_state for %s", msg, want)
		}
	}

	coord.setLive("1", device.LiveState{"state": true})

	msg := readWS(t, conn)
	if msg.Type != WSTypeEntityState || payloadEntityID(t, msg) != "casait_1_u1" {
		t.Fatalf("change message = %+v, want casait_1_u1", msg)
	}
	attrs, _ := msg.Payload.(map[string]any)["attributes"].(map[string]any)
	if attrs["is_on"] != true {
		t.Errorf("is_on = %v, want true", attrs["is_on"])
	}
}

func TestWebSocket_PingAndSubscribe(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.entities.Reload(nil)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("reply = %+v, want pong p1", msg)
	}

	unsub := WSMessage{Type: WSTypeUnsubscribe, ID: "u1", Payload: WSSubscribePayload{Channels: []string{WSTypeEntityState}}}
	if err := conn.WriteJSON(unsub); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeResponse || msg.ID != "u1" {
		t.Errorf("reply = %+v, want response u1", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "dance", ID: "d1"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("reply = %+v, want error", msg)
	}
}
