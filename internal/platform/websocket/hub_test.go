package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Hub tests
// ---------------------------------------------------------------------------

func TestHub_RegisterClient(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "client-1",
		Topics: []string{"conversation/123"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(client)

	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}
	if hub.TopicCount("conversation/123") != 1 {
		t.Fatalf("expected 1 client on conversation/123, got %d", hub.TopicCount("conversation/123"))
	}
}

func TestHub_UnregisterClient(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "client-2",
		Topics: []string{"conversation/456"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.TopicCount("conversation/456") != 0 {
		t.Fatalf("expected 0 clients on conversation/456, got %d", hub.TopicCount("conversation/456"))
	}
}

func TestHub_BroadcastToTopic(t *testing.T) {
	hub := NewHub()

	subscriber := &Client{
		ID:     "sub-1",
		Topics: []string{"conversation/123"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	nonSubscriber := &Client{
		ID:     "non-sub-1",
		Topics: []string{"user/999"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(subscriber)
	hub.Register(nonSubscriber)

	event := Event{
		Type:       EventMessageCreated,
		Topic:      "conversation/123",
		ResourceID: "msg-1",
		Timestamp:  time.Now(),
	}

	hub.Broadcast("conversation/123", event)

	select {
	case msg := <-subscriber.Send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal event: %v", err)
		}
		if received.Type != EventMessageCreated {
			t.Fatalf("expected event type %s, got %s", EventMessageCreated, received.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	select {
	case <-nonSubscriber.Send:
		t.Fatal("non-subscriber should not have received event")
	default:
		// expected
	}
}

func TestHub_BroadcastAll(t *testing.T) {
	hub := NewHub()

	c1 := &Client{
		ID:     "all-1",
		Topics: []string{"conversation/1"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	c2 := &Client{
		ID:     "all-2",
		Topics: []string{"user/2"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(c1)
	hub.Register(c2)

	event := Event{
		Type:      "system.alert",
		Topic:     "system",
		Timestamp: time.Now(),
	}

	hub.BroadcastAll(event)

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.Send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("failed to unmarshal: %v", err)
			}
			if received.Type != "system.alert" {
				t.Fatalf("expected system.alert, got %s", received.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive broadcast", c.ID)
		}
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := NewHub()

	if hub.ClientCount() != 0 {
		t.Fatalf("expected 0, got %d", hub.ClientCount())
	}

	clients := make([]*Client, 5)
	for i := range clients {
		clients[i] = &Client{
			ID:     "count-" + string(rune('a'+i)),
			Topics: []string{"conversation/x"},
			Send:   make(chan []byte, 256),
			hub:    hub,
		}
		hub.Register(clients[i])
	}

	if hub.ClientCount() != 5 {
		t.Fatalf("expected 5, got %d", hub.ClientCount())
	}

	hub.Unregister(clients[0])
	hub.Unregister(clients[1])

	if hub.ClientCount() != 3 {
		t.Fatalf("expected 3, got %d", hub.ClientCount())
	}
}

func TestHub_TopicCount(t *testing.T) {
	hub := NewHub()

	c1 := &Client{
		ID:     "tc-1",
		Topics: []string{"conversation/1"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	c2 := &Client{
		ID:     "tc-2",
		Topics: []string{"conversation/1"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	c3 := &Client{
		ID:     "tc-3",
		Topics: []string{"user/5"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	if hub.TopicCount("conversation/1") != 2 {
		t.Fatalf("expected 2 on conversation/1, got %d", hub.TopicCount("conversation/1"))
	}
	if hub.TopicCount("user/5") != 1 {
		t.Fatalf("expected 1 on user/5, got %d", hub.TopicCount("user/5"))
	}
	if hub.TopicCount("nonexistent") != 0 {
		t.Fatalf("expected 0 on nonexistent, got %d", hub.TopicCount("nonexistent"))
	}
}

func TestHub_MultipleTopics(t *testing.T) {
	hub := NewHub()

	client := &Client{
		ID:     "multi-1",
		Topics: []string{"conversation/1", "user/2"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	hub.Register(client)

	event := Event{
		Type:       EventMessageCreated,
		Topic:      "conversation/1",
		ResourceID: "msg-1",
		Timestamp:  time.Now(),
	}
	hub.Broadcast("conversation/1", event)

	select {
	case msg := <-client.Send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if received.Topic != "conversation/1" {
			t.Fatalf("expected topic conversation/1, got %s", received.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("did not receive event on conversation/1")
	}

	// Verify client is registered on both topics
	if hub.TopicCount("conversation/1") != 1 {
		t.Fatalf("expected 1 on conversation/1, got %d", hub.TopicCount("conversation/1"))
	}
	if hub.TopicCount("user/2") != 1 {
		t.Fatalf("expected 1 on user/2, got %d", hub.TopicCount("user/2"))
	}
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "close-1",
		Topics: []string{"conversation/a"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(client)
	hub.Unregister(client)

	// Reading from a closed channel returns zero value immediately
	_, ok := <-client.Send
	if ok {
		t.Fatal("expected Send channel to be closed after unregister")
	}
}

func TestHub_BroadcastToEmptyTopic(t *testing.T) {
	hub := NewHub()

	event := Event{
		Type:       EventAppointmentUpdated,
		Topic:      "user/no-one-here",
		ResourceID: "999",
		Timestamp:  time.Now(),
	}

	// Should not panic
	hub.Broadcast("user/no-one-here", event)
}

func TestHub_ConcurrentRegisterUnregister(t *testing.T) {
	hub := NewHub()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n * 2)

	clients := make([]*Client, n)
	for i := 0; i < n; i++ {
		clients[i] = &Client{
			ID:     "concurrent-" + string(rune(i)),
			Topics: []string{"conversation/concurrent"},
			Send:   make(chan []byte, 256),
			hub:    hub,
		}
	}

	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			hub.Register(clients[idx])
		}(i)
	}

	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			hub.Unregister(clients[idx])
		}(i)
	}

	wg.Wait()

	count := hub.ClientCount()
	if count < 0 {
		t.Fatalf("client count should not be negative, got %d", count)
	}
}

// ---------------------------------------------------------------------------
// Topic helpers
// ---------------------------------------------------------------------------

func TestTopicHelpers(t *testing.T) {
	if got := ConversationTopic("abc"); got != "conversation/abc" {
		t.Errorf("expected conversation/abc, got %s", got)
	}
	if got := UserTopic("u1"); got != "user/u1" {
		t.Errorf("expected user/u1, got %s", got)
	}
}

// ---------------------------------------------------------------------------
// Publisher tests
// ---------------------------------------------------------------------------

func TestHub_PublishEvent(t *testing.T) {
	hub := NewHub()

	client := &Client{
		ID:     "pub-1",
		Topics: []string{"conversation/100"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	hub.Register(client)

	var publisher EventPublisher = hub

	payload := json.RawMessage(`{"content":"Your next screening is due in March."}`)
	event := Event{
		Type:       EventMessageCreated,
		Topic:      "conversation/100",
		ResourceID: "msg-100",
		Timestamp:  time.Now(),
		Data:       payload,
	}

	if err := publisher.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-client.Send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}
		if received.ResourceID != "msg-100" {
			t.Fatalf("expected ResourceID msg-100, got %s", received.ResourceID)
		}
		if received.Data == nil {
			t.Fatal("expected Data payload to survive broadcast")
		}
	case <-time.After(time.Second):
		t.Fatal("did not receive published event")
	}
}

func TestHub_PublishBroadcastsToSubscribers(t *testing.T) {
	hub := NewHub()

	c1 := &Client{
		ID:     "multi-pub-1",
		Topics: []string{"conversation/200"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	c2 := &Client{
		ID:     "multi-pub-2",
		Topics: []string{"conversation/200"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	c3 := &Client{
		ID:     "multi-pub-3",
		Topics: []string{"user/300"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	event := Event{
		Type:       EventMessageCreated,
		Topic:      "conversation/200",
		ResourceID: "msg-200",
		Timestamp:  time.Now(),
	}

	if err := hub.Publish(context.Background(), event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Both subscribers should get the event
	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.Send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client %s: failed to unmarshal: %v", c.ID, err)
			}
			if received.ResourceID != "msg-200" {
				t.Fatalf("client %s: expected ResourceID msg-200, got %s", c.ID, received.ResourceID)
			}
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive event", c.ID)
		}
	}

	// Non-subscriber should not receive it
	select {
	case <-c3.Send:
		t.Fatal("c3 should not have received event for conversation/200")
	default:
		// expected
	}
}

// ---------------------------------------------------------------------------
// Handler tests
// ---------------------------------------------------------------------------

func TestWebSocketHandler_RegisterRoutes(t *testing.T) {
	hub := NewHub()
	handler := NewWebSocketHandler(hub)

	e := echo.New()
	g := e.Group("")
	handler.RegisterRoutes(g)

	routes := e.Routes()
	found := false
	for _, r := range routes {
		if r.Path == "/ws" && r.Method == http.MethodGet {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected GET /ws route to be registered")
	}
}

func TestWebSocketHandler_HandleConnectRequiresWebSocket(t *testing.T) {
	hub := NewHub()
	handler := NewWebSocketHandler(hub)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.HandleConnect(c)

	// gorilla/websocket upgrader will reject non-WS requests
	if err == nil && rec.Code == http.StatusSwitchingProtocols {
		t.Fatal("expected upgrade to fail for non-websocket request")
	}
}

func TestHub_SubscribeAddsTopics(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "dynamic-sub-1",
		Topics: []string{},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	hub.Register(client)

	hub.Subscribe(client, []string{"conversation/new", "user/new"})

	if hub.TopicCount("conversation/new") != 1 {
		t.Fatalf("expected 1 on conversation/new, got %d", hub.TopicCount("conversation/new"))
	}
	if hub.TopicCount("user/new") != 1 {
		t.Fatalf("expected 1 on user/new, got %d", hub.TopicCount("user/new"))
	}
	if len(client.Topics) != 2 {
		t.Fatalf("expected 2 topics on client, got %d", len(client.Topics))
	}
}

func TestHub_UnsubscribeRemovesTopics(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "dynamic-unsub-1",
		Topics: []string{"conversation/1", "user/2", "conversation/3"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	hub.Register(client)

	hub.Unsubscribe(client, []string{"conversation/1", "conversation/3"})

	if hub.TopicCount("conversation/1") != 0 {
		t.Fatalf("expected 0 on conversation/1, got %d", hub.TopicCount("conversation/1"))
	}
	if hub.TopicCount("user/2") != 1 {
		t.Fatalf("expected 1 on user/2, got %d", hub.TopicCount("user/2"))
	}
	if hub.TopicCount("conversation/3") != 0 {
		t.Fatalf("expected 0 on conversation/3, got %d", hub.TopicCount("conversation/3"))
	}
	if len(client.Topics) != 1 {
		t.Fatalf("expected 1 topic remaining, got %d", len(client.Topics))
	}
}

func TestClientMessage_ProcessSubscribe(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "process-1",
		Topics: []string{},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	hub.Register(client)

	raw := `{"action":"subscribe","topics":["conversation/123","user/456"]}`
	var msg ClientMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	hub.ProcessMessage(client, msg)

	if hub.TopicCount("conversation/123") != 1 {
		t.Fatalf("expected 1 subscriber on conversation/123, got %d", hub.TopicCount("conversation/123"))
	}
}

func TestClientMessage_ProcessUnsubscribe(t *testing.T) {
	hub := NewHub()
	client := &Client{
		ID:     "process-2",
		Topics: []string{"conversation/123", "user/456"},
		Send:   make(chan []byte, 256),
		hub:    hub,
	}
	hub.Register(client)

	raw := `{"action":"unsubscribe","topics":["conversation/123"]}`
	var msg ClientMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	hub.ProcessMessage(client, msg)

	if hub.TopicCount("conversation/123") != 0 {
		t.Fatalf("expected 0 on conversation/123, got %d", hub.TopicCount("conversation/123"))
	}
	if hub.TopicCount("user/456") != 1 {
		t.Fatalf("expected 1 on user/456, got %d", hub.TopicCount("user/456"))
	}
}

func TestWebSocketHandler_FullUpgradeWithDialer(t *testing.T) {
	hub := NewHub()
	handler := NewWebSocketHandler(hub)

	e := echo.New()
	g := e.Group("")
	handler.RegisterRoutes(g)

	server := httptest.NewServer(e)
	defer server.Close()

	// Convert http URL to ws URL
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	dialer := gorillawebsocket.Dialer{}
	conn, resp, err := dialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	defer conn.Close()

	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", resp.StatusCode)
	}

	// Give the goroutine a moment to register
	time.Sleep(50 * time.Millisecond)
	if hub.ClientCount() < 1 {
		t.Fatal("expected at least 1 client registered after connect")
	}

	// Send a subscribe message
	subMsg := ClientMessage{
		Action: "subscribe",
		Topics: []string{"conversation/test-ws"},
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		t.Fatalf("failed to send subscribe: %v", err)
	}

	// Give the server time to process the subscribe
	time.Sleep(50 * time.Millisecond)

	if hub.TopicCount("conversation/test-ws") != 1 {
		t.Fatalf("expected 1 subscriber on conversation/test-ws, got %d", hub.TopicCount("conversation/test-ws"))
	}

	// Now broadcast an event and verify we receive it
	event := Event{
		Type:       EventMessageCreated,
		Topic:      "conversation/test-ws",
		ResourceID: "msg-ws",
		Timestamp:  time.Now(),
	}
	hub.Broadcast("conversation/test-ws", event)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var received Event
	if err := conn.ReadJSON(&received); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if received.Type != EventMessageCreated {
		t.Fatalf("expected %s, got %s", EventMessageCreated, received.Type)
	}
	if received.ResourceID != "msg-ws" {
		t.Fatalf("expected ResourceID msg-ws, got %s", received.ResourceID)
	}
}
