package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub, userID string) *Client {
	return &Client{
		hub:    hub,
		conn:   nil,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub, "alice")
	c2 := mockClient(hub, "alice")
	c3 := mockClient(hub, "bob")

	hub.Register(c1)
	hub.Register(c2)
	hub.Register(c3)

	if got := hub.ClientCount(); got != 3 {
		t.Fatalf("expected 3 clients, got %d", got)
	}

	hub.Unregister(c1)
	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients after unregister, got %d", got)
	}
	if !hub.Connected("alice") {
		t.Error("alice should still be connected")
	}

	hub.Unregister(c2)
	hub.Unregister(c3)
	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
	if hub.Connected("alice") {
		t.Error("alice should be disconnected")
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub, "alice")
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestSendToUser(t *testing.T) {
	hub := NewHub(slog.Default())

	phone := mockClient(hub, "alice")
	laptop := mockClient(hub, "alice")
	other := mockClient(hub, "bob")
	hub.Register(phone)
	hub.Register(laptop)
	hub.Register(other)

	msg := NewMessage("notification", "created", 42, map[string]any{"family_id": float64(1)})
	if sent := hub.SendToUser("alice", msg); sent != 2 {
		t.Errorf("sent = %d, want 2", sent)
	}

	for _, c := range []*Client{phone, laptop} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "notification_created" {
				t.Errorf("expected type notification_created, got %s", got.Type)
			}
			if got.ID != 42 {
				t.Errorf("expected id 42, got %d", got.ID)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	select {
	case <-other.send:
		t.Error("bob should not receive alice's message")
	default:
	}
}

func TestSendToUserNotConnected(t *testing.T) {
	hub := NewHub(slog.Default())
	if sent := hub.SendToUser("nobody", NewMessage("notification", "created", 1, nil)); sent != 0 {
		t.Errorf("sent = %d, want 0", sent)
	}
}

func TestSendToUserFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub, "alice")
	hub.Register(c)

	for i := 0; i < sendBufferSize; i++ {
		hub.SendToUser("alice", NewMessage("test", "fill", int64(i), nil))
	}

	// This should drop the message, not block
	if sent := hub.SendToUser("alice", NewMessage("test", "dropped", 999, nil)); sent != 0 {
		t.Errorf("sent = %d, want 0 with full buffer", sent)
	}

	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("shared_list", "updated", 5, nil)
	if msg.Type != "shared_list_updated" {
		t.Errorf("expected type shared_list_updated, got %s", msg.Type)
	}
	if msg.Entity != "shared_list" {
		t.Errorf("expected entity shared_list, got %s", msg.Entity)
	}
	if msg.Action != "updated" {
		t.Errorf("expected action updated, got %s", msg.Action)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub, "alice")
			hub.Register(c)
			hub.SendToUser("alice", NewMessage("test", "concurrent", 0, nil))
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestCloseAll(t *testing.T) {
	hub := NewHub(slog.Default())
	a := mockClient(hub, "alice")
	b := mockClient(hub, "bob")
	hub.Register(a)
	hub.Register(b)

	if n := hub.CloseAll(); n != 2 {
		t.Fatalf("CloseAll = %d, want 2", n)
	}
	if hub.ClientCount() != 0 {
		t.Errorf("clients remain after CloseAll")
	}
	if _, ok := <-a.send; ok {
		t.Error("alice send channel should be closed")
	}
	// Unregister after CloseAll must not close twice.
	hub.Unregister(a)
}
