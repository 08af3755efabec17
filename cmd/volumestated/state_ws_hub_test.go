package main

import (
	"context"
	"testing"
	"time"
)

// These tests cover hub fanout and slow-client disconnection without a real
// websocket server. Clients have a nil websocket.Conn; the hub guards against nil.

func newTestHub(t *testing.T, sendBuf int, broadcastBuf int) *Hub {
	t.Helper()
	return NewHub(newTestLogger(), HubConfig{
		SendBuf:      sendBuf,
		BroadcastBuf: broadcastBuf,
	})
}

func newTestClient(hub *Hub, name string, sendBuf int) *Client {
	return &Client{
		hub:        hub,
		outbox:     make(chan []byte, sendBuf),
		id:         name,
		remoteAddr: name,
		logger:     newTestLogger(),
	}
}


func TestHub_BroadcastDeliveredToAllClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 4, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	c1 := newTestClient(hub, "c1", 4)
	c2 := newTestClient(hub, "c2", 4)
	hub.Join(c1)
	hub.Join(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	msg := []byte(`{"type":"volume_changed","data":{"is_volume_on":false,"seq":1}}`)

	// Push directly: Publish is non-blocking and may drop.
	hub.changes <- msg

	for _, c := range []*Client{c1, c2} {
		select {
		case got := <-c.outbox:
			if string(got) != string(msg) {
				t.Fatalf("%s got %q, want %q", c.id, string(got), string(msg))
			}
		case <-time.After(500 * time.Millisecond):
			t.Fatalf("timeout waiting for %s to receive broadcast", c.id)
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatalf("timeout waiting for hub to stop")
	}

	// Shutdown closes every client's outbox.
	for _, c := range []*Client{c1, c2} {
		if _, ok := <-c.outbox; ok {
			t.Fatalf("expected %s outbox to be closed", c.id)
		}
	}
}

func TestHub_SlowClientDisconnectedOnFullSendBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 1, 8)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	slow := newTestClient(hub, "slow", 1)
	fast := newTestClient(hub, "fast", 8)
	hub.Join(slow)
	hub.Join(fast)

	// Pre-fill slow client buffer to simulate it being stuck.
	slow.outbox <- []byte(`"already queued"`)

	msg := []byte(`{"type":"volume_changed","data":{"is_volume_on":true,"seq":2}}`)
	hub.changes <- msg

	select {
	case got := <-fast.outbox:
		if string(got) != string(msg) {
			t.Fatalf("fast client got %q, want %q", string(got), string(msg))
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timeout waiting for fast client to receive broadcast")
	}

	// Drain the pre-filled message, then expect the channel to be closed.
	select {
	case <-slow.outbox:
	default:
	}

	waitUntil(t, 750*time.Millisecond, func() bool {
		select {
		case _, ok := <-slow.outbox:
			return !ok
		default:
			return false
		}
	}, "expected slow outbox to be closed")

	waitUntil(t, 500*time.Millisecond, func() bool { return hub.ClientCount() == 1 }, "expected one client left")
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	hub := newTestHub(t, 1, 1)

	// Hub is not running, so the queue never drains.
	hub.Publish([]byte("a"))
	hub.Publish([]byte("b"))

	if got := len(hub.changes); got != 1 {
		t.Fatalf("expected 1 queued broadcast, got %d", got)
	}
}

func TestHub_EvictTwiceIsHarmless(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	c := newTestClient(hub, "c", 1)
	hub.Join(c)

	hub.evict(c, "unregister")
	hub.evict(c, "unregister")
	c.disconnect()

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected no clients, got %d", got)
	}
	if _, ok := <-c.outbox; ok {
		t.Fatalf("expected outbox to be closed")
	}
}

func TestClient_OfferToFullOutboxAsksToLeave(t *testing.T) {
	hub := newTestHub(t, 1, 1)
	c := newTestClient(hub, "c", 1)

	c.offer([]byte("first"))
	c.offer([]byte("second"))

	if got := len(hub.leave); got != 1 {
		t.Fatalf("expected client queued to leave, got %d", got)
	}
	if got := string(<-c.outbox); got != "first" {
		t.Fatalf("unexpected frame %q", got)
	}

	// An evicted client's closed outbox must not panic the sender.
	c.disconnect()
	c.offer([]byte("late"))
}

func TestClient_HandleInboundForwardsToggleOnly(t *testing.T) {
	events := make(chan Event, 4)
	c := newTestClient(nil, "c", 1)
	c.events = events

	c.handleInbound([]byte(`{"type":"get_state"}`))
	c.handleInbound([]byte(`garbage`))
	c.handleInbound([]byte(`{"type":"toggle_volume"}`))

	if got := len(events); got != 1 {
		t.Fatalf("expected 1 forwarded event, got %d", got)
	}
	te, ok := (<-events).(TimedEvent)
	if !ok {
		t.Fatalf("expected TimedEvent")
	}
	if _, ok := te.Event.(ToggleVolume); !ok {
		t.Fatalf("expected ToggleVolume, got %T", te.Event)
	}
}

func TestConvertBroadcast(t *testing.T) {
	at := time.Unix(1000, 0)
	env, ok := convertBroadcast(BroadcastVolumeChanged{IsVolumeOn: false, Seq: 7, At: at})
	if !ok {
		t.Fatalf("expected conversion to succeed")
	}
	if env.Type != "volume_changed" {
		t.Fatalf("unexpected type %q", env.Type)
	}
	if env.Ts == nil || !env.Ts.Equal(at) {
		t.Fatalf("expected ts %v, got %v", at, env.Ts)
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}
