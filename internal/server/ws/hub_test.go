package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	return b.ch, nil
}

func startHub(t *testing.T, bus domain.EventBus) (*Hub, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(bus, "sniper:events", slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	ts := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.clientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return hub, conn
}

func readEvent(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func TestPublishReachesClient(t *testing.T) {
	hub, conn := startHub(t, nil)

	evt := domain.LifecycleEvent{
		Kind:  domain.EventOpened,
		Token: domain.MustParseToken("0x00000000000000000000000000000000000000aa"),
		State: domain.StateOpen,
	}
	if err := hub.Publish(context.Background(), evt); err != nil {
		t.Fatal(err)
	}
	env := readEvent(t, conn)
	if env.Type != "lifecycle" || env.Payload.Kind != domain.EventOpened || env.Payload.Token != evt.Token {
		t.Fatalf("got %+v", env)
	}
}

func TestUnsubscribeFiltersKinds(t *testing.T) {
	hub, conn := startHub(t, nil)

	// Narrow to sold events only.
	if err := conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Kinds: []string{"*"}}); err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(subscribeMsg{Action: "subscribe", Kinds: []string{string(domain.EventSold)}}); err != nil {
		t.Fatal(err)
	}
	// Give the read pump a moment to apply both frames.
	time.Sleep(50 * time.Millisecond)

	_ = hub.Publish(context.Background(), domain.LifecycleEvent{Kind: domain.EventOpened})
	_ = hub.Publish(context.Background(), domain.LifecycleEvent{Kind: domain.EventSold})

	if env := readEvent(t, conn); env.Payload.Kind != domain.EventSold {
		t.Fatalf("first event = %s, want %s", env.Payload.Kind, domain.EventSold)
	}
}

func TestRelayFromBus(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 1)}
	_, conn := startHub(t, bus)

	payload, _ := json.Marshal(domain.LifecycleEvent{Kind: domain.EventAbandoned, Reason: "zero balance"})
	if err := bus.Publish(context.Background(), "sniper:events", payload); err != nil {
		t.Fatal(err)
	}
	env := readEvent(t, conn)
	if env.Payload.Kind != domain.EventAbandoned || env.Payload.Reason != "zero balance" {
		t.Fatalf("got %+v", env)
	}
}
