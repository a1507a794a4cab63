package hub

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busmate/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.After(time.Second)
	for h.ClientCount() != want {
		select {
		case <-deadline:
			t.Fatalf("client count never reached %d", want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	a := NewClient("a", 8)
	b := NewClient("b", 8)
	h.Register(a)
	h.Register(b)
	waitForClients(t, h, 2)

	h.Broadcast(EventNoNearbyStops, nil)

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.Receive():
			var evt Event
			require.NoError(t, json.Unmarshal(data, &evt))
			assert.Equal(t, EventNoNearbyStops, evt.Type)
		case <-time.After(time.Second):
			t.Fatalf("client %s never received the event", c.ID)
		}
	}
}

func TestNotifyPublishesMatchDecision(t *testing.T) {
	h := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := NewClient("a", 8)
	h.Register(c)
	waitForClients(t, h, 1)

	h.Notify(domain.MatchDecision{IsMatch: true, DetectedNumber: "742", RegisteredBus: "742"})

	select {
	case data := <-c.Receive():
		var evt struct {
			Type    string               `json:"type"`
			Payload domain.MatchDecision `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &evt))
		assert.Equal(t, EventBusMatched, evt.Type)
		assert.True(t, evt.Payload.IsMatch)
		assert.Equal(t, "742", evt.Payload.DetectedNumber)
	case <-time.After(time.Second):
		t.Fatal("match event never arrived")
	}
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	h := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	c := NewClient("a", 8)
	h.Register(c)
	waitForClients(t, h, 1)

	h.Unregister(c)
	waitForClients(t, h, 0)

	select {
	case _, open := <-c.Receive():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}

func TestShutdownClosesAllClients(t *testing.T) {
	h := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := NewClient("a", 8)
	h.Register(c)
	waitForClients(t, h, 1)

	cancel()

	select {
	case _, open := <-c.Receive():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel never closed on shutdown")
	}
}

func TestSendToClosedClientIsDropped(t *testing.T) {
	h := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := NewClient("a", 8)
	h.Register(c)
	waitForClients(t, h, 1)

	cancel()

	// Wait for shutdown to close the client, then simulate a read loop
	// that was still handling a ping: the send must drop, not panic.
	select {
	case _, open := <-c.Receive():
		require.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel never closed on shutdown")
	}

	assert.False(t, c.TrySend([]byte(`{"type":"pong"}`)))
}
