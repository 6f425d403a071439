package eventbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(zerolog.Nop())
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func recvWithTimeout(t *testing.T, ch <-chan []byte) Outbound {
	t.Helper()
	select {
	case data := <-ch:
		var out Outbound
		require.NoError(t, json.Unmarshal(data, &out))
		return out
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Outbound{}
	}
}

func TestSubscriberOnlyReceivesSubscribedServer(t *testing.T) {
	h := newTestHub(t)

	subA := NewSubscriber("a")
	h.Register(subA)
	h.Apply(subA, InboundSubscribe, "server-1")

	h.Publish(StatusEvent("server-1", "running", nil, "none"))
	got := recvWithTimeout(t, subA.Send())
	require.Equal(t, "server-1", got.ServerID)

	h.Publish(StatusEvent("server-2", "running", nil, "none"))
	select {
	case <-subA.Send():
		t.Fatal("subscriber received event for a server it did not subscribe to")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAllFlagReceivesEveryServer(t *testing.T) {
	h := newTestHub(t)

	sub := NewSubscriber("all-watcher")
	h.Register(sub)
	h.Apply(sub, InboundSubscribe, "")

	h.Publish(StatusEvent("server-9", "stopped", nil, "none"))
	got := recvWithTimeout(t, sub.Send())
	require.Equal(t, "server-9", got.ServerID)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := newTestHub(t)

	sub := NewSubscriber("s")
	h.Register(sub)
	h.Apply(sub, InboundSubscribe, "server-1")
	h.Apply(sub, InboundUnsubscribe, "server-1")

	h.Publish(StatusEvent("server-1", "running", nil, "none"))
	select {
	case <-sub.Send():
		t.Fatal("subscriber received event after unsubscribing")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOrderingPerServerIsPreserved(t *testing.T) {
	h := newTestHub(t)

	sub := NewSubscriber("s")
	h.Register(sub)
	h.Apply(sub, InboundSubscribe, "server-1")

	h.Publish(StatusEvent("server-1", "starting", nil, "none"))
	h.Publish(StatusEvent("server-1", "running", nil, "none"))

	first := recvWithTimeout(t, sub.Send())
	second := recvWithTimeout(t, sub.Send())
	require.Equal(t, "starting", first.Status)
	require.Equal(t, "running", second.Status)
}
