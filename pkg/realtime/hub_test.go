package realtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHub_SubscribeReplaysBacklog(t *testing.T) {
	h := NewHub(4, 0)
	c := &Connection{ID: "c1", subscriptions: make(map[string]bool), outbound: make(chan frame, 4)}

	require.NoError(t, h.Publish("req-1", map[string]interface{}{"type": "progress", "progress": 10}))
	require.NoError(t, h.Publish("req-1", map[string]interface{}{"type": "progress", "progress": 25}))

	h.Subscribe(c, "req-1")

	require.Len(t, c.outbound, 2)
}

func TestHub_HasActiveSubscribers(t *testing.T) {
	h := NewHub(4, 0)
	c := &Connection{ID: "c1", subscriptions: make(map[string]bool), outbound: make(chan frame, 4)}

	require.False(t, h.HasActiveSubscribers("req-1"))
	h.Subscribe(c, "req-1")
	require.True(t, h.HasActiveSubscribers("req-1"))
	h.Unsubscribe(c, "req-1")
	require.False(t, h.HasActiveSubscribers("req-1"))
}

func TestHub_BackpressureDropsNonCriticalWhenQueueFull(t *testing.T) {
	h := NewHub(1, 0)
	c := &Connection{ID: "c1", subscriptions: make(map[string]bool), outbound: make(chan frame, 1)}
	h.Subscribe(c, "req-1")

	require.NoError(t, h.Publish("req-1", map[string]interface{}{"type": "progress", "progress": 10}))
	require.NoError(t, h.Publish("req-1", map[string]interface{}{"type": "progress", "progress": 25}))

	require.Equal(t, int64(1), h.DroppedCount())
}
