package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHubBroadcastToGroup(t *testing.T) {
	hub := NewHub(zap.NewNop())

	vendor := newClient(hub, nil, "notifications_vendor_5")
	admin1 := newClient(hub, nil, "notifications_admins")
	admin2 := newClient(hub, nil, "notifications_admins")
	hub.register(vendor)
	hub.register(admin1)
	hub.register(admin2)

	hub.Broadcast("notifications_admins", []byte(`{"id":1}`))

	for _, c := range []*Client{admin1, admin2} {
		select {
		case payload := <-c.send:
			assert.Equal(t, `{"id":1}`, string(payload))
		case <-time.After(time.Second):
			t.Fatal("admin client did not receive broadcast")
		}
	}

	select {
	case <-vendor.send:
		t.Fatal("vendor received admin broadcast")
	default:
	}
}

func TestHubBroadcastToEmptyGroup(t *testing.T) {
	hub := NewHub(zap.NewNop())

	// Must not panic or block with nobody connected.
	hub.Broadcast("notifications_user_1", []byte("x"))
	assert.Equal(t, 0, hub.GroupSize("notifications_user_1"))
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop())

	c := newClient(hub, nil, "notifications_user_9")
	hub.register(c)
	assert.Equal(t, 1, hub.GroupSize("notifications_user_9"))

	hub.unregister(c)
	assert.Equal(t, 0, hub.GroupSize("notifications_user_9"))

	_, open := <-c.send
	assert.False(t, open, "send channel closed on unregister")

	// A second unregister for the same client is a no-op.
	hub.unregister(c)
}
