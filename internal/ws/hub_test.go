package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastToRole(t *testing.T) {
	h := NewHub()
	admin := NewClient(1, "ADMIN")
	driver := NewClient(2, "DRIVER")
	h.Register(admin)
	h.Register(driver)
	assert.Equal(t, 2, h.ClientCount())

	h.BroadcastToRole("ADMIN", map[string]string{"type": "new_order"})

	require.Len(t, admin.Send, 1)
	var got map[string]string
	require.NoError(t, json.Unmarshal(<-admin.Send, &got))
	assert.Equal(t, "new_order", got["type"])
	assert.Len(t, driver.Send, 0)
}

func TestHub_CloseUnregisters(t *testing.T) {
	h := NewHub()
	c := NewClient(1, "ADMIN")
	h.Register(c)
	c.Close()
	c.Close()

	assert.Equal(t, 0, h.ClientCount())
	assert.NotPanics(t, func() { h.BroadcastToRole("ADMIN", "x") })
	assert.NotPanics(t, func() { c.deliver([]byte("late")) })
}
