package store

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	e, err := NewEvent("order-1", "Order", "OrderPlaced", map[string]any{"total": "20"})

	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "order-1", e.AggregateID)
	assert.Equal(t, "OrderPlaced", e.EventType)
	assert.JSONEq(t, `{"total":"20"}`, string(e.Data))
	assert.False(t, e.Timestamp.IsZero())
}

func TestNewEvent_Unmarshalable(t *testing.T) {
	_, err := NewEvent("order-1", "Order", "OrderPlaced", make(chan int))
	assert.Error(t, err)
}

func TestEvent_MarshalJSON_EmbedsRawData(t *testing.T) {
	e, err := NewEvent("order-1", "Order", "OrderCancelled", map[string]string{"reason": "late"})
	require.NoError(t, err)

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded Event
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, e.ID, decoded.ID)
	assert.JSONEq(t, `{"reason":"late"}`, string(decoded.Data))
}
