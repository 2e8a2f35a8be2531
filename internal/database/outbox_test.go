package database

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewProductEvent(t *testing.T) {
	payload := json.RawMessage(`{"product_id":"p-1","price":1099.0}`)
	event := NewProductEvent("p-1", "price.recorded", payload)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, AggregateProduct, event.AggregateType)
	assert.Equal(t, "p-1", event.AggregateID)
	assert.Equal(t, "price.recorded", event.EventType)
	assert.Equal(t, DefaultStream, event.TargetStream)
	assert.Equal(t, OutboxStatusPending, event.Status)
	assert.JSONEq(t, string(payload), string(event.Payload))
}
