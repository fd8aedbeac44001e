package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	payload := map[string]interface{}{"id": "abc", "description": "Rent"}

	before := time.Now()
	evt := NewEvent(EventTypeCreated, EntityTypeTransaction, payload)
	after := time.Now()

	assert.Equal(t, "transaction.created", evt.Type)
	assert.Equal(t, EntityTypeTransaction, evt.Entity)
	assert.Equal(t, payload, evt.Payload)
	assert.True(t, !evt.Timestamp.Before(before) && !evt.Timestamp.After(after))
	assert.Equal(t, time.UTC, evt.Timestamp.Location())
}

func TestEventConstructors(t *testing.T) {
	tests := []struct {
		evt  Event
		want string
	}{
		{TransactionCreated(nil), "transaction.created"},
		{TransactionUpdated(nil), "transaction.updated"},
		{TransactionDeleted(nil), "transaction.deleted"},
		{SeriesModified(nil), "series.modified"},
		{CategoryCreated(nil), "category.created"},
		{CategoryUpdated(nil), "category.updated"},
		{CategoryDeleted(nil), "category.deleted"},
		{CSVImported(nil), "csv.imported"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.evt.Type)
		})
	}
}

func TestEvent_ToJSON(t *testing.T) {
	evt := SeriesModified(map[string]interface{}{"mode": "future"})

	data, err := evt.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "series.modified", decoded["type"])
	assert.Equal(t, "series", decoded["entity"])
	assert.Equal(t, "future", decoded["payload"].(map[string]interface{})["mode"])
	assert.NotEmpty(t, decoded["timestamp"])
}
