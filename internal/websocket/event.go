package websocket

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType is the action part of an event type
type EventType string

const (
	EventTypeCreated  EventType = "created"
	EventTypeUpdated  EventType = "updated"
	EventTypeDeleted  EventType = "deleted"
	EventTypeModified EventType = "modified"
	EventTypeImported EventType = "imported"
)

// EntityType is the kind of record an event is about
type EntityType string

const (
	EntityTypeTransaction EntityType = "transaction"
	EntityTypeSeries      EntityType = "series"
	EntityTypeCategory    EntityType = "category"
	EntityTypeCSV         EntityType = "csv"
)

// Event is the message pushed to clients and the broker.
// Type is "<entity>.<action>", e.g. "transaction.created".
type Event struct {
	Type      string      `json:"type"`
	Entity    EntityType  `json:"entity"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent creates a new event with the given type, entity, and payload
func NewEvent(eventType EventType, entityType EntityType, payload interface{}) Event {
	return Event{
		Type:      fmt.Sprintf("%s.%s", entityType, eventType),
		Entity:    entityType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON serializes the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func TransactionCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeTransaction, payload)
}

func TransactionUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeTransaction, payload)
}

func TransactionDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeTransaction, payload)
}

// SeriesModified creates a series.modified event carrying the modification result
func SeriesModified(payload interface{}) Event {
	return NewEvent(EventTypeModified, EntityTypeSeries, payload)
}

func CategoryCreated(payload interface{}) Event {
	return NewEvent(EventTypeCreated, EntityTypeCategory, payload)
}

func CategoryUpdated(payload interface{}) Event {
	return NewEvent(EventTypeUpdated, EntityTypeCategory, payload)
}

func CategoryDeleted(payload interface{}) Event {
	return NewEvent(EventTypeDeleted, EntityTypeCategory, payload)
}

// CSVImported creates a csv.imported event carrying the import summary
func CSVImported(payload interface{}) Event {
	return NewEvent(EventTypeImported, EntityTypeCSV, payload)
}
