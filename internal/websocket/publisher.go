package websocket

import "github.com/google/uuid"

// EventPublisher publishes events about a user's data
type EventPublisher interface {
	// Publish delivers an event to every subscriber of the user
	Publish(userID uuid.UUID, event Event)
}

var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting the event to the user's connections
func (h *Hub) Publish(userID uuid.UUID, event Event) {
	h.Broadcast(userID, event)
}

// MultiPublisher fans an event out to several publishers
type MultiPublisher []EventPublisher

// Publish forwards the event to each publisher in order
func (m MultiPublisher) Publish(userID uuid.UUID, event Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(userID, event)
		}
	}
}

// NoOpPublisher is a publisher that does nothing (for testing or when WebSocket is disabled)
type NoOpPublisher struct{}

// Publish does nothing
func (n *NoOpPublisher) Publish(userID uuid.UUID, event Event) {}
