package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dafibh/fortuna/budget-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 256
)

// channel is the subset of *amqp091.Channel used for publishing
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Message is the JSON body published for each event
type Message struct {
	UserID uuid.UUID       `json:"userId"`
	Event  websocket.Event `json:"event"`
}

type outbound struct {
	userID uuid.UUID
	event  websocket.Event
}

// AMQPPublisher forwards events to a RabbitMQ topic exchange using the event
// type as routing key. Publish never blocks the caller: events are queued and
// sent by a background goroutine, and dropped when the queue is full.
type AMQPPublisher struct {
	conn     *amqp091.Connection
	ch       channel
	exchange string
	queue    chan outbound
	done     chan struct{}
	closeMu  sync.Mutex
	closed   bool
}

var _ websocket.EventPublisher = (*AMQPPublisher)(nil)

// NewAMQPPublisher dials the broker and declares the exchange
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	p := newPublisher(ch, exchange)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, exchange string) *AMQPPublisher {
	p := &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		queue:    make(chan outbound, queueSize),
		done:     make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues the event for delivery
func (p *AMQPPublisher) Publish(userID uuid.UUID, event websocket.Event) {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- outbound{userID: userID, event: event}:
	default:
		log.Warn().
			Str("user_id", userID.String()).
			Str("event_type", event.Type).
			Msg("AMQP publish queue full, dropping event")
	}
}

func (p *AMQPPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		if err := p.send(msg); err != nil {
			log.Error().
				Err(err).
				Str("user_id", msg.userID.String()).
				Str("event_type", msg.event.Type).
				Str("exchange", p.exchange).
				Msg("Failed to publish event to AMQP")
		}
	}
}

func (p *AMQPPublisher) send(msg outbound) error {
	body, err := json.Marshal(Message{UserID: msg.userID, Event: msg.event})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		ctx,
		p.exchange,     // exchange
		msg.event.Type, // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.event.Timestamp,
			MessageId:    uuid.NewString(),
			Headers:      amqp091.Table{"user_id": msg.userID.String()},
			Body:         body,
		},
	)
}

// Close drains queued events and closes the channel and connection
func (p *AMQPPublisher) Close() error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.closeMu.Unlock()

	<-p.done

	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
