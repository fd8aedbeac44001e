package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dafibh/fortuna/budget-backend/internal/websocket"
	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	mu     sync.Mutex
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestAMQPPublisher_PublishesWithRoutingKey(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "budget.events")
	userID := uuid.New()

	p.Publish(userID, websocket.SeriesModified(map[string]string{"mode": "future"}))
	require.NoError(t, p.Close())

	require.Len(t, ch.sent, 1)
	sent := ch.sent[0]
	assert.Equal(t, "budget.events", sent.exchange)
	assert.Equal(t, "series.modified", sent.key)
	assert.Equal(t, "application/json", sent.msg.ContentType)
	assert.Equal(t, userID.String(), sent.msg.Headers["user_id"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(sent.msg.Body, &body))
	assert.Equal(t, userID.String(), body["userId"])
	assert.Equal(t, "series.modified", body["event"].(map[string]interface{})["type"])
	assert.True(t, ch.closed)
}

func TestAMQPPublisher_ErrorsDoNotPropagate(t *testing.T) {
	ch := &fakeChannel{err: errors.New("connection reset")}
	p := newPublisher(ch, "budget.events")

	assert.NotPanics(t, func() {
		p.Publish(uuid.New(), websocket.TransactionCreated(nil))
	})
	assert.NoError(t, p.Close())
	assert.Empty(t, ch.sent)
}

func TestAMQPPublisher_PublishAfterCloseIsIgnored(t *testing.T) {
	ch := &fakeChannel{}
	p := newPublisher(ch, "budget.events")
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.NotPanics(t, func() {
		p.Publish(uuid.New(), websocket.TransactionCreated(nil))
	})
	assert.Empty(t, ch.sent)
}
