package amqp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expenses/internal/core"
)

type fakeChannel struct {
	mu         sync.Mutex
	published  []amqp091.Publishing
	keys       []string
	deliveries chan amqp091.Delivery
	publishErr error
	declared   []string
}

func (f *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error {
	f.declared = append(f.declared, "exchange:"+name+":"+kind)
	return nil
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error) {
	f.declared = append(f.declared, "queue:"+name)
	return amqp091.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error {
	f.declared = append(f.declared, "bind:"+name+"->"+exchange)
	return nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	f.keys = append(f.keys, exchange+"/"+key)
	return nil
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error) {
	return f.deliveries, nil
}

func (f *fakeChannel) Close() error { return nil }

type fakeAck struct {
	mu      sync.Mutex
	acks    int
	nacks   int
	requeue []bool
}

func (a *fakeAck) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAck) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *fakeAck) Reject(tag uint64, requeue bool) error { return nil }

func sampleExpense() core.Expense {
	return core.Expense{ID: 7, Date: core.NewDate(2024, 1, 5), Amount: decimal.NewFromFloat(42.5), Category: "Food"}
}

func TestSetupDeclaresTopology(t *testing.T) {
	ch := &fakeChannel{}
	c := newClient(ch, "expenses", "expense_added", nil)
	require.NoError(t, c.setup())
	assert.Equal(t, []string{
		"exchange:expenses:direct",
		"queue:expense_added",
		"bind:expense_added->expenses",
	}, ch.declared)
}

func TestPublishExpenseAdded(t *testing.T) {
	ch := &fakeChannel{}
	c := newClient(ch, "expenses", "expense_added", nil)

	require.NoError(t, c.PublishExpenseAdded(context.Background(), sampleExpense()))
	require.Len(t, ch.published, 1)

	pub := ch.published[0]
	assert.Equal(t, "expenses/expense_added", ch.keys[0])
	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, amqp091.Persistent, pub.DeliveryMode)
	assert.NotEmpty(t, pub.MessageId)

	msg, err := ExpenseAddedMessageFromJSON(pub.Body)
	require.NoError(t, err)
	assert.Equal(t, int64(7), msg.ID)
	assert.Equal(t, "2024-01-05", msg.Date)
	assert.Equal(t, "42.5", msg.Amount)
	assert.Equal(t, pub.MessageId, msg.MessageID)
}

func TestPublishError(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel/connection is not open")}
	c := newClient(ch, "expenses", "expense_added", nil)
	err := c.PublishExpenseAdded(context.Background(), sampleExpense())
	assert.ErrorContains(t, err, "publish message")
}

func TestConsumeAcksNacks(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp091.Delivery, 3)}
	c := newClient(ch, "expenses", "expense_added", nil)
	ack := &fakeAck{}

	good, _ := NewExpenseAddedMessage(sampleExpense()).ToJSON()
	failing := sampleExpense()
	failing.ID = 8
	bad, _ := NewExpenseAddedMessage(failing).ToJSON()

	ch.deliveries <- amqp091.Delivery{Acknowledger: ack, Body: good}
	ch.deliveries <- amqp091.Delivery{Acknowledger: ack, Body: []byte("{not json")}
	ch.deliveries <- amqp091.Delivery{Acknowledger: ack, Body: bad}
	close(ch.deliveries)

	var handled []int64
	err := c.ConsumeExpenseAdded(context.Background(), func(ctx context.Context, m *ExpenseAddedMessage) error {
		handled = append(handled, m.ID)
		if m.ID == 8 {
			return errors.New("sheet unavailable")
		}
		return nil
	})
	assert.ErrorContains(t, err, "message channel closed")
	assert.Equal(t, []int64{7, 8}, handled)
	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 2, ack.nacks)
	assert.Equal(t, []bool{false, true}, ack.requeue)
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ch := &fakeChannel{deliveries: make(chan amqp091.Delivery)}
	c := newClient(ch, "expenses", "expense_added", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := c.ConsumeExpenseAdded(ctx, func(context.Context, *ExpenseAddedMessage) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCloseWithoutConnection(t *testing.T) {
	c := newClient(&fakeChannel{}, "x", "q", nil)
	assert.NoError(t, c.Close())
}
