package rabbitmq

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/glimte/rabbiteer/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/mock"
)

type declareCall struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
	NoWait     bool
}

type bindCall struct {
	Queue    string
	Key      string
	Exchange string
}

type consumeCall struct {
	Queue     string
	Consumer  string
	AutoAck   bool
	Exclusive bool
	NoLocal   bool
	NoWait    bool
}

type publishCall struct {
	Exchange  string
	Key       string
	Mandatory bool
	Immediate bool
	Msg       amqp.Publishing
}

// fakeChannel records every call and serves deliveries from a buffered
// channel. Closing it closes the delivery channel, like amqp091 does.
type fakeChannel struct {
	mu         sync.Mutex
	events     []string
	declares   []declareCall
	binds      []bindCall
	consumes   []consumeCall
	publishes  []publishCall
	acks       []uint64
	closeCount int
	closed     bool

	deliveries chan amqp.Delivery
	brokerName string

	declareErr error
	bindErr    error
	consumeErr error
	publishErr error
	ackErr     error

	// onPublish runs after a publish has been recorded
	onPublish func(ch *fakeChannel, call publishCall)
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		deliveries: make(chan amqp.Delivery, 16),
		brokerName: "amq.gen-test",
	}
}

func (f *fakeChannel) record(event string) {
	f.events = append(f.events, event)
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("declare")
	f.declares = append(f.declares, declareCall{name, durable, autoDelete, exclusive, noWait})
	if f.declareErr != nil {
		return amqp.Queue{}, f.declareErr
	}
	if name == "" {
		name = f.brokerName
	}
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("bind")
	f.binds = append(f.binds, bindCall{name, key, exchange})
	return f.bindErr
}

func (f *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("consume")
	f.consumes = append(f.consumes, consumeCall{queue, consumer, autoAck, exclusive, noLocal, noWait})
	if f.consumeErr != nil {
		return nil, f.consumeErr
	}
	return f.deliveries, nil
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	f.record("publish")
	call := publishCall{exchange, key, mandatory, immediate, msg}
	f.publishes = append(f.publishes, call)
	err := f.publishErr
	hook := f.onPublish
	f.mu.Unlock()

	if err == nil && hook != nil {
		hook(f, call)
	}
	return err
}

func (f *fakeChannel) Ack(tag uint64, multiple bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ack")
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acks = append(f.acks, tag)
	return nil
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCount++
	if !f.closed {
		f.closed = true
		close(f.deliveries)
	}
	return nil
}

// deliver queues a delivery unless the channel is already closed
func (f *fakeChannel) deliver(d amqp.Delivery) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.deliveries <- d
	return true
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) snapshotEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func (f *fakeChannel) snapshotAcks() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.acks...)
}

// mockSession hands out a fixed channel
type mockSession struct {
	mock.Mock
	channel *fakeChannel
}

func (m *mockSession) Channel() (Channel, error) {
	args := m.Called()
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return m.channel, nil
}

func (m *mockSession) Close() error {
	args := m.Called()
	// closing a connection closes its channels
	m.channel.Close()
	return args.Error(0)
}

func newMockSession(ch *fakeChannel) *mockSession {
	sess := &mockSession{channel: ch}
	sess.On("Channel").Return(nil)
	sess.On("Close").Return(nil)
	return sess
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticDialer(sess Session, err error, calls *int) Dialer {
	return func(ctx context.Context, opts config.ConnectionOptions) (Session, error) {
		if calls != nil {
			*calls++
		}
		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func newTestClient(sess Session) *Client {
	return NewClient(config.Defaults(),
		WithDialer(staticDialer(sess, nil, nil)),
		WithLogger(discardLogger()),
	)
}
