package rabbitmq

import (
	"github.com/glimte/rabbiteer/internal/apperr"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MatchAll is the topic wildcard used when no routing key is given
const MatchAll = "#"

// QueueOptions selects the queue a subscription consumes from
type QueueOptions struct {
	// Name of an existing queue. Empty declares an anonymous, exclusive,
	// auto-delete queue named by the broker.
	Name string
	// ForceDeclare declares the named queue instead of assuming it exists
	ForceDeclare bool
}

// Binding ties the consumed queue to an exchange
type Binding struct {
	Exchange   string
	RoutingKey *string
}

// Key returns the routing key, defaulting to MatchAll
func (b Binding) Key() string {
	if b.RoutingKey == nil {
		return MatchAll
	}
	return *b.RoutingKey
}

// declareQueue resolves the queue name:
//
//	named + force   -> declare non-durable, non-exclusive, non-auto-delete
//	named           -> use as is, no declaration
//	anonymous       -> declare exclusive auto-delete, broker assigns the name
func declareQueue(ch Channel, q QueueOptions) (string, error) {
	if q.Name != "" && !q.ForceDeclare {
		return q.Name, nil
	}

	anonymous := q.Name == ""
	declared, err := ch.QueueDeclare(
		q.Name,
		false,     // durable
		anonymous, // auto-delete
		anonymous, // exclusive
		false,     // no-wait
		nil,
	)
	if err != nil {
		return "", apperr.ProtocolError("queue.declare", err)
	}

	if declared.Name == "" {
		return q.Name, nil
	}
	return declared.Name, nil
}

// bindQueue binds only when there is an exchange; the default exchange
// cannot be bound to.
func bindQueue(ch Channel, queue string, b Binding) error {
	if b.Exchange == "" {
		return nil
	}

	if err := ch.QueueBind(queue, b.Key(), b.Exchange, false, nil); err != nil {
		return apperr.ProtocolError("queue.bind "+queue+" to "+b.Exchange, err)
	}
	return nil
}

// startConsume asks the broker for deliveries with a broker assigned
// consumer tag. With ack set the client acknowledges every delivery,
// otherwise the broker treats them as acknowledged on send.
func startConsume(ch Channel, queue string, ack bool) (<-chan amqp.Delivery, error) {
	deliveries, err := ch.Consume(
		queue,
		"",    // consumer tag
		!ack,  // no-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return nil, apperr.ProtocolError("basic.consume "+queue, err)
	}
	return deliveries, nil
}

// prepareQueue runs declaration, binding and consumption in order and
// returns the resolved queue name.
func prepareQueue(ch Channel, q QueueOptions, b Binding, ack bool) (string, <-chan amqp.Delivery, error) {
	queue, err := declareQueue(ch, q)
	if err != nil {
		return "", nil, err
	}

	if err := bindQueue(ch, queue, b); err != nil {
		return "", nil, err
	}

	deliveries, err := startConsume(ch, queue, ack)
	if err != nil {
		return "", nil, err
	}

	return queue, deliveries, nil
}
