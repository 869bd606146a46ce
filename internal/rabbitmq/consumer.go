package rabbitmq

import (
	"context"
	"errors"

	"github.com/glimte/rabbiteer/internal/apperr"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler processes one delivery. Returning ErrStopConsuming ends the
// subscription after this delivery; any other error is logged and consumption
// continues.
type MessageHandler func(ctx context.Context, delivery amqp.Delivery) error

// Receiver describes a subscription
type Receiver struct {
	Exchange string
	// RoutingKey to bind with; nil binds with MatchAll
	RoutingKey *string
	// AutoAck acknowledges each delivery as soon as it arrives, before the
	// handler runs. Without it the broker considers deliveries acknowledged
	// on send.
	AutoAck bool
	// Single stops after the first delivery has been handled
	Single  bool
	Handler MessageHandler
}

// Subscribe consumes from the queue chosen by q until the context is
// cancelled, a single-shot receiver has seen its delivery, or the broker
// closes the channel.
func (c *Client) Subscribe(ctx context.Context, q QueueOptions, r Receiver) error {
	if r.Handler == nil {
		return apperr.ConfigError("subscribe", ErrNoHandler)
	}

	sess, ch, err := c.open(ctx)
	if err != nil {
		return err
	}

	binding := Binding{Exchange: r.Exchange, RoutingKey: r.RoutingKey}
	queue, deliveries, err := prepareQueue(ch, q, binding, r.AutoAck)
	if err != nil {
		sess.Close()
		return err
	}

	c.logger.Info("subscribed to queue",
		"queue", queue,
		"exchange", r.Exchange,
		"routingKey", binding.Key(),
		"autoAck", r.AutoAck,
	)

	err = c.consume(ctx, ch, queue, deliveries, r)
	if errors.Is(err, context.Canceled) {
		c.logger.Info("subscription interrupted", "queue", queue)
		err = nil
	}

	if closeErr := c.close(sess, ch); err == nil {
		err = closeErr
	}
	return err
}

// consume runs the delivery loop on ch. Deliveries are handled strictly in
// arrival order on the calling goroutine.
func (c *Client) consume(ctx context.Context, ch Channel, queue string, deliveries <-chan amqp.Delivery, r Receiver) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("delivery channel closed", "queue", queue)
				return apperr.ProtocolError("consume "+queue, apperr.ErrDeliveriesClosed)
			}

			if r.AutoAck {
				if err := ch.Ack(delivery.DeliveryTag, false); err != nil {
					return apperr.ProtocolError("basic.ack", err)
				}
			}

			err := r.Handler(ctx, delivery)
			stop := errors.Is(err, ErrStopConsuming)
			if err != nil && !stop {
				c.logger.Error("failed to handle message",
					"error", err,
					"queue", queue,
					"deliveryTag", delivery.DeliveryTag,
				)
			}

			if r.Single || stop {
				c.logger.Debug("consumer stopped", "queue", queue, "deliveryTag", delivery.DeliveryTag)
				if err := ch.Close(); err != nil {
					return apperr.ProtocolError("channel.close", err)
				}
				return nil
			}
		}
	}
}
