package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/glimte/rabbiteer/internal/apperr"
	"github.com/glimte/rabbiteer/internal/codec"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// StdinFileName marks input that has no file name
	StdinFileName = "-"

	// FileNameHeader carries the name of the published file
	FileNameHeader = "fileName"

	// RPCCorrelationID is sent with every rpc request. It is the same for
	// all requests: each invocation owns its own exclusive reply queue, so
	// the queue alone identifies the reply. Sharing a reply queue between
	// concurrent requests would need a unique id per request.
	RPCCorrelationID = "rabbiteer-rpc"
)

// Sendable is a message to publish
type Sendable struct {
	Exchange    string
	RoutingKey  string
	ContentType string
	// Headers in "Key: Value" form
	Headers  []string
	FileName string
	Reader   io.Reader
	Priority uint8

	// RPC declares a reply queue and waits for one reply, which is passed
	// to OnReply.
	RPC bool
	// RPCTimeout bounds the wait for the reply; zero waits forever
	RPCTimeout time.Duration
	OnReply    MessageHandler
}

// publishing builds the message properties. Body is filled in later.
func (s Sendable) publishing() (amqp.Publishing, error) {
	headers, err := codec.ParseHeaders(s.Headers)
	if err != nil {
		return amqp.Publishing{}, err
	}

	if s.FileName != StdinFileName && s.FileName != "" {
		if _, ok := headers[FileNameHeader]; !ok {
			headers[FileNameHeader] = codec.LongString(filepath.Base(s.FileName))
		}
	}

	return amqp.Publishing{
		ContentType: s.ContentType,
		Headers:     headers.AMQPTable(),
		Priority:    s.Priority,
	}, nil
}

// Publish sends one message. In rpc mode it then blocks until the reply has
// been handled, the timeout passes or ctx is done.
func (c *Client) Publish(ctx context.Context, s Sendable) error {
	if s.Reader == nil {
		return apperr.ConfigError("publish", ErrNoInput)
	}
	if s.RPC && s.OnReply == nil {
		return apperr.ConfigError("publish", ErrNoReplyHandler)
	}

	msg, err := s.publishing()
	if err != nil {
		return err
	}

	sess, ch, err := c.open(ctx)
	if err != nil {
		return err
	}

	var replies <-chan amqp.Delivery
	if s.RPC {
		// no exchange, so the reply queue is never bound
		var replyTo string
		replyTo, replies, err = prepareQueue(ch, QueueOptions{}, Binding{}, true)
		if err != nil {
			sess.Close()
			return err
		}
		msg.ReplyTo = replyTo
		msg.CorrelationId = RPCCorrelationID
	}

	msg.Body, err = io.ReadAll(s.Reader)
	if err != nil {
		sess.Close()
		return apperr.IOError("read input", err)
	}

	if err := ch.PublishWithContext(ctx, s.Exchange, s.RoutingKey, false, false, msg); err != nil {
		sess.Close()
		return apperr.ProtocolError("basic.publish", err)
	}

	c.logger.Debug("published message",
		"exchange", s.Exchange,
		"routingKey", s.RoutingKey,
		"contentType", s.ContentType,
		"size", len(msg.Body),
		"replyTo", msg.ReplyTo,
	)

	if !s.RPC {
		return c.close(sess, ch)
	}

	return c.awaitReply(ctx, sess, ch, msg.ReplyTo, replies, s)
}

// awaitReply hands ch over to a worker running the consume loop and waits
// for it to finish. On timeout the worker is cancelled, the session closed
// and the worker joined before returning.
func (c *Client) awaitReply(ctx context.Context, sess Session, ch Channel, replyTo string, replies <-chan amqp.Delivery, s Sendable) error {
	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the reply is the result of the invocation, so a failure to handle it
	// is returned rather than logged
	var replyErr error
	handler := func(ctx context.Context, d amqp.Delivery) error {
		if err := s.OnReply(ctx, d); err != nil && !errors.Is(err, ErrStopConsuming) {
			replyErr = err
		}
		return ErrStopConsuming
	}

	receiver := Receiver{AutoAck: true, Single: true, Handler: handler}
	done := make(chan error, 1)
	go func() {
		err := c.consume(workerCtx, ch, replyTo, replies, receiver)
		if err == nil {
			err = replyErr
		}
		done <- err
	}()

	var timeout <-chan time.Time
	if s.RPCTimeout > 0 {
		timer := time.NewTimer(s.RPCTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		if err != nil {
			sess.Close()
			return err
		}
		return c.close(sess, ch)

	case <-timeout:
		c.logger.Warn("no rpc reply", "replyTo", replyTo, "timeout", s.RPCTimeout)
		c.abandon(cancel, sess, done)
		return apperr.TimeoutError("await reply on "+replyTo,
			fmt.Errorf("%w after %s", apperr.ErrRPCTimeout, s.RPCTimeout))

	case <-ctx.Done():
		c.abandon(cancel, sess, done)
		return ctx.Err()
	}
}

func (c *Client) abandon(cancel context.CancelFunc, sess Session, done <-chan error) {
	cancel()
	if err := sess.Close(); err != nil {
		c.logger.Debug("close session", "error", err)
	}
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("rpc worker stopped", "error", err)
	}
}
