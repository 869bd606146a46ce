package rabbitmq

import (
	"context"
	"time"

	"github.com/glimte/rabbiteer/internal/apperr"
	"github.com/glimte/rabbiteer/internal/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	clientName            = "rabbiteer"
	DefaultConnectTimeout = 30 * time.Second
	heartbeat             = 10 * time.Second
)

// Channel is the part of *amqp.Channel the client drives
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Ack(tag uint64, multiple bool) error
	Close() error
}

// Session is an open broker connection
type Session interface {
	Channel() (Channel, error)
	Close() error
}

// Dialer opens a session to the broker described by opts
type Dialer func(ctx context.Context, opts config.ConnectionOptions) (Session, error)

type amqpSession struct {
	conn *amqp.Connection
}

func (s *amqpSession) Channel() (Channel, error) {
	ch, err := s.conn.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *amqpSession) Close() error {
	if s.conn.IsClosed() {
		return nil
	}
	return s.conn.Close()
}

// AMQPDialer dials with amqp091. The dial gives up after timeout or when ctx
// is done, whichever comes first.
func AMQPDialer(timeout time.Duration) Dialer {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	return func(ctx context.Context, opts config.ConnectionOptions) (Session, error) {
		connCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		properties := amqp.NewConnectionProperties()
		properties.SetClientConnectionName(clientName)

		connChan := make(chan *amqp.Connection, 1)
		errChan := make(chan error, 1)

		go func() {
			conn, err := amqp.DialConfig(opts.URI(), amqp.Config{
				Heartbeat:  heartbeat,
				Locale:     "en_US",
				Properties: properties,
				Dial:       amqp.DefaultDial(timeout),
			})
			if err != nil {
				errChan <- err
				return
			}
			connChan <- conn
		}()

		select {
		case conn := <-connChan:
			return &amqpSession{conn: conn}, nil

		case err := <-errChan:
			return nil, apperr.ConnectionError("dial "+opts.Redacted(), err)

		case <-connCtx.Done():
			// a late connection must not outlive us
			go func() {
				select {
				case conn := <-connChan:
					conn.Close()
				case <-errChan:
				}
			}()
			return nil, apperr.ConnectionError("dial "+opts.Redacted(), ErrConnectionTimeout)
		}
	}
}

// open starts a session and a single channel on it
func (c *Client) open(ctx context.Context) (Session, Channel, error) {
	sess, err := c.dial(ctx, c.opts)
	if err != nil {
		if apperr.KindOf(err) == apperr.Unknown {
			err = apperr.ConnectionError("open session", err)
		}
		return nil, nil, err
	}

	ch, err := sess.Channel()
	if err != nil {
		sess.Close()
		return nil, nil, apperr.ConnectionError("open channel", err)
	}

	c.logger.Debug("connected to RabbitMQ", "url", c.opts.Redacted())
	return sess, ch, nil
}

// close shuts the channel, then the session
func (c *Client) close(sess Session, ch Channel) error {
	chErr := ch.Close()
	sessErr := sess.Close()

	if chErr != nil {
		return apperr.ProtocolError("channel.close", chErr)
	}
	if sessErr != nil {
		return apperr.ProtocolError("connection.close", sessErr)
	}
	return nil
}
