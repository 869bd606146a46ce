package rabbitmq

import (
	"log/slog"
	"time"

	"github.com/glimte/rabbiteer/internal/config"
)

const (
	retryInitialInterval = 200 * time.Millisecond
	retryMaxInterval     = 5 * time.Second
)

// Client publishes to and subscribes from a single broker. Every call opens
// its own session and channel and closes them before returning.
type Client struct {
	opts    config.ConnectionOptions
	dial    Dialer
	logger  *slog.Logger
	retries int
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDialer replaces the amqp091 dialer
func WithDialer(dial Dialer) ClientOption {
	return func(c *Client) {
		c.dial = dial
	}
}

// WithConnectRetries retries a failed connection up to n times with
// exponential backoff
func WithConnectRetries(n int) ClientOption {
	return func(c *Client) {
		c.retries = n
	}
}

// NewClient creates a new client
func NewClient(opts config.ConnectionOptions, options ...ClientOption) *Client {
	c := &Client{
		opts:   opts,
		dial:   AMQPDialer(DefaultConnectTimeout),
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	if c.retries > 0 {
		policy := NewExponentialBackoff(retryInitialInterval, retryMaxInterval, 2.0, c.retries)
		c.dial = RetryDialer(c.dial, policy, c.logger)
	}

	return c
}
