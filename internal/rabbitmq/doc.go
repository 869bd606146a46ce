// Package rabbitmq drives a RabbitMQ broker for the rabbiteer command line
// tool.
//
// This package includes:
//   - Client: opens a session and channel per invocation
//   - Publish: sends one message, optionally as an rpc request that waits
//     for a reply on an exclusive, broker named queue
//   - Subscribe: binds a queue to an exchange and hands every delivery to a
//     MessageHandler, acknowledging before the handler runs
//
// Queue selection follows a small policy: a named queue is used as is unless
// ForceDeclare is set, while an unnamed queue is declared exclusive and
// auto-delete. Queues are bound only when an exchange is given.
//
// The broker is reached through the Session and Channel interfaces. AMQPDialer
// backs them with amqp091-go; *amqp.Channel satisfies Channel directly.
// RetryDialer wraps any Dialer with exponential backoff for failed
// connection attempts.
package rabbitmq
