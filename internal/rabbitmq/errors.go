package rabbitmq

import (
	"errors"
)

var (
	// ErrStopConsuming is returned by a MessageHandler to end the consume
	// loop once the current delivery has been handled.
	ErrStopConsuming = errors.New("rabbitmq: stop consuming")

	ErrConnectionTimeout = errors.New("rabbitmq: connection timeout")
	ErrNoReplyHandler    = errors.New("rabbitmq: rpc publish without reply handler")
	ErrNoHandler         = errors.New("rabbitmq: subscribe without message handler")
	ErrNoInput           = errors.New("rabbitmq: publish without input")
)
