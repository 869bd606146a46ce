// Package apperr defines the error kinds surfaced by rabbiteer and maps them
// to process exit codes.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for reporting at the invocation boundary
type Kind int

const (
	Unknown Kind = iota
	Config
	Connection
	Protocol
	IO
	Encoding
	Validation
	Timeout
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Connection:
		return "connection"
	case Protocol:
		return "protocol"
	case IO:
		return "io"
	case Encoding:
		return "encoding"
	case Validation:
		return "validation"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

var (
	ErrMalformedHeader      = errors.New("header must have a ':'")
	ErrPathEscape           = errors.New("path escapes output directory")
	ErrNotDirectory         = errors.New("output is not a directory")
	ErrRPCTimeout           = errors.New("timed out waiting for rpc reply")
	ErrDeliveriesClosed     = errors.New("delivery channel closed by broker")
	ErrUnsupportedFieldType = errors.New("unsupported field type")
)

// Error is a classified error
type Error struct {
	Kind Kind   // Error classification
	Op   string // Operation that failed
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and operation. A nil err stays nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func ConfigError(op string, err error) error     { return New(Config, op, err) }
func ConnectionError(op string, err error) error { return New(Connection, op, err) }
func ProtocolError(op string, err error) error   { return New(Protocol, op, err) }
func IOError(op string, err error) error         { return New(IO, op, err) }
func EncodingError(op string, err error) error   { return New(Encoding, op, err) }
func ValidationError(op string, err error) error { return New(Validation, op, err) }
func TimeoutError(op string, err error) error    { return New(Timeout, op, err) }

// KindOf returns the kind of the outermost classified error in the chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch KindOf(err) {
	case Config:
		return 2
	case Connection:
		return 3
	case Protocol:
		return 4
	case IO:
		return 5
	case Encoding:
		return 6
	case Validation:
		return 7
	case Timeout:
		return 8
	default:
		return 1
	}
}
