// Package output writes rendered messages to stdout or into a directory.
package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/glimte/rabbiteer/internal/apperr"
	"github.com/glimte/rabbiteer/internal/codec"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// Stdout as destination writes messages to standard output
	Stdout = "-"

	fileNameHeader = "fileName"
	randomNameLen  = 16
)

// Sink writes one message at a time to its destination
type Sink struct {
	dest    string
	types   MIMETypes
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
	newName func() string
	mu      sync.Mutex
}

// Option configures the Sink
type Option func(*Sink)

// WithStdout replaces os.Stdout
func WithStdout(w io.Writer) Option {
	return func(s *Sink) {
		s.stdout = w
	}
}

// WithStderr replaces os.Stderr, where written file paths are reported
func WithStderr(w io.Writer) Option {
	return func(s *Sink) {
		s.stderr = w
	}
}

// WithTypes replaces the system MIME table
func WithTypes(types MIMETypes) Option {
	return func(s *Sink) {
		s.types = types
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sink) {
		s.logger = logger
	}
}

// New creates a sink for dest, which is Stdout or an existing directory
func New(dest string, options ...Option) (*Sink, error) {
	s := &Sink{
		dest:    dest,
		types:   SystemTypes(),
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		logger:  slog.Default(),
		newName: randomName,
	}

	for _, opt := range options {
		opt(s)
	}

	if dest == Stdout {
		return s, nil
	}

	info, err := os.Stat(dest)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, apperr.ValidationError("output "+dest, apperr.ErrNotDirectory)
	case err != nil:
		return nil, apperr.IOError("output "+dest, err)
	case !info.IsDir():
		return nil, apperr.ValidationError("output "+dest, apperr.ErrNotDirectory)
	}

	return s, nil
}

// Handler renders each delivery and writes it
func (s *Sink) Handler(info bool) func(ctx context.Context, d amqp.Delivery) error {
	return func(ctx context.Context, d amqp.Delivery) error {
		msg, err := codec.Render(d, info)
		if err != nil {
			return err
		}
		return s.Write(d, msg)
	}
}

// Write stores msg, the rendering of d
func (s *Sink) Write(d amqp.Delivery, msg []byte) error {
	if s.dest == Stdout {
		return s.writeStdout(msg)
	}
	return s.writeFile(d, msg)
}

func (s *Sink) writeStdout(msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := bufio.NewWriter(s.stdout)
	w.Write(msg)
	w.WriteByte('\n')
	if err := w.Flush(); err != nil {
		return apperr.IOError("write stdout", err)
	}
	return nil
}

func (s *Sink) writeFile(d amqp.Delivery, msg []byte) error {
	path, err := s.Path(d)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, msg, 0o644); err != nil {
		return apperr.IOError("write "+path, err)
	}

	s.logger.Debug("wrote message", "path", path, "deliveryTag", d.DeliveryTag)
	fmt.Fprintln(s.stderr, path)
	return nil
}

// Path resolves where d is written. The result is always a direct child of
// the output directory.
func (s *Sink) Path(d amqp.Delivery) (string, error) {
	name := s.FileName(d)
	dir := filepath.Clean(s.dest)
	path := filepath.Join(dir, name)

	if filepath.Dir(path) != dir || path == dir {
		return "", apperr.ValidationError(fmt.Sprintf("file name %q", name), apperr.ErrPathEscape)
	}
	return path, nil
}

// FileName prefers a string fileName header and otherwise makes up a random
// name with an extension matching the content type.
func (s *Sink) FileName(d amqp.Delivery) string {
	if raw, ok := d.Headers[fileNameHeader]; ok {
		if v, err := codec.FromAMQP(raw); err == nil {
			if name, ok := v.(codec.LongString); ok {
				return string(name)
			}
		}
	}

	return s.newName() + "." + extensionFor(s.types, d.ContentType)
}

func randomName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomNameLen]
}
