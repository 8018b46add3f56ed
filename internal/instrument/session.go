package instrument

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Session is an open connection to an instrument. Queries on a session are
// serialized.
type Session struct {
	mu       sync.Mutex
	conn     io.ReadWriteCloser
	reader   *bufio.Reader
	query    string
	timeout  time.Duration
	resource Resource
}

// Open connects to the instrument described by c
func Open(ctx context.Context, c *Config) (*Session, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	res, _ := ParseResource(c.Resource)

	var conn io.ReadWriteCloser
	var err error
	switch res.Kind {
	case KindTCP:
		d := net.Dialer{Timeout: c.timeout()}
		conn, err = d.DialContext(ctx, "tcp", res.Address)

	case KindSerial:
		baud := c.BaudRate
		if baud == 0 {
			baud = DefaultBaudRate
		}
		conn, err = serial.OpenPort(&serial.Config{
			Name:        res.Address,
			Baud:        baud,
			ReadTimeout: c.timeout(),
		})

	case KindUSB:
		var dev string
		if dev, err = usbDevice(c, res); err == nil {
			conn, err = os.OpenFile(dev, os.O_RDWR, 0)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", res, err)
	}

	return &Session{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		query:    c.query(),
		timeout:  c.timeout(),
		resource: res,
	}, nil
}

// Query writes cmd terminated by a newline and returns the next line of the
// response without the line terminator
func (s *Session) Query(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.conn.(deadliner); ok {
		deadline := time.Now().Add(s.timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		_ = d.SetDeadline(deadline) // Character devices may not support deadlines
	}

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := io.WriteString(s.conn, cmd+"\n"); err != nil {
		return "", fmt.Errorf("writing %q: %w", cmd, err)
	}

	line, err := s.reader.ReadString('\n')
	switch {
	case errors.Is(err, io.EOF) && line == "":
		return "", ErrNoResponse
	case err != nil && !errors.Is(err, io.EOF):
		return "", fmt.Errorf("reading response to %q: %w", cmd, err)
	}

	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", ErrNoResponse
	}
	return line, nil
}

// Read issues the configured query
func (s *Session) Read(ctx context.Context) (string, error) {
	return s.Query(ctx, s.query)
}

func (s *Session) Resource() Resource {
	return s.resource
}

func (s *Session) Close() error {
	return s.conn.Close()
}
