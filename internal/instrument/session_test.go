package instrument

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/antenna-survey/internal/config"
)

// fakeAnalyzer answers SCPI queries over TCP with the replies map. Unknown
// queries close the connection.
func fakeAnalyzer(t *testing.T, replies map[string]string) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			go func() {
				defer conn.Close()

				scanner := bufio.NewScanner(conn)
				for scanner.Scan() {
					reply, ok := replies[strings.TrimSpace(scanner.Text())]
					if !ok {
						return
					}
					if reply == "" {
						continue // never answers
					}
					fmt.Fprint(conn, reply)
				}
			}()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return fmt.Sprintf("TCPIP0::127.0.0.1::%d::SOCKET", addr.Port)
}

func TestSession_Query(t *testing.T) {
	resource := fakeAnalyzer(t, map[string]string{
		MarkerQuery: "-42.75\r\n",
		"*IDN?":     "Rigol Technologies,DSA815,DSA8A221700409,00.01.19\n",
		"SILENT?":   "",
	})

	ctx := context.Background()

	s, err := Open(ctx, &Config{Resource: resource, Timeout: config.NewTimeDuration(200 * time.Millisecond)})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if s.Resource().Kind != KindTCP {
		t.Errorf("resource kind = %s, want %s", s.Resource().Kind, KindTCP)
	}

	got, err := s.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got != "-42.75" {
		t.Errorf("Read() = %q, want %q", got, "-42.75")
	}

	got, err = s.Query(ctx, "*IDN?")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if !strings.HasPrefix(got, "Rigol Technologies,DSA815") {
		t.Errorf("Query() = %q", got)
	}

	if _, err = s.Query(ctx, "SILENT?"); err == nil {
		t.Error("Query() without answer succeeded")
	}
}

func TestSession_QueryClosed(t *testing.T) {
	resource := fakeAnalyzer(t, map[string]string{})

	s, err := Open(context.Background(), &Config{Resource: resource})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	if _, err = s.Read(context.Background()); !errors.Is(err, ErrNoResponse) {
		t.Errorf("Read() error = %v, want %v", err, ErrNoResponse)
	}
}

func TestOpen_Errors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	if _, err := Open(context.Background(), &Config{Resource: fmt.Sprintf("TCPIP0::127.0.0.1::%d::SOCKET", port)}); err == nil {
		t.Error("Open() of a closed port succeeded")
	}

	var cfgErr *ConfigError
	if _, err := Open(context.Background(), &Config{}); !errors.As(err, &cfgErr) {
		t.Errorf("Open() error = %v, want *ConfigError", err)
	}

	if _, err := Open(context.Background(), &Config{
		Resource:  "USB0::0x1AB1::0x0960::DSA8A221700409::INSTR",
		USBDevice: "/nonexistent/usbtmc0",
	}); err == nil {
		t.Error("Open() of a missing usbtmc device succeeded")
	}
}
