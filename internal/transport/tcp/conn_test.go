package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/core"
)

func pipe(t *testing.T, maxMessage int) (*Conn, net.Conn) {
	t.Helper()
	server, peer := net.Pipe()
	t.Cleanup(func() {
		_ = server.Close()
		_ = peer.Close()
	})
	return NewConn(server, maxMessage, time.Second), peer
}

func feed(peer net.Conn, data string) {
	go func() {
		_, _ = io.WriteString(peer, data)
		_ = peer.Close()
	}()
}

func TestReadMessageFraming(t *testing.T) {
	c, peer := pipe(t, 32)
	feed(peer, "LOGIN alice\r\nRDV\n\nTIMELINE")

	for _, want := range []string{"LOGIN alice", "RDV", "", "TIMELINE"} {
		got, err := c.ReadMessage()
		if err != nil {
			t.Fatalf("read %q: %v", want, err)
		}
		if string(got) != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
	if _, err := c.ReadMessage(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestReadMessageTooLong(t *testing.T) {
	c, peer := pipe(t, 8)
	feed(peer, strings.Repeat("x", 40)+"\n123456789\n12345678\n")

	if _, err := c.ReadMessage(); !errors.Is(err, core.ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong for long line, got %v", err)
	}
	if _, err := c.ReadMessage(); !errors.Is(err, core.ErrMessageTooLong) {
		t.Fatalf("expected ErrMessageTooLong for 9 bytes, got %v", err)
	}
	got, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "12345678" {
		t.Fatalf("got %q, want the line at the limit", got)
	}
}

func TestWriteMessageTerminates(t *testing.T) {
	c, peer := pipe(t, 32)
	r := bufio.NewReader(peer)

	go func() {
		_ = c.WriteMessage([]byte("OK RDV"))
		_ = c.WriteMessage([]byte("OK LOGIN alice 1\n"))
	}()

	for _, want := range []string{"OK RDV\n", "OK LOGIN alice 1\n"} {
		got, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	}
}

func TestWriteMessageTimeout(t *testing.T) {
	server, peer := net.Pipe()
	defer server.Close()
	defer peer.Close()
	c := NewConn(server, 32, 20*time.Millisecond)

	// nobody reads from peer
	err := c.WriteMessage([]byte("OK RDV"))
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	logger := zerolog.Nop()
	ctx, cancel := context.WithCancel(context.Background())

	echo := func(_ context.Context, conn core.Conn) {
		defer conn.Close()
		for {
			msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.WriteMessage(msg)
		}
	}

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, Options{MaxMessage: 64, WriteTimeout: time.Second}, echo, &logger) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(3 * time.Second))

	if _, err := io.WriteString(conn, "ping\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil || line != "ping\n" {
		t.Fatalf("echo: %q, %v", line, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not stop")
	}
}
