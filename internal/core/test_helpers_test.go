package core

import (
	"testing"
	"time"
)

// mustFinish fails the test if fn does not return within d.
func mustFinish(t *testing.T, d time.Duration, what string, fn func()) {
	t.Helper()

	done := make(chan struct{})
	go func() {
		fn()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(d):
		t.Fatalf("%s did not finish within %v", what, d)
	}
}

// mustBlock fails the test if ch is closed or receives within d.
func mustBlock(t *testing.T, d time.Duration, what string, ch <-chan struct{}) {
	t.Helper()

	select {
	case <-ch:
		t.Fatalf("%s returned while it should block", what)
	case <-time.After(d):
	}
}

type nopConn struct{ addr string }

func (c nopConn) ReadMessage() ([]byte, error) { return nil, nil }
func (c nopConn) WriteMessage([]byte) error    { return nil }
func (c nopConn) Close() error                 { return nil }
func (c nopConn) RemoteAddr() string           { return c.addr }

func bundle(name string) *ClientBundle {
	return &ClientBundle{Key: KeyFor(name), Name: name, Conn: nopConn{addr: name}}
}
