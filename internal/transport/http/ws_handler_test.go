package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/babble-server/internal/config"
	"github.com/vovakirdan/babble-server/internal/core"
	"github.com/vovakirdan/babble-server/internal/server"
	"github.com/vovakirdan/babble-server/internal/service/babble"
	"github.com/vovakirdan/babble-server/internal/store/memory"
)

func startTestServer(t *testing.T) (*httptest.Server, *server.Server) {
	t.Helper()

	cfg := config.Default()
	cfg.MaxClients = 4
	logger := zerolog.Nop()

	reg := core.NewRegistry(cfg.MaxClients)
	srv := server.New(server.Config{Executors: 2, AnswerSenders: 2, QueueCapacity: 8}, reg,
		babble.New(reg, memory.New(), cfg.TimelineMax, &logger), &logger)
	srv.Start()

	ts := httptest.NewServer(NewServer(srv, &cfg, &logger).Handler)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
		ts.Close()
	})

	return ts, srv
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req string) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.Write(ctx, websocket.MessageText, []byte(req)); err != nil {
		t.Fatalf("write %q: %v", req, err)
	}
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read answer to %q: %v", req, err)
	}
	return string(data)
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	resp, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestWebSocketSession(t *testing.T) {
	ts, srv := startTestServer(t)

	alice := dialWS(t, ts)
	bob := dialWS(t, ts)

	want := fmt.Sprintf("OK LOGIN alice %s", core.KeyFor("alice"))
	if got := roundTrip(t, alice, "LOGIN alice"); got != want {
		t.Fatalf("login alice: got %q, want %q", got, want)
	}
	if got := roundTrip(t, bob, "LOGIN bob"); !strings.HasPrefix(got, "OK LOGIN bob ") {
		t.Fatalf("login bob: got %q", got)
	}

	if got := roundTrip(t, alice, "FOLLOW bob"); got != "OK FOLLOW bob" {
		t.Fatalf("follow: got %q", got)
	}
	if got := roundTrip(t, bob, "PUBLISH hello"); !strings.HasPrefix(got, "OK PUBLISH ") {
		t.Fatalf("publish: got %q", got)
	}

	timeline := roundTrip(t, alice, "TIMELINE")
	lines := strings.Split(timeline, "\n")
	if len(lines) != 2 || lines[0] != "OK TIMELINE 1" {
		t.Fatalf("unexpected timeline %q", timeline)
	}
	if !strings.HasPrefix(lines[1], "bob ") || !strings.HasSuffix(lines[1], " hello") {
		t.Fatalf("unexpected timeline entry %q", lines[1])
	}

	if got := roundTrip(t, bob, "FCOUNT"); got != "OK FOLLOW_COUNT 1" {
		t.Fatalf("follow count: got %q", got)
	}

	if n := srv.Stats().Clients; n != 2 {
		t.Fatalf("expected 2 clients, got %d", n)
	}
}

func TestWebSocketDisconnectUnregisters(t *testing.T) {
	ts, srv := startTestServer(t)

	conn := dialWS(t, ts)
	if got := roundTrip(t, conn, "LOGIN alice"); !strings.HasPrefix(got, "OK LOGIN") {
		t.Fatalf("login: got %q", got)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "bye")

	deadline := time.Now().Add(3 * time.Second)
	for srv.Registry().Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("client still registered after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	conn := dialWS(t, ts)
	if got := roundTrip(t, conn, "LOGIN alice"); !strings.HasPrefix(got, "OK LOGIN") {
		t.Fatalf("login: got %q", got)
	}

	resp, err := ts.Client().Get(ts.URL + "/stats")
	if err != nil {
		t.Fatalf("stats request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	var stats server.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Clients != 1 || stats.MaxClients != 4 {
		t.Fatalf("unexpected client stats %+v", stats)
	}
	if stats.Commands.Cap != 8 || stats.Answers.Cap != 8 {
		t.Fatalf("unexpected queue stats %+v", stats)
	}
}

func TestClientsEndpoint(t *testing.T) {
	ts, _ := startTestServer(t)

	for _, name := range []string{"bob", "alice"} {
		conn := dialWS(t, ts)
		if got := roundTrip(t, conn, "LOGIN "+name); !strings.HasPrefix(got, "OK LOGIN") {
			t.Fatalf("login %s: got %q", name, got)
		}
	}

	resp, err := ts.Client().Get(ts.URL + "/clients")
	if err != nil {
		t.Fatalf("clients request failed: %v", err)
	}
	defer resp.Body.Close()

	var body ClientsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode clients: %v", err)
	}
	if len(body.Clients) != 2 || body.Clients[0] != "alice" || body.Clients[1] != "bob" {
		t.Fatalf("unexpected clients %v", body.Clients)
	}
}
