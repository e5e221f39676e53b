package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/codesnip/snipsync/internal/writeback"
)

type fakeSource struct {
	stats writeback.Stats
	state writeback.State
}

func (f *fakeSource) Stats() writeback.Stats { return f.stats }
func (f *fakeSource) State() writeback.State { return f.state }

func startServer(t *testing.T) *Server {
	t.Helper()

	server := NewServer(&Config{
		Host:   "127.0.0.1",
		Port:   0, // Use random available port
		Logger: log.New(io.Discard, "", 0),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { server.Stop() })
	return server
}

// dial connects a client, reads its welcome message and waits until the
// server has registered it for broadcasts.
func dial(t *testing.T, ctx context.Context, server *Server, want int) (*websocket.Conn, Message) {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	welcome := read(t, ctx, conn)

	deadline := time.Now().Add(2 * time.Second)
	for server.ClientCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", want, server.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn, welcome
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Host: "127.0.0.1", Port: 0, Logger: log.New(io.Discard, "", 0)})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if addr := server.GetAddr(); addr == "" {
		t.Fatal("Server address is empty")
	}

	resp, err := http.Get("http://" + server.GetAddr() + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Health status = %d, want 200", resp.StatusCode)
	}

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	server := NewServer(&Config{Logger: log.New(io.Discard, "", 0)})
	if err := server.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := 1; i <= 3; i++ {
		_, welcome := dial(t, ctx, server, i)
		if welcome.Type != MessageTypeStats {
			t.Errorf("Expected welcome message type %s, got %s", MessageTypeStats, welcome.Type)
		}
	}

	if count := server.ClientCount(); count != 3 {
		t.Errorf("Expected 3 clients, got %d", count)
	}
}

func TestHandlerFlushEvents(t *testing.T) {
	server := startServer(t)
	handler := NewHandler(server, log.New(io.Discard, "", 0))

	lastSave := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	handler.Attach(&fakeSource{
		stats: writeback.Stats{Flushes: 2, Saves: 1, Failures: 1, LastSave: lastSave, LastError: errors.New("boom")},
		state: writeback.StateIdle,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, welcome := dial(t, ctx, server, 1)

	var stats StatsData
	if err := json.Unmarshal(welcome.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal welcome stats: %v", err)
	}
	if stats.Saves != 1 || stats.State != "idle" || stats.LastError != "boom" {
		t.Errorf("welcome stats = %+v", stats)
	}
	if stats.LastSave == nil || !stats.LastSave.Equal(lastSave) {
		t.Errorf("LastSave = %v, want %v", stats.LastSave, lastSave)
	}

	// Scheduling notifications are not forwarded.
	handler.OnFlushEvent(writeback.FlushEvent{Type: writeback.FlushScheduled})
	handler.OnFlushEvent(writeback.FlushEvent{
		Type:    writeback.FlushRetrying,
		FlushID: "f1",
		Attempt: 1,
		Err:     errors.New("backend unavailable"),
	})

	msg := read(t, ctx, conn)
	if msg.Type != MessageTypeFlushRetrying {
		t.Fatalf("Expected message type %s, got %s", MessageTypeFlushRetrying, msg.Type)
	}
	var data FlushData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("Failed to unmarshal flush data: %v", err)
	}
	if data.FlushID != "f1" || data.Attempt != 1 || data.Error != "backend unavailable" {
		t.Errorf("flush data = %+v", data)
	}

	// A finished flush is followed by a stats update.
	handler.OnFlushEvent(writeback.FlushEvent{Type: writeback.FlushSucceeded, FlushID: "f1", Attempt: 2})
	if msg := read(t, ctx, conn); msg.Type != MessageTypeFlushSucceeded {
		t.Errorf("Expected message type %s, got %s", MessageTypeFlushSucceeded, msg.Type)
	}
	if msg := read(t, ctx, conn); msg.Type != MessageTypeStats {
		t.Errorf("Expected message type %s, got %s", MessageTypeStats, msg.Type)
	}
}

func TestHandlerWithoutSource(t *testing.T) {
	server := startServer(t)
	handler := NewHandler(server, log.New(io.Discard, "", 0))

	if _, ok := handler.GetStats(); ok {
		t.Error("GetStats() should report no source")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Clients still get an empty stats welcome.
	_, welcome := dial(t, ctx, server, 1)
	if welcome.Type != MessageTypeStats || len(welcome.Data) != 0 {
		t.Errorf("welcome = %+v", welcome)
	}
}

func TestHandlerWithCoordinator(t *testing.T) {
	server := startServer(t)
	handler := NewHandler(server, log.New(io.Discard, "", 0))

	saved := make(chan struct{}, 1)
	coord, err := writeback.New(
		func(ctx context.Context) (writeback.Snapshot, error) { return "state", nil },
		writeback.StorageFunc(func(ctx context.Context, snap writeback.Snapshot) error {
			saved <- struct{}{}
			return nil
		}),
		writeback.DefaultConfig(),
		writeback.WithLogger(log.New(io.Discard, "", 0)),
		writeback.WithObserver(handler.OnFlushEvent),
	)
	if err != nil {
		t.Fatalf("writeback.New() failed: %v", err)
	}
	handler.Attach(coord)
	defer coord.Close(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _ := dial(t, ctx, server, 1)

	if err := coord.Flush(); err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	<-saved

	want := []MessageType{MessageTypeFlushStarted, MessageTypeFlushSucceeded, MessageTypeStats}
	for _, typ := range want {
		if msg := read(t, ctx, conn); msg.Type != typ {
			t.Fatalf("Expected message type %s, got %s", typ, msg.Type)
		}
	}
}

func TestStopDisconnectsClients(t *testing.T) {
	server := NewServer(&Config{Host: "127.0.0.1", Port: 0, Logger: log.New(io.Discard, "", 0)})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if err := server.Start(); err == nil {
		t.Error("Expected error starting a running server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _ := dial(t, ctx, server, 1)

	// Keep reading so the close handshake completes.
	readErr := make(chan error, 1)
	go func() {
		_, _, err := conn.Read(ctx)
		readErr <- err
	}()

	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
	if err := server.Stop(); err != nil {
		t.Errorf("Second Stop() failed: %v", err)
	}
	if count := server.ClientCount(); count != 0 {
		t.Errorf("Expected 0 clients after stop, got %d", count)
	}

	// Broadcasting after Stop is a no-op.
	server.Broadcast(Message{Type: MessageTypeStats})

	if err := <-readErr; err == nil {
		t.Error("Expected read error after server stopped")
	}
}

func TestRootPage(t *testing.T) {
	server := startServer(t)

	resp, err := http.Get("http://" + server.GetAddr() + "/")
	if err != nil {
		t.Fatalf("Root request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Root status = %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "/ws") {
		t.Errorf("Root page should name the websocket endpoint, got %q", body)
	}

	resp, err = http.Get("http://" + server.GetAddr() + "/missing")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Unknown path status = %d, want 404", resp.StatusCode)
	}
}
