package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/siohaza/coas/internal/envelope"
	"github.com/siohaza/coas/internal/network"
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
	"github.com/siohaza/coas/internal/status"
	"github.com/siohaza/coas/internal/world"
	"github.com/siohaza/coas/pkg/config"
)

type fakeTransport struct {
	events       []*network.Event
	done         func()
	sent         map[network.ConnID]int
	disconnected []network.ConnID
	peers        int
}

func (f *fakeTransport) Service(time.Duration) (*network.Event, error) {
	if len(f.events) == 0 {
		f.done()
		return &network.Event{Type: network.EventTypeNone}, nil
	}
	event := f.events[0]
	f.events = f.events[1:]
	return event, nil
}

func (f *fakeTransport) Send(conn network.ConnID, data []byte) error {
	if f.sent == nil {
		f.sent = make(map[network.ConnID]int)
	}
	f.sent[conn]++
	return nil
}

func (f *fakeTransport) Disconnect(conn network.ConnID) {
	f.disconnected = append(f.disconnected, conn)
}

func (f *fakeTransport) PeerCount() int {
	return f.peers
}

type fakeGame struct {
	tickErr     error
	dispatchErr error

	ticks        int
	connected    []player.ConnID
	disconnected []player.ConnID
	dispatched   []protocol.Message
	shutdowns    int
}

func (g *fakeGame) Tick() error {
	g.ticks++
	return g.tickErr
}

func (g *fakeGame) Connect(conn player.ConnID, address string) {
	g.connected = append(g.connected, conn)
}

func (g *fakeGame) Disconnect(conn player.ConnID) error {
	g.disconnected = append(g.disconnected, conn)
	return nil
}

func (g *fakeGame) Dispatch(conn player.ConnID, msg protocol.Message) error {
	g.dispatched = append(g.dispatched, msg)
	return g.dispatchErr
}

func (g *fakeGame) Shutdown() error {
	g.shutdowns++
	return nil
}

func (g *fakeGame) Online() int           { return 0 }
func (g *fakeGame) Peak() int             { return 0 }
func (g *fakeGame) Uptime() time.Duration { return 0 }

func newTestServer(t *testing.T, configure func(*config.Config), events ...*network.Event) (*Server, *fakeGame, *fakeTransport, context.Context) {
	t.Helper()

	cfg := config.Default()
	cfg.Server.PollTimeoutMS = 0
	if configure != nil {
		configure(cfg)
	}

	cipher, err := envelope.New(bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	transport := &fakeTransport{events: events, done: cancel}
	game := &fakeGame{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, transport, game, cipher, logger), game, transport, ctx
}

func sealed(t *testing.T, msg protocol.Message) []byte {
	t.Helper()
	cipher, err := envelope.New(bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatalf("failed to create cipher: %v", err)
	}
	data, err := cipher.Seal(protocol.Marshal(msg))
	if err != nil {
		t.Fatalf("failed to seal: %v", err)
	}
	return data
}

func receive(conn network.ConnID, data []byte) *network.Event {
	return &network.Event{Type: network.EventTypeReceive, Conn: conn, Data: data}
}

func TestRunDispatchesSealedMessages(t *testing.T) {
	srv, game, _, ctx := newTestServer(t, nil,
		&network.Event{Type: network.EventTypeConnect, Conn: 1, Address: "127.0.0.1:5000"},
		receive(1, sealed(t, &protocol.Ping{})),
		receive(1, []byte("not sealed at all, just noise from a port scan")),
		receive(1, nil),
		&network.Event{Type: network.EventTypeDisconnect, Conn: 1},
	)

	if err := srv.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(game.connected) != 1 || game.connected[0] != 1 {
		t.Fatalf("expected connect for conn 1, got %v", game.connected)
	}
	if len(game.dispatched) != 1 {
		t.Fatalf("expected exactly one dispatched message, got %d", len(game.dispatched))
	}
	if _, ok := game.dispatched[0].(*protocol.Ping); !ok {
		t.Fatalf("expected Ping, got %T", game.dispatched[0])
	}
	if len(game.disconnected) != 1 {
		t.Fatalf("expected disconnect, got %v", game.disconnected)
	}
	if game.shutdowns != 1 {
		t.Fatalf("expected shutdown on cancel, got %d", game.shutdowns)
	}
	if game.ticks < 5 {
		t.Fatalf("expected a tick per event, got %d", game.ticks)
	}
}

func TestRunDropsFlood(t *testing.T) {
	events := []*network.Event{{Type: network.EventTypeConnect, Conn: 7}}
	for range 5 {
		events = append(events, receive(7, sealed(t, &protocol.Ping{})))
	}

	srv, game, _, ctx := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.Enabled = true
		cfg.RateLimit.MessagesPerSecond = 0.001
		cfg.RateLimit.Burst = 2
	}, events...)

	if err := srv.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(game.dispatched) != 2 {
		t.Fatalf("expected burst of 2 to pass, got %d", len(game.dispatched))
	}
}

func TestRunBudgetsLoginAttempts(t *testing.T) {
	events := []*network.Event{{Type: network.EventTypeConnect, Conn: 4}}
	for range 6 {
		events = append(events, receive(4, sealed(t, &protocol.Login{User: "alice", Password: "wrong"})))
	}
	events = append(events,
		receive(4, sealed(t, &protocol.Create{User: "alice", Password: "wrong"})),
		receive(4, sealed(t, &protocol.Ping{})),
	)

	srv, game, _, ctx := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.LoginsPerSecond = 0.001
		cfg.RateLimit.LoginBurst = 3
	}, events...)

	if err := srv.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	logins := 0
	for _, msg := range game.dispatched {
		switch msg.(type) {
		case *protocol.Login, *protocol.Create:
			logins++
		}
	}
	if logins != 3 {
		t.Fatalf("expected 3 login attempts to pass, got %d", logins)
	}
	if _, ok := game.dispatched[len(game.dispatched)-1].(*protocol.Ping); !ok {
		t.Fatalf("other traffic should not be held back by the login budget")
	}
}

func TestRunReportsDisconnectReasonAndStatus(t *testing.T) {
	srv, _, transport, ctx := newTestServer(t, nil,
		&network.Event{Type: network.EventTypeConnect, Conn: 2},
		&network.Event{Type: network.EventTypeDisconnect, Conn: 2, Reason: 7},
	)
	transport.peers = 2

	var logs bytes.Buffer
	srv.logger = slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	statusHandler := status.NewHandler("127.0.0.1:0", status.Info{}, srv.logger)
	srv.SetStatus(statusHandler)

	if err := srv.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if !strings.Contains(logs.String(), "reason=7") {
		t.Fatalf("disconnect reason not logged: %s", logs.String())
	}
	if info := statusHandler.Info(); info.Connections != 2 || info.Name != "coas" {
		t.Fatalf("status not refreshed on stop: %+v", info)
	}
}

func TestRunStopsOnShutdownRequest(t *testing.T) {
	srv, game, _, ctx := newTestServer(t, nil,
		&network.Event{Type: network.EventTypeConnect, Conn: 1},
		receive(1, sealed(t, &protocol.Chat{Message: "/save"})),
		receive(1, sealed(t, &protocol.Ping{})),
	)
	game.dispatchErr = world.ErrShutdown

	if err := srv.Run(ctx); err != nil {
		t.Fatalf("expected clean stop, got %v", err)
	}
	if len(game.dispatched) != 1 {
		t.Fatalf("expected loop to stop after the first message, got %d", len(game.dispatched))
	}
	if game.shutdowns != 1 {
		t.Fatalf("expected shutdown, got %d", game.shutdowns)
	}
}

func TestRunReturnsPersistenceFailure(t *testing.T) {
	srv, game, _, ctx := newTestServer(t, nil)
	game.tickErr = &world.PersistenceError{Op: "save server", Err: errors.New("disk full")}

	err := srv.Run(ctx)
	var pe *world.PersistenceError
	if !errors.As(err, &pe) {
		t.Fatalf("expected persistence error, got %v", err)
	}
	if game.shutdowns != 1 {
		t.Fatalf("expected a final save attempt, got %d", game.shutdowns)
	}
}

func TestOutboxForwardsToTransport(t *testing.T) {
	transport := &fakeTransport{}
	out := NewOutbox(transport)

	if err := out.Send(3, []byte{1}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	out.Disconnect(3)

	if transport.sent[3] != 1 {
		t.Fatalf("expected one packet for conn 3, got %d", transport.sent[3])
	}
	if len(transport.disconnected) != 1 || transport.disconnected[0] != 3 {
		t.Fatalf("expected disconnect of conn 3, got %v", transport.disconnected)
	}
}
