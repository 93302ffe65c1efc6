package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/siohaza/coas/internal/envelope"
	"github.com/siohaza/coas/internal/network"
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
	"github.com/siohaza/coas/internal/status"
	"github.com/siohaza/coas/internal/validation"
	"github.com/siohaza/coas/internal/world"
	"github.com/siohaza/coas/pkg/config"
)

const (
	statusInterval = time.Second
	flushRounds    = 10
)

// Transport is the subset of the network server the loop drives.
type Transport interface {
	Service(timeout time.Duration) (*network.Event, error)
	Send(conn network.ConnID, data []byte) error
	Disconnect(conn network.ConnID)
	PeerCount() int
}

// Game is the simulation the loop feeds. *world.World implements it.
type Game interface {
	Tick() error
	Connect(conn player.ConnID, address string)
	Disconnect(conn player.ConnID) error
	Dispatch(conn player.ConnID, msg protocol.Message) error
	Shutdown() error
	Online() int
	Peak() int
	Uptime() time.Duration
}

type Server struct {
	config  *config.Config
	network Transport
	game    Game
	cipher  *envelope.Cipher
	status  *status.Handler
	logger  *slog.Logger

	limiters     map[network.ConnID]*rate.Limiter
	authLimiters map[network.ConnID]*rate.Limiter
	lastStatus   time.Time
}

func New(cfg *config.Config, transport Transport, game Game, cipher *envelope.Cipher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	return &Server{
		config:       cfg,
		network:      transport,
		game:         game,
		cipher:       cipher,
		logger:       logger,
		limiters:     make(map[network.ConnID]*rate.Limiter),
		authLimiters: make(map[network.ConnID]*rate.Limiter),
	}
}

// SetStatus attaches a status responder that is refreshed from the loop.
func (s *Server) SetStatus(h *status.Handler) {
	s.status = h
}

// Run drives the game until ctx is cancelled or the game asks to stop.
// Each iteration ticks the world once and then handles at most one
// transport event. Sessions and the server record are persisted before Run
// returns; a persistence failure is returned.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("tick loop started", "poll_timeout", s.config.PollTimeout())

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("server context cancelled, exiting run loop")
			return s.shutdown(nil)
		default:
		}

		if err := s.game.Tick(); err != nil {
			return s.shutdown(err)
		}

		if err := s.handleNetworkEvent(); err != nil {
			return s.shutdown(err)
		}

		s.updateStatus(false)
	}
}

func (s *Server) shutdown(cause error) error {
	if cause != nil && !errors.Is(cause, world.ErrShutdown) {
		s.logger.Error("fatal error in tick loop", "error", cause)
	}

	err := s.game.Shutdown()
	s.updateStatus(true)
	s.flush()

	if cause != nil && !errors.Is(cause, world.ErrShutdown) {
		return errors.Join(cause, err)
	}
	if err != nil {
		return fmt.Errorf("failed to persist on shutdown: %w", err)
	}
	s.logger.Info("world saved")
	return nil
}

// flush services the host briefly so queued Close messages reach clients
// before the host is destroyed. Inbound events are discarded.
func (s *Server) flush() {
	for range flushRounds {
		if _, err := s.network.Service(s.config.PollTimeout()); err != nil {
			return
		}
	}
}

func (s *Server) handleNetworkEvent() error {
	event, err := s.network.Service(s.config.PollTimeout())
	if err != nil {
		s.logger.Error("network service error", "error", err)
		return nil
	}

	switch event.Type {
	case network.EventTypeConnect:
		s.handleConnect(event)
	case network.EventTypeDisconnect:
		return s.handleDisconnect(event)
	case network.EventTypeReceive:
		return s.handlePacket(event.Conn, event.Data)
	}
	return nil
}

func (s *Server) handleConnect(event *network.Event) {
	if s.config.RateLimit.Enabled {
		s.limiters[event.Conn] = rate.NewLimiter(
			rate.Limit(s.config.RateLimit.MessagesPerSecond),
			s.config.RateLimit.Burst,
		)
	}
	s.game.Connect(player.ConnID(event.Conn), event.Address)
	s.logger.Debug("connection opened", "conn", event.Conn, "address", event.Address)
}

func (s *Server) handleDisconnect(event *network.Event) error {
	delete(s.limiters, event.Conn)
	delete(s.authLimiters, event.Conn)
	s.logger.Debug("connection closed", "conn", event.Conn, "reason", event.Reason)
	return s.game.Disconnect(player.ConnID(event.Conn))
}

func (s *Server) checkRateLimit(conn network.ConnID) bool {
	limiter, ok := s.limiters[conn]
	if !ok {
		return true
	}
	if limiter.Allow() {
		return true
	}
	s.logger.Debug("rate limit exceeded, dropping message", "conn", conn)
	return false
}

// handlePacket opens, decodes and dispatches one inbound payload. Anything
// that fails to open or decode is dropped without a reply.
func (s *Server) handlePacket(conn network.ConnID, data []byte) error {
	if err := validation.ValidatePacketSize(data); err != nil {
		s.logger.Debug("dropping packet", "conn", conn, "error", err)
		return nil
	}

	if !s.checkRateLimit(conn) {
		return nil
	}

	plain, err := s.cipher.Open(data)
	if err != nil {
		return nil
	}

	msg, err := protocol.Unmarshal(plain)
	if err != nil {
		return nil
	}

	if !s.checkAuthLimit(conn, msg) {
		return nil
	}

	return s.game.Dispatch(player.ConnID(conn), msg)
}

// checkAuthLimit budgets Login and Create separately from other traffic.
// Each one hashes a password on the loop, so a client may only try a few.
func (s *Server) checkAuthLimit(conn network.ConnID, msg protocol.Message) bool {
	switch msg.(type) {
	case *protocol.Login, *protocol.Create:
	default:
		return true
	}

	limiter, ok := s.authLimiters[conn]
	if !ok {
		limiter = rate.NewLimiter(
			rate.Limit(s.config.RateLimit.LoginsPerSecond),
			s.config.RateLimit.LoginBurst,
		)
		s.authLimiters[conn] = limiter
	}
	if limiter.Allow() {
		return true
	}
	s.logger.Debug("login attempt over budget, dropping", "conn", conn, "kind", msg.Kind())
	return false
}

func (s *Server) updateStatus(force bool) {
	if s.status == nil {
		return
	}
	now := time.Now()
	if !force && now.Sub(s.lastStatus) < statusInterval {
		return
	}
	s.lastStatus = now

	s.status.Update(status.Info{
		Name:          s.config.Server.Name,
		Version:       s.config.Server.Version,
		Players:       s.game.Online(),
		Connections:   s.network.PeerCount(),
		MaxPlayers:    s.config.Server.MaxPeers,
		Peak:          s.game.Peak(),
		UptimeSeconds: int64(s.game.Uptime() / time.Second),
	})
}

// Outbox adapts the transport to the world's connection-keyed sends.
type Outbox struct {
	network Transport
}

func NewOutbox(transport Transport) *Outbox {
	return &Outbox{network: transport}
}

func (o *Outbox) Send(conn player.ConnID, data []byte) error {
	return o.network.Send(network.ConnID(conn), data)
}

func (o *Outbox) Disconnect(conn player.ConnID) {
	o.network.Disconnect(network.ConnID(conn))
}
