package network

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/codecat/go-enet"
)

// ConnID identifies a transport connection for its whole lifetime. IDs are
// never reused within a process.
type ConnID uint64

type Server struct {
	host     enet.Host
	port     uint16
	maxPeers int
	logger   *slog.Logger

	nextID ConnID
	byPeer map[enet.Peer]ConnID
	peers  map[ConnID]enet.Peer
}

type Event struct {
	Type      EventType
	Conn      ConnID
	Address   string
	Data      []byte
	ChannelID uint8

	// Reason is the peer-supplied disconnect code; zero for a timeout or a
	// plain close.
	Reason uint32
}

type EventType int

const (
	EventTypeNone EventType = iota
	EventTypeConnect
	EventTypeDisconnect
	EventTypeReceive
)

func NewServer(port int, maxPeers int, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		port:     uint16(port),
		maxPeers: maxPeers,
		logger:   logger,
		byPeer:   make(map[enet.Peer]ConnID),
		peers:    make(map[ConnID]enet.Peer),
	}, nil
}

func (s *Server) Start() error {
	address := enet.NewListenAddress(s.port)

	var err error
	s.host, err = enet.NewHost(address, uint64(s.maxPeers), 1, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to create ENet host: %w", err)
	}

	if err := s.host.CompressWithRangeCoder(); err != nil {
		return fmt.Errorf("failed to setup range coder compression: %w", err)
	}

	s.logger.Info("server started", "port", s.port, "max_peers", s.maxPeers)
	return nil
}

func (s *Server) Stop() {
	if s.host == nil {
		return
	}

	for _, peer := range s.peers {
		peer.DisconnectNow(0)
	}
	s.host.Destroy()
	s.host = nil
	s.logger.Info("server stopped")
}

func (s *Server) Service(timeout time.Duration) (*Event, error) {
	if s.host == nil {
		return nil, fmt.Errorf("server not started")
	}

	timeoutMs := uint32(timeout.Milliseconds())
	enetEvent := s.host.Service(timeoutMs)

	if enetEvent == nil || enetEvent.GetType() == enet.EventNone {
		return &Event{Type: EventTypeNone}, nil
	}

	peer := enetEvent.GetPeer()
	event := &Event{}
	if peer != nil {
		event.Address = peer.GetAddress().String()
	}

	switch enetEvent.GetType() {
	case enet.EventConnect:
		s.nextID++
		id := s.nextID
		s.byPeer[peer] = id
		s.peers[id] = peer
		event.Type = EventTypeConnect
		event.Conn = id
		s.logger.Debug("peer connected", "conn", id, "peer", event.Address)

	case enet.EventDisconnect:
		id, ok := s.byPeer[peer]
		if !ok {
			return &Event{Type: EventTypeNone}, nil
		}
		delete(s.byPeer, peer)
		delete(s.peers, id)
		event.Type = EventTypeDisconnect
		event.Conn = id
		event.Reason = enetEvent.GetData()
		s.logger.Debug("peer disconnected", "conn", id, "peer", event.Address, "reason", event.Reason)

	case enet.EventReceive:
		packet := enetEvent.GetPacket()
		if packet == nil {
			return &Event{Type: EventTypeNone}, nil
		}
		// copy out before the packet memory is released
		data := append([]byte(nil), packet.GetData()...)
		packet.Destroy()

		id, ok := s.byPeer[peer]
		if !ok {
			return &Event{Type: EventTypeNone}, nil
		}
		event.Type = EventTypeReceive
		event.Conn = id
		event.Data = data
		event.ChannelID = enetEvent.GetChannelID()
	}

	return event, nil
}

// Send queues data for conn, reliable and ordered on channel 0. Unknown
// connections are ignored.
func (s *Server) Send(conn ConnID, data []byte) error {
	peer, ok := s.peers[conn]
	if !ok {
		return nil
	}

	packet, err := enet.NewPacket(data, enet.PacketFlagReliable)
	if err != nil {
		return fmt.Errorf("failed to create packet: %w", err)
	}

	if err := peer.SendPacket(packet, 0); err != nil {
		return fmt.Errorf("failed to send packet: %w", err)
	}

	return nil
}

// Disconnect asks the transport to close conn once queued packets are
// delivered.
func (s *Server) Disconnect(conn ConnID) {
	peer, ok := s.peers[conn]
	if !ok {
		return
	}
	peer.DisconnectLater(0)
}

func (s *Server) PeerCount() int {
	return len(s.peers)
}
