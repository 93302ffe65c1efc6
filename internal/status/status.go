package status

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Probe payloads. A bare HELLO is answered with HI so clients can measure
// latency; HELLOINFO is answered with the JSON Info.
const (
	probePing = "HELLO"
	probeInfo = "HELLOINFO"
)

type Info struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Players       int    `json:"players"`
	Connections   int    `json:"connections"`
	MaxPlayers    int    `json:"max_players"`
	Peak          int    `json:"peak"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// Handler answers UDP status probes next to the game port.
type Handler struct {
	conn          *net.UDPConn
	logger        *slog.Logger
	stopChan      chan struct{}
	listenAddress string

	mu   sync.RWMutex
	info Info
}

func NewHandler(address string, info Info, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		info:          info,
		logger:        logger,
		stopChan:      make(chan struct{}),
		listenAddress: address,
	}
}

func (h *Handler) Start() error {
	addr, err := net.ResolveUDPAddr("udp", h.listenAddress)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	h.conn = conn
	h.logger.Info("status handler started", "address", conn.LocalAddr().String())

	go h.handlePackets()

	return nil
}

func (h *Handler) Stop() {
	close(h.stopChan)
	if h.conn != nil {
		h.conn.Close()
	}
	h.logger.Info("status handler stopped")
}

// Addr returns the bound address, or nil before Start.
func (h *Handler) Addr() net.Addr {
	if h.conn == nil {
		return nil
	}
	return h.conn.LocalAddr()
}

// Update replaces the published info. It is called from the tick loop while
// the reader goroutine serves probes.
func (h *Handler) Update(info Info) {
	h.mu.Lock()
	h.info = info
	h.mu.Unlock()
}

func (h *Handler) Info() Info {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.info
}

func (h *Handler) handlePackets() {
	buffer := make([]byte, 1024)

	for {
		n, addr, err := h.conn.ReadFromUDP(buffer)
		if err != nil {
			select {
			case <-h.stopChan:
				return
			default:
				h.logger.Error("failed to read UDP packet", "error", err)
				continue
			}
		}

		if n > 0 {
			h.handlePacket(buffer[:n], addr)
		}
	}
}

func (h *Handler) handlePacket(data []byte, addr *net.UDPAddr) {
	switch string(data) {
	case probePing:
		h.reply(addr, []byte("HI"))
	case probeInfo:
		payload, err := json.Marshal(h.Info())
		if err != nil {
			h.logger.Error("failed to marshal status", "error", err)
			return
		}
		h.reply(addr, payload)
	}
}

func (h *Handler) reply(addr *net.UDPAddr, payload []byte) {
	if _, err := h.conn.WriteToUDP(payload, addr); err != nil {
		h.logger.Error("failed to send status response", "error", err, "addr", addr)
		return
	}
	h.logger.Debug("sent status response", "addr", addr)
}
