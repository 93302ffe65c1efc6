package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"golang.org/x/mod/semver"

	"github.com/siohaza/coas/internal/bans"
	"github.com/siohaza/coas/internal/envelope"
	"github.com/siohaza/coas/internal/maps"
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
	"github.com/siohaza/coas/internal/storage"
	"github.com/siohaza/coas/internal/weapon"
	"github.com/siohaza/coas/pkg/config"
	"github.com/siohaza/coas/pkg/lua"
)

// Outbox delivers sealed payloads to connections.
type Outbox interface {
	Send(conn player.ConnID, data []byte) error
	Disconnect(conn player.ConnID)
}

type Options struct {
	Config  *config.Config
	Store   *storage.Store
	Maps    *maps.Store
	Grids   map[string]*maps.Grid
	Weapons weapon.Table
	Cipher  *envelope.Cipher
	Outbox  Outbox
	Logger  *slog.Logger

	// optional
	ScriptsDir string
	Now        func() time.Time
	Rand       *rand.Rand
}

// serverData is the persisted server-wide record.
type serverData struct {
	Peak int         `json:"peak"`
	Note string      `json:"note"`
	Bans []*bans.Ban `json:"bans"`
}

type pendingConn struct {
	address string
	since   time.Time
}

// World owns every piece of mutable game state. All of its methods run on
// the tick loop; none of them block.
type World struct {
	cfg      *config.Config
	store    *storage.Store
	mapStore *maps.Store
	grids    map[string]*maps.Grid
	weapons  weapon.Table
	cipher   *envelope.Cipher
	out      Outbox
	logger   *slog.Logger
	now      func() time.Time
	rng      *rand.Rand
	scripts  *lua.CommandManager

	players     *player.Manager
	bans        *bans.Manager
	projectiles []*weapon.Projectile
	pending     map[player.ConnID]pendingConn
	defaults    player.Defaults

	version string
	started time.Time
	peak    int
	note    string
}

func New(opts Options) (*World, error) {
	if opts.Config == nil || opts.Store == nil || opts.Maps == nil || opts.Cipher == nil || opts.Outbox == nil {
		return nil, errors.New("world: config, store, maps, cipher and outbox are required")
	}
	cfg := opts.Config

	for _, name := range []string{cfg.Gameplay.SpawnMap, cfg.Gameplay.DeathMap} {
		if _, ok := opts.Grids[name]; !ok {
			return nil, fmt.Errorf("map %q is not loaded", name)
		}
	}

	version := "v" + cfg.Server.Version
	if !semver.IsValid(version) {
		return nil, fmt.Errorf("server version %q is not a semantic version", cfg.Server.Version)
	}

	w := &World{
		cfg:      cfg,
		store:    opts.Store,
		mapStore: opts.Maps,
		grids:    opts.Grids,
		weapons:  opts.Weapons,
		cipher:   opts.Cipher,
		out:      opts.Outbox,
		logger:   opts.Logger,
		now:      opts.Now,
		rng:      opts.Rand,
		players:  player.NewManager(),
		bans:     bans.NewManager(),
		pending:  make(map[player.ConnID]pendingConn),
		version:  version,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.now == nil {
		w.now = time.Now
	}
	if w.rng == nil {
		w.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if w.weapons == nil {
		w.weapons = weapon.DefaultTable()
	}
	w.started = w.now()

	weapons, ammo, cartridges := player.StandardLoadout()
	w.defaults = player.Defaults{
		Health:     cfg.Gameplay.MaxHealth,
		Map:        cfg.Gameplay.SpawnMap,
		Weapons:    weapons,
		Ammo:       ammo,
		Cartridges: cartridges,
	}

	if err := w.loadServer(); err != nil {
		return nil, err
	}

	w.scripts = lua.NewCommandManager(w.logger)
	if opts.ScriptsDir != "" {
		if _, err := os.Stat(opts.ScriptsDir); err != nil {
			w.logger.Warn("scripts directory unavailable", "dir", opts.ScriptsDir, "error", err)
		} else if err := w.scripts.LoadCommands(opts.ScriptsDir, lua.NewGameAPI(scriptHost{w})); err != nil {
			w.logger.Warn("failed to load scripts", "error", err)
		}
	}

	return w, nil
}

func (w *World) loadServer() error {
	raw, err := w.store.LoadServer()
	if err != nil {
		return &PersistenceError{Op: "load server", Err: err}
	}
	if raw == nil {
		return nil
	}

	var data serverData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to decode server record: %w", err)
	}
	w.peak = data.Peak
	w.note = data.Note
	w.bans.Restore(data.Bans)
	w.logger.Info("restored server record", "peak", w.peak, "bans", len(data.Bans))
	return nil
}

func (w *World) saveServer() error {
	raw, err := json.Marshal(serverData{
		Peak: w.peak,
		Note: w.note,
		Bans: w.bans.GetAll(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode server record: %w", err)
	}
	if err := w.store.SaveServer(raw, w.now()); err != nil {
		return &PersistenceError{Op: "save server", Err: err}
	}
	return nil
}

func (w *World) save(s *player.Session) error {
	raw, err := s.Data.Encode()
	if err != nil {
		return err
	}
	if err := w.store.SaveState(s.Name, raw, w.now()); err != nil {
		return &PersistenceError{Op: "save " + s.Name, Err: err}
	}
	return nil
}

// Connect records a fresh transport connection awaiting login.
func (w *World) Connect(conn player.ConnID, address string) {
	w.pending[conn] = pendingConn{address: address, since: w.now()}
}

// Disconnect handles a transport disconnect. The session, if any, is
// persisted and removed.
func (w *World) Disconnect(conn player.ConnID) error {
	delete(w.pending, conn)
	s, ok := w.players.Get(conn)
	if !ok {
		return nil
	}
	w.logger.Info("player disconnected", "name", s.Name)
	return w.leave(s)
}

func (w *World) leave(s *player.Session) error {
	if _, ok := w.players.Remove(s.Conn); !ok {
		return nil
	}
	s.Firing = false
	w.Broadcast(&protocol.Offline{Who: s.Name})
	return w.save(s)
}

// drop closes a session from the server side: the client is told to close,
// the session is persisted and the transport connection is released.
func (w *World) drop(s *player.Session) error {
	w.Send(s, &protocol.Close{})
	err := w.leave(s)
	w.out.Disconnect(s.Conn)
	return err
}

// Shutdown persists every session and the server record and tells every
// client to close.
func (w *World) Shutdown() error {
	var errs []error
	for _, s := range w.players.GetAll() {
		if err := w.save(s); err != nil {
			errs = append(errs, err)
		}
		w.Send(s, &protocol.Close{})
	}
	if err := w.saveServer(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (w *World) Online() int {
	return w.players.Count()
}

func (w *World) Peak() int {
	return w.peak
}

func (w *World) Uptime() time.Duration {
	return w.now().Sub(w.started)
}

func (w *World) Grid(name string) (*maps.Grid, bool) {
	g, ok := w.grids[name]
	return g, ok
}

func (w *World) Players() *player.Manager {
	return w.players
}

func (w *World) Bans() *bans.Manager {
	return w.bans
}
