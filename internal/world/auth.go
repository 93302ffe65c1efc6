package world

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/siohaza/coas/internal/bans"
	"github.com/siohaza/coas/internal/player"
	"github.com/siohaza/coas/internal/protocol"
	"github.com/siohaza/coas/internal/storage"
	"github.com/siohaza/coas/internal/validation"
)

// legacyVersion is assumed for clients that do not report one.
const legacyVersion = "0.1.0"

// Authenticate logs conn in as the account named by msg.
func (w *World) Authenticate(conn player.ConnID, msg *protocol.Login) (*player.Session, error) {
	if _, ok := w.players.GetByName(msg.User); ok {
		return nil, ErrAlreadyOnline
	}
	if !validation.IsValidName(msg.User) || !validation.IsValidPassword(msg.Password) || !validation.IsValidDeviceID(msg.ID) {
		return nil, ErrInvalidCredentials
	}

	ok, err := w.store.CheckPassword(msg.User, msg.Password)
	if err != nil {
		return nil, &PersistenceError{Op: "check password", Err: err}
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	if err := w.checkVersion(msg.Version); err != nil {
		return nil, err
	}
	if err := w.checkBan(msg.User, msg.ID); err != nil {
		return nil, err
	}

	name, raw, err := w.store.LoadState(msg.User)
	if err != nil {
		return nil, &PersistenceError{Op: "load " + msg.User, Err: err}
	}
	data, err := player.DecodeData(raw, w.defaults)
	if err != nil {
		return nil, &PersistenceError{Op: "decode " + name, Err: err}
	}
	data.ID = msg.ID
	if msg.Dev != nil && *msg.Dev && w.isDeveloper(name) {
		data.Dev = true
	}

	grid, ok := w.grids[data.Map]
	if !ok {
		grid = w.grids[w.cfg.Gameplay.SpawnMap]
		data.Map, data.X, data.Y = grid.Name, 0, 0
	}

	s := player.New(conn, name, data)
	s.LastGravity = w.now()

	roster := w.roster()
	w.players.Add(s)
	delete(w.pending, conn)

	w.Send(s, &protocol.Connected{
		Players: roster,
		Admin:   protocol.Bool(s.Data.Admin),
		Dev:     protocol.Bool(s.Data.Dev),
	})
	w.Send(s, &protocol.ParseMap{Data: grid.Source})
	w.broadcastWhere(&protocol.Online{
		Who:       s.Name,
		X:         int32(s.Data.X),
		Y:         int32(s.Data.Y),
		Direction: int32(s.Data.Direction),
		Map:       s.Data.Map,
	}, func(other *player.Session) bool {
		return other.Conn != conn
	})

	w.logger.Info("player logged in", "name", s.Name, "map", s.Data.Map, "online", w.players.Count())
	return s, w.trackPeak()
}

func (w *World) trackPeak() error {
	online := w.players.Count()
	if online <= w.peak {
		return nil
	}
	w.peak = online
	w.Notify(fmt.Sprintf("We have reached a new peak of %d players", online))
	return w.saveServer()
}

// CreateAccount registers a new account with a default state record.
func (w *World) CreateAccount(conn player.ConnID, msg *protocol.Create) error {
	if err := w.checkBan(msg.User, msg.ID); err != nil {
		return err
	}
	if !validation.IsValidName(msg.User) || !validation.IsValidPassword(msg.Password) ||
		!validation.IsValidEmail(msg.Email) || !validation.IsValidDeviceID(msg.ID) {
		return ErrInvalidAccount
	}

	data := player.NewData(w.defaults)
	data.ID = msg.ID
	raw, err := data.Encode()
	if err != nil {
		return err
	}

	if err := w.store.CreateAccount(msg.User, msg.Password, msg.Email, raw, w.now()); err != nil {
		if errors.Is(err, storage.ErrNameTaken) {
			return ErrNameTaken
		}
		return &PersistenceError{Op: "create " + msg.User, Err: err}
	}

	w.sendConn(conn, &protocol.Created{})
	w.AdminTell(fmt.Sprintf("Alert: %s Has been created", msg.User))
	w.logger.Info("account created", "name", msg.User)
	return nil
}

func (w *World) checkVersion(client string) error {
	if client == "" {
		client = legacyVersion
	}
	v := client
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) || semver.Compare(v, w.version) < 0 {
		return &VersionError{Client: client, Server: w.cfg.Server.Version}
	}
	return nil
}

func (w *World) checkBan(name, id string) error {
	ban, ok := w.bans.Check(name, id)
	if !ok {
		return nil
	}
	now := w.now()
	if ban.Expired(now) {
		return nil
	}
	return &BannedError{
		Temporary: ban.Type == bans.BanTypeTemporary,
		Remaining: ban.Remaining(now),
	}
}

func (w *World) isDeveloper(name string) bool {
	return slices.ContainsFunc(w.cfg.Server.Developers, func(dev string) bool {
		return player.Key(dev) == player.Key(name)
	})
}

// reject answers a failed login or account request. Only persistence
// failures are returned to the caller.
func (w *World) reject(conn player.ConnID, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		w.sendConn(conn, &protocol.Error{Reason: "Internal server error"})
		return err
	}
	w.sendConn(conn, &protocol.Error{Reason: err.Error()})
	return nil
}
