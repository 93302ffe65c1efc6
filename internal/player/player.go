package player

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/text/cases"
)

// ConnID identifies the transport connection a session is bound to.
type ConnID uint64

type MoveState int

const (
	OnGround MoveState = iota
	Jumping
	Falling
	Landing
)

func (s MoveState) String() string {
	switch s {
	case OnGround:
		return "on_ground"
	case Jumping:
		return "jumping"
	case Falling:
		return "falling"
	case Landing:
		return "landing"
	}
	return "unknown"
}

type Session struct {
	Conn ConnID
	Name string
	Data Data

	// Weapon is the drawn weapon; it is not persisted.
	Weapon string
	Safe   bool

	GotHit bool
	HitAt  time.Time

	Reloading     bool
	ReloadStarted time.Time
	Firing        bool
	LastFire      time.Time

	Motion      MoveState
	Airborne    int
	LastGravity time.Time
	Jumped      bool
	JumpedAt    time.Time
}

func New(conn ConnID, name string, data Data) *Session {
	return &Session{
		Conn:   conn,
		Name:   name,
		Data:   data,
		Motion: OnGround,
	}
}

// Key folds an account name for case-insensitive comparison.
func Key(name string) string {
	return cases.Fold().String(name)
}

func (s *Session) IsAdmin() bool {
	return s.Data.Admin || s.Data.Dev
}

func (s *Session) Ammo() int {
	return s.Data.Ammo[s.Weapon]
}

func (s *Session) Cartridges() int {
	return s.Data.Cartridges[s.Weapon]
}

func (s *Session) Owns(weapon string) bool {
	return s.Data.Weapons[weapon] > 0
}

// TakeAmmo removes one round of the drawn weapon and reports whether one
// was available.
func (s *Session) TakeAmmo() bool {
	if s.Ammo() <= 0 {
		return false
	}
	adjust(s.Data.Ammo, s.Weapon, -1)
	return true
}

func (s *Session) TakeCartridge() bool {
	if s.Cartridges() <= 0 {
		return false
	}
	adjust(s.Data.Cartridges, s.Weapon, -1)
	return true
}

// Refill loads the drawn weapon to exactly capacity rounds.
func (s *Session) Refill(capacity int) {
	if capacity <= 0 {
		delete(s.Data.Ammo, s.Weapon)
		return
	}
	if s.Data.Ammo == nil {
		s.Data.Ammo = make(map[string]int)
	}
	s.Data.Ammo[s.Weapon] = capacity
}

func (s *Session) Position() (x, y int, mapName string) {
	return s.Data.X, s.Data.Y, s.Data.Map
}

// Manager indexes the live sessions by connection and by folded name.
// Lookups are safe from other goroutines; mutation happens on the tick.
type Manager struct {
	players map[ConnID]*Session
	names   map[string]ConnID
	mu      sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		players: make(map[ConnID]*Session),
		names:   make(map[string]ConnID),
	}
}

func (m *Manager) Add(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[session.Conn] = session
	m.names[Key(session.Name)] = session.Conn
}

func (m *Manager) Remove(conn ConnID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.players[conn]
	if !ok {
		return nil, false
	}
	delete(m.players, conn)
	delete(m.names, Key(session.Name))
	return session, true
}

func (m *Manager) Get(conn ConnID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.players[conn]
	return session, ok
}

func (m *Manager) GetByName(name string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conn, ok := m.names[Key(name)]
	if !ok {
		return nil, false
	}
	return m.players[conn], true
}

// GetAll returns the sessions ordered by connection id, which is also
// login order.
func (m *Manager) GetAll() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	players := make([]*Session, 0, len(m.players))
	for _, session := range m.players {
		players = append(players, session)
	}
	sort.Slice(players, func(i, j int) bool {
		return players[i].Conn < players[j].Conn
	})
	return players
}

func (m *Manager) Names() []string {
	all := m.GetAll()
	names := make([]string, len(all))
	for i, session := range all {
		names[i] = session.Name
	}
	return names
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.players)
}
