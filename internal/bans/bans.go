package bans

import (
	"strings"
	"sync"
	"time"
)

type BanType string

const (
	BanTypePermanent BanType = "permanent"
	BanTypeTemporary BanType = "temporary"
)

// Ban denies access to a device id. Temporary bans lapse once Duration has
// passed since BannedAt.
type Ban struct {
	Type     BanType       `json:"type"`
	Name     string        `json:"name"`
	ID       string        `json:"id"`
	BannedBy string        `json:"banned_by,omitempty"`
	BannedAt time.Time     `json:"banned_at"`
	Duration time.Duration `json:"duration,omitempty"`
}

func (b *Ban) Remaining(now time.Time) time.Duration {
	if b.Type == BanTypePermanent {
		return 0
	}
	left := b.Duration - now.Sub(b.BannedAt)
	if left < 0 {
		return 0
	}
	return left
}

func (b *Ban) Expired(now time.Time) bool {
	return b.Type == BanTypeTemporary && now.Sub(b.BannedAt) >= b.Duration
}

// matches reports whether the ban applies to an account name or device id.
// An empty device id never matches by id.
func (b *Ban) matches(name, id string) bool {
	if id != "" && b.ID == id {
		return true
	}
	return name != "" && strings.EqualFold(b.Name, name)
}

type Manager struct {
	permanent []*Ban
	temporary []*Ban
	mu        sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{}
}

// Restore replaces the ban lists with a persisted snapshot.
func (m *Manager) Restore(bans []*Ban) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.permanent = nil
	m.temporary = nil
	for _, ban := range bans {
		if ban.Type == "" {
			ban.Type = BanTypePermanent
		}
		switch ban.Type {
		case BanTypePermanent:
			m.permanent = append(m.permanent, ban)
		case BanTypeTemporary:
			m.temporary = append(m.temporary, ban)
		}
	}
}

func (m *Manager) GetAll() []*Ban {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bans := make([]*Ban, 0, len(m.permanent)+len(m.temporary))
	bans = append(bans, m.permanent...)
	bans = append(bans, m.temporary...)
	return bans
}

// Check returns the ban that denies name or id, preferring a permanent one.
func (m *Manager) Check(name, id string) (*Ban, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ban := range m.permanent {
		if ban.matches(name, id) {
			return ban, true
		}
	}
	for _, ban := range m.temporary {
		if ban.matches(name, id) {
			return ban, true
		}
	}
	return nil, false
}

func (m *Manager) IsBanned(name, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return find(m.permanent, name, id) >= 0
}

func (m *Manager) IsTemporarilyBanned(name, id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return find(m.temporary, name, id) >= 0
}

func (m *Manager) AddBan(name, id, bannedBy string, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.permanent = append(m.permanent, &Ban{
		Type:     BanTypePermanent,
		Name:     name,
		ID:       id,
		BannedBy: bannedBy,
		BannedAt: now,
	})
}

func (m *Manager) AddTemporary(name, id, bannedBy string, duration time.Duration, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.temporary = append(m.temporary, &Ban{
		Type:     BanTypeTemporary,
		Name:     name,
		ID:       id,
		BannedBy: bannedBy,
		BannedAt: now,
		Duration: duration,
	})
}

func (m *Manager) RemoveBan(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := find(m.permanent, name, "")
	if i < 0 {
		return false
	}
	m.permanent = append(m.permanent[:i], m.permanent[i+1:]...)
	return true
}

func (m *Manager) RemoveTemporary(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := find(m.temporary, name, "")
	if i < 0 {
		return false
	}
	m.temporary = append(m.temporary[:i], m.temporary[i+1:]...)
	return true
}

// Sweep drops every temporary ban that has run its course and returns them.
func (m *Manager) Sweep(now time.Time) []*Ban {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*Ban
	kept := m.temporary[:0]
	for _, ban := range m.temporary {
		if ban.Expired(now) {
			expired = append(expired, ban)
			continue
		}
		kept = append(kept, ban)
	}
	for i := len(kept); i < len(m.temporary); i++ {
		m.temporary[i] = nil
	}
	m.temporary = kept
	return expired
}

func find(bans []*Ban, name, id string) int {
	for i, ban := range bans {
		if ban.matches(name, id) {
			return i
		}
	}
	return -1
}
