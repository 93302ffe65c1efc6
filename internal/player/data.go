package player

import (
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"
)

// Prefixes that route a give into a weapon pool instead of the inventory.
const (
	PrefixWeapon    = "weapon_"
	PrefixCartridge = "cartridge_"
	PrefixAmmo      = "ammo_"
)

// Data is the persisted part of a player.
type Data struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction int    `json:"direction"`
	Map       string `json:"map"`
	ID        string `json:"id"`
	Admin     bool   `json:"admin"`
	Dev       bool   `json:"dev"`

	Health     int            `json:"health"`
	LastHit    string         `json:"last_hit"`
	Weapons    map[string]int `json:"weapons"`
	Ammo       map[string]int `json:"ammo"`
	Cartridges map[string]int `json:"cartridges"`
	Kills      int            `json:"kills"`
	Deaths     int            `json:"deaths"`
	PotionAt   time.Time      `json:"potion_at"`
	Inventory  Inventory      `json:"inventory"`

	HitPing       bool `json:"hit_ping"`
	AgreedToRules bool `json:"agreed_to_rules"`
	CanChat       bool `json:"can_chat"`
}

type Defaults struct {
	Health     int
	Map        string
	Weapons    map[string]int
	Ammo       map[string]int
	Cartridges map[string]int
}

func StandardLoadout() (weapons, ammo, cartridges map[string]int) {
	weapons = map[string]int{"pistol": 1, "machinegun": 1, "grenade_launcher": 1}
	ammo = map[string]int{"pistol": 12, "machinegun": 50, "grenade_launcher": 1}
	cartridges = map[string]int{"pistol": 50, "machinegun": 100, "grenade_launcher": 35}
	return weapons, ammo, cartridges
}

func NewData(d Defaults) Data {
	return Data{
		Map:        d.Map,
		Health:     d.Health,
		Weapons:    maps.Clone(d.Weapons),
		Ammo:       maps.Clone(d.Ammo),
		Cartridges: maps.Clone(d.Cartridges),
		HitPing:    true,
		CanChat:    true,
	}
}

// DecodeData restores persisted state. Fields missing from raw keep their
// defaults; pools present in raw replace the default pools entirely.
func DecodeData(raw []byte, d Defaults) (Data, error) {
	data := NewData(d)
	data.Weapons, data.Ammo, data.Cartridges = nil, nil, nil

	if err := json.Unmarshal(raw, &data); err != nil {
		return Data{}, fmt.Errorf("failed to decode player data: %w", err)
	}

	if data.Weapons == nil {
		data.Weapons = maps.Clone(d.Weapons)
	}
	if data.Ammo == nil {
		data.Ammo = maps.Clone(d.Ammo)
	}
	if data.Cartridges == nil {
		data.Cartridges = maps.Clone(d.Cartridges)
	}
	data.Inventory.normalize()
	return data, nil
}

func (d *Data) Encode() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("failed to encode player data: %w", err)
	}
	return raw, nil
}

// adjust adds amount to pool[name]. Entries that would drop to zero or below
// are removed instead of stored.
func adjust(pool map[string]int, name string, amount int) {
	if amount == 0 {
		return
	}
	n := pool[name] + amount
	if n <= 0 {
		delete(pool, name)
		return
	}
	pool[name] = n
}

// Give routes item into a weapon pool when it carries one of the pool
// prefixes and into the inventory otherwise. It reports whether the
// inventory was the target.
func (d *Data) Give(item string, amount int) bool {
	if amount == 0 {
		return false
	}

	switch {
	case strings.HasPrefix(item, PrefixWeapon):
		adjust(d.Weapons, strings.TrimPrefix(item, PrefixWeapon), amount)
	case strings.HasPrefix(item, PrefixCartridge):
		adjust(d.Cartridges, strings.TrimPrefix(item, PrefixCartridge), amount)
	case strings.HasPrefix(item, PrefixAmmo):
		adjust(d.Ammo, strings.TrimPrefix(item, PrefixAmmo), amount)
	default:
		d.Inventory.Give(item, amount)
		return true
	}
	return false
}
