package weapon

import (
	"fmt"
	"sort"
	"time"

	"github.com/siohaza/coas/pkg/config"
)

type Spec struct {
	Name         string
	Damage       int
	Range        int
	Step         time.Duration
	FireInterval time.Duration
	ReloadTime   time.Duration
	Capacity     int
	Automatic    bool
}

type Table map[string]Spec

func DefaultTable() Table {
	return Table{
		"pistol": {
			Name:         "pistol",
			Damage:       210,
			Range:        20,
			Step:         25 * time.Millisecond,
			FireInterval: 370 * time.Millisecond,
			ReloadTime:   3500 * time.Millisecond,
			Capacity:     12,
		},
		"machinegun": {
			Name:         "machinegun",
			Damage:       30,
			Range:        30,
			Step:         10 * time.Millisecond,
			FireInterval: 50 * time.Millisecond,
			ReloadTime:   1800 * time.Millisecond,
			Capacity:     50,
			Automatic:    true,
		},
		"grenade_launcher": {
			Name:         "grenade_launcher",
			Damage:       400,
			Range:        60,
			Step:         5 * time.Millisecond,
			FireInterval: 800 * time.Millisecond,
			ReloadTime:   2800 * time.Millisecond,
			Capacity:     1,
		},
	}
}

// NewTable applies configured overrides on top of the built-in table. An
// override for an unknown name defines a new weapon and must be complete
// enough to be usable.
func NewTable(overrides map[string]config.WeaponConfig) (Table, error) {
	table := DefaultTable()

	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		o := overrides[name]
		spec, ok := table[name]
		if !ok {
			spec = Spec{Name: name}
		}

		if o.Damage != nil {
			spec.Damage = *o.Damage
		}
		if o.Range != nil {
			spec.Range = *o.Range
		}
		if o.Step != nil {
			spec.Step = millis(*o.Step)
		}
		if o.FireInterval != nil {
			spec.FireInterval = millis(*o.FireInterval)
		}
		if o.ReloadTime != nil {
			spec.ReloadTime = millis(*o.ReloadTime)
		}
		if o.Capacity != nil {
			spec.Capacity = *o.Capacity
		}
		if o.Automatic != nil {
			spec.Automatic = *o.Automatic
		}

		if spec.Capacity <= 0 || spec.Range <= 0 || spec.Step <= 0 {
			return nil, fmt.Errorf("weapon %s: capacity, range and step must be positive", name)
		}
		if spec.Damage < 0 || spec.FireInterval < 0 || spec.ReloadTime < 0 {
			return nil, fmt.Errorf("weapon %s: negative values are not allowed", name)
		}
		table[name] = spec
	}

	return table, nil
}

func (t Table) Lookup(name string) (Spec, bool) {
	spec, ok := t[name]
	return spec, ok
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
