// Package priority arbitrates ownership of accelerators across the three
// binding tiers. It is pure bookkeeping: callers are responsible for the
// corresponding OS-level hotkey action.
package priority

import (
	"sync"

	"github.com/dshills/switchkey/internal/accel"
)

// Tier orders bindings by preemption strength. Lower numeric value wins:
// GLOBAL preempts AUTO_KEY preempts WINDOW.
type Tier int

const (
	// TierGlobal is an application-wide binding.
	TierGlobal Tier = 1

	// TierAutoKey is a bulk-generated binding from the auto-key policy.
	TierAutoKey Tier = 2

	// TierWindow is a user-assigned per-window binding.
	TierWindow Tier = 3
)

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierGlobal:
		return "global"
	case TierAutoKey:
		return "autokey"
	case TierWindow:
		return "window"
	default:
		return "unknown"
	}
}

// Preempts returns true if t may displace a binding held at other.
// Equal tiers preempt each other (displacement between different owners).
func (t Tier) Preempts(other Tier) bool {
	return t <= other
}

// Owner identifies who holds an accelerator and at what tier.
type Owner struct {
	ID   string
	Tier Tier
}

// Table maps canonical accelerators to their current owner.
//
// The table has its own lock so it is safe standalone, but registration
// flows must hold the registry mutex across the table update and the OS
// call so the two are observed as a single atomic step.
type Table struct {
	mu     sync.RWMutex
	owners map[accel.Accelerator]Owner
}

// NewTable creates an empty priority table.
func NewTable() *Table {
	return &Table{
		owners: make(map[accel.Accelerator]Owner),
	}
}

// MayRegister reports whether a registration request for a at the given
// tier is allowed: the accelerator is free, the same owner already holds it
// (idempotent re-registration), or the existing owner sits at an equal or
// numerically greater (weaker) tier and may be displaced.
func (t *Table) MayRegister(a accel.Accelerator, ownerID string, tier Tier) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	existing, held := t.owners[a]
	if !held {
		return true
	}
	if existing.ID == ownerID {
		return true
	}
	return tier.Preempts(existing.Tier)
}

// Owner returns the current owner of a, if any.
func (t *Table) Owner(a accel.Accelerator) (Owner, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	o, ok := t.owners[a]
	return o, ok
}

// Claim records ownership of a. Any previous owner is overwritten; callers
// must have already arbitrated via MayRegister.
func (t *Table) Claim(a accel.Accelerator, ownerID string, tier Tier) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.owners[a] = Owner{ID: ownerID, Tier: tier}
}

// Release drops ownership of a. No-op if a is not held.
func (t *Table) Release(a accel.Accelerator) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.owners, a)
}

// Len returns the number of held accelerators.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.owners)
}

// Snapshot returns a copy of the ownership map.
func (t *Table) Snapshot() map[accel.Accelerator]Owner {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[accel.Accelerator]Owner, len(t.owners))
	for a, o := range t.owners {
		out[a] = o
	}
	return out
}
