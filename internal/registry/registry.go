// Package registry owns the live set of accelerator registrations against
// the host's global-hotkey facility. It consults the priority table before
// registering, displaces weaker owners, and can replay or suspend the whole
// set for bulk re-activation.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/switchkey/internal/accel"
	"github.com/dshills/switchkey/internal/hotkeyos"
	"github.com/dshills/switchkey/internal/priority"
)

// Holding describes one owner's live registration.
type Holding struct {
	OwnerID     string
	Accelerator accel.Accelerator
	Tier        priority.Tier
}

type binding struct {
	accelerator accel.Accelerator
	tier        priority.Tier
	callback    func()
}

// Registry arbitrates and tracks global-hotkey registrations.
//
// A single mutex guards the priority table, the owner map, and the OS call
// together: no reader can observe the OS registered without the owner map
// updated, or vice versa.
type Registry struct {
	mu      sync.Mutex
	backend hotkeyos.Backend
	table   *priority.Table
	owners  map[string]binding
	stats   counters
}

// New creates a registry driving the given backend.
func New(backend hotkeyos.Backend) *Registry {
	return &Registry{
		backend: backend,
		table:   priority.NewTable(),
		owners:  make(map[string]binding),
	}
}

// Register binds spec to fn for ownerID at the given tier.
//
// The flow is: encode, arbitrate against the priority table, displace any
// weaker-or-equal different-owner holder, register with the OS, commit.
// Re-registration by the same owner at the same accelerator and tier is
// idempotent.
func (r *Registry) Register(ownerID, spec string, tier priority.Tier, fn func()) error {
	a, err := accel.Encode(spec)
	if err != nil {
		return err
	}
	return r.RegisterAccelerator(ownerID, a, tier, fn)
}

// RegisterAccelerator is Register for an already-encoded accelerator.
func (r *Registry) RegisterAccelerator(ownerID string, a accel.Accelerator, tier priority.Tier, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.owners[ownerID]; ok && cur.accelerator == a && cur.tier == tier {
		// Idempotent re-registration: refresh the OS binding and callback.
		if err := r.backend.Register(a, fn); err != nil {
			r.stats.failures.Add(1)
			return fmt.Errorf("%w: %v", ErrOSRegistrationFailed, err)
		}
		cur.callback = fn
		r.owners[ownerID] = cur
		return nil
	}

	if owner, held := r.table.Owner(a); held && owner.ID != ownerID {
		if !tier.Preempts(owner.Tier) {
			return &ConflictError{
				Accelerator: a,
				OwnerID:     owner.ID,
				OwnerTier:   owner.Tier,
				Requested:   tier,
			}
		}
		// Tier displacement: evict the weaker-or-equal holder first.
		r.releaseLocked(owner.ID, a)
		r.stats.displacements.Add(1)
	}

	// An owner holds at most one accelerator; drop any previous one.
	if cur, ok := r.owners[ownerID]; ok {
		r.releaseLocked(ownerID, cur.accelerator)
	}

	if err := r.backend.Register(a, fn); err != nil {
		r.stats.failures.Add(1)
		return fmt.Errorf("%w: %v", ErrOSRegistrationFailed, err)
	}

	r.table.Claim(a, ownerID, tier)
	r.owners[ownerID] = binding{accelerator: a, tier: tier, callback: fn}
	r.stats.registrations.Add(1)
	return nil
}

// Unregister releases ownerID's accelerator. Idempotent: a no-op if the
// owner holds nothing.
func (r *Registry) Unregister(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.owners[ownerID]; ok {
		r.releaseLocked(ownerID, cur.accelerator)
	}
}

// releaseLocked drops the OS registration, the priority claim, and the
// owner map entry as one step. Caller must hold r.mu.
func (r *Registry) releaseLocked(ownerID string, a accel.Accelerator) {
	r.backend.Unregister(a)
	r.table.Release(a)
	delete(r.owners, ownerID)
	r.stats.unregistrations.Add(1)
}

// Validate checks whether spec could currently be registered at tier,
// without touching any state. Returns the canonical accelerator on success.
func (r *Registry) Validate(spec string, tier priority.Tier) (accel.Accelerator, error) {
	a, err := accel.Encode(spec)
	if err != nil {
		return accel.Accelerator{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, held := r.table.Owner(a); held && !tier.Preempts(owner.Tier) {
		return a, &ConflictError{
			Accelerator: a,
			OwnerID:     owner.ID,
			OwnerTier:   owner.Tier,
			Requested:   tier,
		}
	}
	return a, nil
}

// ActivateAll re-registers every known binding with the OS, strongest tier
// first, so displacement during bulk replay degrades gracefully instead of
// racing. Individual OS failures are collected, not fatal.
func (r *Registry) ActivateAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	type replay struct {
		ownerID string
		binding binding
	}
	all := make([]replay, 0, len(r.owners))
	for id, b := range r.owners {
		all = append(all, replay{ownerID: id, binding: b})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].binding.tier != all[j].binding.tier {
			return all[i].binding.tier < all[j].binding.tier
		}
		return all[i].ownerID < all[j].ownerID
	})

	var errs []error
	for _, item := range all {
		if err := r.backend.Register(item.binding.accelerator, item.binding.callback); err != nil {
			r.stats.failures.Add(1)
			errs = append(errs, fmt.Errorf("%s: %w: %v", item.ownerID, ErrOSRegistrationFailed, err))
			continue
		}
		r.stats.registrations.Add(1)
	}
	return errors.Join(errs...)
}

// DeactivateAll releases every OS registration while preserving the owner
// map and priority claims, so a later ActivateAll restores the prior state.
func (r *Registry) DeactivateAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.owners {
		r.backend.Unregister(b.accelerator)
		r.stats.unregistrations.Add(1)
	}
}

// SuspendWeaker releases the OS registrations of every holding weaker
// than tier, preserving owner map and priority claims. Used to mute
// window and auto-key shortcuts while keeping global actions live; a
// later ActivateAll restores everything.
func (r *Registry) SuspendWeaker(tier priority.Tier) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.owners {
		if tier.Preempts(b.tier) && b.tier != tier {
			r.backend.Unregister(b.accelerator)
			r.stats.unregistrations.Add(1)
		}
	}
}

// Owner returns the current priority-table owner of a, if any.
func (r *Registry) Owner(a accel.Accelerator) (priority.Owner, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.table.Owner(a)
}

// HoldingOf returns ownerID's live registration, if any.
func (r *Registry) HoldingOf(ownerID string) (Holding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.owners[ownerID]
	if !ok {
		return Holding{}, false
	}
	return Holding{OwnerID: ownerID, Accelerator: b.accelerator, Tier: b.tier}, true
}

// Holdings returns all live registrations, sorted strongest tier first.
func (r *Registry) Holdings() []Holding {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Holding, 0, len(r.owners))
	for id, b := range r.owners {
		out = append(out, Holding{OwnerID: id, Accelerator: b.accelerator, Tier: b.tier})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		return out[i].OwnerID < out[j].OwnerID
	})
	return out
}
