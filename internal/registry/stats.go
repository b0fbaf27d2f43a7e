package registry

import "sync/atomic"

// counters tracks registration activity for diagnostics. The counts are
// observable side effects, not part of the functional contract.
type counters struct {
	registrations   atomic.Uint64
	unregistrations atomic.Uint64
	displacements   atomic.Uint64
	failures        atomic.Uint64
}

// Stats is a point-in-time view of registry activity.
type Stats struct {
	Registrations   uint64
	Unregistrations uint64
	Displacements   uint64
	Failures        uint64
	Live            int
}

// Stats returns a snapshot of the registry's counters and live count.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	live := len(r.owners)
	r.mu.Unlock()

	return Stats{
		Registrations:   r.stats.registrations.Load(),
		Unregistrations: r.stats.unregistrations.Load(),
		Displacements:   r.stats.displacements.Load(),
		Failures:        r.stats.failures.Load(),
		Live:            live,
	}
}
