package app

import (
	"github.com/dshills/switchkey/internal/registry"
	"github.com/dshills/switchkey/internal/store"
)

// Stats combines store and registry counters for diagnostics.
type Stats struct {
	Store    store.DocStats
	Registry registry.Stats
	Backups  int

	// Suspended reports whether non-global shortcuts are currently muted.
	Suspended bool
}

// Stats returns a combined snapshot.
func (m *Manager) Stats() Stats {
	return Stats{
		Store:     m.store.Stats(),
		Registry:  m.registry.Stats(),
		Backups:   len(m.store.ListBackups()),
		Suspended: m.Suspended(),
	}
}
