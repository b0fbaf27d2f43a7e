// Package app wires the core pieces together: the configuration store,
// the binding registry, change notification, and the OS window source.
// It is the single surface the command layer and any UI glue talk to.
package app

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/switchkey/internal/accel"
	"github.com/dshills/switchkey/internal/autokey"
	"github.com/dshills/switchkey/internal/hotkeyos"
	"github.com/dshills/switchkey/internal/logging"
	"github.com/dshills/switchkey/internal/notify"
	"github.com/dshills/switchkey/internal/priority"
	"github.com/dshills/switchkey/internal/registry"
	"github.com/dshills/switchkey/internal/store"
)

// globalOwnerPrefix namespaces global-action owners in the registry so
// they can never collide with an identity key.
const globalOwnerPrefix = "global:"

// Manager orchestrates the store, the registry, and the window source.
// Every mutation persists first and registers with the OS only after the
// save has completed, so the durable record never lags the live one.
type Manager struct {
	settings Settings
	store    *store.Store
	registry *registry.Registry
	windows  hotkeyos.WindowSource
	hub      *notify.Hub
	logger   *logging.Logger

	mu        sync.Mutex
	cycleIdx  int
	suspended bool
}

// NewManager builds a manager over an opened store and a backend.
func NewManager(settings Settings, st *store.Store, backend hotkeyos.Backend, windows hotkeyos.WindowSource, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Null
	}
	return &Manager{
		settings: settings,
		store:    st,
		registry: registry.New(backend),
		windows:  windows,
		hub:      notify.NewHub(notify.WithAsync(64)),
		logger:   logger.WithComponent("manager"),
	}
}

// Registry exposes the underlying registry for diagnostics.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Store exposes the underlying store for diagnostics.
func (m *Manager) Store() *store.Store { return m.store }

// Subscribe registers an observer for binding change events.
func (m *Manager) Subscribe(observer notify.Observer) *notify.Subscription {
	return m.hub.Subscribe(observer)
}

// Start replays persisted state into the registry: globals first, then
// auto-generated bindings, then window bindings for identities with a
// live window. Individual failures are logged and collected, not fatal.
func (m *Manager) Start() error {
	var errs []error

	doc := m.store.Document()
	for _, g := range sortedGlobals(doc) {
		a, err := accel.Encode(g.Accelerator)
		if err != nil {
			errs = append(errs, fmt.Errorf("global %s: %w", g.Type, err))
			continue
		}
		if err := m.registerGlobalAccelerator(g.Type, a); err != nil {
			errs = append(errs, fmt.Errorf("global %s: %w", g.Type, err))
		}
	}

	if _, err := m.ReconcileWindows(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stop releases every OS registration and shuts the notification hub.
// Persisted state is untouched.
func (m *Manager) Stop() {
	m.registry.DeactivateAll()
	m.hub.Close()
}

// ValidateShortcut reports whether spec could be registered at tier
// right now, returning the canonical accelerator.
func (m *Manager) ValidateShortcut(spec string, tier priority.Tier) (accel.Accelerator, error) {
	return m.registry.Validate(spec, tier)
}

// RegisterWindowBinding binds spec to the character's window. The binding
// is validated, persisted, and only then registered with the OS.
func (m *Manager) RegisterWindowBinding(characterName, className, spec string, win hotkeyos.Window) (store.Identity, error) {
	id := store.MakeIdentity(characterName, className)

	a, err := m.registry.Validate(spec, priority.TierWindow)
	if err != nil {
		return id, err
	}
	if err := m.store.SetBinding(id, a, characterName, win.ID, priority.TierWindow); err != nil {
		return id, err
	}
	if err := m.registry.RegisterAccelerator(string(id), a, priority.TierWindow, m.activateCallback(characterName)); err != nil {
		return id, err
	}

	m.logger.Info("bound %s to %s", a.Display(), id)
	m.hub.Publish(notify.Event{Type: notify.BindingSet, Identity: id, Accelerator: a, Source: "register"})
	return id, nil
}

// RemoveWindowBinding releases and deletes an identity's binding.
func (m *Manager) RemoveWindowBinding(id store.Identity) error {
	m.registry.Unregister(string(id))
	if err := m.store.RemoveBinding(id); err != nil {
		return err
	}
	m.hub.Publish(notify.Event{Type: notify.BindingRemoved, Identity: id, Source: "remove"})
	return nil
}

// RegisterGlobalBinding binds spec to an application-wide action.
func (m *Manager) RegisterGlobalBinding(globalType, spec string) error {
	a, err := m.registry.Validate(spec, priority.TierGlobal)
	if err != nil {
		return err
	}
	if err := m.store.SetGlobal(globalType, a); err != nil {
		return err
	}
	if err := m.registerGlobalAccelerator(globalType, a); err != nil {
		return err
	}

	m.hub.Publish(notify.Event{Type: notify.GlobalSet, GlobalType: globalType, Accelerator: a, Source: "register"})
	return nil
}

// RemoveGlobalBinding releases and deletes a global binding.
func (m *Manager) RemoveGlobalBinding(globalType string) error {
	m.registry.Unregister(globalOwnerPrefix + globalType)
	if err := m.store.RemoveGlobal(globalType); err != nil {
		return err
	}
	m.hub.Publish(notify.Event{Type: notify.GlobalRemoved, GlobalType: globalType, Source: "remove"})
	return nil
}

func (m *Manager) registerGlobalAccelerator(globalType string, a accel.Accelerator) error {
	return m.registry.RegisterAccelerator(globalOwnerPrefix+globalType, a, priority.TierGlobal, m.globalAction(globalType))
}

// globalAction returns the callback for a well-known global type.
// Unknown types get a logging no-op so a future document schema does not
// break startup.
func (m *Manager) globalAction(globalType string) func() {
	switch globalType {
	case store.GlobalNextWindow:
		return m.cycleNextWindow
	case store.GlobalToggleShortcuts:
		return m.toggleShortcuts
	default:
		return func() {
			m.logger.Warn("no action wired for global binding %q", globalType)
		}
	}
}

// cycleNextWindow activates the next target window in enumeration order,
// wrapping around.
func (m *Manager) cycleNextWindow() {
	wins, err := m.windows.EnumerateTargetWindows()
	if err != nil || len(wins) == 0 {
		return
	}

	m.mu.Lock()
	m.cycleIdx = (m.cycleIdx + 1) % len(wins)
	target := wins[m.cycleIdx]
	m.mu.Unlock()

	if !m.windows.ActivateWindowByTitle(target.Title) {
		m.logger.Debug("next-window activation missed %q", target.Title)
	}
}

// toggleShortcuts mutes or restores window and auto-key shortcuts while
// keeping global actions (including this toggle) live.
func (m *Manager) toggleShortcuts() {
	m.mu.Lock()
	m.suspended = !m.suspended
	suspended := m.suspended
	m.mu.Unlock()

	if suspended {
		m.registry.SuspendWeaker(priority.TierGlobal)
		m.logger.Info("shortcuts suspended")
		return
	}
	if err := m.registry.ActivateAll(); err != nil {
		m.logger.Error("shortcut reactivation incomplete: %v", err)
	}
	m.logger.Info("shortcuts restored")
}

// Suspended reports whether window and auto-key shortcuts are muted.
func (m *Manager) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// activateCallback raises the character's window when its shortcut fires.
func (m *Manager) activateCallback(characterName string) func() {
	return func() {
		wins, err := m.windows.EnumerateTargetWindows()
		if err != nil {
			m.logger.Error("window enumeration failed: %v", err)
			return
		}
		for _, w := range wins {
			if w.CharacterName == characterName {
				m.windows.ActivateWindowByTitle(w.Title)
				return
			}
		}
		m.logger.Debug("no live window for %q", characterName)
	}
}

// AutoKeyReport summarizes one bulk assignment run.
type AutoKeyReport struct {
	Disabled  int
	Assigned  int
	Skipped   int
	Exhausted int
	Conflicts int
}

// AssignAutoKeys generates one accelerator per live window under the
// stored policy and feeds each through the store and registry at the
// auto-key tier. Individual conflicts skip that target; the rest proceed.
func (m *Manager) AssignAutoKeys() (AutoKeyReport, error) {
	policy := m.store.AutoKey()
	if !policy.Enabled {
		return AutoKeyReport{Disabled: 1}, nil
	}

	wins, err := m.windows.EnumerateTargetWindows()
	if err != nil {
		return AutoKeyReport{}, err
	}

	targets := make([]autokey.Target, 0, len(wins))
	byIdentity := make(map[store.Identity]hotkeyos.Window, len(wins))
	for _, w := range wins {
		id := store.MakeIdentity(w.CharacterName, w.ClassName)
		if _, seenFirst := byIdentity[id]; !seenFirst {
			byIdentity[id] = w
		}
		targets = append(targets, autokey.Target{
			Identity:    id,
			DisplayName: w.CharacterName,
			Score:       w.PriorityScore,
		})
	}

	var report AutoKeyReport
	res := autokey.Generate(policy, targets)
	for _, assignment := range res.Assignments {
		switch {
		case assignment.SkippedDuplicate:
			report.Skipped++
			continue
		case assignment.Err != nil:
			report.Exhausted++
			m.logger.Warn("auto-key: %v", assignment.Err)
			continue
		}

		win := byIdentity[assignment.Identity]
		if err := m.store.SetBinding(assignment.Identity, assignment.Accelerator, assignment.DisplayName, win.ID, priority.TierAutoKey); err != nil {
			return report, err
		}
		err := m.registry.RegisterAccelerator(string(assignment.Identity), assignment.Accelerator, priority.TierAutoKey, m.activateCallback(assignment.DisplayName))
		if err != nil {
			var conflict *registry.ConflictError
			if errors.As(err, &conflict) {
				report.Conflicts++
				m.logger.Warn("auto-key: %s kept by %s, skipping %s", conflict.Accelerator.Display(), conflict.OwnerID, assignment.Identity)
				continue
			}
			return report, err
		}

		report.Assigned++
		m.hub.Publish(notify.Event{
			Type:        notify.BindingSet,
			Identity:    assignment.Identity,
			Accelerator: assignment.Accelerator,
			Source:      "autokey",
		})
	}
	return report, nil
}

// ReconcileWindows aligns persisted bindings with the live window set:
// stale bindings go inactive (and are eventually purged), returning
// identities are relinked to their new window handle and re-registered.
func (m *Manager) ReconcileWindows() (store.ReconcileResult, error) {
	wins, err := m.windows.EnumerateTargetWindows()
	if err != nil {
		return store.ReconcileResult{}, err
	}

	live := make(map[store.Identity]bool, len(wins))
	winByIdentity := make(map[store.Identity]hotkeyos.Window, len(wins))
	for _, w := range wins {
		id := store.MakeIdentity(w.CharacterName, w.ClassName)
		live[id] = true
		if _, ok := winByIdentity[id]; !ok {
			winByIdentity[id] = w
		}
	}

	res, err := m.store.ReconcileLiveWindows(live)
	if err != nil {
		return res, err
	}

	// Relink and register live identities the registry does not hold yet.
	var errs []error
	for id, win := range winByIdentity {
		b, ok := m.store.GetBinding(id)
		if !ok {
			continue
		}
		if _, held := m.registry.HoldingOf(string(id)); held && b.WindowID == win.ID {
			continue
		}
		a, err := m.store.LinkToLiveWindow(id, win.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		if err := m.registry.RegisterAccelerator(string(id), a, b.Tier, m.activateCallback(win.CharacterName)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}

	// Registrations for identities that went stale are released so the
	// combination frees up immediately.
	for id := range m.storeIdentities() {
		if !live[id] {
			m.registry.Unregister(string(id))
		}
	}
	return res, errors.Join(errs...)
}

func (m *Manager) storeIdentities() map[store.Identity]bool {
	doc := m.store.Document()
	out := make(map[store.Identity]bool, len(doc.Bindings))
	for id := range doc.Bindings {
		out[id] = true
	}
	return out
}

// ActivateAll replays every known binding with the OS, strongest first.
func (m *Manager) ActivateAll() error {
	m.mu.Lock()
	m.suspended = false
	m.mu.Unlock()
	return m.registry.ActivateAll()
}

// DeactivateAll releases every OS registration, keeping state for a later
// ActivateAll.
func (m *Manager) DeactivateAll() {
	m.registry.DeactivateAll()
}

// Export serializes the full binding document.
func (m *Manager) Export() ([]byte, error) {
	return m.store.Export()
}

// Import validates and merges a document, then resynchronizes the live
// registrations with the merged state.
func (m *Manager) Import(raw []byte) error {
	if err := m.store.Import(raw); err != nil {
		return err
	}
	m.hub.Publish(notify.Event{Type: notify.DocumentReloaded, Source: "import"})
	return m.resync()
}

// ListBackups returns the store's backups, oldest first.
func (m *Manager) ListBackups() []store.BackupInfo {
	return m.store.ListBackups()
}

// RestoreBackup replaces the document from a named backup and
// resynchronizes live registrations.
func (m *Manager) RestoreBackup(name string) error {
	if err := m.store.RestoreBackup(name); err != nil {
		return err
	}
	m.hub.Publish(notify.Event{Type: notify.DocumentReloaded, Source: "restore"})
	return m.resync()
}

// resync rebuilds registrations after a wholesale document change.
func (m *Manager) resync() error {
	m.registry.DeactivateAll()

	var errs []error
	doc := m.store.Document()
	for _, g := range sortedGlobals(doc) {
		a, err := accel.Encode(g.Accelerator)
		if err != nil {
			errs = append(errs, fmt.Errorf("global %s: %w", g.Type, err))
			continue
		}
		if err := m.registerGlobalAccelerator(g.Type, a); err != nil {
			errs = append(errs, fmt.Errorf("global %s: %w", g.Type, err))
		}
	}
	if _, err := m.ReconcileWindows(); err != nil {
		errs = append(errs, err)
	}

	// Drop holdings whose owner no longer exists in the merged document.
	identities := m.storeIdentities()
	for _, h := range m.registry.Holdings() {
		if gt, ok := strings.CutPrefix(h.OwnerID, globalOwnerPrefix); ok {
			if _, exists := doc.Globals[gt]; !exists {
				m.registry.Unregister(h.OwnerID)
			}
			continue
		}
		if !identities[store.Identity(h.OwnerID)] {
			m.registry.Unregister(h.OwnerID)
		}
	}

	// Holdings that survived the merge were released above but kept their
	// claims; replay them.
	if err := m.registry.ActivateAll(); err != nil {
		errs = append(errs, err)
	}

	// The replay re-registered weaker tiers; if shortcuts were suspended
	// when the document changed, mute them again so the toggle state
	// survives the resync.
	if m.Suspended() {
		m.registry.SuspendWeaker(priority.TierGlobal)
	}
	return errors.Join(errs...)
}

// sortedGlobals returns the document's global bindings in stable order.
func sortedGlobals(doc *store.Document) []store.GlobalBinding {
	out := make([]store.GlobalBinding, 0, len(doc.Globals))
	for _, g := range doc.Globals {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
