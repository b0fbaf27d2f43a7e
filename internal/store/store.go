// Package store owns the durable, identity-keyed binding record: per
// character assignments, global bindings, and the auto-key policy. Every
// durable mutation is an atomic whole-document write with an automatic
// backup beforehand, so a crash mid-write never corrupts the file.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dshills/switchkey/internal/accel"
	"github.com/dshills/switchkey/internal/logging"
	"github.com/dshills/switchkey/internal/priority"
)

// inactiveGrace is how long a binding may stay inactive before it is
// purged during reconciliation.
const inactiveGrace = 30 * 24 * time.Hour

// defaultRetention is how many automatic backups are kept.
const defaultRetention = 10

// State tracks the store lifecycle:
// Uninitialized -> Migrating -> Loaded -> (Saving -> Loaded)*.
type State int

const (
	// StateUninitialized is the zero state before Open completes.
	StateUninitialized State = iota
	// StateMigrating covers legacy-format detection and rewriting.
	StateMigrating
	// StateLoaded means the in-memory document is authoritative.
	StateLoaded
	// StateSaving covers the backup/marshal/rename sequence.
	StateSaving
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateMigrating:
		return "migrating"
	case StateLoaded:
		return "loaded"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// Store is the identity-keyed configuration store. All mutating operations
// serialize through one mutex covering the read-modify-write-persist
// sequence; single-process ownership of the file is assumed.
type Store struct {
	mu sync.Mutex

	path       string
	backupDir  string
	legacyPath string
	retention  int

	doc   *Document
	state State

	logger *logging.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLegacyPath sets the location of a previous-format configuration file
// to migrate from on first construction.
func WithLegacyPath(path string) Option {
	return func(s *Store) { s.legacyPath = path }
}

// WithBackupRetention overrides how many automatic backups are kept.
func WithBackupRetention(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source. Used by tests to drive retention and
// inactivity purging.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open constructs the store at path, migrating any legacy configuration,
// and loads (or synthesizes) the document. A corrupt on-disk document is
// quarantined into the backup directory and replaced with defaults; Open
// fails only when the directory cannot guarantee durability.
func Open(path string, opts ...Option) (*Store, error) {
	s := &Store{
		path:      path,
		backupDir: filepath.Join(filepath.Dir(path), "backups"),
		retention: defaultRetention,
		logger:    logging.Null,
		now:       time.Now,
		state:     StateUninitialized,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.ensureWritable(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateMigrating
	s.migrateLegacyLocked()

	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	s.state = StateLoaded
	return s, nil
}

// ensureWritable creates the data and backup directories and proves the
// data directory accepts writes before any durability promise is made.
func (s *Store) ensureWritable() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryNotWritable, err)
	}
	if err := os.MkdirAll(s.backupDir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryNotWritable, err)
	}

	probe := filepath.Join(dir, ".write-probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrDirectoryNotWritable, err)
	}
	_ = os.Remove(probe)
	return nil
}

// loadLocked reads the current-format file. Missing file synthesizes and
// persists a default document; a corrupt file is quarantined for forensics
// and replaced with defaults. The store never refuses to start over
// document content.
func (s *Store) loadLocked() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.doc = DefaultDocument()
		return s.persistLocked(false)
	}
	if err != nil {
		return err
	}

	if verr := s.decodeLocked(raw); verr != nil {
		s.logger.Warn("configuration corrupted, falling back to defaults: %v", verr)
		if qerr := s.writeBackupLocked("corrupted", raw); qerr != nil {
			s.logger.Error("quarantine of corrupted configuration failed: %v", qerr)
		}
		s.doc = DefaultDocument()
		return s.persistLocked(false)
	}
	return nil
}

// decodeLocked validates and decodes raw into the live document.
func (s *Store) decodeLocked(raw []byte) error {
	if err := ValidateRaw(raw); err != nil {
		return err
	}
	doc := &Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigCorrupted, err)
	}
	doc.normalize()
	s.doc = doc
	return nil
}

// persistLocked serializes the document and writes it atomically: temp
// sibling file, then rename. With backup enabled it first copies the
// current file into the backup directory and prunes old backups. A failure
// at any step leaves the previous on-disk document untouched.
func (s *Store) persistLocked(withBackup bool) error {
	prev := s.state
	s.state = StateSaving
	defer func() { s.state = prev }()

	if withBackup {
		if _, err := os.Stat(s.path); err == nil {
			if err := s.backupCurrentLocked("auto-backup"); err != nil {
				return err
			}
			s.pruneBackupsLocked()
		}
	}

	s.doc.SchemaVersion = SchemaVersion
	s.doc.LastUpdated = s.now()

	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// State returns the store's lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Path returns the canonical document path.
func (s *Store) Path() string { return s.path }

// BackupDir returns the backup directory path.
func (s *Store) BackupDir() string { return s.backupDir }

// GetBinding returns a copy of the identity's binding, if any.
func (s *Store) GetBinding(id Identity) (Binding, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.doc.Bindings[id]
	if !ok {
		return Binding{}, false
	}
	return *b, true
}

// SetBinding upserts the identity's binding: bumps the usage count, stamps
// lastUsed, marks it active, and flags it auto-generated when the tier is
// AUTO_KEY. The change is persisted before returning.
func (s *Store) SetBinding(id Identity, a accel.Accelerator, displayName, windowID string, tier priority.Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.doc.Bindings[id]
	if !ok {
		b = &Binding{}
		s.doc.Bindings[id] = b
	} else if b.DisplayName != "" && displayName != "" && b.DisplayName != displayName {
		// Identity collision: a different display name normalized to the
		// same key. Entries merge silently, first writer's name retained.
		s.logger.Debug("identity %s: display name %q collides with stored %q", id, displayName, b.DisplayName)
		displayName = b.DisplayName
	}

	b.Accelerator = a.String()
	if displayName != "" {
		b.DisplayName = displayName
	}
	if windowID != "" {
		b.WindowID = windowID
		s.doc.Directory[windowID] = DirectoryEntry{Identity: id, LastSeen: s.now()}
	}
	b.Tier = tier
	b.LastUsed = s.now()
	b.UsageCount++
	b.AutoGenerated = tier == priority.TierAutoKey
	b.Active = true
	b.InactiveSince = nil

	return s.persistLocked(true)
}

// RemoveBinding deletes the identity's binding and persists. Returns
// ErrBindingNotFound if no binding exists.
func (s *Store) RemoveBinding(id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Bindings[id]; !ok {
		return ErrBindingNotFound
	}
	delete(s.doc.Bindings, id)
	return s.persistLocked(true)
}

// LinkToLiveWindow rebinds the identity's existing binding to a live window
// handle without touching the accelerator, and returns the accelerator so
// the caller can re-register it. Returns ErrBindingNotFound if the identity
// has no binding.
func (s *Store) LinkToLiveWindow(id Identity, windowID string) (accel.Accelerator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.doc.Bindings[id]
	if !ok {
		return accel.Accelerator{}, ErrBindingNotFound
	}

	b.WindowID = windowID
	b.Active = true
	b.InactiveSince = nil
	s.doc.Directory[windowID] = DirectoryEntry{Identity: id, LastSeen: s.now()}

	a, err := accel.Encode(b.Accelerator)
	if err != nil {
		return accel.Accelerator{}, err
	}
	if err := s.persistLocked(true); err != nil {
		return accel.Accelerator{}, err
	}
	return a, nil
}

// ReconcileResult reports what a reconciliation pass changed.
type ReconcileResult struct {
	Rebound     int
	Deactivated int
	Purged      int
}

// ReconcileLiveWindows aligns bindings with the currently live identity
// set: bindings without a live window go inactive (inactivity stamped on
// the first transition only), returning bindings go active again, and
// bindings continuously inactive past the grace window are purged.
// Idempotent: a second pass with the same live set changes nothing and
// causes no backup churn.
func (s *Store) ReconcileLiveWindows(live map[Identity]bool) (ReconcileResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ReconcileResult
	now := s.now()
	changed := false

	for id, b := range s.doc.Bindings {
		if live[id] {
			if !b.Active {
				b.Active = true
				b.InactiveSince = nil
				res.Rebound++
				changed = true
			}
			continue
		}

		if b.Active {
			b.Active = false
			stamp := now
			b.InactiveSince = &stamp
			res.Deactivated++
			changed = true
			continue
		}

		if b.InactiveSince != nil && now.Sub(*b.InactiveSince) > inactiveGrace {
			delete(s.doc.Bindings, id)
			res.Purged++
			changed = true
		}
	}

	if !changed {
		return res, nil
	}
	return res, s.persistLocked(true)
}

// SetGlobal upserts a global binding for the given action type.
func (s *Store) SetGlobal(globalType string, a accel.Accelerator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Globals[globalType] = GlobalBinding{Type: globalType, Accelerator: a.String()}
	return s.persistLocked(true)
}

// RemoveGlobal deletes a global binding. No-op if absent.
func (s *Store) RemoveGlobal(globalType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Globals[globalType]; !ok {
		return nil
	}
	delete(s.doc.Globals, globalType)
	return s.persistLocked(true)
}

// AutoKey returns the current auto-key policy.
func (s *Store) AutoKey() AutoKeyPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.AutoKey
}

// SetAutoKey replaces the auto-key policy and persists.
func (s *Store) SetAutoKey(policy AutoKeyPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.AutoKey = policy
	return s.persistLocked(true)
}

// Document returns a deep copy of the current document.
func (s *Store) Document() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

// Export serializes the full document.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.MarshalIndent(s.doc, "", "  ")
}

// Import validates raw exactly like load-time corruption checking, then
// merges it field-by-field into the current document (imported values win
// on conflict) and persists. On validation failure neither the in-memory
// document nor the on-disk file changes.
func (s *Store) Import(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ValidateRaw(raw); err != nil {
		return err
	}
	incoming := &Document{}
	if err := json.Unmarshal(raw, incoming); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigCorrupted, err)
	}
	incoming.normalize()

	for id, b := range incoming.Bindings {
		cp := *b
		s.doc.Bindings[id] = &cp
	}
	for t, g := range incoming.Globals {
		s.doc.Globals[t] = g
	}
	s.doc.AutoKey = incoming.AutoKey
	for w, e := range incoming.Directory {
		s.doc.Directory[w] = e
	}

	return s.persistLocked(true)
}

// Reload re-reads the on-disk document, with the same corruption handling
// as startup. Used when the file changes under us (another UI surface).
func (s *Store) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// DocStats counts bindings by state for diagnostics.
type DocStats struct {
	Total         int
	Active        int
	Inactive      int
	AutoGenerated int
	Globals       int
}

// Stats returns binding counts.
func (s *Store) Stats() DocStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := DocStats{Total: len(s.doc.Bindings), Globals: len(s.doc.Globals)}
	for _, b := range s.doc.Bindings {
		if b.Active {
			st.Active++
		} else {
			st.Inactive++
		}
		if b.AutoGenerated {
			st.AutoGenerated++
		}
	}
	return st
}
