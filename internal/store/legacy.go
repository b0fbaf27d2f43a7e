package store

import (
	"os"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/switchkey/internal/accel"
	"github.com/dshills/switchkey/internal/priority"
)

// The legacy flat format kept parallel maps keyed by ephemeral window id:
//
//	{"shortcuts": {...}, "names": {...}, "classes": {...}, "initiatives": {...}}
//
// Migration folds these into identity-keyed bindings. Window ids from a
// previous session are dead, so migrated bindings start inactive and
// re-attach through reconciliation.

// migrateLegacyLocked runs once at construction. If only the legacy file
// exists it is converted, persisted in the current format, and archived.
// If both exist the current format wins and the legacy file is archived
// untouched. Migration never fails Open; a broken legacy file is logged
// and left behind.
func (s *Store) migrateLegacyLocked() {
	if s.legacyPath == "" {
		return
	}
	raw, err := os.ReadFile(s.legacyPath)
	if err != nil {
		return
	}

	if _, err := os.Stat(s.path); err == nil {
		s.logger.Info("legacy configuration superseded by current format, archiving %s", s.legacyPath)
		s.archiveLegacyLocked(raw)
		return
	}

	doc, n := convertLegacy(raw, s.now())
	if doc == nil {
		s.logger.Warn("legacy configuration at %s is not readable, ignoring", s.legacyPath)
		return
	}

	s.doc = doc
	if err := s.persistLocked(false); err != nil {
		s.logger.Error("legacy migration persist failed: %v", err)
		s.doc = nil
		return
	}
	s.logger.Info("migrated %d legacy bindings from %s", n, s.legacyPath)
	s.archiveLegacyLocked(raw)
}

// archiveLegacyLocked stamps the schema version the legacy bytes were
// retired at and moves them into the backup directory, then removes the
// legacy file so migration runs once.
func (s *Store) archiveLegacyLocked(raw []byte) {
	stamped, err := sjson.SetBytes(raw, "schemaVersion", SchemaVersion)
	if err != nil {
		stamped = raw
	}
	if err := s.writeBackupLocked(prefixLegacy, stamped); err != nil {
		s.logger.Warn("legacy archive failed: %v", err)
		return
	}
	_ = os.Remove(s.legacyPath)
}

// convertLegacy builds a current-format document from legacy flat bytes.
// Returns the document and the number of bindings carried over, or nil
// when raw is not valid JSON. Identity collisions keep the first entry.
func convertLegacy(raw []byte, now time.Time) (*Document, int) {
	if !gjson.ValidBytes(raw) {
		return nil, 0
	}

	shortcuts := gjson.GetBytes(raw, "shortcuts")
	names := gjson.GetBytes(raw, "names")
	classes := gjson.GetBytes(raw, "classes")

	doc := DefaultDocument()
	n := 0
	shortcuts.ForEach(func(windowID, spec gjson.Result) bool {
		a, err := accel.Encode(spec.String())
		if err != nil {
			return true
		}
		name := names.Get(windowID.String()).String()
		class := classes.Get(windowID.String()).String()
		id := MakeIdentity(name, class)
		if id == "_" {
			return true
		}
		if _, exists := doc.Bindings[id]; exists {
			return true
		}

		stamp := now
		doc.Bindings[id] = &Binding{
			Accelerator:   a.String(),
			DisplayName:   name,
			Tier:          priority.TierWindow,
			LastUsed:      now,
			Active:        false,
			InactiveSince: &stamp,
		}
		n++
		return true
	})
	return doc, n
}

// ImportLegacyFlatStore merges legacy flat bytes into the live document,
// for users carrying an old export. Existing bindings win over legacy
// ones. Returns the number of bindings added.
func (s *Store) ImportLegacyFlatStore(raw []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	converted, _ := convertLegacy(raw, s.now())
	if converted == nil {
		return 0, ErrConfigCorrupted
	}

	added := 0
	for id, b := range converted.Bindings {
		if _, exists := s.doc.Bindings[id]; exists {
			continue
		}
		cp := *b
		s.doc.Bindings[id] = &cp
		added++
	}
	if added == 0 {
		return 0, nil
	}
	return added, s.persistLocked(true)
}
