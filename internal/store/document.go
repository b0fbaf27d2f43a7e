package store

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/dshills/switchkey/internal/priority"
)

// SchemaVersion is the current document schema version.
const SchemaVersion = 2

// Well-known global binding types.
const (
	GlobalNextWindow      = "nextWindow"
	GlobalToggleShortcuts = "toggleShortcuts"
)

// Binding is one identity's persistent accelerator assignment.
type Binding struct {
	// Accelerator is the canonical string form (accel.Accelerator.String).
	Accelerator string `json:"accelerator"`

	// DisplayName is the character name as last seen, kept for display
	// and for deterministic auto-key tie-breaking.
	DisplayName string `json:"displayName,omitempty"`

	// WindowID is the ephemeral handle of the last matching live window.
	// Rebound, never recreated, when a matching window reappears.
	WindowID string `json:"windowId,omitempty"`

	// Tier is the binding's priority tier.
	Tier priority.Tier `json:"priorityTier"`

	LastUsed      time.Time `json:"lastUsed"`
	UsageCount    int       `json:"usageCount"`
	AutoGenerated bool      `json:"autoGenerated"`

	// Active is false while no live window matches the identity.
	// InactiveSince is stamped on the first transition only; bindings
	// continuously inactive past the grace window are purged.
	Active        bool       `json:"active"`
	InactiveSince *time.Time `json:"inactiveSince,omitempty"`
}

// GlobalBinding is an application-wide action binding, always tier GLOBAL.
type GlobalBinding struct {
	Type        string `json:"type"`
	Accelerator string `json:"accelerator"`
}

// AutoKeyPolicy configures bulk accelerator generation.
type AutoKeyPolicy struct {
	Enabled bool `json:"enabled"`

	// Pattern is one of: numbers, function, numpad, azertyui, custom.
	Pattern string `json:"pattern"`

	// CustomTemplate contains a {n} placeholder, used when Pattern is
	// "custom".
	CustomTemplate string `json:"customTemplate,omitempty"`
}

// DirectoryEntry records which identity a window handle last mapped to.
type DirectoryEntry struct {
	Identity Identity  `json:"identity"`
	LastSeen time.Time `json:"lastSeen"`
}

// Document is the root persisted record. Exactly one Binding per Identity
// and one GlobalBinding per type; accelerator uniqueness across active
// bindings is enforced by the priority table, not the store.
type Document struct {
	SchemaVersion int                       `json:"schemaVersion"`
	Bindings      map[Identity]*Binding     `json:"bindings"`
	Globals       map[string]GlobalBinding  `json:"globals"`
	AutoKey       AutoKeyPolicy             `json:"autoKey"`
	Directory     map[string]DirectoryEntry `json:"characterDirectory"`
	LastUpdated   time.Time                 `json:"lastUpdated"`
}

// DefaultDocument returns an empty document at the current schema version.
func DefaultDocument() *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		Bindings:      make(map[Identity]*Binding),
		Globals:       make(map[string]GlobalBinding),
		AutoKey:       AutoKeyPolicy{Pattern: "numbers"},
		Directory:     make(map[string]DirectoryEntry),
	}
}

// normalize replaces nil maps after decoding a sparse document.
func (d *Document) normalize() {
	if d.Bindings == nil {
		d.Bindings = make(map[Identity]*Binding)
	}
	if d.Globals == nil {
		d.Globals = make(map[string]GlobalBinding)
	}
	if d.Directory == nil {
		d.Directory = make(map[string]DirectoryEntry)
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		SchemaVersion: d.SchemaVersion,
		Bindings:      make(map[Identity]*Binding, len(d.Bindings)),
		Globals:       make(map[string]GlobalBinding, len(d.Globals)),
		AutoKey:       d.AutoKey,
		Directory:     make(map[string]DirectoryEntry, len(d.Directory)),
		LastUpdated:   d.LastUpdated,
	}
	for id, b := range d.Bindings {
		cp := *b
		if b.InactiveSince != nil {
			t := *b.InactiveSince
			cp.InactiveSince = &t
		}
		out.Bindings[id] = &cp
	}
	for t, g := range d.Globals {
		out.Globals[t] = g
	}
	for w, e := range d.Directory {
		out.Directory[w] = e
	}
	return out
}

// requiredSections are the top-level keys a structurally valid document
// must carry. Checked on raw bytes before decoding so a truncated or
// foreign JSON file is quarantined rather than silently half-loaded.
var requiredSections = []string{"bindings", "globals", "autoKey"}

// ValidateRaw checks that raw is well-formed JSON carrying every required
// top-level section. Returns ErrConfigCorrupted (wrapped) otherwise.
func ValidateRaw(raw []byte) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: invalid JSON", ErrConfigCorrupted)
	}
	for _, section := range requiredSections {
		if !gjson.GetBytes(raw, section).Exists() {
			return fmt.Errorf("%w: missing section %q", ErrConfigCorrupted, section)
		}
	}
	return nil
}
