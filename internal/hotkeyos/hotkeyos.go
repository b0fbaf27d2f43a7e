// Package hotkeyos wraps the OS-proximate capabilities the core drives:
// global-hotkey registration and target window enumeration/activation.
//
// The live backend is built on golang.design/x/hotkey. A memory backend is
// provided for tests and dry-run mode.
package hotkeyos

import (
	"errors"

	"github.com/dshills/switchkey/internal/accel"
)

// Backend errors.
var (
	// ErrUnsupportedKey indicates the accelerator's key has no OS key code.
	ErrUnsupportedKey = errors.New("key not supported by the OS hotkey facility")

	// ErrAlreadyHeld indicates the OS refused the registration, typically
	// because another application holds the physical combination.
	ErrAlreadyHeld = errors.New("combination held outside this process")
)

// Backend is the OS-level global-hotkey facility.
type Backend interface {
	// Register binds fn to the accelerator system-wide. Replaces any
	// registration this process already holds for the same accelerator.
	Register(a accel.Accelerator, fn func()) error

	// Unregister releases the accelerator. No-op if not registered.
	Unregister(a accel.Accelerator)

	// IsRegistered reports whether this process holds the accelerator.
	IsRegistered(a accel.Accelerator) bool
}

// Window describes one enumerated target window.
type Window struct {
	// ID is an ephemeral handle valid only while the window lives.
	ID string

	// Title is the full window title, used for activation.
	Title string

	// CharacterName and ClassName feed identity derivation.
	CharacterName string
	ClassName     string

	// PriorityScore ranks the window for auto-key assignment.
	PriorityScore int
}

// Enumerator lists the currently live target windows.
type Enumerator interface {
	EnumerateTargetWindows() ([]Window, error)
}

// Activator raises a window by its title.
type Activator interface {
	ActivateWindowByTitle(title string) bool
}

// WindowSource combines enumeration and activation.
type WindowSource interface {
	Enumerator
	Activator
}
