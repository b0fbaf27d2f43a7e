package store

import "errors"

// Store errors.
var (
	// ErrConfigCorrupted indicates an on-disk or imported document failed
	// structural validation. Load-time corruption is recovered locally
	// (quarantine + defaults) and never surfaces from Open.
	ErrConfigCorrupted = errors.New("configuration document corrupted")

	// ErrDirectoryNotWritable indicates the store cannot guarantee
	// durability. Fatal at construction.
	ErrDirectoryNotWritable = errors.New("configuration directory not writable")

	// ErrBindingNotFound indicates no binding exists for the identity.
	ErrBindingNotFound = errors.New("no binding for identity")

	// ErrBackupNotFound indicates the named backup does not exist.
	ErrBackupNotFound = errors.New("backup not found")
)
