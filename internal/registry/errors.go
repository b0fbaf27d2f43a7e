package registry

import (
	"errors"
	"fmt"

	"github.com/dshills/switchkey/internal/accel"
	"github.com/dshills/switchkey/internal/priority"
)

// Registry errors.
var (
	// ErrPriorityConflict indicates the accelerator is held by an owner
	// the requested tier cannot displace.
	ErrPriorityConflict = errors.New("accelerator held at a stronger tier")

	// ErrOSRegistrationFailed indicates the platform refused the
	// registration. Treated as transient; not retried automatically.
	ErrOSRegistrationFailed = errors.New("os hotkey registration failed")
)

// ConflictError reports the owner blocking a registration so callers can
// explain the conflict to the user.
type ConflictError struct {
	Accelerator accel.Accelerator
	OwnerID     string
	OwnerTier   priority.Tier
	Requested   priority.Tier
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("accelerator %s held by %q at tier %s (requested %s)",
		e.Accelerator, e.OwnerID, e.OwnerTier, e.Requested)
}

// Is matches ErrPriorityConflict and identical wrapper instances.
func (e *ConflictError) Is(target error) bool {
	if e == nil {
		return false
	}
	if t, ok := target.(*ConflictError); ok {
		return e == t
	}
	return errors.Is(ErrPriorityConflict, target)
}
