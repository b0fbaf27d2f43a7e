package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/dshills/switchkey/internal/accel"
	"github.com/dshills/switchkey/internal/hotkeyos"
	"github.com/dshills/switchkey/internal/priority"
)

func TestRegisterInvalidSpec(t *testing.T) {
	r := New(hotkeyos.NewMemoryBackend())

	err := r.Register("owner", "   ", priority.TierWindow, func() {})
	if !errors.Is(err, accel.ErrInvalidFormat) {
		t.Errorf("error = %v, want ErrInvalidFormat", err)
	}
}

func TestRegisterAndTrigger(t *testing.T) {
	backend := hotkeyos.NewMemoryBackend()
	r := New(backend)

	fired := 0
	if err := r.Register("bob_iop", "ctrl+1", priority.TierWindow, func() { fired++ }); err != nil {
		t.Fatalf("Register error = %v", err)
	}

	if !backend.Trigger(accel.MustEncode("ctrl+1")) {
		t.Fatal("accelerator not registered with backend")
	}
	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}
}

func TestGlobalDisplacesWindow(t *testing.T) {
	// Scenario: WINDOW-tier Ctrl+1 for identity A, then GLOBAL-tier Ctrl+1
	// for nextWindow. The second call displaces the first at the OS level
	// and subsequent WINDOW requests for Ctrl+1 are refused.
	backend := hotkeyos.NewMemoryBackend()
	r := New(backend)
	a := accel.MustEncode("ctrl+1")

	if err := r.Register("identityA", "Ctrl+1", priority.TierWindow, func() {}); err != nil {
		t.Fatalf("window register error = %v", err)
	}
	if err := r.Register("global:nextWindow", "ctrl+1", priority.TierGlobal, func() {}); err != nil {
		t.Fatalf("global register error = %v", err)
	}

	if _, ok := r.HoldingOf("identityA"); ok {
		t.Error("displaced owner still holds a registration")
	}
	owner, ok := r.Owner(a)
	if !ok || owner.ID != "global:nextWindow" || owner.Tier != priority.TierGlobal {
		t.Errorf("Owner = %+v, %v", owner, ok)
	}

	_, err := r.Validate("ctrl+1", priority.TierWindow)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Validate error = %v, want ConflictError", err)
	}
	if conflict.OwnerID != "global:nextWindow" {
		t.Errorf("conflict owner = %q", conflict.OwnerID)
	}
	if !errors.Is(err, ErrPriorityConflict) {
		t.Error("ConflictError should match ErrPriorityConflict")
	}

	if err := r.Register("identityB", "ctrl+1", priority.TierWindow, func() {}); err == nil {
		t.Error("window register against global holder succeeded, want conflict")
	}

	if r.Stats().Displacements != 1 {
		t.Errorf("displacements = %d, want 1", r.Stats().Displacements)
	}
}

func TestIdempotentReRegister(t *testing.T) {
	backend := hotkeyos.NewMemoryBackend()
	r := New(backend)

	for i := 0; i < 3; i++ {
		if err := r.Register("global:toggle", "ctrl+alt+s", priority.TierGlobal, func() {}); err != nil {
			t.Fatalf("re-register %d error = %v", i, err)
		}
	}
	if backend.Count() != 1 {
		t.Errorf("backend count = %d, want 1", backend.Count())
	}
}

func TestSameOwnerRebindsToNewAccelerator(t *testing.T) {
	backend := hotkeyos.NewMemoryBackend()
	r := New(backend)

	if err := r.Register("bob_iop", "ctrl+1", priority.TierWindow, func() {}); err != nil {
		t.Fatalf("register error = %v", err)
	}
	if err := r.Register("bob_iop", "ctrl+2", priority.TierWindow, func() {}); err != nil {
		t.Fatalf("rebind error = %v", err)
	}

	if backend.IsRegistered(accel.MustEncode("ctrl+1")) {
		t.Error("old accelerator still registered")
	}
	if !backend.IsRegistered(accel.MustEncode("ctrl+2")) {
		t.Error("new accelerator not registered")
	}
	if _, held := r.Owner(accel.MustEncode("ctrl+1")); held {
		t.Error("old accelerator still claimed in priority table")
	}
}

func TestOSRefusal(t *testing.T) {
	backend := hotkeyos.NewMemoryBackend()
	backend.Refuse(accel.MustEncode("ctrl+space"))
	r := New(backend)

	err := r.Register("owner", "ctrl+space", priority.TierWindow, func() {})
	if !errors.Is(err, ErrOSRegistrationFailed) {
		t.Fatalf("error = %v, want ErrOSRegistrationFailed", err)
	}

	// A refused registration must leave no claim behind.
	if _, held := r.Owner(accel.MustEncode("ctrl+space")); held {
		t.Error("failed registration left a priority claim")
	}
	if r.Stats().Failures != 1 {
		t.Errorf("failures = %d, want 1", r.Stats().Failures)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	backend := hotkeyos.NewMemoryBackend()
	r := New(backend)

	if err := r.Register("bob_iop", "ctrl+1", priority.TierWindow, func() {}); err != nil {
		t.Fatalf("register error = %v", err)
	}
	r.Unregister("bob_iop")
	r.Unregister("bob_iop")
	r.Unregister("never-registered")

	if backend.Count() != 0 {
		t.Errorf("backend count = %d, want 0", backend.Count())
	}
	if r.Stats().Unregistrations != 1 {
		t.Errorf("unregistrations = %d, want 1", r.Stats().Unregistrations)
	}
}

func TestActivateAllStrongestTierFirst(t *testing.T) {
	backend := hotkeyos.NewMemoryBackend()
	r := New(backend)

	must := func(owner, spec string, tier priority.Tier) {
		t.Helper()
		if err := r.Register(owner, spec, tier, func() {}); err != nil {
			t.Fatalf("register %s error = %v", owner, err)
		}
	}
	must("win_owner", "ctrl+3", priority.TierWindow)
	must("auto_owner", "ctrl+2", priority.TierAutoKey)
	must("global:next", "ctrl+1", priority.TierGlobal)

	r.DeactivateAll()
	if backend.Count() != 0 {
		t.Fatalf("backend count after deactivate = %d, want 0", backend.Count())
	}

	if err := r.ActivateAll(); err != nil {
		t.Fatalf("ActivateAll error = %v", err)
	}
	if backend.Count() != 3 {
		t.Fatalf("backend count after activate = %d, want 3", backend.Count())
	}

	// Replay order: global, then autokey, then window.
	var replays []string
	for _, entry := range backend.Log() {
		if strings.HasPrefix(entry, "register ") {
			replays = append(replays, strings.TrimPrefix(entry, "register "))
		}
	}
	replays = replays[len(replays)-3:]
	want := []string{"ctrl+1", "ctrl+2", "ctrl+3"}
	for i := range want {
		if replays[i] != want[i] {
			t.Fatalf("replay order = %v, want %v", replays, want)
		}
	}
}

func TestDeactivateAllPreservesState(t *testing.T) {
	backend := hotkeyos.NewMemoryBackend()
	r := New(backend)

	if err := r.Register("bob_iop", "ctrl+1", priority.TierWindow, func() {}); err != nil {
		t.Fatalf("register error = %v", err)
	}
	r.DeactivateAll()

	if _, ok := r.HoldingOf("bob_iop"); !ok {
		t.Error("owner map lost on deactivate")
	}
	if _, held := r.Owner(accel.MustEncode("ctrl+1")); !held {
		t.Error("priority claim lost on deactivate")
	}
}

func TestHoldingsSorted(t *testing.T) {
	r := New(hotkeyos.NewMemoryBackend())

	_ = r.Register("z_window", "ctrl+3", priority.TierWindow, func() {})
	_ = r.Register("a_global", "ctrl+1", priority.TierGlobal, func() {})

	holdings := r.Holdings()
	if len(holdings) != 2 {
		t.Fatalf("len = %d, want 2", len(holdings))
	}
	if holdings[0].OwnerID != "a_global" || holdings[1].OwnerID != "z_window" {
		t.Errorf("order = %q, %q", holdings[0].OwnerID, holdings[1].OwnerID)
	}
}
