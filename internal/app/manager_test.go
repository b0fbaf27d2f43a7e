package app

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/dshills/switchkey/internal/accel"
	"github.com/dshills/switchkey/internal/hotkeyos"
	"github.com/dshills/switchkey/internal/priority"
	"github.com/dshills/switchkey/internal/registry"
	"github.com/dshills/switchkey/internal/store"
)

type fixture struct {
	manager *Manager
	backend *hotkeyos.MemoryBackend
	windows *hotkeyos.MemoryWindows
	store   *store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "bindings.json"))
	if err != nil {
		t.Fatalf("store.Open error = %v", err)
	}

	backend := hotkeyos.NewMemoryBackend()
	windows := hotkeyos.NewMemoryWindows()
	m := NewManager(DefaultSettings(), st, backend, windows, nil)
	t.Cleanup(m.Stop)
	return &fixture{manager: m, backend: backend, windows: windows, store: st}
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal error = %v", err)
	}
	return raw
}

func TestRegisterWindowBindingActivates(t *testing.T) {
	f := newFixture(t)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)

	wins, _ := f.windows.EnumerateTargetWindows()
	id, err := f.manager.RegisterWindowBinding("Bob", "Iop", "ctrl+1", wins[0])
	if err != nil {
		t.Fatalf("RegisterWindowBinding error = %v", err)
	}
	if id != "bob_iop" {
		t.Errorf("identity = %q", id)
	}

	if !f.backend.Trigger(accel.MustEncode("ctrl+1")) {
		t.Fatal("shortcut not registered")
	}
	activated := f.windows.Activated()
	if len(activated) != 1 || activated[0] != "Bob - window" {
		t.Errorf("activated = %v", activated)
	}

	b, ok := f.store.GetBinding(id)
	if !ok || b.Accelerator != "ctrl+1" || b.Tier != priority.TierWindow {
		t.Errorf("stored binding = %+v, %v", b, ok)
	}
}

func TestGlobalDisplacesWindowEndToEnd(t *testing.T) {
	// Window-tier ctrl+1 for an identity, then global-tier ctrl+1 for
	// nextWindow: the global takes the combination and window-tier
	// validation refuses it afterwards.
	f := newFixture(t)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)
	wins, _ := f.windows.EnumerateTargetWindows()

	if _, err := f.manager.RegisterWindowBinding("Bob", "Iop", "ctrl+1", wins[0]); err != nil {
		t.Fatalf("window register error = %v", err)
	}
	if err := f.manager.RegisterGlobalBinding(store.GlobalNextWindow, "Ctrl+1"); err != nil {
		t.Fatalf("global register error = %v", err)
	}

	if _, err := f.manager.ValidateShortcut("ctrl+1", priority.TierWindow); err == nil {
		t.Error("window-tier validation succeeded against a global holder")
	}
	if f.manager.Stats().Registry.Displacements != 1 {
		t.Errorf("displacements = %d, want 1", f.manager.Stats().Registry.Displacements)
	}
}

func TestAssignAutoKeysScenario(t *testing.T) {
	// Ranked targets with a duplicate identity: amy (score 80) gets "1",
	// bob (score 50) gets "2", the duplicate is skipped.
	f := newFixture(t)
	if err := f.store.SetAutoKey(store.AutoKeyPolicy{Enabled: true, Pattern: "numbers"}); err != nil {
		t.Fatal(err)
	}

	f.windows.Add("Bob - window", "Bob", "Iop", 50)
	f.windows.Add("Amy - window", "Amy", "Cra", 80)
	f.windows.Add("Amy - second", "Amy", "Cra", 80)

	report, err := f.manager.AssignAutoKeys()
	if err != nil {
		t.Fatalf("AssignAutoKeys error = %v", err)
	}
	if report.Assigned != 2 || report.Skipped != 1 {
		t.Errorf("report = %+v, want 2 assigned 1 skipped", report)
	}

	amy, _ := f.store.GetBinding("amy_cra")
	bob, _ := f.store.GetBinding("bob_iop")
	if amy.Accelerator != "1" || bob.Accelerator != "2" {
		t.Errorf("accelerators = amy %q, bob %q", amy.Accelerator, bob.Accelerator)
	}
	if !amy.AutoGenerated || !bob.AutoGenerated {
		t.Error("auto-key bindings not flagged autoGenerated")
	}

	if !f.backend.Trigger(accel.MustEncode("1")) {
		t.Fatal("amy's shortcut not live")
	}
	if got := f.windows.Activated(); len(got) != 1 || got[0] != "Amy - window" {
		t.Errorf("activated = %v", got)
	}
}

func TestAssignAutoKeysDisabled(t *testing.T) {
	f := newFixture(t)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)

	report, err := f.manager.AssignAutoKeys()
	if err != nil {
		t.Fatalf("AssignAutoKeys error = %v", err)
	}
	if report.Disabled != 1 || report.Assigned != 0 {
		t.Errorf("report = %+v, want disabled", report)
	}
	if f.backend.Count() != 0 {
		t.Error("disabled policy registered shortcuts")
	}
}

func TestAssignAutoKeysSkipsGlobalConflict(t *testing.T) {
	f := newFixture(t)
	if err := f.store.SetAutoKey(store.AutoKeyPolicy{Enabled: true, Pattern: "numbers"}); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.RegisterGlobalBinding(store.GlobalNextWindow, "1"); err != nil {
		t.Fatal(err)
	}

	f.windows.Add("Amy - window", "Amy", "Cra", 80)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)

	report, err := f.manager.AssignAutoKeys()
	if err != nil {
		t.Fatalf("AssignAutoKeys error = %v", err)
	}
	if report.Conflicts != 1 || report.Assigned != 1 {
		t.Errorf("report = %+v, want 1 conflict 1 assigned", report)
	}

	// The global keeps "1"; bob still got "2".
	owner, ok := f.manager.Registry().Owner(accel.MustEncode("1"))
	if !ok || owner.Tier != priority.TierGlobal {
		t.Errorf("owner of 1 = %+v, %v", owner, ok)
	}
	if b, _ := f.store.GetBinding("bob_iop"); b.Accelerator != "2" {
		t.Errorf("bob accelerator = %q, want 2", b.Accelerator)
	}
}

func TestToggleShortcutsKeepsGlobalLive(t *testing.T) {
	f := newFixture(t)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)
	wins, _ := f.windows.EnumerateTargetWindows()

	if _, err := f.manager.RegisterWindowBinding("Bob", "Iop", "ctrl+1", wins[0]); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.RegisterGlobalBinding(store.GlobalToggleShortcuts, "ctrl+alt+s"); err != nil {
		t.Fatal(err)
	}

	toggle := accel.MustEncode("ctrl+alt+s")
	if !f.backend.Trigger(toggle) {
		t.Fatal("toggle not registered")
	}
	if !f.manager.Suspended() {
		t.Error("manager not suspended after toggle")
	}
	if f.backend.IsRegistered(accel.MustEncode("ctrl+1")) {
		t.Error("window shortcut still live while suspended")
	}
	if !f.backend.IsRegistered(toggle) {
		t.Fatal("toggle itself went dead")
	}

	if !f.backend.Trigger(toggle) {
		t.Fatal("second toggle failed")
	}
	if f.manager.Suspended() {
		t.Error("manager still suspended after second toggle")
	}
	if !f.backend.IsRegistered(accel.MustEncode("ctrl+1")) {
		t.Error("window shortcut not restored")
	}
}

func TestNextWindowCycles(t *testing.T) {
	f := newFixture(t)
	f.windows.Add("Amy - window", "Amy", "Cra", 80)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)

	if err := f.manager.RegisterGlobalBinding(store.GlobalNextWindow, "ctrl+tab"); err != nil {
		t.Fatal(err)
	}

	next := accel.MustEncode("ctrl+tab")
	for i := 0; i < 3; i++ {
		if !f.backend.Trigger(next) {
			t.Fatal("next-window not registered")
		}
	}

	got := f.windows.Activated()
	want := []string{"Bob - window", "Amy - window", "Bob - window"}
	if len(got) != len(want) {
		t.Fatalf("activated = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("activated = %v, want %v", got, want)
		}
	}
}

func TestReconcileRegistersReturningIdentity(t *testing.T) {
	f := newFixture(t)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)
	wins, _ := f.windows.EnumerateTargetWindows()

	if _, err := f.manager.RegisterWindowBinding("Bob", "Iop", "ctrl+1", wins[0]); err != nil {
		t.Fatal(err)
	}

	// Window gone: the registration is released and the binding goes
	// inactive.
	f.windows.Remove(wins[0].ID)
	if _, err := f.manager.ReconcileWindows(); err != nil {
		t.Fatalf("reconcile error = %v", err)
	}
	if f.backend.IsRegistered(accel.MustEncode("ctrl+1")) {
		t.Error("stale shortcut still live")
	}
	if b, _ := f.store.GetBinding("bob_iop"); b.Active {
		t.Error("binding still active without a window")
	}

	// Window returns with a fresh handle: relinked and re-registered.
	newID := f.windows.Add("Bob - window", "Bob", "Iop", 50)
	if _, err := f.manager.ReconcileWindows(); err != nil {
		t.Fatalf("reconcile error = %v", err)
	}
	if !f.backend.Trigger(accel.MustEncode("ctrl+1")) {
		t.Fatal("returning identity's shortcut not restored")
	}
	if b, _ := f.store.GetBinding("bob_iop"); b.WindowID != newID || !b.Active {
		t.Errorf("binding = %+v, want relinked to %s", b, newID)
	}
}

func TestStartReplaysPersistedState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bindings.json")

	st, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SetGlobal(store.GlobalNextWindow, accel.MustEncode("ctrl+tab")); err != nil {
		t.Fatal(err)
	}
	if err := st.SetBinding("bob_iop", accel.MustEncode("ctrl+1"), "Bob", "stale", priority.TierWindow); err != nil {
		t.Fatal(err)
	}

	// Fresh process over the same document.
	st2, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	backend := hotkeyos.NewMemoryBackend()
	windows := hotkeyos.NewMemoryWindows()
	windows.Add("Bob - window", "Bob", "Iop", 50)

	m := NewManager(DefaultSettings(), st2, backend, windows, nil)
	defer m.Stop()
	if err := m.Start(); err != nil {
		t.Fatalf("Start error = %v", err)
	}

	if !backend.IsRegistered(accel.MustEncode("ctrl+tab")) {
		t.Error("global not replayed at startup")
	}
	if !backend.IsRegistered(accel.MustEncode("ctrl+1")) {
		t.Error("window binding not replayed at startup")
	}
}

func TestImportResyncsRegistrations(t *testing.T) {
	f := newFixture(t)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)
	wins, _ := f.windows.EnumerateTargetWindows()
	if _, err := f.manager.RegisterWindowBinding("Bob", "Iop", "ctrl+1", wins[0]); err != nil {
		t.Fatal(err)
	}

	// An exported document from elsewhere moves bob to ctrl+5.
	other := store.DefaultDocument()
	other.Bindings["bob_iop"] = &store.Binding{
		Accelerator: "ctrl+5", DisplayName: "Bob", Tier: priority.TierWindow, Active: true,
	}
	raw := mustMarshal(t, other)

	if err := f.manager.Import(raw); err != nil {
		t.Fatalf("Import error = %v", err)
	}
	if f.backend.IsRegistered(accel.MustEncode("ctrl+1")) {
		t.Error("old accelerator still live after import")
	}
	if !f.backend.IsRegistered(accel.MustEncode("ctrl+5")) {
		t.Error("imported accelerator not live")
	}
}

func TestImportInvalidLeavesRegistrations(t *testing.T) {
	f := newFixture(t)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)
	wins, _ := f.windows.EnumerateTargetWindows()
	if _, err := f.manager.RegisterWindowBinding("Bob", "Iop", "ctrl+1", wins[0]); err != nil {
		t.Fatal(err)
	}

	err := f.manager.Import([]byte(`{"bindings": {}}`))
	if !errors.Is(err, store.ErrConfigCorrupted) {
		t.Fatalf("error = %v, want ErrConfigCorrupted", err)
	}
	if !f.backend.IsRegistered(accel.MustEncode("ctrl+1")) {
		t.Error("failed import disturbed live registrations")
	}
}

func TestImportWhileSuspendedStaysMuted(t *testing.T) {
	// A document change landing while shortcuts are suspended must not
	// silently unmute the weaker tiers: the toggle state survives the
	// resync, and a later toggle restores the merged bindings.
	f := newFixture(t)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)
	wins, _ := f.windows.EnumerateTargetWindows()

	if _, err := f.manager.RegisterWindowBinding("Bob", "Iop", "ctrl+1", wins[0]); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.RegisterGlobalBinding(store.GlobalToggleShortcuts, "ctrl+alt+s"); err != nil {
		t.Fatal(err)
	}

	toggle := accel.MustEncode("ctrl+alt+s")
	if !f.backend.Trigger(toggle) {
		t.Fatal("toggle not registered")
	}
	if !f.manager.Suspended() {
		t.Fatal("manager not suspended after toggle")
	}

	other := store.DefaultDocument()
	other.Bindings["bob_iop"] = &store.Binding{
		Accelerator: "ctrl+5", DisplayName: "Bob", Tier: priority.TierWindow, Active: true,
	}
	if err := f.manager.Import(mustMarshal(t, other)); err != nil {
		t.Fatalf("Import error = %v", err)
	}

	if !f.manager.Suspended() {
		t.Error("import cleared the suspended state")
	}
	if f.backend.IsRegistered(accel.MustEncode("ctrl+5")) {
		t.Error("imported window shortcut live while suspended")
	}
	if f.backend.IsRegistered(accel.MustEncode("ctrl+1")) {
		t.Error("old window shortcut live while suspended")
	}
	if !f.backend.IsRegistered(toggle) {
		t.Fatal("toggle went dead during import")
	}

	if !f.backend.Trigger(toggle) {
		t.Fatal("toggle not live after import")
	}
	if f.manager.Suspended() {
		t.Error("still suspended after second toggle")
	}
	if !f.backend.IsRegistered(accel.MustEncode("ctrl+5")) {
		t.Error("merged binding not restored on resume")
	}
}

func TestStatsCombined(t *testing.T) {
	f := newFixture(t)
	f.windows.Add("Bob - window", "Bob", "Iop", 50)
	wins, _ := f.windows.EnumerateTargetWindows()
	if _, err := f.manager.RegisterWindowBinding("Bob", "Iop", "ctrl+1", wins[0]); err != nil {
		t.Fatal(err)
	}

	st := f.manager.Stats()
	if st.Store.Total != 1 || st.Registry.Live != 1 {
		t.Errorf("stats = %+v", st)
	}
	if st.Suspended {
		t.Error("fresh manager reports suspended")
	}
}

func TestOSRefusalSurfacesError(t *testing.T) {
	f := newFixture(t)
	f.backend.Refuse(accel.MustEncode("ctrl+space"))
	f.windows.Add("Bob - window", "Bob", "Iop", 50)
	wins, _ := f.windows.EnumerateTargetWindows()

	_, err := f.manager.RegisterWindowBinding("Bob", "Iop", "ctrl+space", wins[0])
	if !errors.Is(err, registry.ErrOSRegistrationFailed) {
		t.Errorf("error = %v, want ErrOSRegistrationFailed", err)
	}
}
