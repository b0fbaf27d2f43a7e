package hotkeyos

import (
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/switchkey/internal/accel"
)

// MemoryBackend is an in-process Backend used by tests and dry-run mode.
// It records registrations in order and can be told to refuse specific
// accelerators to simulate combinations held by another application.
type MemoryBackend struct {
	mu         sync.Mutex
	registered map[accel.Accelerator]func()
	refuse     map[accel.Accelerator]bool
	log        []string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		registered: make(map[accel.Accelerator]func()),
		refuse:     make(map[accel.Accelerator]bool),
	}
}

// Register implements Backend.
func (b *MemoryBackend) Register(a accel.Accelerator, fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.refuse[a] {
		return ErrAlreadyHeld
	}
	b.registered[a] = fn
	b.log = append(b.log, "register "+a.String())
	return nil
}

// Unregister implements Backend.
func (b *MemoryBackend) Unregister(a accel.Accelerator) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.registered[a]; ok {
		delete(b.registered, a)
		b.log = append(b.log, "unregister "+a.String())
	}
}

// IsRegistered implements Backend.
func (b *MemoryBackend) IsRegistered(a accel.Accelerator) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.registered[a] != nil
}

// Refuse makes subsequent registrations of a fail with ErrAlreadyHeld,
// simulating a combination held outside this process.
func (b *MemoryBackend) Refuse(a accel.Accelerator) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refuse[a] = true
}

// Trigger invokes the callback bound to a, as if the key was pressed.
// Returns false if a is not registered.
func (b *MemoryBackend) Trigger(a accel.Accelerator) bool {
	b.mu.Lock()
	fn := b.registered[a]
	b.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// Count returns the number of live registrations.
func (b *MemoryBackend) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.registered)
}

// Log returns the ordered register/unregister history.
func (b *MemoryBackend) Log() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, len(b.log))
	copy(out, b.log)
	return out
}

// MemoryWindows is an in-process WindowSource for tests and dry-run mode.
// Window ids are minted per added window and stay stable until removal.
type MemoryWindows struct {
	mu        sync.Mutex
	windows   []Window
	activated []string
}

// NewMemoryWindows creates an empty window source.
func NewMemoryWindows() *MemoryWindows {
	return &MemoryWindows{}
}

// Add registers a live window and returns its minted id.
func (m *MemoryWindows) Add(title, characterName, className string, score int) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := Window{
		ID:            uuid.NewString(),
		Title:         title,
		CharacterName: characterName,
		ClassName:     className,
		PriorityScore: score,
	}
	m.windows = append(m.windows, w)
	return w.ID
}

// Remove drops a window by id.
func (m *MemoryWindows) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.windows[:0]
	for _, w := range m.windows {
		if w.ID != id {
			kept = append(kept, w)
		}
	}
	m.windows = kept
}

// EnumerateTargetWindows implements Enumerator.
func (m *MemoryWindows) EnumerateTargetWindows() ([]Window, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Window, len(m.windows))
	copy(out, m.windows)
	return out, nil
}

// ActivateWindowByTitle implements Activator. Matches on exact title.
func (m *MemoryWindows) ActivateWindowByTitle(title string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.windows {
		if w.Title == title {
			m.activated = append(m.activated, title)
			return true
		}
	}
	return false
}

// Activated returns the ordered activation history.
func (m *MemoryWindows) Activated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, len(m.activated))
	copy(out, m.activated)
	return out
}
