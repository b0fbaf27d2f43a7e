package hotkeyos

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"github.com/dshills/switchkey/internal/accel"
)

// SystemBackend registers hotkeys with the operating system via
// golang.design/x/hotkey. One listener goroutine runs per registered
// accelerator until it is unregistered.
type SystemBackend struct {
	mu     sync.Mutex
	active map[accel.Accelerator]*systemEntry
}

type systemEntry struct {
	hk   *hotkey.Hotkey
	done chan struct{}
}

// NewSystemBackend creates a backend bound to the OS hotkey facility.
func NewSystemBackend() *SystemBackend {
	return &SystemBackend{
		active: make(map[accel.Accelerator]*systemEntry),
	}
}

// Register implements Backend.
func (b *SystemBackend) Register(a accel.Accelerator, fn func()) error {
	mods, key, err := translate(a)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Replace an existing registration for the same accelerator.
	if existing, ok := b.active[a]; ok {
		b.releaseLocked(a, existing)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("%w: %v", ErrAlreadyHeld, err)
	}

	entry := &systemEntry{hk: hk, done: make(chan struct{})}
	b.active[a] = entry

	go func() {
		for {
			select {
			case <-hk.Keydown():
				fn()
			case <-entry.done:
				return
			}
		}
	}()

	return nil
}

// Unregister implements Backend.
func (b *SystemBackend) Unregister(a accel.Accelerator) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.active[a]; ok {
		b.releaseLocked(a, entry)
	}
}

// IsRegistered implements Backend.
func (b *SystemBackend) IsRegistered(a accel.Accelerator) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.active[a]
	return ok
}

// releaseLocked stops the listener and releases the OS registration.
// Caller must hold b.mu.
func (b *SystemBackend) releaseLocked(a accel.Accelerator, entry *systemEntry) {
	close(entry.done)
	_ = entry.hk.Unregister()
	delete(b.active, a)
}

// translate maps a canonical accelerator onto the platform's modifier and
// key codes. Modifier translation is platform-specific (see keys_*.go).
func translate(a accel.Accelerator) ([]hotkey.Modifier, hotkey.Key, error) {
	key, ok := keyCodes[a.Key]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedKey, a.Key)
	}
	return translateModifiers(a.Mods), key, nil
}
