// Package featureflags provides scoped feature-flag resolution for test
// runs. The host application keeps a single live flag map; tests need to
// flip flags for one scope without touching that map and without leaking
// the override into sibling tests.
//
// Per docs/plan.md: "Restore unconditionally." An override scope ends
// with its restore function, whether the scoped test passed or failed.
package featureflags

import (
	"sort"
	"sync"
)

// FlagSet is a set of named boolean feature flags.
type FlagSet map[string]bool

// frame is one pushed override scope. Frames are tracked by pointer
// identity so a restore removes exactly the frame it was created for.
type frame struct {
	overrides FlagSet
}

// Manager resolves feature flags from a live base map plus a stack of
// override frames. The base map is read, never written; overrides live
// only in frames. Safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	base   FlagSet
	frames []*frame
}

// NewManager creates a manager over the live flag map. A nil map is
// treated as empty. The manager never mutates the map it was given.
func NewManager(base FlagSet) *Manager {
	return &Manager{base: base}
}

// Snapshot returns the effective flags: a fresh copy of the base map
// with every pushed frame merged in push order. Override values win
// over base values. Mutating the returned map affects nothing.
func (m *Manager) Snapshot() FlagSet {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(FlagSet, len(m.base))
	for name, value := range m.base {
		out[name] = value
	}
	for _, f := range m.frames {
		for name, value := range f.overrides {
			out[name] = value
		}
	}
	return out
}

// IsEnabled resolves a single flag under Snapshot semantics. Unknown
// flags resolve to false.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.frames) - 1; i >= 0; i-- {
		if value, ok := m.frames[i].overrides[name]; ok {
			return value
		}
	}
	return m.base[name]
}

// Names returns the sorted names of all flags visible in the current
// snapshot.
func (m *Manager) Names() []string {
	snapshot := m.Snapshot()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Push begins an override scope and returns the function that ends it.
// The overrides map is copied, so callers may reuse it. Restore removes
// exactly the pushed frame: calling it twice is a no-op the second
// time, and restoring frames out of push order leaves the remaining
// frames intact.
func (m *Manager) Push(overrides FlagSet) (restore func()) {
	copied := make(FlagSet, len(overrides))
	for name, value := range overrides {
		copied[name] = value
	}
	f := &frame{overrides: copied}

	m.mu.Lock()
	m.frames = append(m.frames, f)
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		for i, candidate := range m.frames {
			if candidate == f {
				m.frames = append(m.frames[:i], m.frames[i+1:]...)
				return
			}
		}
	}
}

// Depth reports how many override frames are active.
func (m *Manager) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}
