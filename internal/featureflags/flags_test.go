package featureflags

import (
	"testing"
)

// TestManager_SnapshotMergesOverrides verifies override values win over
// base values and untouched flags keep their base values.
func TestManager_SnapshotMergesOverrides(t *testing.T) {
	m := NewManager(FlagSet{
		"DASHBOARD_NATIVE_FILTERS": true,
		"ALERT_REPORTS":            false,
	})

	restore := m.Push(FlagSet{"ALERT_REPORTS": true})
	defer restore()

	snapshot := m.Snapshot()

	if !snapshot["ALERT_REPORTS"] {
		t.Fatal("expected override value true for ALERT_REPORTS")
	}
	if !snapshot["DASHBOARD_NATIVE_FILTERS"] {
		t.Fatal("expected base value true for DASHBOARD_NATIVE_FILTERS")
	}
}

// TestManager_IsEnabledResolvesThroughFrames verifies single-flag
// resolution matches snapshot semantics.
func TestManager_IsEnabledResolvesThroughFrames(t *testing.T) {
	m := NewManager(FlagSet{"THUMBNAILS": false})

	if m.IsEnabled("THUMBNAILS") {
		t.Fatal("expected base value false before override")
	}

	restore := m.Push(FlagSet{"THUMBNAILS": true})
	if !m.IsEnabled("THUMBNAILS") {
		t.Fatal("expected override value true inside scope")
	}

	restore()
	if m.IsEnabled("THUMBNAILS") {
		t.Fatal("expected base value false after restore")
	}
}

// TestManager_RestoreReturnsToBase verifies the base map is intact after
// a scope ends, including flags the override introduced.
func TestManager_RestoreReturnsToBase(t *testing.T) {
	base := FlagSet{"ESCAPE_MARKDOWN_HTML": true}
	m := NewManager(base)

	restore := m.Push(FlagSet{
		"ESCAPE_MARKDOWN_HTML": false,
		"BRAND_NEW_FLAG":       true,
	})
	restore()

	snapshot := m.Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 flag after restore, got %d", len(snapshot))
	}
	if !snapshot["ESCAPE_MARKDOWN_HTML"] {
		t.Fatal("expected base value true after restore")
	}
	if _, ok := snapshot["BRAND_NEW_FLAG"]; ok {
		t.Fatal("expected introduced flag to vanish after restore")
	}
}

// TestManager_BaseMapNeverMutated verifies pushing and restoring scopes
// leaves the caller's map untouched.
func TestManager_BaseMapNeverMutated(t *testing.T) {
	base := FlagSet{"TAGGING_SYSTEM": false}
	m := NewManager(base)

	restore := m.Push(FlagSet{"TAGGING_SYSTEM": true, "EXTRA": true})
	_ = m.Snapshot()
	restore()

	if len(base) != 1 {
		t.Fatalf("expected base map to keep 1 entry, got %d", len(base))
	}
	if base["TAGGING_SYSTEM"] {
		t.Fatal("expected base map value to remain false")
	}
}

// TestManager_NilBaseTreatedAsEmpty verifies a manager over a nil map
// resolves and scopes without panicking.
func TestManager_NilBaseTreatedAsEmpty(t *testing.T) {
	m := NewManager(nil)

	if m.IsEnabled("ANYTHING") {
		t.Fatal("expected false for any flag over a nil base")
	}
	if got := len(m.Snapshot()); got != 0 {
		t.Fatalf("expected empty snapshot, got %d entries", got)
	}

	restore := m.Push(FlagSet{"ANYTHING": true})
	if !m.IsEnabled("ANYTHING") {
		t.Fatal("expected override to apply over a nil base")
	}
	restore()

	if got := len(m.Snapshot()); got != 0 {
		t.Fatalf("expected empty snapshot after restore, got %d entries", got)
	}
}

// TestManager_FramesRestoreLIFO verifies nested scopes unwind in
// reverse push order and each restore removes only its own frame.
func TestManager_FramesRestoreLIFO(t *testing.T) {
	m := NewManager(FlagSet{"X": false})

	restoreOuter := m.Push(FlagSet{"X": true})
	restoreInner := m.Push(FlagSet{"X": false})

	if m.IsEnabled("X") {
		t.Fatal("expected innermost frame to win")
	}

	restoreInner()
	if !m.IsEnabled("X") {
		t.Fatal("expected outer frame value after inner restore")
	}

	restoreOuter()
	if m.IsEnabled("X") {
		t.Fatal("expected base value after all restores")
	}
}

// TestManager_RestoreIsIdempotent verifies a second restore call does
// not disturb frames pushed after the first call.
func TestManager_RestoreIsIdempotent(t *testing.T) {
	m := NewManager(nil)

	restoreFirst := m.Push(FlagSet{"A": true})
	restoreFirst()

	restoreSecond := m.Push(FlagSet{"B": true})
	restoreFirst() // Second call - must not remove the B frame.

	if !m.IsEnabled("B") {
		t.Fatal("expected B frame to survive a duplicate restore")
	}
	if m.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", m.Depth())
	}
	restoreSecond()
}

// TestManager_OutOfOrderRestoreKeepsOtherFrames verifies restoring an
// older frame first leaves the newer frame active.
func TestManager_OutOfOrderRestoreKeepsOtherFrames(t *testing.T) {
	m := NewManager(nil)

	restoreOld := m.Push(FlagSet{"OLD": true})
	restoreNew := m.Push(FlagSet{"NEW": true})

	restoreOld()

	if m.IsEnabled("OLD") {
		t.Fatal("expected restored frame's flag to vanish")
	}
	if !m.IsEnabled("NEW") {
		t.Fatal("expected newer frame to remain active")
	}

	restoreNew()
	if m.Depth() != 0 {
		t.Fatalf("expected depth 0, got %d", m.Depth())
	}
}

// TestManager_PushCopiesOverrides verifies mutating the caller's
// override map after Push does not leak into the active scope.
func TestManager_PushCopiesOverrides(t *testing.T) {
	m := NewManager(nil)

	overrides := FlagSet{"COPIED": true}
	restore := m.Push(overrides)
	defer restore()

	overrides["COPIED"] = false
	overrides["SMUGGLED"] = true

	if !m.IsEnabled("COPIED") {
		t.Fatal("expected pushed value to be isolated from later mutation")
	}
	if m.IsEnabled("SMUGGLED") {
		t.Fatal("expected later additions to the caller's map to be invisible")
	}
}

// TestManager_SnapshotIsIsolated verifies mutating a snapshot does not
// affect subsequent resolution.
func TestManager_SnapshotIsIsolated(t *testing.T) {
	m := NewManager(FlagSet{"STABLE": true})

	snapshot := m.Snapshot()
	snapshot["STABLE"] = false
	snapshot["INJECTED"] = true

	if !m.IsEnabled("STABLE") {
		t.Fatal("expected manager state unaffected by snapshot mutation")
	}
	if m.IsEnabled("INJECTED") {
		t.Fatal("expected injected snapshot key to be invisible to the manager")
	}
}

// TestManager_NamesSortedAndMerged verifies Names lists base and
// override flags sorted.
func TestManager_NamesSortedAndMerged(t *testing.T) {
	m := NewManager(FlagSet{"B_FLAG": true})
	restore := m.Push(FlagSet{"A_FLAG": false})
	defer restore()

	names := m.Names()
	if len(names) != 2 {
		t.Fatalf("expected 2 names, got %d", len(names))
	}
	if names[0] != "A_FLAG" || names[1] != "B_FLAG" {
		t.Fatalf("expected sorted names [A_FLAG B_FLAG], got %v", names)
	}
}
