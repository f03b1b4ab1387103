package common

import (
	"errors"
	"testing"
)

func TestGuardHonoursPauseSet(t *testing.T) {
	pauses := NewPauseSet("Swaplace")
	if err := Guard(pauses, "swaplace"); !errors.Is(err, ErrModulePaused) {
		t.Fatalf("expected paused module, got %v", err)
	}
	pauses.Set("swaplace", false)
	if err := Guard(pauses, "swaplace"); err != nil {
		t.Fatalf("expected resumed module, got %v", err)
	}
	if err := Guard(nil, "swaplace"); err != nil {
		t.Fatalf("nil view must not block: %v", err)
	}
	var empty *PauseSet
	if empty.IsPaused("swaplace") {
		t.Fatalf("nil pause set must report unpaused")
	}
}
