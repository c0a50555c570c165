package organize_test

import (
	"testing"

	"github.com/curioapp/curio/internal/organize"
)

func TestColorFor(t *testing.T) {
	// Positional colors: stable for a given index, wrapping past the palette.
	if organize.ColorFor(0) != "blue" {
		t.Errorf("ColorFor(0) = %q, want blue", organize.ColorFor(0))
	}
	if organize.ColorFor(1) != "green" {
		t.Errorf("ColorFor(1) = %q, want green", organize.ColorFor(1))
	}
	if organize.ColorFor(6) != organize.ColorFor(0) {
		t.Error("palette should wrap at its length")
	}
	if organize.ColorFor(-2) == "" {
		t.Error("negative index must still produce a color")
	}
	if organize.ColorFor(3) != organize.ColorFor(3) {
		t.Error("color must be deterministic")
	}
}
