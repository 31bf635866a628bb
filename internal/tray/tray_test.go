package tray

import (
	"testing"

	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/units"
)

func TestTray_Callbacks(t *testing.T) {
	tr := New(garment.Shirt, units.Cm)

	var (
		toggled  []bool
		kinds    []garment.Kind
		unitsGot []units.Unit
		settings int
	)
	tr.OnToggle(func(enabled bool) { toggled = append(toggled, enabled) })
	tr.OnGarment(func(k garment.Kind) { kinds = append(kinds, k) })
	tr.OnUnit(func(u units.Unit) { unitsGot = append(unitsGot, u) })
	tr.OnSettings(func() { settings++ })

	// Menu items are nil until the tray runs; the handlers must cope.
	tr.handleToggle()
	tr.handleToggle()
	tr.handleGarment(garment.Suit)
	tr.handleUnit(units.Inch)
	tr.handleSettings()
	tr.SetLastCapture("suit 14:02")

	if len(toggled) != 2 || toggled[0] || !toggled[1] {
		t.Errorf("toggled = %v, want [false true]", toggled)
	}
	if !tr.IsEnabled() {
		t.Error("two toggles should leave the tray enabled")
	}
	if len(kinds) != 1 || kinds[0] != garment.Suit {
		t.Errorf("garments = %v", kinds)
	}
	if len(unitsGot) != 1 || unitsGot[0] != units.Inch {
		t.Errorf("units = %v", unitsGot)
	}
	if settings != 1 {
		t.Errorf("settings clicks = %d", settings)
	}

	k, u := tr.Selection()
	if k != garment.Suit || u != units.Inch {
		t.Errorf("Selection() = %s, %s", k, u)
	}
}

func TestToggleTitle(t *testing.T) {
	if toggleTitle(true) == toggleTitle(false) {
		t.Error("paused and measuring titles should differ")
	}
}
