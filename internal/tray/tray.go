// Package tray provides the system tray menu for the measurement station.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/bodyfit/internal/garment"
	"github.com/ayusman/bodyfit/internal/units"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onGarment  func(k garment.Kind)
	onUnit     func(u units.Unit)
	onSettings func()
	onQuit     func()
	enabled    bool
	garment    garment.Kind
	unit       units.Unit
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle      *systray.MenuItem
	menuLastCapture *systray.MenuItem
	menuGarments    map[garment.Kind]*systray.MenuItem
	menuUnits       map[units.Unit]*systray.MenuItem
}

// New creates a new Tray showing the given session settings, enabled by
// default.
func New(k garment.Kind, u units.Unit) *Tray {
	return &Tray{
		enabled: true,
		garment: k,
		unit:    u,
	}
}

// OnToggle sets the callback function to be called when measuring is paused or resumed.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnGarment sets the callback function to be called when a garment is picked.
func (t *Tray) OnGarment(fn func(k garment.Kind)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onGarment = fn
}

// OnUnit sets the callback function to be called when a display unit is picked.
func (t *Tray) OnUnit(fn func(u units.Unit)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onUnit = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("Bodyfit")
	systray.SetTooltip("Bodyfit measurement station")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume measuring")
	systray.AddSeparator()

	menuGarment := systray.AddMenuItem("Garment", "Garment to measure for")
	t.menuGarments = make(map[garment.Kind]*systray.MenuItem)
	for _, k := range garment.Kinds() {
		t.menuGarments[k] = menuGarment.AddSubMenuItemCheckbox(string(k), "Measure for "+string(k), k == t.garment)
	}

	menuUnit := systray.AddMenuItem("Units", "Display unit")
	t.menuUnits = make(map[units.Unit]*systray.MenuItem)
	for _, u := range []units.Unit{units.Cm, units.Inch} {
		t.menuUnits[u] = menuUnit.AddSubMenuItemCheckbox(string(u), "Show measurements in "+string(u), u == t.unit)
	}
	systray.AddSeparator()

	t.menuLastCapture = systray.AddMenuItem("Last: none", "Last capture")
	t.menuLastCapture.Disable()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Bodyfit")
	garments, unitItems := t.menuGarments, t.menuUnits
	t.mu.Unlock()

	for k, item := range garments {
		go func() {
			for range item.ClickedCh {
				t.handleGarment(k)
			}
		}()
	}
	for u, item := range unitItems {
		go func() {
			for range item.ClickedCh {
				t.handleUnit(u)
			}
		}()
	}

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

// onExit is called when the system tray is about to exit.
func (t *Tray) onExit() {}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Measuring"
	}
	return "○ Paused"
}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleGarment handles a click on a garment item.
func (t *Tray) handleGarment(k garment.Kind) {
	t.mu.Lock()
	t.garment = k
	for kind, item := range t.menuGarments {
		setChecked(item, kind == k)
	}
	callback := t.onGarment
	t.mu.Unlock()

	if callback != nil {
		callback(k)
	}
}

// handleUnit handles a click on a unit item.
func (t *Tray) handleUnit(u units.Unit) {
	t.mu.Lock()
	t.unit = u
	for unit, item := range t.menuUnits {
		setChecked(item, unit == u)
	}
	callback := t.onUnit
	t.mu.Unlock()

	if callback != nil {
		callback(u)
	}
}

func setChecked(item *systray.MenuItem, checked bool) {
	if checked {
		item.Check()
	} else {
		item.Uncheck()
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetLastCapture updates the last capture line, e.g. "shirt 14:02".
func (t *Tray) SetLastCapture(summary string) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuLastCapture != nil {
		if summary == "" {
			t.menuLastCapture.SetTitle("Last: none")
		} else {
			t.menuLastCapture.SetTitle("Last: " + summary)
		}
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Selection returns the garment and unit currently checked in the menu.
func (t *Tray) Selection() (garment.Kind, units.Unit) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.garment, t.unit
}
