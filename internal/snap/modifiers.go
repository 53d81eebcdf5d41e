// Package snap adjusts pointer-derived points to candle levels and axis-locked angles.
package snap

import "sync/atomic"

// Modifiers holds live modifier-key state. Writes take effect immediately so
// the next pointer-move sees them without waiting for a UI state commit.
type Modifiers struct {
	shift atomic.Bool
	ctrl  atomic.Bool
	meta  atomic.Bool
}

// Key is a keyboard key relevant to the drawing engine.
type Key string

const (
	KeyShift     Key = "Shift"
	KeyControl   Key = "Control"
	KeyMeta      Key = "Meta"
	KeyEscape    Key = "Escape"
	KeyDelete    Key = "Delete"
	KeyBackspace Key = "Backspace"
)

// Set records a modifier key press or release. Non-modifier keys are ignored.
func (m *Modifiers) Set(k Key, down bool) {
	switch k {
	case KeyShift:
		m.shift.Store(down)
	case KeyControl:
		m.ctrl.Store(down)
	case KeyMeta:
		m.meta.Store(down)
	}
}

// Angle reports whether angle snapping is requested (Shift).
func (m *Modifiers) Angle() bool {
	return m.shift.Load()
}

// MagnetOverride reports whether magnet snapping is suppressed (Ctrl or Meta).
func (m *Modifiers) MagnetOverride() bool {
	return m.ctrl.Load() || m.meta.Load()
}

// Snapshot is a plain copy of the modifier flags.
type Snapshot struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Meta  bool `json:"meta"`
}

// Snapshot copies the current flags.
func (m *Modifiers) Snapshot() Snapshot {
	return Snapshot{Shift: m.shift.Load(), Ctrl: m.ctrl.Load(), Meta: m.meta.Load()}
}

// Reset releases every modifier, e.g. when the window loses focus.
func (m *Modifiers) Reset() {
	m.shift.Store(false)
	m.ctrl.Store(false)
	m.meta.Store(false)
}
