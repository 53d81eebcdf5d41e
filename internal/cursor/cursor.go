// Package cursor adapts interaction cursor changes to fyne desktop cursors.
//
// It is the embedding point for a fyne host: the widget drawing the chart
// embeds a *Fyne (which makes it desktop.Cursorable) and passes the same value
// to interaction.New through interaction.WithCursorSink. The HTTP server has no
// pointer of its own and reports the cursor in the session state instead.
package cursor

import (
	"sync"

	"fyne.io/fyne/v2/driver/desktop"

	"github.com/amirphl/chart-drawings/internal/interaction"
)

// Fyne is an interaction.CursorSink that a fyne widget can embed to satisfy
// desktop.Cursorable.
type Fyne struct {
	mu       sync.RWMutex
	current  interaction.Cursor
	onChange func(desktop.Cursor)
}

// NewFyne returns an adapter showing the default cursor. onChange, if set, is
// called after every transition, typically to refresh the owning widget.
func NewFyne(onChange func(desktop.Cursor)) *Fyne {
	return &Fyne{current: interaction.CursorDefault, onChange: onChange}
}

// SetCursor implements interaction.CursorSink.
func (f *Fyne) SetCursor(c interaction.Cursor) {
	f.mu.Lock()
	f.current = c
	cb := f.onChange
	f.mu.Unlock()
	if cb != nil {
		cb(Map(c))
	}
}

// Cursor implements desktop.Cursorable.
func (f *Fyne) Cursor() desktop.Cursor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Map(f.current)
}

// Current returns the last interaction cursor received.
func (f *Fyne) Current() interaction.Cursor {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Map converts an interaction cursor to the closest fyne standard cursor.
// fyne has no move or grab shapes, so both fall back to the pointer.
func Map(c interaction.Cursor) desktop.Cursor {
	switch c {
	case interaction.CursorCrosshair:
		return desktop.CrosshairCursor
	case interaction.CursorPointer, interaction.CursorMove, interaction.CursorGrabbing:
		return desktop.PointerCursor
	default:
		return desktop.DefaultCursor
	}
}

var (
	_ interaction.CursorSink = (*Fyne)(nil)
	_ desktop.Cursorable     = (*Fyne)(nil)
)
