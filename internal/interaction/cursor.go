package interaction

import "github.com/amirphl/chart-drawings/internal/drawing"

// Cursor is the pointer shape the surface should show.
type Cursor string

const (
	CursorDefault   Cursor = "default"
	CursorCrosshair Cursor = "crosshair"
	CursorPointer   Cursor = "pointer"
	CursorMove      Cursor = "move"
	CursorGrabbing  Cursor = "grabbing"
)

// CursorSink receives cursor changes. It is only told about transitions.
type CursorSink interface {
	SetCursor(Cursor)
}

// CursorFunc adapts a function to CursorSink.
type CursorFunc func(Cursor)

func (f CursorFunc) SetCursor(c Cursor) { f(c) }

func (e *Engine) cursorFor() Cursor {
	switch {
	case e.tool != drawing.ToolCursor:
		return CursorCrosshair
	case e.drag != nil:
		return CursorGrabbing
	case e.hovered != "" && e.hovered == e.selected:
		if d, ok := e.store.Get(e.hovered); ok && !d.Locked {
			return CursorMove
		}
		return CursorPointer
	case e.hovered != "":
		return CursorPointer
	default:
		return CursorDefault
	}
}
