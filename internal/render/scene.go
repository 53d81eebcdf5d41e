// Package render projects drawings and interaction state into screen geometry.
package render

import (
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/geometry"
)

// Label is text placed at a screen position.
type Label struct {
	Text  string         `json:"text"`
	At    geometry.Point `json:"at"`
	Color string         `json:"color,omitempty"`
}

// Fill is a filled rectangle, e.g. a position's profit or loss zone.
type Fill struct {
	Rect  geometry.Rect `json:"rect"`
	Color string        `json:"color"`
}

// Shape is the screen geometry of one drawing.
type Shape struct {
	ID       string             `json:"id"`
	Kind     drawing.Kind       `json:"kind"`
	Segments []geometry.Segment `json:"segments,omitempty"`
	Rects    []geometry.Rect    `json:"rects,omitempty"`
	Fills    []Fill             `json:"fills,omitempty"`
	Labels   []Label            `json:"labels,omitempty"`
	Color    string             `json:"color"`
	Width    float64            `json:"width"`
	Style    drawing.LineStyle  `json:"style"`
	Selected bool               `json:"selected,omitempty"`
	Hovered  bool               `json:"hovered,omitempty"`
	Locked   bool               `json:"locked,omitempty"`
}

// Handle is a draggable control point or position leg.
type Handle struct {
	DrawingID string         `json:"drawingId"`
	Index     int            `json:"index"`
	Leg       drawing.Leg    `json:"leg,omitempty"`
	At        geometry.Point `json:"at"`
}

// Action is a floating toolbar button.
type Action string

const (
	ActionLock      Action = "lock"
	ActionDuplicate Action = "duplicate"
	ActionSettings  Action = "settings"
	ActionDelete    Action = "delete"
)

// Actions lists the toolbar buttons in display order.
var Actions = []Action{ActionLock, ActionDuplicate, ActionSettings, ActionDelete}

// Toolbar is the floating action bar of the selected drawing.
type Toolbar struct {
	DrawingID string         `json:"drawingId"`
	Anchor    geometry.Point `json:"anchor"`
	Rect      geometry.Rect  `json:"rect"`
	Actions   []Action       `json:"actions"`
	Locked    bool           `json:"locked"`
}

// Scene is everything a surface needs to paint the drawing layer.
type Scene struct {
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Shapes  []Shape  `json:"shapes"`
	Handles []Handle `json:"handles,omitempty"`
	Preview *Shape   `json:"preview,omitempty"`
	Toolbar *Toolbar `json:"toolbar,omitempty"`
}
