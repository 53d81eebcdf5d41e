// Package interaction turns chart pointer and keyboard events into drawing
// store mutations.
//
// The Engine keeps one authoritative mutable state that every handler reads
// and writes synchronously. State() and OnChange hand out copies of it for
// rendering; nothing reads those copies back.
package interaction

import (
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/amirphl/chart-drawings/internal/chart"
	"github.com/amirphl/chart-drawings/internal/config"
	"github.com/amirphl/chart-drawings/internal/drawing"
	"github.com/amirphl/chart-drawings/internal/geometry"
	"github.com/amirphl/chart-drawings/internal/hittest"
	"github.com/amirphl/chart-drawings/internal/mapper"
	"github.com/amirphl/chart-drawings/internal/snap"
	"github.com/amirphl/chart-drawings/internal/store"
	"github.com/amirphl/chart-drawings/internal/utils"
)

// EditResult is the outcome of an external settings edit.
type EditResult int

const (
	EditCancelled EditResult = iota
	EditUpdated
	EditDeleted
)

// Host is what the engine needs from the embedding application.
type Host interface {
	mapper.DataWindow
	// RequestText asks the user for a text label. ok is false on cancel.
	RequestText(initial string) (text string, ok bool)
	// EditDrawing opens the settings editor on a copy of d.
	EditDrawing(d drawing.Drawing) (drawing.Drawing, EditResult)
}

// DragKind says what a drag moves.
type DragKind string

const (
	DragWhole DragKind = "whole"
	DragPoint DragKind = "point"
	DragLeg   DragKind = "leg"
)

// DragTarget is the part of the selected drawing being dragged.
type DragTarget struct {
	Kind  DragKind    `json:"kind"`
	Index int         `json:"index,omitempty"`
	Leg   drawing.Leg `json:"leg,omitempty"`
}

// State is a copy of the interaction state.
type State struct {
	ActiveTool drawing.Tool    `json:"activeTool"`
	Phase      Phase           `json:"phase"`
	Partial    []drawing.Point `json:"partial,omitempty"`
	SelectedID string          `json:"selectedId,omitempty"`
	HoveredID  string          `json:"hoveredId,omitempty"`
	Pointer    *drawing.Point  `json:"pointer,omitempty"`
	Modifiers  snap.Snapshot   `json:"modifiers"`
	Drag       *DragTarget     `json:"drag,omitempty"`
	Magnet     bool            `json:"magnet"`
	Cursor     Cursor          `json:"cursor"`
	Symbol     string          `json:"symbol"`
}

type dragState struct {
	id      string
	target  DragTarget
	anchor  geometry.Point
	logical float64
	started bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithCursorSink sends cursor transitions to sink.
func WithCursorSink(sink CursorSink) Option {
	return func(e *Engine) { e.cursorSink = sink }
}

// WithLogger replaces the process logger.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithHistorySize bounds the transition history.
func WithHistorySize(n int) Option {
	return func(e *Engine) { e.machine = newPhaseMachine(n) }
}

// Engine is the interaction state machine. It is not safe for concurrent
// use; events must be delivered one at a time.
type Engine struct {
	chart  chart.Chart
	host   Host
	cfg    config.EngineConfig
	mapper *mapper.Mapper
	snap   *snap.Engine
	hit    *hittest.Tester
	mods   *snap.Modifiers

	store       *store.Store
	storeCancel func()

	tool         drawing.Tool
	partial      []drawing.Point
	selected     string
	hovered      string
	pointer      drawing.Point
	hasPointer   bool
	drag         *dragState
	swallowClick bool

	machine    *phaseMachine
	cursor     Cursor
	cursorSink CursorSink
	listeners  []func(State)
	attached   bool
	logger     *logrus.Logger
}

// New builds an engine over chart c and bound to store s, with the cursor tool
// active. Call Attach to receive the chart's pointer events.
func New(c chart.Chart, host Host, s *store.Store, cfg config.EngineConfig, opts ...Option) *Engine {
	m := mapper.New(c, host)
	mods := &snap.Modifiers{}
	e := &Engine{
		chart:   c,
		host:    host,
		cfg:     cfg,
		mapper:  m,
		mods:    mods,
		snap:    snap.New(m, mods, cfg.MagnetRadius),
		hit:     hittest.New(m, cfg.PositionWidth),
		tool:    drawing.ToolCursor,
		machine: newPhaseMachine(0),
		cursor:  CursorDefault,
	}
	e.snap.SetMagnet(cfg.Magnet)
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = utils.GetLogger()
	}
	e.bindStore(s)
	return e
}

func (e *Engine) log() *logrus.Entry {
	return e.logger.WithFields(logrus.Fields{"symbol": e.store.Symbol(), "tool": e.tool})
}

// Attach subscribes the engine to chart events. Repeated calls are no-ops.
func (e *Engine) Attach(events chart.Events) {
	if e.attached {
		return
	}
	e.attached = true
	events.SubscribeClick(e.Click)
	events.SubscribePointerMove(e.PointerMove)
	events.SubscribeDoubleClick(e.DoubleClick)
	events.SubscribeVisibleRangeChange(func() { e.notify("visible range changed", "") })
}

// Mapper returns the engine's coordinate mapper.
func (e *Engine) Mapper() *mapper.Mapper { return e.mapper }

// HitTester returns the engine's hit-tester.
func (e *Engine) HitTester() *hittest.Tester { return e.hit }

// Store returns the active drawing store.
func (e *Engine) Store() *store.Store { return e.store }

// Config returns the engine settings.
func (e *Engine) Config() config.EngineConfig { return e.cfg }

// -------- tool & magnet --------

// SetTool selects a tool. The in-progress drawing and the selection are dropped.
func (e *Engine) SetTool(t drawing.Tool) {
	if !t.Valid() {
		e.log().WithField("requested", t).Debug("Interaction | ignoring unknown tool")
		return
	}
	e.endDrag()
	e.tool = t
	e.partial = nil
	e.selected = ""
	e.notify("tool selected", "")
}

func (e *Engine) ActiveTool() drawing.Tool { return e.tool }

func (e *Engine) SetMagnet(enabled bool) {
	e.snap.SetMagnet(enabled)
	e.notify("magnet toggled", "")
}

func (e *Engine) Magnet() bool { return e.snap.Magnet() }

// -------- pointer --------

// Click handles a completed click: a creation step with a drawing tool,
// selection with the cursor.
func (e *Engine) Click(s geometry.Point) {
	if e.swallowClick {
		e.swallowClick = false
		return
	}
	if e.drag != nil {
		return
	}

	if e.tool == drawing.ToolCursor {
		if id, ok := e.hit.FindNearest(s, e.store.List(), e.cfg.HitTolerance); ok {
			e.selected = id
			e.notify("drawing selected", id)
			return
		}
		if e.selected != "" {
			e.selected = ""
			e.notify("selection cleared", "")
		}
		return
	}

	kind, _ := e.tool.Kind()
	p, ok := e.mapper.ToData(s)
	if !ok {
		e.log().Debug("Interaction | click skipped: coordinate not resolvable")
		return
	}
	p = e.snap.MagnetSnap(p)
	if n := len(e.partial); n > 0 {
		p = e.snap.AngleSnap(e.partial[n-1], p)
	}
	e.partial = append(e.partial, p)
	e.pointer, e.hasPointer = p, true

	if len(e.partial) < kind.Arity() {
		e.notify("point placed", "")
		return
	}
	e.complete(kind)
}

func (e *Engine) complete(kind drawing.Kind) {
	points := e.partial
	e.partial = nil

	var d drawing.Drawing
	switch {
	case kind.IsPosition():
		d = drawing.NewPosition(kind, points[0], e.cfg.Position)
	case kind == drawing.KindText:
		text, ok := e.host.RequestText("")
		if !ok || strings.TrimSpace(text) == "" {
			e.tool = drawing.ToolCursor
			e.notify("text creation cancelled", "")
			return
		}
		d = drawing.New(kind, points)
		d.Text = text
	default:
		d = drawing.New(kind, points)
	}

	if err := e.store.Add(d); err != nil {
		e.log().WithError(err).Warn("Interaction | failed to add drawing")
		e.tool = drawing.ToolCursor
		e.notify("creation failed", "")
		return
	}
	e.log().WithFields(logrus.Fields{"id": d.ID, "kind": d.Kind}).Debug("Interaction | drawing created")
	e.tool = drawing.ToolCursor
	e.selected = d.ID
	e.notify("drawing created", d.ID)
}

// PointerMove updates the live pointer, the hover target, the creation
// preview or the active drag.
func (e *Engine) PointerMove(s geometry.Point) {
	p, ok := e.mapper.ToData(s)

	if e.drag != nil {
		e.dragTo(s)
		return
	}

	if e.tool != drawing.ToolCursor {
		if !ok {
			return
		}
		p = e.snap.MagnetSnap(p)
		if n := len(e.partial); n > 0 {
			p = e.snap.AngleSnap(e.partial[n-1], p)
		}
		e.pointer, e.hasPointer = p, true
		e.notify("pointer moved", "")
		return
	}

	if ok {
		e.pointer, e.hasPointer = p, true
	}
	id, _ := e.hit.FindNearest(s, e.store.List(), e.cfg.HitTolerance)
	e.hovered = id
	e.notify("pointer moved", "")
}

// PointerDown starts a drag when the pointer is over the selected, unlocked
// drawing. It reports whether the engine took the pointer; when it did the
// chart's own panning is off until PointerUp.
func (e *Engine) PointerDown(s geometry.Point) bool {
	e.swallowClick = false
	if e.tool != drawing.ToolCursor || e.selected == "" || e.drag != nil {
		return false
	}
	id, ok := e.hit.FindNearest(s, e.store.List(), e.cfg.HitTolerance)
	e.hovered = id
	if !ok || id != e.selected {
		return false
	}
	d, ok := e.store.Get(id)
	if !ok || d.Locked {
		return false
	}

	target := DragTarget{Kind: DragWhole}
	if leg, ok := e.hit.LegAt(s, d, e.cfg.LegRadius); ok {
		target = DragTarget{Kind: DragLeg, Leg: leg}
	} else if i, ok := e.hit.HandleAt(s, d, e.cfg.HandleRadius); ok && !d.Kind.IsPosition() {
		target = DragTarget{Kind: DragPoint, Index: i}
	}

	logical, ok := e.mapper.Logical(s.X)
	if !ok && target.Kind == DragWhole {
		e.log().Debug("Interaction | drag skipped: coordinate not resolvable")
		return false
	}

	e.drag = &dragState{id: id, target: target, anchor: s, logical: logical}
	e.chart.SetScrollHandlingEnabled(false)
	e.notify("drag started", id)
	return true
}

func (e *Engine) dragTo(s geometry.Point) {
	d, ok := e.store.Get(e.drag.id)
	if !ok || d.Locked {
		e.endDrag()
		e.notify("drag aborted", "")
		return
	}

	switch e.drag.target.Kind {
	case DragPoint:
		i := e.drag.target.Index
		if i < 0 || i >= len(d.Points) {
			return
		}
		p, ok := e.mapper.ToData(s)
		if !ok {
			return
		}
		p = e.snap.MagnetSnap(p)
		if len(d.Points) == 2 {
			p = e.snap.AngleSnap(d.Points[1-i], p)
		}
		d.Points[i] = p
		e.pointer, e.hasPointer = p, true

	case DragLeg:
		price, ok := e.mapper.Price(s.Y)
		if !ok {
			return
		}
		d.MoveLeg(e.drag.target.Leg, price)

	case DragWhole:
		logical, ok := e.mapper.Logical(s.X)
		if !ok {
			return
		}
		now, ok1 := e.mapper.Price(s.Y)
		before, ok2 := e.mapper.Price(e.drag.anchor.Y)
		if !ok1 || !ok2 {
			return
		}
		bars := int64(math.Round(logical - e.drag.logical))
		secs := e.mapper.IntervalSeconds()
		if secs <= 0 {
			bars = 0
		}
		if bars == 0 && now == before {
			return
		}
		d.Translate(bars, secs, now-before)
		e.drag.logical += float64(bars)
		e.drag.anchor.Y = s.Y
	}

	if err := e.store.Update(d); err != nil {
		e.log().WithError(err).Debug("Interaction | drag update rejected")
		return
	}
	e.drag.started = true
	e.notify("dragging", d.ID)
}

// PointerUp ends a drag and gives the pointer back to the chart.
func (e *Engine) PointerUp(geometry.Point) {
	if e.drag == nil {
		return
	}
	started := e.drag.started
	id := e.drag.id
	e.endDrag()
	e.swallowClick = started
	e.notify("drag ended", id)
}

func (e *Engine) endDrag() {
	if e.drag == nil {
		return
	}
	e.drag = nil
	e.chart.SetScrollHandlingEnabled(true)
}

// DoubleClick opens the settings editor for the drawing under the pointer.
func (e *Engine) DoubleClick(s geometry.Point) {
	if e.tool != drawing.ToolCursor || e.drag != nil {
		return
	}
	id, ok := e.hit.FindNearest(s, e.store.List(), e.cfg.HitTolerance)
	if !ok {
		return
	}
	d, ok := e.store.Get(id)
	if !ok {
		return
	}
	e.selected = id
	e.notify("drawing selected", id)

	updated, res := e.host.EditDrawing(d.Clone())
	switch res {
	case EditUpdated:
		updated.ID = id
		e.ApplySettings(updated)
	case EditDeleted:
		e.deleteID(id)
	}
}

// ApplySettings applies an edited record. Kind and id are fixed. A locked
// drawing only takes style changes; its geometry is kept.
func (e *Engine) ApplySettings(edited drawing.Drawing) bool {
	cur, ok := e.store.Get(edited.ID)
	if !ok {
		return false
	}
	next := cur.WithSettings(edited)
	if err := e.store.Update(next); err != nil {
		e.log().WithError(err).WithField("id", edited.ID).Warn("Interaction | settings rejected")
		return false
	}
	e.notify("settings applied", edited.ID)
	return true
}

// -------- keyboard --------

// KeyDown records modifiers and handles Escape and Delete/Backspace.
func (e *Engine) KeyDown(k snap.Key) {
	e.mods.Set(k, true)
	switch k {
	case snap.KeyEscape:
		switch {
		case e.drag != nil:
			// the drag owns the pointer until release
		case len(e.partial) > 0 || e.tool != drawing.ToolCursor:
			e.partial = nil
			e.tool = drawing.ToolCursor
			e.notify("creation aborted", "")
		case e.selected != "":
			e.selected = ""
			e.notify("selection cleared", "")
		}
	case snap.KeyDelete, snap.KeyBackspace:
		e.Delete()
	default:
		e.notify("modifier changed", "")
	}
}

// KeyUp records modifier releases.
func (e *Engine) KeyUp(k snap.Key) {
	e.mods.Set(k, false)
	e.notify("modifier changed", "")
}

// Modifiers returns the live modifier flags.
func (e *Engine) Modifiers() *snap.Modifiers { return e.mods }

// -------- toolbar actions --------

// Delete removes the selected drawing unless it is locked.
func (e *Engine) Delete() bool {
	if e.selected == "" || e.drag != nil {
		return false
	}
	return e.deleteID(e.selected)
}

func (e *Engine) deleteID(id string) bool {
	d, ok := e.store.Get(id)
	if !ok {
		return false
	}
	if d.Locked {
		e.log().WithField("id", id).Debug("Interaction | delete rejected: drawing is locked")
		return false
	}
	e.store.Remove(id)
	e.notify("drawing deleted", id)
	return true
}

// ToggleLock flips the lock of the selected drawing.
func (e *Engine) ToggleLock() bool {
	d, ok := e.store.Get(e.selected)
	if !ok || e.drag != nil {
		return false
	}
	d.Locked = !d.Locked
	if err := e.store.Update(d); err != nil {
		return false
	}
	e.notify("lock toggled", d.ID)
	return true
}

// Duplicate copies the selected drawing with prices offset by the configured
// percentage and selects the copy.
func (e *Engine) Duplicate() (string, bool) {
	d, ok := e.store.Get(e.selected)
	if !ok || e.drag != nil {
		return "", false
	}
	c := d.Duplicate(e.cfg.DuplicateOffsetPercent)
	if err := e.store.Add(c); err != nil {
		e.log().WithError(err).Warn("Interaction | failed to duplicate drawing")
		return "", false
	}
	e.selected = c.ID
	e.notify("drawing duplicated", c.ID)
	return c.ID, true
}

// -------- store --------

// SwitchStore moves the engine to another symbol's store and resets the
// interaction state.
func (e *Engine) SwitchStore(s *store.Store) {
	e.endDrag()
	e.partial = nil
	e.selected = ""
	e.hovered = ""
	e.swallowClick = false
	e.bindStore(s)
	e.notify("store switched", "")
}

// Detach stops following store mutations. The engine must not be used after.
func (e *Engine) Detach() {
	if e.storeCancel != nil {
		e.storeCancel()
		e.storeCancel = nil
	}
}

func (e *Engine) bindStore(s *store.Store) {
	if e.storeCancel != nil {
		e.storeCancel()
	}
	e.store = s
	e.storeCancel = s.Subscribe(e.onMutation)
}

// onMutation keeps ids in the state pointing at existing drawings.
func (e *Engine) onMutation(m store.Mutation) {
	gone := func(id string) bool {
		if id == "" {
			return false
		}
		switch m.Op {
		case store.OpClear:
			return true
		case store.OpRemove:
			return m.Drawing.ID == id
		}
		return false
	}
	changed := false
	if gone(e.selected) {
		e.selected = ""
		changed = true
	}
	if gone(e.hovered) {
		e.hovered = ""
		changed = true
	}
	if e.drag != nil && gone(e.drag.id) {
		e.endDrag()
		changed = true
	}
	if changed {
		e.notify("drawing removed", m.Drawing.ID)
	}
}

// -------- state --------

// OnChange registers fn to receive a state copy after every change.
func (e *Engine) OnChange(fn func(State)) {
	e.listeners = append(e.listeners, fn)
}

// Transitions returns the recent phase transitions, oldest first.
func (e *Engine) Transitions() []Transition {
	return e.machine.snapshot()
}

// Metrics summarizes the phase history.
func (e *Engine) Metrics() Metrics {
	return e.machine.metrics()
}

func (e *Engine) phase() Phase {
	switch {
	case e.drag != nil:
		return PhaseDragging
	case len(e.partial) > 0:
		return PhaseBuilding
	case e.selected != "":
		return PhaseSelected
	default:
		return PhaseIdle
	}
}

// State returns a copy of the current interaction state.
func (e *Engine) State() State {
	st := State{
		ActiveTool: e.tool,
		Phase:      e.phase(),
		SelectedID: e.selected,
		HoveredID:  e.hovered,
		Modifiers:  e.mods.Snapshot(),
		Magnet:     e.snap.Magnet(),
		Cursor:     e.cursor,
		Symbol:     e.store.Symbol(),
	}
	if len(e.partial) > 0 {
		st.Partial = append([]drawing.Point(nil), e.partial...)
	}
	if e.hasPointer {
		p := e.pointer
		st.Pointer = &p
	}
	if e.drag != nil {
		t := e.drag.target
		st.Drag = &t
	}
	return st
}

func (e *Engine) notify(condition, drawingID string) {
	if tr, ok := e.machine.transitionTo(e.phase(), condition, drawingID); ok {
		e.log().WithFields(logrus.Fields{"from": tr.From, "to": tr.To, "id": drawingID}).
			Debugf("Interaction | %s: %s", condition, e.machine)
	}
	if c := e.cursorFor(); c != e.cursor {
		e.cursor = c
		if e.cursorSink != nil {
			e.cursorSink.SetCursor(c)
		}
	}
	if len(e.listeners) == 0 {
		return
	}
	st := e.State()
	for _, fn := range e.listeners {
		fn(st)
	}
}
