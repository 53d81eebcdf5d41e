package render

import (
	"sync"

	"github.com/amirphl/chart-drawings/internal/chart"
	"github.com/amirphl/chart-drawings/internal/interaction"
	"github.com/amirphl/chart-drawings/internal/store"
)

// Live re-projects the scene whenever the store, the interaction state or the
// chart's visible range changes, and hands each scene to a sink.
type Live struct {
	mu          sync.Mutex
	engine      *interaction.Engine
	toolbar     ToolbarSize
	sink        func(Scene)
	scene       Scene
	store       *store.Store
	storeCancel func()
	closed      bool
}

func NewLive(e *interaction.Engine, events chart.Events, sink func(Scene)) *Live {
	cfg := e.Config()
	l := &Live{
		engine:  e,
		toolbar: ToolbarSize{Width: cfg.ToolbarWidth, Height: cfg.ToolbarHeight},
		sink:    sink,
	}
	l.watchStore()
	e.OnChange(func(interaction.State) {
		l.watchStore()
		l.Refresh()
	})
	events.SubscribeVisibleRangeChange(l.Refresh)
	l.Refresh()
	return l
}

func (l *Live) watchStore() {
	s := l.engine.Store()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || s == l.store {
		return
	}
	if l.storeCancel != nil {
		l.storeCancel()
	}
	l.store = s
	l.storeCancel = s.Subscribe(func(store.Mutation) { l.Refresh() })
}

// Refresh re-projects and delivers the scene.
func (l *Live) Refresh() {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	sc := Project(Input{
		Drawings: l.engine.Store().List(),
		State:    l.engine.State(),
		Tester:   l.engine.HitTester(),
		Toolbar:  l.toolbar,
	})
	l.mu.Lock()
	l.scene = sc
	l.mu.Unlock()
	if l.sink != nil {
		l.sink(sc)
	}
}

// Scene returns the last projected scene.
func (l *Live) Scene() Scene {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.scene
}

// Close stops watching the store and delivering scenes.
func (l *Live) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.storeCancel != nil {
		l.storeCancel()
		l.storeCancel = nil
	}
}
