package internal

import (
	"slices"
	"sync"
)

type ScopeState int

const (
	ScopeInactive ScopeState = iota
	ScopeActive
	ScopeDisposed
)

func (s ScopeState) String() string {
	switch s {
	case ScopeInactive:
		return "inactive"
	case ScopeActive:
		return "active"
	case ScopeDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

type Scope struct {
	mu sync.Mutex

	state ScopeState

	// cleanup functions to be called once when the scope is disposed
	cleanups []func()

	// panic error handlers
	catchers []func(any)

	// called after every state transition, in registration order
	watchers  []*scopeWatcher
	watcherID int

	parent   *Scope
	children []*Scope
}

type scopeWatcher struct {
	id int
	fn func()
}

func NewScope() *Scope {
	return &Scope{
		state:    ScopeInactive,
		cleanups: make([]func(), 0),
	}
}

// NewChild creates a scope that is only active while its parent is,
// and is disposed together with it.
func (s *Scope) NewChild() *Scope {
	child := NewScope()
	child.parent = s

	s.mu.Lock()
	disposed := s.state == ScopeDisposed
	if !disposed {
		s.children = append(s.children, child)
	}
	s.mu.Unlock()

	if disposed {
		child.Dispose()
	}

	return child
}

func (s *Scope) State() ScopeState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Scope) IsActive() bool {
	if s.State() != ScopeActive {
		return false
	}

	return s.parent == nil || s.parent.IsActive()
}

func (s *Scope) IsDisposed() bool {
	return s.State() == ScopeDisposed
}

func (s *Scope) Activate() {
	s.transition(ScopeActive)
}

func (s *Scope) Deactivate() {
	s.transition(ScopeInactive)
}

func (s *Scope) transition(to ScopeState) {
	s.mu.Lock()
	if s.state == ScopeDisposed || s.state == to {
		s.mu.Unlock()
		return
	}
	s.state = to
	s.mu.Unlock()

	s.notify()
}

// Dispose disposes the children, releases every watcher and runs the cleanups.
// Calling it again is a no-op.
func (s *Scope) Dispose() {
	s.mu.Lock()
	if s.state == ScopeDisposed {
		s.mu.Unlock()
		return
	}
	children := s.children
	s.children = nil
	s.mu.Unlock()

	for _, child := range children {
		child.Dispose()
	}

	s.mu.Lock()
	s.state = ScopeDisposed
	s.mu.Unlock()

	s.notify()

	s.mu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.watchers = nil
	s.mu.Unlock()

	for _, cleanup := range cleanups {
		cleanup()
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}
}

// OnCleanup registers fn to run when the scope is disposed.
// On an already disposed scope fn runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	s.mu.Lock()
	if s.state == ScopeDisposed {
		s.mu.Unlock()
		fn()
		return
	}
	s.cleanups = append(s.cleanups, fn)
	s.mu.Unlock()
}

func (s *Scope) OnError(fn func(any)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.catchers = append(s.catchers, fn)
}

// Run calls fn, routing a panic to the error handlers.
// If no handler is registered, the panic propagates as usual.
func (s *Scope) Run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			catchers := slices.Clone(s.catchers)
			s.mu.Unlock()

			if len(catchers) == 0 {
				panic(r)
			}

			for _, catcher := range catchers {
				catcher(r)
			}
		}
	}()

	fn()
}

// Watch registers fn to be called after each state transition of the scope
// or of one of its ancestors.
func (s *Scope) Watch(fn func()) (stop func()) {
	s.mu.Lock()
	if s.state == ScopeDisposed {
		s.mu.Unlock()
		return func() {}
	}
	s.watcherID++
	w := &scopeWatcher{id: s.watcherID, fn: fn}
	s.watchers = append(s.watchers, w)
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.watchers = slices.DeleteFunc(s.watchers, func(other *scopeWatcher) bool {
			return other.id == w.id
		})
	}
}

func (s *Scope) notify() {
	s.mu.Lock()
	watchers := slices.Clone(s.watchers)
	children := slices.Clone(s.children)
	s.mu.Unlock()

	for _, w := range watchers {
		w.fn()
	}

	for _, child := range children {
		child.notify()
	}
}

func (s *Scope) removeChild(child *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.children, child)
	if i >= 0 {
		s.children = slices.Delete(s.children, i, i+1)
	}
}
