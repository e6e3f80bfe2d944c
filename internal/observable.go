package internal

import (
	"slices"
	"sync"
)

// Lifecycle gates delivery to a subscriber.
type Lifecycle interface {
	IsActive() bool
}

// optional lifecycle capabilities, all implemented by *Scope
type (
	watcher interface {
		Watch(fn func()) (stop func())
	}
	disposable interface {
		IsDisposed() bool
	}
	runner interface {
		Run(fn func())
	}
)

type alwaysActive struct{}

func (alwaysActive) IsActive() bool { return true }

// Forever is a lifecycle that is always active.
var Forever Lifecycle = alwaysActive{}

const startVersion = -1

type Observable struct {
	mu sync.Mutex

	policy Policy

	// goroutine that created the value; its looper is looked up on Post
	owner int64

	value    any
	hasValue bool

	// incremented on every write, compared against each subscriber's lastVersion
	version int

	// in registration order
	subs   []*Subscriber
	nextID int

	dispatching bool
	invalidated bool

	// value waiting for the looper after Post, coalesced
	posted    any
	hasPosted bool
}

type Subscriber struct {
	id  int
	obs *Observable

	lifecycle Lifecycle
	fn        func(any)

	// effective state at the last sync
	active bool

	// paused by an explicit Deactivate
	held bool

	lastVersion int
	removed     bool

	stopWatch func()
}

func NewObservable(policy Policy) *Observable {
	return &Observable{
		policy:  policy,
		owner:   currentGoroutine(),
		version: startVersion,
		subs:    make([]*Subscriber, 0),
	}
}

func NewObservableOf(policy Policy, initial any) *Observable {
	o := NewObservable(policy)
	o.value = initial
	o.hasValue = true
	o.version = startVersion + 1

	return o
}

func (o *Observable) Read() (any, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.value, o.hasValue
}

func (o *Observable) Version() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.version
}

// Write stores v and synchronously notifies every active subscriber in registration order.
func (o *Observable) Write(v any) {
	if o.owner != currentGoroutine() {
		Logger().Warn().Msg("value written from a goroutine that does not own it, use Post instead")
	}

	o.mu.Lock()
	o.value = v
	o.hasValue = true
	o.version++
	o.mu.Unlock()

	o.policy.written(o)
	o.dispatch(nil)
}

// Post hands v to the owner looper, which writes it.
// Posts made before the looper gets to it collapse into the latest one.
func (o *Observable) Post(v any) {
	o.mu.Lock()
	scheduled := o.hasPosted
	o.posted = v
	o.hasPosted = true
	o.mu.Unlock()

	if scheduled {
		return
	}

	LooperOf(o.owner).Post(func() {
		o.mu.Lock()
		v := o.posted
		o.posted = nil
		o.hasPosted = false
		o.mu.Unlock()

		o.Write(v)
	})
}

func (o *Observable) Subscribe(lc Lifecycle, fn func(any)) *Subscriber {
	if lc == nil {
		lc = Forever
	}

	s := &Subscriber{
		obs:         o,
		lifecycle:   lc,
		fn:          fn,
		lastVersion: startVersion,
	}

	if d, ok := lc.(disposable); ok && d.IsDisposed() {
		s.removed = true
		return s
	}

	o.mu.Lock()
	activeBefore := o.activeCountLocked()
	o.nextID++
	s.id = o.nextID
	o.subs = append(o.subs, s)
	o.mu.Unlock()

	o.policy.subscribed(o, activeBefore)

	if w, ok := lc.(watcher); ok {
		s.stopWatch = w.Watch(func() { o.sync(s) })
	}

	o.sync(s)

	return s
}

// Unsubscribe removes the subscriber with the given id. Unknown ids are ignored.
func (o *Observable) Unsubscribe(id int) {
	o.mu.Lock()
	i := slices.IndexFunc(o.subs, func(s *Subscriber) bool { return s.id == id })
	if i < 0 {
		o.mu.Unlock()
		return
	}
	s := o.subs[i]
	o.mu.Unlock()

	o.remove(s)
}

// RemoveAll drops every subscriber.
func (o *Observable) RemoveAll() {
	o.mu.Lock()
	subs := slices.Clone(o.subs)
	o.mu.Unlock()

	for _, s := range subs {
		o.remove(s)
	}
}

func (o *Observable) HasSubscribers() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.subs) > 0
}

func (o *Observable) ActiveCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.activeCountLocked()
}

func (o *Observable) activeCountLocked() int {
	n := 0
	for _, s := range o.subs {
		if s.active {
			n++
		}
	}

	return n
}

func (o *Observable) remove(s *Subscriber) {
	o.mu.Lock()
	if s.removed {
		o.mu.Unlock()
		return
	}
	s.removed = true
	s.active = false
	o.subs = slices.DeleteFunc(o.subs, func(other *Subscriber) bool { return other == s })
	stop := s.stopWatch
	s.stopWatch = nil
	o.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// sync recomputes the subscriber's effective state and delivers the latest
// value when it becomes active.
func (o *Observable) sync(s *Subscriber) {
	if d, ok := s.lifecycle.(disposable); ok && d.IsDisposed() {
		o.remove(s)
		return
	}

	o.mu.Lock()
	held := s.held
	o.mu.Unlock()

	o.setActive(s, !held && s.lifecycle.IsActive())
}

func (o *Observable) setActive(s *Subscriber, active bool) {
	o.mu.Lock()
	if s.removed || s.active == active {
		o.mu.Unlock()
		return
	}
	s.active = active
	o.mu.Unlock()

	if active {
		o.dispatch(s)
	}
}

// dispatch delivers the current value to target, or to every subscriber when
// target is nil. A dispatch requested while one is running restarts it.
func (o *Observable) dispatch(target *Subscriber) {
	o.mu.Lock()
	if o.dispatching {
		o.invalidated = true
		o.mu.Unlock()
		return
	}
	o.dispatching = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.dispatching = false
		o.mu.Unlock()
	}()

	for {
		o.mu.Lock()
		o.invalidated = false
		subs := []*Subscriber{target}
		if target == nil {
			subs = slices.Clone(o.subs)
		}
		o.mu.Unlock()
		target = nil

		for _, s := range subs {
			o.considerNotify(s)

			if o.isInvalidated() {
				break
			}
		}

		if !o.isInvalidated() {
			return
		}
	}
}

func (o *Observable) isInvalidated() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.invalidated
}

func (o *Observable) considerNotify(s *Subscriber) {
	o.mu.Lock()
	if s.removed || !s.active {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	if d, ok := s.lifecycle.(disposable); ok && d.IsDisposed() {
		o.remove(s)
		return
	}
	// the lifecycle may have gone inactive without telling us
	if !s.lifecycle.IsActive() {
		o.setActive(s, false)
		return
	}

	o.mu.Lock()
	if s.lastVersion >= o.version || !o.hasValue {
		o.mu.Unlock()
		return
	}
	s.lastVersion = o.version
	value := o.value
	o.mu.Unlock()

	if !o.policy.admit() {
		return
	}

	s.deliver(value)
}

func (s *Subscriber) deliver(value any) {
	if r, ok := s.lifecycle.(runner); ok {
		r.Run(func() { s.fn(value) })
		return
	}

	s.fn(value)
}

func (s *Subscriber) ID() int {
	return s.id
}

// Activate lifts a previous Deactivate and delivers the latest value if the
// lifecycle is active and the subscriber has not seen it yet.
func (s *Subscriber) Activate() {
	s.obs.mu.Lock()
	s.held = false
	s.obs.mu.Unlock()

	s.obs.sync(s)
}

// Deactivate pauses deliveries until Activate is called.
func (s *Subscriber) Deactivate() {
	s.obs.mu.Lock()
	s.held = true
	s.obs.mu.Unlock()

	s.obs.setActive(s, false)
}

func (s *Subscriber) IsActive() bool {
	s.obs.mu.Lock()
	defer s.obs.mu.Unlock()

	return s.active
}

func (s *Subscriber) Unsubscribe() {
	s.obs.remove(s)
}
