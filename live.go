package live

import (
	"context"
	"time"

	"github.com/AnatoleLucet/live/internal"
	"github.com/rs/zerolog"
)

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}

	return v.(T)
}

// Lifecycle gates whether a subscriber currently receives values.
type Lifecycle = internal.Lifecycle

// Forever is a lifecycle that never goes inactive.
var Forever Lifecycle = internal.Forever

// SubscriberID identifies a subscription within the value it was made on.
type SubscriberID int

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	sub *internal.Subscriber
}

// ID returns the id to pass to Unsubscribe on the value.
func (s *Subscription) ID() SubscriberID { return SubscriberID(s.sub.ID()) }

// Activate resumes a subscription paused by Deactivate.
// If its lifecycle is active, the latest unseen value is delivered right away.
func (s *Subscription) Activate() { s.sub.Activate() }

// Deactivate pauses the subscription. Writes made meanwhile are not lost:
// the most recent one is delivered on the next Activate.
func (s *Subscription) Deactivate() { s.sub.Deactivate() }

// IsActive reports whether the subscription currently receives values.
func (s *Subscription) IsActive() bool { return s.sub.IsActive() }

// Unsubscribe stops all further deliveries. Safe to call more than once.
func (s *Subscription) Unsubscribe() { s.sub.Unsubscribe() }

// Value holds the latest written value and pushes it to subscribers whose
// lifecycle is active. New or re-activated subscribers get the latest value replayed.
type Value[T any] struct {
	obs *internal.Observable
}

// NewValue creates a value with nothing written yet.
func NewValue[T any]() *Value[T] {
	return &Value[T]{internal.NewObservable(internal.ReplayLatest())}
}

// NewValueOf creates a value holding initial.
func NewValueOf[T any](initial T) *Value[T] {
	return &Value[T]{internal.NewObservableOf(internal.ReplayLatest(), initial)}
}

// Read returns the current value and whether one was ever written.
func (v *Value[T]) Read() (T, bool) {
	value, ok := v.obs.Read()
	return as[T](value), ok
}

// Get returns the current value, or the zero value if none was written.
func (v *Value[T]) Get() T {
	value, _ := v.Read()
	return value
}

// Write sets the value and notifies active subscribers in registration order
// before returning.
func (v *Value[T]) Write(x T) { v.obs.Write(x) }

// Post hands the write to the looper of the goroutine that created the value.
func (v *Value[T]) Post(x T) { v.obs.Post(x) }

// Subscribe registers fn under lc. If a value exists and lc is active, fn runs immediately.
// A nil lc behaves like Forever.
func (v *Value[T]) Subscribe(lc Lifecycle, fn func(T)) *Subscription {
	return &Subscription{v.obs.Subscribe(lc, func(x any) { fn(as[T](x)) })}
}

// Unsubscribe removes the subscription with the given id. Unknown ids are ignored.
func (v *Value[T]) Unsubscribe(id SubscriberID) { v.obs.Unsubscribe(int(id)) }

// UnsubscribeAll removes every subscription.
func (v *Value[T]) UnsubscribeAll() { v.obs.RemoveAll() }

// HasSubscribers reports whether any subscription, active or not, is registered.
func (v *Value[T]) HasSubscribers() bool { return v.obs.HasSubscribers() }

// HasActiveSubscribers reports whether at least one subscription currently receives values.
func (v *Value[T]) HasActiveSubscribers() bool { return v.obs.ActiveCount() > 0 }

// Event is a value whose each write reaches at most one subscriber, once.
// Subscribers attaching after the write was consumed do not see it.
type Event[T any] struct {
	Value[T]

	policy *internal.SingleFirePolicy
}

// NewEvent creates an event with nothing pending.
func NewEvent[T any]() *Event[T] {
	policy := internal.SingleFire()

	return &Event[T]{
		Value:  Value[T]{internal.NewObservable(policy)},
		policy: policy,
	}
}

// Call fires the event with the zero payload.
func (e *Event[T]) Call() {
	var zero T
	e.Write(zero)
}

// Pending reports whether the last write is still waiting for a subscriber.
func (e *Event[T]) Pending() bool { return e.policy.Pending() }

// Scope is a lifecycle driven by hand: inactive until activated, and
// releasing every subscription bound to it when disposed.
type Scope struct {
	scope *internal.Scope
}

// NewScope creates an inactive scope.
func NewScope() *Scope {
	return &Scope{internal.NewScope()}
}

// NewChild creates a scope that is active only while this one is,
// and that is disposed along with it.
func (s *Scope) NewChild() *Scope { return &Scope{s.scope.NewChild()} }

// IsActive reports whether the scope and all its parents are active.
func (s *Scope) IsActive() bool { return s.scope.IsActive() }

// IsDisposed reports whether Dispose was called on the scope or a parent.
func (s *Scope) IsDisposed() bool { return s.scope.IsDisposed() }

// Activate delivers pending values to subscriptions bound to this scope.
func (s *Scope) Activate() { s.scope.Activate() }

// Deactivate holds deliveries until the next Activate.
func (s *Scope) Deactivate() { s.scope.Deactivate() }

// Dispose releases every subscription bound to the scope and runs cleanups.
func (s *Scope) Dispose() { s.scope.Dispose() }

// Add a cleanup function to be called ONCE when the scope is disposed.
func (s *Scope) OnCleanup(fn func()) { s.scope.OnCleanup(fn) }

// Add a function to be called when a subscriber callback panics within this scope.
// If no error listener is registered, the panic will propagate as usual.
func (s *Scope) OnError(fn func(any)) { s.scope.OnError(fn) }

// Run a function, routing its panics to the OnError listeners.
func (s *Scope) Run(fn func()) { s.scope.Run(fn) }

// Watch is called after every transition of the scope or one of its parents.
func (s *Scope) Watch(fn func()) (stop func()) { return s.scope.Watch(fn) }

// Looper runs callbacks on a single owner goroutine.
type Looper struct {
	looper *internal.Looper
}

// MainLooper returns the looper owned by the calling goroutine.
func MainLooper() *Looper {
	return &Looper{internal.CurrentLooper()}
}

// ReleaseMainLooper forgets the calling goroutine's looper.
func ReleaseMainLooper() { internal.ReleaseLooper() }

// NewLooper creates a looper that is not registered to any goroutine.
func NewLooper() *Looper {
	return &Looper{internal.NewLooper()}
}

// Post queues fn to run on the looper after the callbacks already queued.
func (l *Looper) Post(fn func()) { l.looper.Post(fn) }

// PostDelayed runs fn on the looper after d. The returned cancel reports
// whether it stopped fn from running.
func (l *Looper) PostDelayed(fn func(), d time.Duration) (cancel func() bool) {
	return l.looper.PostDelayed(fn, d)
}

// Loop runs callbacks until ctx is done or Quit is called.
func (l *Looper) Loop(ctx context.Context) error { return l.looper.Loop(ctx) }

// RunUntilIdle runs callbacks until none are queued or scheduled.
func (l *Looper) RunUntilIdle(ctx context.Context) error { return l.looper.RunUntilIdle(ctx) }

// Quit stops Loop and RunUntilIdle. Safe to call more than once.
func (l *Looper) Quit() { l.looper.Quit() }

// Pending returns the number of queued callbacks plus delayed posts not yet due.
func (l *Looper) Pending() int { return l.looper.Pending() }

// SetLogger replaces the logger used for usage warnings.
func SetLogger(logger zerolog.Logger) { internal.SetLogger(logger) }
