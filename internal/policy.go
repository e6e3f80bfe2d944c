package internal

import "sync/atomic"

// Policy decides which of the deliveries computed by an Observable actually run.
type Policy interface {
	// written is called after a write has been stored and before it is dispatched.
	written(o *Observable)

	// subscribed is called after a subscriber was added, with the number of
	// subscribers that were active before it.
	subscribed(o *Observable, activeBefore int)

	// admit reports whether a delivery may invoke its callback.
	admit() bool
}

type replayLatest struct{}

// ReplayLatest delivers the latest value to every active subscriber,
// including ones that attach or become active after the write.
func ReplayLatest() Policy { return replayLatest{} }

func (replayLatest) written(*Observable)         {}
func (replayLatest) subscribed(*Observable, int) {}
func (replayLatest) admit() bool                 { return true }

type SingleFirePolicy struct {
	// set on every write, cleared by the first delivery that runs
	pending atomic.Bool
}

// SingleFire lets each write reach at most one delivery.
func SingleFire() *SingleFirePolicy { return &SingleFirePolicy{} }

func (p *SingleFirePolicy) written(o *Observable) {
	p.pending.Store(true)

	if n := o.ActiveCount(); n > 1 {
		Logger().Warn().
			Int("active", n).
			Msg("single-fire value written with multiple active subscribers, only the first will be notified")
	}
}

func (p *SingleFirePolicy) subscribed(o *Observable, activeBefore int) {
	if activeBefore > 0 {
		Logger().Warn().Msg("multiple subscribers registered but only one will be notified of changes")
	}
}

func (p *SingleFirePolicy) admit() bool {
	return p.pending.CompareAndSwap(true, false)
}

// Pending reports whether the last write has not been delivered yet.
func (p *SingleFirePolicy) Pending() bool {
	return p.pending.Load()
}
