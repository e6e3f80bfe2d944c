package internal

import (
	"context"
	"sync"
	"time"
)

// Looper runs posted callbacks one at a time on the goroutine that drives it.
type Looper struct {
	mu sync.Mutex

	queue []func()

	// timers armed by PostDelayed that have neither fired nor been cancelled
	delayed int

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
}

func NewLooper() *Looper {
	return &Looper{
		queue: make([]func(), 0),
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
	}
}

// Post queues fn to run on the loop.
func (l *Looper) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	l.signal()
}

// PostDelayed queues fn once d has elapsed. The returned cancel reports
// whether it stopped the callback before it was queued.
func (l *Looper) PostDelayed(fn func(), d time.Duration) (cancel func() bool) {
	l.mu.Lock()
	l.delayed++
	l.mu.Unlock()

	timer := time.AfterFunc(d, func() {
		// enqueue and decrement together so RunUntilIdle never sees neither
		l.mu.Lock()
		l.queue = append(l.queue, fn)
		l.delayed--
		l.mu.Unlock()

		l.signal()
	})

	return func() bool {
		if !timer.Stop() {
			return false
		}

		l.mu.Lock()
		l.delayed--
		l.mu.Unlock()

		l.signal()
		return true
	}
}

// Loop runs callbacks until ctx is done or Quit is called.
func (l *Looper) Loop(ctx context.Context) error {
	for {
		l.drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		case <-l.wake:
		}
	}
}

// RunUntilIdle runs callbacks until nothing is queued and no delayed post is outstanding.
func (l *Looper) RunUntilIdle(ctx context.Context) error {
	for {
		l.drain()

		if l.idle() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		case <-l.wake:
		}
	}
}

// Quit stops Loop and RunUntilIdle. Safe to call more than once.
func (l *Looper) Quit() {
	l.quitOnce.Do(func() { close(l.quit) })
}

// Pending returns the number of queued callbacks plus outstanding delayed posts.
func (l *Looper) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.queue) + l.delayed
}

func (l *Looper) idle() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.queue) == 0 && l.delayed == 0
}

func (l *Looper) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil
	}

	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Looper) drain() {
	for fn := l.next(); fn != nil; fn = l.next() {
		fn()
	}
}

func (l *Looper) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
