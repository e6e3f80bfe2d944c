package refresh

import (
	"time"

	"github.com/AnatoleLucet/live"
)

const (
	DefaultText  = "Hello World"
	DefaultDelay = 1500 * time.Millisecond
)

// Fetcher retrieves the data shown by a Workflow.
// Fetch must call done exactly once unless the returned cancel is called first.
type Fetcher interface {
	Fetch(done func(data string, err error)) (cancel func())
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(done func(data string, err error)) (cancel func())

func (f FetcherFunc) Fetch(done func(data string, err error)) func() {
	return f(done)
}

// DelayedFetcher answers every fetch with a fixed text after a fixed delay,
// calling back on the looper it was built with.
type DelayedFetcher struct {
	looper *live.Looper
	text   string
	delay  time.Duration
}

func NewDelayedFetcher(looper *live.Looper, text string, delay time.Duration) *DelayedFetcher {
	return &DelayedFetcher{
		looper: looper,
		text:   text,
		delay:  delay,
	}
}

func (f *DelayedFetcher) Fetch(done func(data string, err error)) func() {
	cancel := f.looper.PostDelayed(func() {
		done(f.text, nil)
	}, f.delay)

	return func() { cancel() }
}
