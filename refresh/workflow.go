// Package refresh drives a screen that fetches a text on demand, exposing
// the text, a loading flag and a one-shot completion notice as live values.
package refresh

import (
	"fmt"
	"sync"
	"time"

	"github.com/AnatoleLucet/live"
	"github.com/rs/zerolog"
)

const (
	DefaultCompleteMessage = "download complete"
	DefaultFailedMessage   = "download failed"
)

// State is a snapshot of a Workflow.
type State struct {
	Loading  bool
	LastData string
	HasData  bool
}

type Option func(*Workflow)

// WithCompleteMessage sets the notice fired when a fetch succeeds.
func WithCompleteMessage(msg string) Option {
	return func(w *Workflow) { w.completeMessage = msg }
}

// WithFailedMessage sets the prefix of the notice fired when a fetch fails.
func WithFailedMessage(msg string) Option {
	return func(w *Workflow) { w.failedMessage = msg }
}

// WithSkipWhileLoading ignores Refresh while a fetch is in flight.
// Without it, overlapping refreshes each start their own fetch.
func WithSkipWhileLoading() Option {
	return func(w *Workflow) { w.skipWhileLoading = true }
}

func WithMetrics(m *Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

type Workflow struct {
	fetcher Fetcher

	data    *live.Value[string]
	loading *live.Value[bool]
	toast   *live.Event[string]

	completeMessage  string
	failedMessage    string
	skipWhileLoading bool
	metrics          *Metrics
	logger           zerolog.Logger

	mu sync.Mutex

	// cancel functions of the fetches in flight, by fetch id
	inFlight  map[int]func()
	started   map[int]time.Time
	nextFetch int

	lastData string
	hasData  bool

	onRefresh func(data string)

	closed bool
}

// New creates an idle workflow. Values are owned by the calling goroutine.
func New(fetcher Fetcher, opts ...Option) *Workflow {
	w := &Workflow{
		fetcher: fetcher,

		data:    live.NewValue[string](),
		loading: live.NewValueOf(false),
		toast:   live.NewEvent[string](),

		completeMessage: DefaultCompleteMessage,
		failedMessage:   DefaultFailedMessage,
		logger:          zerolog.Nop(),

		inFlight: make(map[int]func()),
		started:  make(map[int]time.Time),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Data holds the last fetched text and replays it to new subscribers.
func (w *Workflow) Data() *live.Value[string] { return w.data }

// Loading is true while at least one fetch is in flight.
func (w *Workflow) Loading() *live.Value[bool] { return w.loading }

// Toast fires once per completed fetch and is never replayed.
func (w *Workflow) Toast() *live.Event[string] { return w.toast }

// OnRefresh registers fn to be called with the data of every successful fetch.
func (w *Workflow) OnRefresh(fn func(data string)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.onRefresh = fn
}

func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()

	return State{
		Loading:  len(w.inFlight) > 0,
		LastData: w.lastData,
		HasData:  w.hasData,
	}
}

// Refresh sets loading and starts a fetch.
func (w *Workflow) Refresh() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if w.skipWhileLoading && len(w.inFlight) > 0 {
		w.mu.Unlock()
		w.logger.Debug().Msg("refresh ignored, fetch already in flight")
		w.metrics.skip()
		return
	}

	w.nextFetch++
	id := w.nextFetch
	w.inFlight[id] = nil
	w.started[id] = time.Now()
	n := len(w.inFlight)
	w.mu.Unlock()

	w.logger.Debug().Int("fetch", id).Int("in_flight", n).Msg("refresh started")
	w.metrics.started(n)
	w.loading.Write(true)

	cancel := w.fetcher.Fetch(func(data string, err error) {
		w.complete(id, data, err)
	})

	w.mu.Lock()
	// the fetcher may already have called back
	if _, ok := w.inFlight[id]; ok {
		w.inFlight[id] = cancel
	}
	w.mu.Unlock()
}

func (w *Workflow) complete(id int, data string, err error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		w.logger.Debug().Int("fetch", id).Msg("fetch result dropped, workflow closed")
		w.metrics.drop()
		return
	}
	if _, ok := w.inFlight[id]; !ok {
		w.mu.Unlock()
		w.logger.Warn().Int("fetch", id).Msg("fetch called back more than once")
		return
	}

	took := time.Since(w.started[id])
	delete(w.inFlight, id)
	delete(w.started, id)
	remaining := len(w.inFlight)

	if err == nil {
		w.lastData = data
		w.hasData = true
	}
	onRefresh := w.onRefresh
	w.mu.Unlock()

	w.metrics.completed(err, remaining, took)

	if err != nil {
		w.logger.Error().Err(err).Int("fetch", id).Msg("fetch failed")

		if remaining == 0 {
			w.loading.Write(false)
		}
		w.toast.Write(fmt.Sprintf("%s: %v", w.failedMessage, err))
		return
	}

	w.logger.Debug().Int("fetch", id).Dur("took", took).Msg("refresh complete")

	w.data.Write(data)
	if remaining == 0 {
		w.loading.Write(false)
	}
	w.toast.Write(w.completeMessage)

	if onRefresh != nil {
		onRefresh(data)
	}
}

// Close ends the workflow: fetches in flight are cancelled, late results are
// dropped, and every subscription is released. Safe to call more than once.
func (w *Workflow) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	wasLoading := len(w.inFlight) > 0
	cancels := make([]func(), 0, len(w.inFlight))
	for _, cancel := range w.inFlight {
		if cancel != nil {
			cancels = append(cancels, cancel)
		}
	}
	w.inFlight = make(map[int]func())
	w.started = make(map[int]time.Time)
	w.onRefresh = nil
	w.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	w.metrics.closed()

	if wasLoading {
		w.loading.Write(false)
	}

	w.data.UnsubscribeAll()
	w.loading.UnsubscribeAll()
	w.toast.UnsubscribeAll()
}
