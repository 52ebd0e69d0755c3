// Package debounce batches rapid successive messages from the same contact
// so the agent answers the whole thought once instead of replying to each
// fragment. A batch flushes after a quiet period with no new messages.
package debounce

import (
	"log/slog"
	"strings"
	"sync"
	"time"
)

const DefaultQuietPeriod = 6 * time.Second

// Batch is the accumulated input for one contact, flushed as a unit.
type Batch struct {
	Phone    string
	PushName string
	Texts    []string
	First    time.Time
	Last     time.Time
}

// Combined joins the batched texts in arrival order.
func (b *Batch) Combined() string {
	return strings.Join(b.Texts, "\n")
}

type FlushFunc func(batch *Batch)

type entry struct {
	batch *Batch
	timer *time.Timer
}

// flight serializes flushes for one contact. refs counts flushes queued or
// running so the entry can be dropped once the contact goes idle.
type flight struct {
	mu   sync.Mutex
	refs int
}

type Aggregator struct {
	mu      sync.Mutex
	quiet   time.Duration
	flush   FlushFunc
	pending map[string]*entry
	running map[string]*flight
	closed  bool
}

func NewAggregator(quiet time.Duration, flush FlushFunc) *Aggregator {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	return &Aggregator{
		quiet:   quiet,
		flush:   flush,
		pending: make(map[string]*entry),
		running: make(map[string]*flight),
	}
}

// Add appends a message to the contact's batch and restarts the quiet timer.
// Every new message pushes the flush out by the full quiet period.
func (a *Aggregator) Add(phone, pushName, text string) {
	now := time.Now()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}

	e, ok := a.pending[phone]
	if !ok {
		e = &entry{batch: &Batch{Phone: phone, First: now}}
		a.pending[phone] = e
	} else {
		e.timer.Stop()
	}

	e.batch.Texts = append(e.batch.Texts, text)
	e.batch.Last = now
	if pushName != "" {
		e.batch.PushName = pushName
	}
	count := len(e.batch.Texts)

	e.timer = time.AfterFunc(a.quiet, func() {
		a.fire(phone)
	})
	a.mu.Unlock()

	if count > 1 {
		slog.Debug("message added to pending batch", "phone", phone, "count", count)
	}
}

// FlushNow delivers the contact's batch without waiting out the quiet
// period, e.g. when an interactive reply arrives. The handler runs on its
// own goroutine; the caller returns as soon as the batch is scheduled.
func (a *Aggregator) FlushNow(phone string) {
	a.mu.Lock()
	e, ok := a.pending[phone]
	if ok {
		e.timer.Stop()
	}
	a.mu.Unlock()
	if ok {
		a.fire(phone)
	}
}

// Pending reports how many messages are queued for the contact.
func (a *Aggregator) Pending(phone string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if e, ok := a.pending[phone]; ok {
		return len(e.batch.Texts)
	}
	return 0
}

// OnPresence reacts to typing-indicator events for the contact. "composing"
// only refreshes the batch timestamp; "paused" or "available" with messages
// waiting means the user finished typing, so the batch flushes right away.
func (a *Aggregator) OnPresence(phone, state string) {
	switch state {
	case "composing", "recording":
		a.mu.Lock()
		if e, ok := a.pending[phone]; ok {
			e.batch.Last = time.Now()
		}
		a.mu.Unlock()
	case "paused", "available":
		a.FlushNow(phone)
	}
}

// SetQuiet changes the quiet period for batches started after the call.
func (a *Aggregator) SetQuiet(quiet time.Duration) {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	a.mu.Lock()
	a.quiet = quiet
	a.mu.Unlock()
}

// fire removes the batch under lock and hands it to the flush handler on a
// separate goroutine, so FlushNow and presence callers return immediately.
// The timer callback and FlushNow can race here; whichever takes the entry
// out first wins and the other becomes a no-op. A per-contact mutex keeps
// at most one flush in flight per contact, so replies never interleave.
func (a *Aggregator) fire(phone string) {
	a.mu.Lock()
	e, ok := a.pending[phone]
	if ok {
		delete(a.pending, phone)
	}
	var fl *flight
	if ok && a.flush != nil {
		fl = a.running[phone]
		if fl == nil {
			fl = &flight{}
			a.running[phone] = fl
		}
		fl.refs++
	}
	a.mu.Unlock()

	if fl == nil {
		return
	}
	go func() {
		fl.mu.Lock()
		a.flush(e.batch)
		fl.mu.Unlock()

		a.mu.Lock()
		fl.refs--
		if fl.refs == 0 {
			delete(a.running, phone)
		}
		a.mu.Unlock()
	}()
}

// Close cancels all timers and flushes nothing. Pending batches are dropped;
// callers that need them delivered should FlushNow each contact first.
func (a *Aggregator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	for phone, e := range a.pending {
		e.timer.Stop()
		delete(a.pending, phone)
	}
}
