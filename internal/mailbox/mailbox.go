// Package mailbox provides the ordered deferred-action queue behind the
// chat pipeline. Actions carry eligibility conditions (generation idle,
// owning conversation still present, earliest run time); the dispatcher
// runs the first eligible action and lets ineligible ones wait without
// blocking later eligible ones. Within the same conditions FIFO order is
// preserved.
package mailbox

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrMailboxClosed is returned by Enqueue after Stop.
var ErrMailboxClosed = errors.New("mailbox: closed")

// State is the view of the pipeline the dispatcher gates on.
type State interface {
	// Generating reports whether a completion is in flight.
	Generating() bool
	// HasConversation reports whether the conversation still exists.
	HasConversation(id string) bool
}

// Action is one deferred unit of work.
type Action struct {
	// Name labels the action in logs and metrics.
	Name string

	// NeedsIdle holds the action back while a generation is in flight.
	NeedsIdle bool

	// RequireConv drops the action silently if the conversation is
	// deleted before the action becomes eligible.
	RequireConv string

	// NotBefore holds the action back until the given time. Zero means
	// immediately eligible.
	NotBefore time.Time

	// Run does the work. Errors are logged; the action is not retried.
	Run func(ctx context.Context) error
}

// Mailbox is the dispatcher. Enqueue never blocks on the work itself.
type Mailbox struct {
	state State
	log   zerolog.Logger

	mu      sync.Mutex
	queue   []Action
	running bool
	waiters []chan struct{}
	closed  bool

	kick chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// New builds a Mailbox and starts its dispatcher goroutine.
func New(state State, log zerolog.Logger) *Mailbox {
	m := &Mailbox{
		state: state,
		log:   log,
		kick:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	m.wg.Add(1)
	go m.dispatch()
	return m
}

// Enqueue appends the action and wakes the dispatcher.
func (m *Mailbox) Enqueue(a Action) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMailboxClosed
	}
	m.queue = append(m.queue, a)
	depth := len(m.queue)
	m.mu.Unlock()

	enqueuedTotal.WithLabelValues(a.Name).Inc()
	queueDepth.Set(float64(depth))
	m.Kick()
	return nil
}

// Kick re-evaluates eligibility. Call after any state change that could
// unblock a waiting action (generation finished, conversation switched).
func (m *Mailbox) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Barrier blocks until every action enqueued so far has run or been
// dropped, or ctx is done.
func (m *Mailbox) Barrier(ctx context.Context) error {
	m.mu.Lock()
	if len(m.queue) == 0 && !m.running {
		m.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	m.waiters = append(m.waiters, ch)
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts the dispatcher down. Pending actions are dropped; callers
// that need them to run should Barrier first. Idempotent.
func (m *Mailbox) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	dropped := len(m.queue)
	m.mu.Unlock()

	if dropped > 0 {
		m.log.Warn().Int("count", dropped).Msg("mailbox stopping with pending actions")
	}
	close(m.done)
	m.wg.Wait()
}

func (m *Mailbox) dispatch() {
	defer m.wg.Done()

	for {
		a, wait, ok := m.next()
		if ok {
			m.run(a)
			continue
		}

		var timerC <-chan time.Time
		if wait > 0 {
			timer := time.NewTimer(wait)
			timerC = timer.C
			select {
			case <-m.kick:
				timer.Stop()
			case <-timerC:
			case <-m.done:
				timer.Stop()
				return
			}
			continue
		}

		select {
		case <-m.kick:
		case <-m.done:
			return
		}
	}
}

// next pops the first eligible action. When none is eligible it returns
// the wait until the earliest NotBefore deadline, or 0 when only a state
// change can unblock the queue. Actions whose required conversation has
// vanished are dropped during the scan. After Stop the remaining queue is
// dropped wholesale so nothing runs with a canceled context.
func (m *Mailbox) next() (Action, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		for _, a := range m.queue {
			droppedTotal.WithLabelValues(a.Name).Inc()
		}
		m.queue = nil
		queueDepth.Set(0)
		m.notifyLocked()
		return Action{}, 0, false
	}

	now := time.Now()
	var wait time.Duration

	for i := 0; i < len(m.queue); {
		a := m.queue[i]

		if a.RequireConv != "" && !m.state.HasConversation(a.RequireConv) {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			droppedTotal.WithLabelValues(a.Name).Inc()
			m.log.Debug().Str("action", a.Name).Str("conversation", a.RequireConv).
				Msg("dropping action for deleted conversation")
			m.notifyLocked()
			continue
		}
		if !a.NotBefore.IsZero() && a.NotBefore.After(now) {
			if d := a.NotBefore.Sub(now); wait == 0 || d < wait {
				wait = d
			}
			i++
			continue
		}
		if a.NeedsIdle && m.state.Generating() {
			i++
			continue
		}

		m.queue = append(m.queue[:i], m.queue[i+1:]...)
		m.running = true
		queueDepth.Set(float64(len(m.queue)))
		return a, 0, true
	}

	queueDepth.Set(float64(len(m.queue)))
	return Action{}, wait, false
}

func (m *Mailbox) run(a Action) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Str("action", a.Name).Interface("panic", r).Msg("mailbox action panicked")
		}
		runDuration.WithLabelValues(a.Name).Observe(time.Since(start).Seconds())
		m.mu.Lock()
		m.running = false
		m.notifyLocked()
		m.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-m.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := a.Run(ctx); err != nil {
		m.log.Warn().Str("action", a.Name).Err(err).Msg("mailbox action failed")
	}
}

// notifyLocked releases Barrier waiters once the queue is empty and idle.
func (m *Mailbox) notifyLocked() {
	if len(m.queue) != 0 || m.running {
		return
	}
	for _, ch := range m.waiters {
		close(ch)
	}
	m.waiters = nil
}
