// Package timers keeps one cancellable delayed callback per in-flight
// question, keyed by chat and the moment the question was asked.
package timers

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Key identifies a scheduled callback. At is stored as UnixNano so keys
// survive a round trip through persistence.
type Key struct {
	ChatID string
	At     int64
	Seq    int64
}

// KeyFor builds the key for a chat and timestamp.
func KeyFor(chatID string, at time.Time) Key {
	return Key{ChatID: chatID, At: at.UnixNano()}
}

// QuestionKey builds the key for the seq-th question of a chat. Two
// questions asked at the same clock reading get distinct keys.
func QuestionKey(chatID string, at time.Time, seq int64) Key {
	return Key{ChatID: chatID, At: at.UnixNano(), Seq: seq}
}

// Func is run when a timer fires. ctx is cancelled if the timer is cancelled
// while fn is still running.
type Func func(ctx context.Context, key Key)

type entry struct {
	timer  *quartz.Timer
	ctx    context.Context
	cancel context.CancelFunc
}

// Registry is a process-wide set of pending timers.
type Registry struct {
	clock  quartz.Clock
	logger *log.Logger

	mu      sync.Mutex
	pending map[Key]*entry
	wg      sync.WaitGroup
	closed  bool
}

// NewRegistry creates an empty registry driven by clock.
func NewRegistry(clock quartz.Clock, logger *log.Logger) *Registry {
	return &Registry{
		clock:   clock,
		logger:  logger.WithPrefix("timers"),
		pending: make(map[Key]*entry),
	}
}

// Schedule arms fn to run after d. Any timer already registered under key is
// cancelled first. Scheduling on a stopped registry is a no-op.
func (r *Registry) Schedule(key Key, d time.Duration, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if old, ok := r.pending[key]; ok {
		r.disposeLocked(key, old)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{ctx: ctx, cancel: cancel}
	r.wg.Add(1)
	e.timer = r.clock.AfterFunc(d, func() {
		defer r.wg.Done()
		if !r.claim(key, e) {
			return
		}
		defer cancel()
		fn(ctx, key)
	}, "timers", "fire")
	r.pending[key] = e

	r.logger.Debug("Timer armed", "chat", key.ChatID, "at", key.At, "after", d)
}

// claim atomically removes e from the registry on fire. It returns false when
// the timer was cancelled or replaced first.
func (r *Registry) claim(key Key, e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.pending[key]; !ok || current != e {
		return false
	}
	delete(r.pending, key)
	return true
}

// Cancel removes and disposes the timer for key. It reports whether a
// pending timer was found.
func (r *Registry) Cancel(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pending[key]
	if !ok {
		return false
	}
	r.disposeLocked(key, e)
	return true
}

// CancelChat disposes every timer belonging to chatID.
func (r *Registry) CancelChat(chatID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, e := range r.pending {
		if key.ChatID == chatID {
			r.disposeLocked(key, e)
			n++
		}
	}
	return n
}

func (r *Registry) disposeLocked(key Key, e *entry) {
	delete(r.pending, key)
	e.cancel()
	if e.timer.Stop() {
		// The callback will never run, so release its slot here.
		r.wg.Done()
	}
	r.logger.Debug("Timer cancelled", "chat", key.ChatID, "at", key.At)
}

// Pending reports whether a timer is armed for key.
func (r *Registry) Pending(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[key]
	return ok
}

// Len returns the number of armed timers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Stop cancels all pending timers and waits for running callbacks.
func (r *Registry) Stop() {
	r.mu.Lock()
	r.closed = true
	for key, e := range r.pending {
		r.disposeLocked(key, e)
	}
	r.mu.Unlock()
	r.wg.Wait()
}
