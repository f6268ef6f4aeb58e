// Package trayhotkey owns the in-game save request: a flag set by the global
// hotkey or the tray menu and consumed by the monitor loop.
package trayhotkey

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultDebounce is the minimum gap between two accepted requests.
const DefaultDebounce = 500 * time.Millisecond

// Trigger is a single pending-request flag. Setting it never touches
// snapshot state; it only wakes whoever waits on Wake.
type Trigger struct {
	pending atomic.Bool
	limiter *rate.Limiter
	wake    chan struct{}
}

func NewTrigger(debounce time.Duration) *Trigger {
	lim := rate.NewLimiter(rate.Inf, 1)
	if debounce > 0 {
		lim = rate.NewLimiter(rate.Every(debounce), 1)
	}
	return &Trigger{limiter: lim, wake: make(chan struct{}, 1)}
}

// Request raises the flag. It returns false when debounced.
func (t *Trigger) Request() bool {
	if !t.limiter.Allow() {
		return false
	}
	t.pending.Store(true)
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return true
}

func (t *Trigger) Pending() bool { return t.pending.Load() }

// Take clears the flag and reports whether it was set.
func (t *Trigger) Take() bool { return t.pending.CompareAndSwap(true, false) }

func (t *Trigger) Clear() { t.pending.Store(false) }

// Wake fires after each accepted Request.
func (t *Trigger) Wake() <-chan struct{} { return t.wake }
