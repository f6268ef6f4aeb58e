// Package state holds the monitor's shared view of the game: presence, the
// in-raid flag, the cloud flag and the last error. Readers never wait on a
// running capture; this lock is separate from the snapshot store lock.
package state

import (
	"sync"
	"time"
)

type View struct {
	ProcessRunning bool      `json:"game_running"`
	InRaid         *bool     `json:"inraid"`
	CloudEnabled   *bool     `json:"cloud_enabled"`
	LastError      string    `json:"last_error,omitempty"`
	LastErrorAt    time.Time `json:"last_error_at,omitempty"`
}

type Tracker struct {
	mu sync.RWMutex
	v  View
}

func NewTracker() *Tracker { return &Tracker{} }

func (t *Tracker) Update(running bool, inRaid *bool) {
	t.mu.Lock()
	t.v.ProcessRunning = running
	t.v.InRaid = cloneBool(inRaid)
	t.mu.Unlock()
}

func (t *Tracker) SetCloudEnabled(v *bool) {
	t.mu.Lock()
	t.v.CloudEnabled = cloneBool(v)
	t.mu.Unlock()
}

func (t *Tracker) SetLastError(msg string, at time.Time) {
	t.mu.Lock()
	t.v.LastError = msg
	t.v.LastErrorAt = at
	t.mu.Unlock()
}

func (t *Tracker) ProcessRunning() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.v.ProcessRunning
}

func (t *Tracker) InRaid() *bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneBool(t.v.InRaid)
}

// View returns a copy safe to hand to other goroutines.
func (t *Tracker) View() View {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v := t.v
	v.InRaid = cloneBool(v.InRaid)
	v.CloudEnabled = cloneBool(v.CloudEnabled)
	return v
}

// Reset forgets presence and in-raid; used when the watched profile changes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.v.ProcessRunning = false
	t.v.InRaid = nil
	t.mu.Unlock()
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
