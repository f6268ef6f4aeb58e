// Package events defines the typed records the monitor and the user-facing
// operations publish, and the queue that carries them.
package events

import (
	"time"

	"SaveGuard/internal/snapshot"
)

type Type string

const (
	TypeState           Type = "state"
	TypeSnapshotCreated Type = "snapshot_created"
	TypeAnchorPromoted  Type = "anchor_promoted"
	TypeRestoreDone     Type = "restore_done"
	TypeInfo            Type = "info"
	TypeError           Type = "error"
	TypeHotkeyStatus    Type = "hotkey"
)

type StatePayload struct {
	ProcessRunning bool  `json:"game_running"`
	InRaid         *bool `json:"inraid"`
	CloudEnabled   *bool `json:"cloud_enabled"`
}

// Event is one entry of the stream. Only the fields of its Type are set.
type Event struct {
	ID   string    `json:"id"`
	Type Type      `json:"type"`
	At   time.Time `json:"at"`

	State        *StatePayload    `json:"state,omitempty"`
	Snapshot     *snapshot.Record `json:"snapshot,omitempty"`
	RestoredFrom *snapshot.Record `json:"restored_from,omitempty"`
	Backup       *snapshot.Record `json:"backup,omitempty"`
	Message      string           `json:"message,omitempty"`
	Registered   *bool            `json:"registered,omitempty"`
}

func State(running bool, inRaid, cloud *bool) Event {
	return Event{Type: TypeState, State: &StatePayload{ProcessRunning: running, InRaid: inRaid, CloudEnabled: cloud}}
}

func SnapshotCreated(rec snapshot.Record) Event {
	return Event{Type: TypeSnapshotCreated, Snapshot: &rec}
}

func AnchorPromoted(rec snapshot.Record) Event {
	return Event{Type: TypeAnchorPromoted, Snapshot: &rec}
}

func RestoreDone(from, backup snapshot.Record) Event {
	return Event{Type: TypeRestoreDone, RestoredFrom: &from, Backup: &backup}
}

func Info(msg string) Event { return Event{Type: TypeInfo, Message: msg} }

func Error(msg string) Event { return Event{Type: TypeError, Message: msg} }

func HotkeyStatus(registered bool) Event {
	return Event{Type: TypeHotkeyStatus, Registered: &registered}
}

// Summary is a one-line human description used by the console and the journal.
func (e Event) Summary() string {
	switch e.Type {
	case TypeState:
		if e.State == nil {
			return "state"
		}
		return "game_running=" + yesNo(&e.State.ProcessRunning) + " inraid=" + yesNo(e.State.InRaid) + " cloud=" + yesNo(e.State.CloudEnabled)
	case TypeSnapshotCreated, TypeAnchorPromoted:
		if e.Snapshot == nil {
			return string(e.Type)
		}
		return string(e.Snapshot.Bucket) + "/" + e.Snapshot.ID
	case TypeRestoreDone:
		if e.RestoredFrom == nil || e.Backup == nil {
			return string(e.Type)
		}
		return "restored " + e.RestoredFrom.ID + ", backup " + e.Backup.ID
	case TypeHotkeyStatus:
		if e.Registered != nil && *e.Registered {
			return "hotkey registered"
		}
		return "hotkey unavailable"
	default:
		return e.Message
	}
}

func yesNo(v *bool) string {
	switch {
	case v == nil:
		return "unknown"
	case *v:
		return "yes"
	default:
		return "no"
	}
}
