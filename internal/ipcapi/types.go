// Package ipcapi holds the shapes handed to the desktop webview and printed
// by `--json` CLI output.
package ipcapi

import (
	"time"

	"SaveGuard/internal/events"
	"SaveGuard/internal/snapshot"
	"SaveGuard/internal/state"
)

type SnapshotMeta struct {
	SnapshotID    string `json:"snapshotID"`
	Bucket        string `json:"bucket"`
	BucketLabel   string `json:"bucketLabel"`
	Reason        string `json:"reason"`
	ReasonLabel   string `json:"reasonLabel"`
	CreatedAtUTC  int64  `json:"createdAtUTC"`
	Profile       int    `json:"profile"`
	InRaid        *bool  `json:"inRaid"`
	PreRaidAnchor bool   `json:"preRaidAnchor"`
	IntegrityOK   bool   `json:"integrityOK"`
	Restorable    bool   `json:"restorable"`
	SizeBytes     int64  `json:"sizeBytes"`
	Path          string `json:"path"`
}

type StateView struct {
	GameRunning  bool   `json:"gameRunning"`
	InRaid       *bool  `json:"inRaid"`
	CloudEnabled *bool  `json:"cloudEnabled"`
	LastError    string `json:"lastError,omitempty"`
	Monitoring   bool   `json:"monitoring"`
	Profile      int    `json:"profile"`
	SaveRoot     string `json:"saveRoot"`
}

// EventMessage is the payload of every event forwarded to the webview.
type EventMessage struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	AtUTC    int64         `json:"atUTC"`
	Summary  string        `json:"summary"`
	State    *StateView    `json:"state,omitempty"`
	Snapshot *SnapshotMeta `json:"snapshot,omitempty"`
	Backup   *SnapshotMeta `json:"backup,omitempty"`
	Message  string        `json:"message,omitempty"`
	Hotkey   *bool         `json:"hotkeyRegistered,omitempty"`
}

type HistoryEntry struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	AtUTC   int64  `json:"atUTC"`
	Profile int    `json:"profile"`
	Summary string `json:"summary"`
}

func NowUTC() int64 { return time.Now().UTC().UnixMilli() }

func FromRecord(r snapshot.Record) SnapshotMeta {
	return SnapshotMeta{
		SnapshotID:    r.ID,
		Bucket:        string(r.Bucket),
		BucketLabel:   r.Bucket.Label(),
		Reason:        r.Reason,
		ReasonLabel:   snapshot.ReasonLabel(r.Reason),
		CreatedAtUTC:  r.CreatedAt.UTC().UnixMilli(),
		Profile:       r.Profile,
		InRaid:        r.InRaid,
		PreRaidAnchor: r.PreRaidAnchor,
		IntegrityOK:   r.IntegrityOK,
		Restorable:    r.Restorable(),
		SizeBytes:     r.SizeBytes,
		Path:          r.Path,
	}
}

func FromRecords(recs []snapshot.Record) []SnapshotMeta {
	out := make([]SnapshotMeta, 0, len(recs))
	for _, r := range recs {
		out = append(out, FromRecord(r))
	}
	return out
}

func FromState(v state.View) StateView {
	return StateView{
		GameRunning:  v.ProcessRunning,
		InRaid:       v.InRaid,
		CloudEnabled: v.CloudEnabled,
		LastError:    v.LastError,
	}
}

func FromEvent(ev events.Event) EventMessage {
	msg := EventMessage{
		ID:      ev.ID,
		Type:    string(ev.Type),
		AtUTC:   ev.At.UTC().UnixMilli(),
		Summary: ev.Summary(),
		Message: ev.Message,
		Hotkey:  ev.Registered,
	}
	if ev.State != nil {
		msg.State = &StateView{
			GameRunning:  ev.State.ProcessRunning,
			InRaid:       ev.State.InRaid,
			CloudEnabled: ev.State.CloudEnabled,
		}
	}
	switch {
	case ev.Snapshot != nil:
		m := FromRecord(*ev.Snapshot)
		msg.Snapshot = &m
	case ev.RestoredFrom != nil:
		m := FromRecord(*ev.RestoredFrom)
		msg.Snapshot = &m
	}
	if ev.Backup != nil {
		m := FromRecord(*ev.Backup)
		msg.Backup = &m
	}
	return msg
}
